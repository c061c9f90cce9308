package infra

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/focuslock/sessiond/internal/domain"
)

const scheduleDBName = "schedules.db"

// EncryptedScheduleStore implements domain.ScheduleStore using a
// SQLCipher encrypted SQLite database. Records are stored as JSON
// documents keyed by schedule id.
type EncryptedScheduleStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedScheduleStore opens (or creates) the encrypted schedule
// database. The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedScheduleStore(dataDir string, key []byte) (*EncryptedScheduleStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, scheduleDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &EncryptedScheduleStore{db: db, dbPath: dbPath}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *EncryptedScheduleStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save inserts or replaces a schedule record.
func (s *EncryptedScheduleStore) Save(sched domain.Schedule) error {
	data, err := json.Marshal(sched)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO schedules (id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		sched.ID, string(data), sched.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", sched.ID, err)
	}
	return nil
}

// Get returns the schedule or domain.ErrScheduleNotFound.
func (s *EncryptedScheduleStore) Get(id string) (*domain.Schedule, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM schedules WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, domain.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule %s: %w", id, err)
	}

	var sched domain.Schedule
	if err := json.Unmarshal([]byte(data), &sched); err != nil {
		return nil, fmt.Errorf("corrupt schedule record %s: %w", id, err)
	}
	return &sched, nil
}

// Delete removes the record; domain.ErrScheduleNotFound if absent.
func (s *EncryptedScheduleStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

// List returns all stored schedules. Corrupt records are skipped so one
// bad row cannot take down schedule restoration at startup.
func (s *EncryptedScheduleStore) List() ([]domain.Schedule, error) {
	rows, err := s.db.Query(`SELECT data FROM schedules ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		var sched domain.Schedule
		if err := json.Unmarshal([]byte(data), &sched); err != nil {
			continue
		}
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

// Close releases the database connection.
func (s *EncryptedScheduleStore) Close() error {
	return s.db.Close()
}

// DBPath returns the database file path (for tests and status output).
func (s *EncryptedScheduleStore) DBPath() string {
	return s.dbPath
}

// Ensure EncryptedScheduleStore implements domain.ScheduleStore.
var _ domain.ScheduleStore = (*EncryptedScheduleStore)(nil)
