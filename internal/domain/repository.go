package domain

import (
	"context"
	"errors"
	"time"
)

// ErrScheduleNotFound is returned by store and scheduler operations
// that reference an unknown schedule id.
var ErrScheduleNotFound = errors.New("schedule not found")

// AppController handles OS application operations.
// Implementation: gopsutil for process access, shell-outs for the rest.
type AppController interface {
	// RunningProcessNames returns the names of all running processes.
	RunningProcessNames() ([]string, error)

	// TerminateByName kills every process whose name matches (SIGKILL).
	// Returns the number of processes killed.
	TerminateByName(name string) (int, error)

	// LaunchByName starts an application by its display name.
	LaunchByName(name string) error

	// SetVisible shows or hides an application's windows.
	SetVisible(name string, visible bool) error

	// IsRunning checks whether any process matches the name.
	IsRunning(name string) (bool, error)
}

// ProbeStrategy is one method of discovering running GUI applications.
// Probes are tried in order by the monitor; a failing probe yields to
// the next one, it never aborts the cascade.
type ProbeStrategy interface {
	// Name identifies the probe in logs.
	Name() string

	// Probe returns discovered application names. The context carries
	// the per-probe deadline.
	Probe(ctx context.Context) ([]string, error)
}

// ScheduleStore provides persistent storage for schedules, keyed by id.
// Implementation: SQLCipher-encrypted SQLite database.
type ScheduleStore interface {
	// Save inserts or replaces a schedule record.
	Save(s Schedule) error

	// Get returns the schedule or ErrScheduleNotFound.
	Get(id string) (*Schedule, error)

	// Delete removes the record; ErrScheduleNotFound if absent.
	Delete(id string) error

	// List returns all stored schedules.
	List() ([]Schedule, error)

	// Close releases the database connection.
	Close() error
}

// Notifier delivers session events to the embedding session/UI layer.
type Notifier interface {
	// SessionStarted is called when a schedule fires. Must not block.
	SessionStarted(e SessionEvent)
}

// Clock abstracts wall-clock time so trigger and scheduler logic can
// be tested against simulated dates.
type Clock interface {
	Now() time.Time
}

// KeyProvider abstracts the source of the store encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
