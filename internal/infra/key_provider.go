package infra

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/focuslock/sessiond/internal/domain"
)

const (
	storeKeyFileName = ".store_key"
	storeKeySize     = 32 // 256-bit SQLCipher passphrase
)

// FileKeyProvider implements domain.KeyProvider using a hidden file
// with 0600 permissions next to the schedule database.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider creates a FileKeyProvider for the given data directory.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{
		keyPath: filepath.Join(dataDir, storeKeyFileName),
	}
}

// GetKey reads the store encryption key from the key file.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	encoded, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != storeKeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), storeKeySize)
	}
	return key, nil
}

// StoreKey writes the encryption key with restricted permissions.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != storeKeySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), storeKeySize)
	}
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(p.keyPath, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// KeyExists checks if the key file exists.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// EnsureKey returns the existing key or generates and stores a new one.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key := make([]byte, storeKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Ensure FileKeyProvider implements domain.KeyProvider.
var _ domain.KeyProvider = (*FileKeyProvider)(nil)
