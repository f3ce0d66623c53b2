// Package offline keeps a local snapshot of the last validated license so
// a device can keep working while the server is unreachable. Single entry,
// overwritten wholesale on every successful online validation,
// last-write-wins.
package offline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const snapshotFile = "offline_license.json"

// Snapshot is the denormalized license state cached on disk
type Snapshot struct {
	UserID        string    `json:"userId"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	LicenseKey    string    `json:"licenseKey"`
	ExpiresAt     time.Time `json:"expiresAt"`
	LastValidated time.Time `json:"lastValidated"`
}

// Cache stores one snapshot under a fixed file name in dir
type Cache struct {
	path string
}

func NewCache(dir string) *Cache {
	return &Cache{path: filepath.Join(dir, snapshotFile)}
}

// Save overwrites the snapshot
func (c *Cache) Save(s *Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

// Load returns the stored snapshot, or nil when none exists or the file
// is unreadable
func (c *Cache) Load() *Snapshot {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	return &s
}

// IsCurrentlyValid reports whether the cached snapshot is still within its
// expiry window. False when no snapshot exists.
func (c *Cache) IsCurrentlyValid() bool {
	s := c.Load()
	if s == nil {
		return false
	}
	return s.ExpiresAt.After(time.Now())
}

// Clear removes the snapshot (called on logout)
func (c *Cache) Clear() error {
	err := os.Remove(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
