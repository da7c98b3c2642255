// Package session locates the gateway's on-disk state.
package session

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths resolves files under one data directory. SessionDB overrides the
// default device store location when set.
type Paths struct {
	DataDir   string
	SessionDB string
}

// Dir returns the data directory.
func (p Paths) Dir() string {
	return p.DataDir
}

// SessionDBPath returns the whatsmeow device store path.
func (p Paths) SessionDBPath() string {
	if p.SessionDB != "" {
		return p.SessionDB
	}
	return filepath.Join(p.DataDir, "session.db")
}

// EnsureDir creates the data directory and the device store's parent.
func (p Paths) EnsureDir() error {
	for _, d := range []string{p.DataDir, filepath.Dir(p.SessionDBPath())} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}
