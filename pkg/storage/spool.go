package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Spool holds rendered files between render and upload. Every file it hands
// out must be given back through Remove.
type Spool struct {
	dir string
}

func NewSpool(dir string) (*Spool, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool dir %s: %w", dir, err)
	}
	return &Spool{dir: dir}, nil
}

// Write stores data in a fresh temp file named after pattern and returns its path
func (s *Spool) Write(pattern string, data []byte) (string, error) {
	file, err := os.CreateTemp(s.dir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	return file.Name(), nil
}

// Remove deletes a spooled file; a file already gone is not an error
func (s *Spool) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists reports whether a spooled file is still on disk
func (s *Spool) Exists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// Dir returns the spool directory
func (s *Spool) Dir() string {
	return filepath.Clean(s.dir)
}
