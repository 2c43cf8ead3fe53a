package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskStore reads and writes .snap files on the local filesystem.
type DiskStore struct{}

// NewDiskStore creates a new DiskStore.
func NewDiskStore() *DiskStore {
	return &DiskStore{}
}

// Save writes snap to path, creating parent directories as needed. The file
// is written to a temporary sibling first and renamed into place so a
// concurrent reader never sees a partial file.
func (s *DiskStore) Save(path string, snap *Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cmdsnap-*")
	if err != nil {
		return fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", path, err)
	}
	return nil
}

// Load reads a snapshot from disk. A missing file matches fs.ErrNotExist.
func (s *DiskStore) Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	snap, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	return snap, nil
}

// Delete removes a snapshot file. Deleting a missing file is not an error.
func (s *DiskStore) Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}

// Stat returns the file info of path.
func (s *DiskStore) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}
