package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

const tempPattern = ".e621dl-*.tmp"

// Manager owns file creation under the download directory
type Manager struct {
	fs           afero.Fs
	mu           sync.Mutex
	filesWritten int
	bytesWritten int64
}

// NewManager creates a storage manager on fs. A nil fs means the OS filesystem.
func NewManager(fs afero.Fs) *Manager {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Manager{fs: fs}
}

// Fs returns the filesystem the manager writes to
func (m *Manager) Fs() afero.Fs {
	return m.fs
}

// Exists reports whether anything is present at path.
// Stat failures other than not-exist count as present so the file is left alone.
func (m *Manager) Exists(path string) bool {
	_, err := m.fs.Stat(path)
	if err == nil {
		return true
	}
	return !os.IsNotExist(err)
}

// EnsureDir creates dir and any missing parents
func (m *Manager) EnsureDir(dir string) error {
	if err := m.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// Save copies r into a new file at path. Data is written to a temporary file
// in the same directory and renamed into place, so path either holds the
// complete content or does not exist.
func (m *Manager) Save(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)

	tmp, err := afero.TempFile(m.fs, dir, tempPattern)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()

	if err != nil {
		m.fs.Remove(tmpName)
		return 0, fmt.Errorf("failed to write file data: %w", err)
	}
	if closeErr != nil {
		m.fs.Remove(tmpName)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := m.fs.Rename(tmpName, path); err != nil {
		m.fs.Remove(tmpName)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.filesWritten++
	m.bytesWritten += n
	m.mu.Unlock()

	return n, nil
}

// FilesWritten returns the number of files created by Save
func (m *Manager) FilesWritten() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filesWritten
}

// BytesWritten returns the total size of files created by Save
func (m *Manager) BytesWritten() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytesWritten
}
