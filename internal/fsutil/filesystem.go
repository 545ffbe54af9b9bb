// Package fsutil abstracts the filesystem used for survey data and cache
// directories so providers and writers can be tested in memory.
package fsutil

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileSystem is the subset of filesystem operations the catalog provider
// and the cache writers need.
type FileSystem interface {
	// Open opens the named file for reading.
	Open(name string) (fs.File, error)

	// Create creates or truncates the named file. Data becomes visible on Close.
	Create(name string) (io.WriteCloser, error)

	// Stat returns a FileInfo describing the named file or directory.
	Stat(name string) (fs.FileInfo, error)

	// MkdirAll creates a directory and all necessary parents.
	MkdirAll(path string, perm os.FileMode) error

	// Rename moves oldname to newname, replacing newname if it exists.
	Rename(oldname, newname string) error

	// Remove removes the named file.
	Remove(name string) error

	// Glob returns the files matching pattern, as filepath.Glob does.
	Glob(pattern string) ([]string, error)
}

// Exists reports whether name exists on fsys.
func Exists(fsys FileSystem, name string) bool {
	_, err := fsys.Stat(name)
	return err == nil
}

// IsDir reports whether name exists on fsys and is a directory.
func IsDir(fsys FileSystem, name string) bool {
	info, err := fsys.Stat(name)
	return err == nil && info.IsDir()
}

// OSFileSystem implements FileSystem using the os package.
type OSFileSystem struct{}

func (OSFileSystem) Open(name string) (fs.File, error)          { return os.Open(name) }
func (OSFileSystem) Create(name string) (io.WriteCloser, error) { return os.Create(name) }
func (OSFileSystem) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}
func (OSFileSystem) Rename(oldname, newname string) error { return os.Rename(oldname, newname) }
func (OSFileSystem) Remove(name string) error             { return os.Remove(name) }
func (OSFileSystem) Glob(pattern string) ([]string, error) {
	return filepath.Glob(pattern)
}

// MemoryFileSystem is an in-memory FileSystem for tests.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemoryFileSystem creates an empty in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true, ".": true},
	}
}

// WriteFile stores data at name and registers its parent directories.
func (m *MemoryFileSystem) WriteFile(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = filepath.Clean(name)
	m.files[name] = append([]byte(nil), data...)
	m.addParents(name)
}

// ReadFile returns a copy of the named file's contents.
func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[filepath.Clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryFileSystem) Open(name string) (fs.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = filepath.Clean(name)
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &memReader{Reader: bytes.NewReader(data), info: memInfo{name: filepath.Base(name), size: int64(len(data))}}, nil
}

func (m *MemoryFileSystem) Create(name string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = filepath.Clean(name)
	if !m.dirs[filepath.Dir(name)] {
		return nil, &fs.PathError{Op: "create", Path: name, Err: fs.ErrNotExist}
	}
	m.files[name] = []byte{}
	return &memWriter{fs: m, name: name}, nil
}

func (m *MemoryFileSystem) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = filepath.Clean(name)
	if m.dirs[name] {
		return memInfo{name: filepath.Base(name), dir: true}, nil
	}
	if data, ok := m.files[name]; ok {
		return memInfo{name: filepath.Base(name), size: int64(len(data))}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (m *MemoryFileSystem) MkdirAll(path string, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.dirs[path] = true
	m.addParents(path)
	return nil
}

func (m *MemoryFileSystem) Rename(oldname, newname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldname, newname = filepath.Clean(oldname), filepath.Clean(newname)
	data, ok := m.files[oldname]
	if !ok {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: fs.ErrNotExist}
	}
	delete(m.files, oldname)
	m.files[newname] = data
	return nil
}

func (m *MemoryFileSystem) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = filepath.Clean(name)
	if _, ok := m.files[name]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(m.files, name)
	return nil
}

func (m *MemoryFileSystem) Glob(pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	pattern = filepath.Clean(pattern)
	var out []string
	for name := range m.files {
		if ok, _ := filepath.Match(pattern, name); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Files lists stored file names with the given directory prefix.
func (m *MemoryFileSystem) Files(dir string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := filepath.Clean(dir) + string(filepath.Separator)
	var out []string
	for name := range m.files {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

// addParents registers every ancestor directory of name. Caller holds mu.
func (m *MemoryFileSystem) addParents(name string) {
	for p := filepath.Dir(name); ; p = filepath.Dir(p) {
		m.dirs[p] = true
		if p == "." || p == "/" {
			return
		}
	}
}

type memReader struct {
	*bytes.Reader
	info memInfo
}

func (r *memReader) Stat() (fs.FileInfo, error) { return r.info, nil }
func (r *memReader) Close() error               { return nil }

type memWriter struct {
	fs   *MemoryFileSystem
	name string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.files[w.name] = append([]byte(nil), w.buf.Bytes()...)
	return nil
}

type memInfo struct {
	name string
	size int64
	dir  bool
}

func (i memInfo) Name() string { return i.name }
func (i memInfo) Size() int64  { return i.size }
func (i memInfo) Mode() os.FileMode {
	if i.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return i.dir }
func (i memInfo) Sys() any           { return nil }
