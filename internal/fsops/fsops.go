package fsops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	temporarySuffix            = ".tmp"
	writeTemporaryErrorFormat  = "write %s: %w"
	replaceFileErrorFormat     = "replace %s: %w"
	createDirectoryErrorFormat = "create directory for %s: %w"
)

// FS is the filesystem surface used for exports, credentials and topic files.
type FS interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	Stat(name string) (fs.FileInfo, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	MkdirAll(path string, perm os.FileMode) error
}

// Afero adapts any afero filesystem to FS.
type Afero struct{ Fs afero.Fs }

// NewOS is backed by the real filesystem.
func NewOS() Afero { return Afero{Fs: afero.NewOsFs()} }

// NewMem is an in-memory filesystem for tests.
func NewMem() Afero { return Afero{Fs: afero.NewMemMapFs()} }

func (a Afero) ReadFile(name string) ([]byte, error) {
	return afero.ReadFile(a.Fs, filepath.Clean(name))
}
func (a Afero) WriteFile(name string, b []byte, p os.FileMode) error {
	return afero.WriteFile(a.Fs, filepath.Clean(name), b, p)
}
func (a Afero) Stat(name string) (fs.FileInfo, error) { return a.Fs.Stat(filepath.Clean(name)) }
func (a Afero) Rename(from, to string) error          { return a.Fs.Rename(filepath.Clean(from), filepath.Clean(to)) }
func (a Afero) Remove(name string) error              { return a.Fs.Remove(filepath.Clean(name)) }
func (a Afero) MkdirAll(path string, p os.FileMode) error {
	return a.Fs.MkdirAll(filepath.Clean(path), p)
}

// Ops bundles the higher level file operations.
type Ops struct{ FS FS }

func NewOps(fs FS) Ops { return Ops{FS: fs} }

// EnsureDir creates the parent directory of path.
func (o Ops) EnsureDir(path string) error {
	directory := filepath.Dir(filepath.Clean(path))
	if directory == "." || directory == string(filepath.Separator) {
		return nil
	}
	if err := o.FS.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf(createDirectoryErrorFormat, path, err)
	}
	return nil
}

// WriteFileAtomic writes next to path and renames over it, so readers never
// observe a partial file.
func (o Ops) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := o.EnsureDir(path); err != nil {
		return err
	}
	temporaryPath := filepath.Clean(path) + temporarySuffix
	if err := o.FS.WriteFile(temporaryPath, data, perm); err != nil {
		return fmt.Errorf(writeTemporaryErrorFormat, temporaryPath, err)
	}
	if err := o.FS.Rename(temporaryPath, path); err != nil {
		_ = o.FS.Remove(temporaryPath)
		return fmt.Errorf(replaceFileErrorFormat, path, err)
	}
	return nil
}

// ReadOptional reads path, reporting found=false instead of an error when it
// does not exist.
func (o Ops) ReadOptional(path string) ([]byte, bool, error) {
	data, err := o.FS.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (o Ops) FileExists(p string) bool { _, err := o.FS.Stat(p); return err == nil }
