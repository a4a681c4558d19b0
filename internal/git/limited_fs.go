package git

import (
	"errors"
	"os"
	"sync/atomic"

	billy "github.com/go-git/go-billy/v5"
)

var (
	// ErrTooManyFiles is returned when a clone would create more files than allowed
	ErrTooManyFiles = errors.New("too many files")

	// ErrTooBig is returned when a clone would write more bytes than allowed
	ErrTooBig = errors.New("total file size exceeded")
)

// LimitedFs wraps a billy filesystem and caps the number of files created
// and the total number of bytes written through it. Filesystems returned by
// Chroot share the limits of their parent.
type LimitedFs struct {
	Fs            billy.Filesystem
	MaxFiles      int64
	TotalFileSize int64

	parent       *LimitedFs
	currentFiles atomic.Int64
	currentSize  atomic.Int64
}

var _ billy.Filesystem = (*LimitedFs)(nil)

// root returns the filesystem that owns the counters
func (f *LimitedFs) root() *LimitedFs {
	if f.parent != nil {
		return f.parent.root()
	}
	return f
}

func (f *LimitedFs) addFile() error {
	r := f.root()
	if r.currentFiles.Add(1) > r.MaxFiles {
		return ErrTooManyFiles
	}
	return nil
}

func (f *LimitedFs) addBytes(n int64) error {
	r := f.root()
	if r.currentSize.Add(n) > r.TotalFileSize {
		return ErrTooBig
	}
	return nil
}

// Create creates the named file
func (f *LimitedFs) Create(filename string) (billy.File, error) {
	return f.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

// Open opens the named file for reading
func (f *LimitedFs) Open(filename string) (billy.File, error) {
	return f.Fs.Open(filename)
}

// OpenFile opens the named file, counting it when it is newly created
func (f *LimitedFs) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&os.O_CREATE != 0 {
		if _, err := f.Fs.Stat(filename); errors.Is(err, os.ErrNotExist) {
			if err := f.addFile(); err != nil {
				return nil, err
			}
		}
	}

	file, err := f.Fs.OpenFile(filename, flag, perm)
	if err != nil {
		return nil, err
	}
	return &limitedFile{File: file, fs: f}, nil
}

// Stat returns the FileInfo of the named file
func (f *LimitedFs) Stat(filename string) (os.FileInfo, error) {
	return f.Fs.Stat(filename)
}

// Rename renames a file
func (f *LimitedFs) Rename(oldpath, newpath string) error {
	return f.Fs.Rename(oldpath, newpath)
}

// Remove removes the named file or directory
func (f *LimitedFs) Remove(filename string) error {
	return f.Fs.Remove(filename)
}

// Join joins path elements
func (f *LimitedFs) Join(elem ...string) string {
	return f.Fs.Join(elem...)
}

// TempFile creates a new temporary file, counting it against the file limit
func (f *LimitedFs) TempFile(dir, prefix string) (billy.File, error) {
	if err := f.addFile(); err != nil {
		return nil, err
	}
	file, err := f.Fs.TempFile(dir, prefix)
	if err != nil {
		return nil, err
	}
	return &limitedFile{File: file, fs: f}, nil
}

// ReadDir reads the named directory
func (f *LimitedFs) ReadDir(path string) ([]os.FileInfo, error) {
	return f.Fs.ReadDir(path)
}

// MkdirAll creates a directory and all parents
func (f *LimitedFs) MkdirAll(filename string, perm os.FileMode) error {
	return f.Fs.MkdirAll(filename, perm)
}

// Lstat returns the FileInfo of the named file without following links
func (f *LimitedFs) Lstat(filename string) (os.FileInfo, error) {
	return f.Fs.Lstat(filename)
}

// Symlink creates a symbolic link, counting it against the file limit
func (f *LimitedFs) Symlink(target, link string) error {
	if err := f.addFile(); err != nil {
		return err
	}
	return f.Fs.Symlink(target, link)
}

// Readlink returns the target of a symbolic link
func (f *LimitedFs) Readlink(link string) (string, error) {
	return f.Fs.Readlink(link)
}

// Chroot returns a filesystem rooted at path sharing this filesystem's limits
func (f *LimitedFs) Chroot(path string) (billy.Filesystem, error) {
	chrooted, err := f.Fs.Chroot(path)
	if err != nil {
		return nil, err
	}
	return &LimitedFs{
		Fs:            chrooted,
		MaxFiles:      f.MaxFiles,
		TotalFileSize: f.TotalFileSize,
		parent:        f,
	}, nil
}

// Root returns the root path of the filesystem
func (f *LimitedFs) Root() string {
	return f.Fs.Root()
}

// limitedFile charges every write against the owning filesystem
type limitedFile struct {
	billy.File
	fs *LimitedFs
}

func (lf *limitedFile) Write(p []byte) (int, error) {
	if err := lf.fs.addBytes(int64(len(p))); err != nil {
		return 0, err
	}
	return lf.File.Write(p)
}
