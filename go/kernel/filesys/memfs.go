package filesys

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

type inode struct {
	data    []byte
	opens   int
	denies  int
	removed bool
}

// MemFS keeps file contents in memory. Files have the size given at create
// and never grow.
type MemFS struct {
	mu       sync.Mutex
	files    map[string]*inode
	capacity uint64
	used     uint64
}

// NewMemFS returns an empty file system holding at most capacity bytes
// (0 for no limit).
func NewMemFS(capacity uint64) *MemFS {
	return &MemFS{files: make(map[string]*inode), capacity: capacity}
}

func (fs *MemFS) Create(name string, size uint32) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if name == "" || len(name) > NameMax {
		return false
	}
	if _, ok := fs.files[name]; ok {
		return false
	}
	if fs.capacity > 0 && fs.used+uint64(size) > fs.capacity {
		return false
	}
	fs.files[name] = &inode{data: make([]byte, size)}
	fs.used += uint64(size)
	return true
}

// Put creates name with contents p, replacing nothing. It is used to stage
// programs and fixtures before boot.
func (fs *MemFS) Put(name string, p []byte) error {
	if !fs.Create(name, uint32(len(p))) {
		return errors.Errorf("create %q (%d bytes) failed", name, len(p))
	}
	fs.mu.Lock()
	copy(fs.files[name].data, p)
	fs.mu.Unlock()
	return nil
}

func (fs *MemFS) Remove(name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	ino, ok := fs.files[name]
	if !ok {
		return false
	}
	delete(fs.files, name)
	ino.removed = true
	fs.release(ino)
	return true
}

// frees space once a file is both unlinked and unopened
func (fs *MemFS) release(ino *inode) {
	if ino.removed && ino.opens == 0 {
		fs.used -= uint64(len(ino.data))
		ino.data = nil
	}
}

func (fs *MemFS) Open(name string) (File, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	ino, ok := fs.files[name]
	if !ok {
		return nil, false
	}
	ino.opens++
	return &memFile{fs: fs, ino: ino}, true
}

// Names lists the files currently linked, sorted.
func (fs *MemFS) Names() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	names := make([]string, 0, len(fs.files))
	for name := range fs.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Used reports the bytes allocated to files that still exist.
func (fs *MemFS) Used() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.used
}

type memFile struct {
	fs     *MemFS
	ino    *inode
	pos    uint32
	denied bool
	closed bool
}

func (f *memFile) Length() int32 {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	return int32(len(f.ino.data))
}

func (f *memFile) Read(p []byte) int32 {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if uint64(f.pos) >= uint64(len(f.ino.data)) {
		return 0
	}
	n := copy(p, f.ino.data[f.pos:])
	f.pos += uint32(n)
	return int32(n)
}

func (f *memFile) Write(p []byte) int32 {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if f.ino.denies > 0 || uint64(f.pos) >= uint64(len(f.ino.data)) {
		return 0
	}
	n := copy(f.ino.data[f.pos:], p)
	f.pos += uint32(n)
	return int32(n)
}

func (f *memFile) Seek(pos uint32) {
	f.fs.mu.Lock()
	f.pos = pos
	f.fs.mu.Unlock()
}

func (f *memFile) Tell() uint32 {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	return f.pos
}

func (f *memFile) DenyWrite() {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if !f.denied {
		f.denied = true
		f.ino.denies++
	}
}

func (f *memFile) AllowWrite() {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	f.allowLocked()
}

func (f *memFile) allowLocked() {
	if f.denied {
		f.denied = false
		f.ino.denies--
	}
}

func (f *memFile) Close() {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.allowLocked()
	f.ino.opens--
	f.fs.release(f.ino)
}
