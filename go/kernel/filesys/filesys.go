// Package filesys is the flat file system the syscall layer delegates to.
// All operations are serialized by one lock per file system.
package filesys

// NameMax is the longest file name accepted by Create.
const NameMax = 14

// FS names files and hands out open handles.
type FS interface {
	Create(name string, size uint32) bool
	Remove(name string) bool
	Open(name string) (File, bool)
}

// File is one open handle. Each handle has its own position.
type File interface {
	Length() int32
	Read(p []byte) int32
	Write(p []byte) int32
	Seek(pos uint32)
	Tell() uint32
	Close()

	// DenyWrite makes writes through any handle to the same file return 0
	// until AllowWrite is called on this handle or it is closed.
	DenyWrite()
	AllowWrite()
}
