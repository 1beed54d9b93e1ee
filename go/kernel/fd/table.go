// Package fd maps per-process descriptor numbers to open files.
package fd

import (
	"github.com/lunixbochs/ukern/go/kernel/filesys"
)

// Reserved descriptors. They are handled by the syscall layer and never
// appear in a Table.
const (
	Stdin  = 0
	Stdout = 1
	Stderr = 2

	// First is the first descriptor a Table hands out.
	First = 3

	// DefaultMax bounds how many files one process may hold open.
	DefaultMax = 128
)

type entry struct {
	fd   int32
	file filesys.File
}

// Table is owned by one process thread and needs no locking.
// Descriptors are allocated from a high-water mark and never reused.
type Table struct {
	entries []entry
	next    int32
	max     int
}

// NewTable returns an empty table holding at most max descriptors.
func NewTable(max int) *Table {
	return &Table{next: First, max: max}
}

// Add binds file to a fresh descriptor. It reports false, leaving the table
// and file untouched, when the table is full or descriptors ran out.
func (t *Table) Add(file filesys.File) (int32, bool) {
	if len(t.entries) >= t.max || t.next < First {
		return -1, false
	}
	fd := t.next
	t.next++
	t.entries = append(t.entries, entry{fd, file})
	return fd, true
}

func (t *Table) find(fd int32) int {
	if fd < First {
		return -1
	}
	for i, e := range t.entries {
		if e.fd == fd {
			return i
		}
	}
	return -1
}

// Get returns the file bound to fd.
func (t *Table) Get(fd int32) (filesys.File, bool) {
	if i := t.find(fd); i >= 0 {
		return t.entries[i].file, true
	}
	return nil, false
}

// Close unbinds fd and closes its file. It reports false if fd was not bound.
func (t *Table) Close(fd int32) bool {
	i := t.find(fd)
	if i < 0 {
		return false
	}
	file := t.entries[i].file
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	file.Close()
	return true
}

// CloseAll closes every open descriptor, oldest first.
func (t *Table) CloseAll() {
	entries := t.entries
	t.entries = nil
	for _, e := range entries {
		e.file.Close()
	}
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Fds lists the bound descriptors in allocation order.
func (t *Table) Fds() []int32 {
	fds := make([]int32, len(t.entries))
	for i, e := range t.entries {
		fds[i] = e.fd
	}
	return fds
}
