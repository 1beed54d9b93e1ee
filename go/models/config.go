package models

import (
	"io"
)

type Config struct {
	Color    bool
	Strsize  int
	TraceSys bool
	Verbose  bool

	// DiskSize bounds the total bytes held by the file system. 0 means unbounded.
	DiskSize uint64

	// console and trace streams; nil falls back to os.Stdin / os.Stdout / os.Stderr
	Stdin  io.Reader
	Stdout io.Writer
	Output io.Writer
}
