package syscalls

// Argument slot types. All are one 32-bit word on the user stack; the type
// only tells tracing how to show the value.
type (
	// Fd is a file descriptor.
	Fd int32
	// Int is a plain signed value.
	Int int32
	// Len is a byte count, usually of the preceding Buf or Obuf.
	Len uint32
	// Off is a file position.
	Off uint32
	// Buf is a user buffer the kernel reads from.
	Buf uint32
	// Obuf is a user buffer the kernel writes to.
	Obuf uint32
	// Str is a user pointer to a NUL-terminated string.
	Str uint32
)
