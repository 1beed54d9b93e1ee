package syscalls

import "github.com/pkg/errors"

// ErrUnknown is the cause of the error that kills a process for an
// unrecognized call number.
var ErrUnknown = errors.New("unknown system call")
