package proc

import (
	"sync"
)

// ExitRecord carries a process's exit code to whoever waits on it. A record
// outlives its process and is shared with the parent until the parent reaps
// it or exits.
type ExitRecord struct {
	mu     sync.Mutex
	marked bool
	code   int
	done   chan struct{}
}

func NewExitRecord() *ExitRecord {
	return &ExitRecord{done: make(chan struct{})}
}

// MarkExited publishes code and wakes every waiter. Writes made before the
// call are visible to anyone returning from Wait. A record is marked once.
func (r *ExitRecord) MarkExited(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.marked {
		panic("proc: exit record marked twice")
	}
	r.marked = true
	r.code = code
	close(r.done)
}

// Wait blocks until the record is marked and returns the code.
func (r *ExitRecord) Wait() int {
	<-r.done
	return r.code
}

// Done is closed once the record is marked.
func (r *ExitRecord) Done() <-chan struct{} {
	return r.done
}

func (r *ExitRecord) Exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Code returns the exit code, or false when the process is still running.
func (r *ExitRecord) Code() (int, bool) {
	if !r.Exited() {
		return 0, false
	}
	return r.code, true
}
