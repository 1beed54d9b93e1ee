package models

import "fmt"

// ExitStatus is the code a user process passed to exit, or KilledStatus.
type ExitStatus int

// KilledStatus is reported for processes the kernel terminated.
const KilledStatus ExitStatus = -1

func (e ExitStatus) Error() string {
	if e == KilledStatus {
		return "killed"
	}
	return fmt.Sprintf("exit %d", e)
}
