package mount

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is against any error returned by Mounter.
var (
	ErrFileNotFound       = errors.New("disk image not found")
	ErrResourceBusy       = errors.New("resource busy")
	ErrInvalidImage       = errors.New("invalid disk image")
	ErrUnrecognizedOutput = errors.New("unrecognized hdiutil output")
	ErrMountNotVisible    = errors.New("mount point not visible")
	ErrDetachFailed       = errors.New("detach failed")
)

// MountError describes a failed attach or detach.
type MountError struct {
	// Kind is one of the Err* sentinels above.
	Kind error
	// Path is the image for attach failures and the mount point for detach failures.
	Path string
	// Attempts records every attach iteration that ran.
	Attempts []Attempt
	// Output is the last raw tool output, kept for diagnostics.
	Output string
	// Err is the underlying cause, if any.
	Err error
}

func (e *MountError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Path)
	if n := len(e.Attempts); n > 0 {
		msg += fmt.Sprintf(" (after %d attempt(s))", n)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MountError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
