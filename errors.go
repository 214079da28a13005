package datalink

import (
	"fmt"
	"syscall"

	"github.com/pkg/errors"
)

var (
	// ErrTooLarge is returned by Sender.BuildAndSend when the requested
	// batch does not fit the send buffer. It signals "does not fit", not a
	// driver failure; retry with a smaller batch or open the channel with a
	// larger write buffer.
	ErrTooLarge = errors.New("frame batch does not fit the send buffer")

	// ErrClosed is returned by operations on a Sender or Receiver whose
	// Close has been called.
	ErrClosed = errors.New("datalink channel is closed")

	// ErrUnsupportedMode is returned by Open for channel modes the backend
	// cannot provide.
	ErrUnsupportedMode = errors.New("channel mode not supported by this backend")

	// ErrNoDriver is returned by Open on platforms without a native packet
	// driver backend. OpenWith still works there given a custom Driver.
	ErrNoDriver = errors.New("no packet driver backend on this platform")
)

// ErrNoFrames is returned by a read when the driver completed a receive
// without delivering any frames. It is temporary: the next read issues
// another blocking receive.
var ErrNoFrames error = noFramesError{}

type noFramesError struct{}

func (noFramesError) Error() string   { return "receive delivered no frames" }
func (noFramesError) Temporary() bool { return true }

// DriverError reports a driver call that returned its failure value. Op is
// the driver entry point (or the channel-side operation for receive-buffer
// decode faults), Code the platform error code captured at the call site,
// zero when none applies.
type DriverError struct {
	Op   string
	Code syscall.Errno
	Err  error
}

func (e *DriverError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("%s: %v (code 0x%x)", e.Op, e.Code, uintptr(e.Code))
	}
	return fmt.Sprintf("%s failed", e.Op)
}

func (e *DriverError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Code != 0 {
		return e.Code
	}
	return nil
}

// ResourceError reports a native resource, adapter or packet descriptor,
// that could not be obtained from the driver.
type ResourceError struct {
	Resource string
	Code     syscall.Errno
}

func (e *ResourceError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s unavailable: %v (code 0x%x)", e.Resource, e.Code, uintptr(e.Code))
	}
	return fmt.Sprintf("%s unavailable", e.Resource)
}

func (e *ResourceError) Unwrap() error {
	if e.Code != 0 {
		return e.Code
	}
	return nil
}
