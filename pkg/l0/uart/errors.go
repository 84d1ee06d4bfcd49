package uart

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates no byte arrived within Receiver.Timeout.
	ErrTimeout = errors.New("receive timeout")
	// ErrPeripheralUnavailable indicates the peripheral failed to initialize.
	ErrPeripheralUnavailable = errors.New("peripheral unavailable")
	// ErrAlreadyUsed indicates Load was called on a Loader that already ran.
	ErrAlreadyUsed = errors.New("loader already used")
)

// PeripheralError wraps an error from an initialized peripheral.
type PeripheralError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *PeripheralError) Error() string {
	return fmt.Sprintf("peripheral %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PeripheralError) Unwrap() error {
	return e.Err
}

// ShortTransferError reports a load that stopped before the image
// was complete.
type ShortTransferError struct {
	Received int
	Expected int
}

// Error implements error.
func (e *ShortTransferError) Error() string {
	return fmt.Sprintf("short transfer: received %d of %d bytes", e.Received, e.Expected)
}

// Unwrap makes a ShortTransferError match ErrTimeout.
func (e *ShortTransferError) Unwrap() error {
	return ErrTimeout
}

// Unavailable wraps an initialization failure so it matches
// ErrPeripheralUnavailable.
func Unavailable(name string, err error) error {
	return fmt.Errorf("%s: %w: %v", name, ErrPeripheralUnavailable, err)
}
