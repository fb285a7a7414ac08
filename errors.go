package wbflash

import (
	"errors"
	"fmt"
)

// Failure causes. Driver errors wrap exactly one of these so callers can
// tell them apart with errors.Is.
var (
	ErrBus           = errors.New("bus transaction failed")
	ErrWriteEnable   = errors.New("write enable latch not set")
	ErrProgramFailed = errors.New("device reported program failure")
	ErrEraseFailed   = errors.New("device reported erase failure")
	ErrNotReady      = errors.New("device not ready")
	ErrPageOverflow  = errors.New("length exceeds page size")
	ErrTooLarge      = errors.New("size exceeds flash capacity")
	ErrMemoryMapped  = errors.New("device is in memory-mapped mode")
)

// OpError records the operation and linear address that failed.
type OpError struct {
	Op   string
	Addr uint32
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s at 0x%06X: %v", e.Op, e.Addr, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// IDMismatchError indicates the JEDEC ID read from the bus is not one the
// driver supports.
type IDMismatchError struct {
	Expected [][3]byte
	Actual   [3]byte
}

func (e *IDMismatchError) Error() string {
	return fmt.Sprintf("JEDEC ID mismatch: device reports %X, expected one of %X", e.Actual, e.Expected)
}

// BusError wraps err from a bus transaction so that it matches ErrBus while
// keeping the underlying cause.
func BusError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrBus, err)
}

// VerifyError is returned by Update when read-back data differs from the
// image at Addr.
type VerifyError struct {
	Addr     uint32
	Expected byte
	Actual   byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify failed at 0x%06X: expected 0x%02X, got 0x%02X", e.Addr, e.Expected, e.Actual)
}
