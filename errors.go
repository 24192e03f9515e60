package serial

import (
	"errors"
	"fmt"

	"github.com/luhtfiimanal/go-native-serial/driver"
)

var (
	ErrPortNotOpened     = errors.New("port not opened")
	ErrPortAlreadyOpened = errors.New("port already opened")
	ErrRejected          = errors.New("request rejected by driver")
	ErrIOFailure         = errors.New("serial I/O failure")
	ErrCloseFailure      = errors.New("close failed")
	ErrStreamClosed      = errors.New("stream closed")

	// Open failures reported by the driver.
	ErrPortBusy         = driver.ErrPortBusy
	ErrPortNotFound     = driver.ErrPortNotFound
	ErrPermissionDenied = driver.ErrPermissionDenied
	ErrIncorrectPort    = driver.ErrIncorrectPort
)

// PortError records the port and method that failed.
type PortError struct {
	Port   string
	Method string
	Err    error
}

func (e *PortError) Error() string {
	return fmt.Sprintf("port %s: %s: %v", e.Port, e.Method, e.Err)
}

func (e *PortError) Unwrap() error { return e.Err }
