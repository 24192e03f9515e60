// Package driver defines the low-level contract every serial port backend
// implements: the native shared library loaded by package nativelib, the
// pure-Go termios backend, and the scripted test double in serialtest.
//
// The contract is handle based and mirrors the exported C functions of the
// native library one to one. Higher layers (serial.Port, serial.Stream) never
// talk to a backend except through this interface.
package driver

import (
	"errors"
	"time"
)

// Handle identifies an open port inside a Driver.
type Handle int64

// InvalidHandle marks a port that is not open.
const InvalidHandle Handle = -1

// Error codes a native open may return in place of a handle.
const (
	codePortBusy         Handle = -1
	codePortNotFound     Handle = -2
	codePermissionDenied Handle = -3
	codeIncorrectPort    Handle = -4
)

var (
	ErrPortBusy         = errors.New("port busy")
	ErrPortNotFound     = errors.New("port not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrIncorrectPort    = errors.New("incorrect serial port")
	ErrIncorrectHandle  = errors.New("incorrect handle")
	ErrPortClosed       = errors.New("port closed")
)

// HandleError converts a negative open result into its error.
// It returns nil for a valid handle.
func HandleError(h Handle) error {
	if h >= 0 {
		return nil
	}
	switch h {
	case codePortBusy:
		return ErrPortBusy
	case codePortNotFound:
		return ErrPortNotFound
	case codePermissionDenied:
		return ErrPermissionDenied
	default:
		return ErrIncorrectPort
	}
}

// ErrorCode is the inverse of HandleError, used by backends that report
// open failures as Go errors and by bindings that must return a code.
func ErrorCode(err error) Handle {
	switch {
	case errors.Is(err, ErrPortBusy):
		return codePortBusy
	case errors.Is(err, ErrPortNotFound):
		return codePortNotFound
	case errors.Is(err, ErrPermissionDenied):
		return codePermissionDenied
	default:
		return codeIncorrectPort
	}
}

// Parity values accepted by SetParams.
const (
	ParityNone  = 0
	ParityOdd   = 1
	ParityEven  = 2
	ParityMark  = 3
	ParitySpace = 4
)

// Stop bit values accepted by SetParams.
const (
	StopBits1   = 1
	StopBits2   = 2
	StopBits1_5 = 3
)

// Platform flags for SetParams. They only take effect on POSIX backends.
const (
	FlagIgnoreParity = 1 << 0 // IGNPAR
	FlagMarkParity   = 1 << 1 // PARMRK
)

// Params is the line configuration handed to SetParams.
type Params struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   int
	RTS      bool
	DTR      bool
	Flags    int
}

// EventMask selects the conditions that wake WaitEvents.
type EventMask int

const (
	EventRXCHAR  EventMask = 1
	EventRXFLAG  EventMask = 2
	EventTXEMPTY EventMask = 4
	EventCTS     EventMask = 8
	EventDSR     EventMask = 16
	EventRLSD    EventMask = 32
	EventBREAK   EventMask = 64
	EventERR     EventMask = 128
	EventRING    EventMask = 256
)

// RawEvent is one (type, value) pair observed by a WaitEvents wake.
type RawEvent struct {
	Type  EventMask
	Value int
}

// FlowControl is a bitset of flow control modes.
type FlowControl int

const (
	FlowNone       FlowControl = 0
	FlowRTSCTSIn   FlowControl = 1
	FlowRTSCTSOut  FlowControl = 2
	FlowXonXoffIn  FlowControl = 4
	FlowXonXoffOut FlowControl = 8
)

// Purge flags.
const (
	PurgeTXAbort = 0x0001
	PurgeRXAbort = 0x0002
	PurgeTXClear = 0x0004
	PurgeRXClear = 0x0008
)

// LinesStatus reports the modem input lines.
type LinesStatus struct {
	CTS  bool
	DSR  bool
	RING bool
	RLSD bool
}

// Driver is the contract a serial backend implements.
//
// Methods that return bool report whether the backend accepted the request.
// ReadBytes and WaitEvents block the calling goroutine; closing the handle
// from another goroutine must make them return an error.
type Driver interface {
	NativeVersion() string

	OpenPort(name string, exclusive bool) Handle
	SetParams(h Handle, p Params) bool
	PurgePort(h Handle, flags int) bool
	ClosePort(h Handle) bool

	SetEventsMask(h Handle, mask EventMask) bool
	EventsMask(h Handle) EventMask
	WaitEvents(h Handle) ([]RawEvent, error)

	SetRTS(h Handle, on bool) bool
	SetDTR(h Handle, on bool) bool

	ReadBytes(h Handle, n int) ([]byte, error)
	WriteBytes(h Handle, b []byte) bool
	BuffersBytesCount(h Handle) (in, out int, err error)

	SetFlowControlMode(h Handle, mode FlowControl) bool
	FlowControlMode(h Handle) FlowControl
	LinesStatus(h Handle) (LinesStatus, error)
	SendBreak(h Handle, d time.Duration) bool
}
