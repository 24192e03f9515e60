package serial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/luhtfiimanal/go-native-serial/driver"
	"github.com/luhtfiimanal/go-native-serial/nativelib"
)

// Parity values.
const (
	ParityNone  = driver.ParityNone
	ParityOdd   = driver.ParityOdd
	ParityEven  = driver.ParityEven
	ParityMark  = driver.ParityMark
	ParitySpace = driver.ParitySpace
)

// Stop bit values.
const (
	StopBits1   = driver.StopBits1
	StopBits2   = driver.StopBits2
	StopBits1_5 = driver.StopBits1_5
)

// Mode is a line configuration. RTS and DTR are asserted unless disabled.
type Mode struct {
	BaudRate   int
	DataBits   int
	StopBits   int
	Parity     int
	DisableRTS bool
	DisableDTR bool
}

// Port is a session on one serial port. The data plane (reads, writes,
// queries, WaitEvents) may be used from several goroutines; Close unblocks
// them.
type Port struct {
	name      string
	exclusive bool
	log       *zap.Logger

	mu     sync.Mutex // serializes Open and Close
	drv    driver.Driver
	handle atomic.Int64
}

// Option configures a Port.
type Option func(*Port)

// WithDriver uses d instead of the native library.
func WithDriver(d driver.Driver) Option {
	return func(p *Port) { p.drv = d }
}

// WithExclusive asks for an exclusive open on POSIX systems. The default is
// exclusive unless SERIAL_NO_TIOCEXCL is set.
func WithExclusive(on bool) Option {
	return func(p *Port) { p.exclusive = on }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Port) { p.log = l }
}

// NewPort returns a closed session for the named port.
func NewPort(name string, opts ...Option) *Port {
	p := &Port{
		name:      name,
		exclusive: !Env().NoExclusive,
		log:       Logger(),
	}
	p.handle.Store(int64(driver.InvalidHandle))
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(zap.String("port", name))
	return p
}

// Name is the port name given to NewPort.
func (p *Port) Name() string { return p.name }

// IsOpened reports whether the session holds a valid handle.
func (p *Port) IsOpened() bool {
	return driver.Handle(p.handle.Load()) != driver.InvalidHandle
}

func (p *Port) fail(method string, err error) error {
	return &PortError{Port: p.name, Method: method, Err: err}
}

func (p *Port) valid(method string) (driver.Handle, error) {
	h := driver.Handle(p.handle.Load())
	if h == driver.InvalidHandle {
		return h, p.fail(method, ErrPortNotOpened)
	}
	return h, nil
}

// ioFail wraps a data plane failure. A failure caused by a concurrent Close
// is reported as ErrPortNotOpened.
func (p *Port) ioFail(method string, err error) error {
	if !p.IsOpened() {
		return p.fail(method, ErrPortNotOpened)
	}
	if err == nil {
		return p.fail(method, ErrIOFailure)
	}
	return p.fail(method, fmt.Errorf("%w: %w", ErrIOFailure, err))
}

// Open opens the port. Without WithDriver the native library is loaded on
// first use; a load failure is returned as a *nativelib.LinkError.
func (p *Port) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.IsOpened() {
		return p.fail("Open", ErrPortAlreadyOpened)
	}
	if p.drv == nil {
		drv, err := nativelib.Default().Driver()
		if err != nil {
			return p.fail("Open", err)
		}
		p.drv = drv
	}
	h := p.drv.OpenPort(p.name, p.exclusive)
	if err := driver.HandleError(h); err != nil {
		p.log.Debug("open failed", zap.Error(err))
		return p.fail("Open", err)
	}
	p.handle.Store(int64(h))
	p.log.Debug("port opened", zap.Int64("handle", int64(h)), zap.Bool("exclusive", p.exclusive))
	return nil
}

// Close releases the port. The handle is invalidated before the driver is
// asked to close it, so concurrent callers never reuse a released handle.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := driver.Handle(p.handle.Swap(int64(driver.InvalidHandle)))
	if h == driver.InvalidHandle {
		return p.fail("Close", ErrPortNotOpened)
	}
	if !p.drv.ClosePort(h) {
		p.log.Warn("driver failed to close port")
		return p.fail("Close", ErrCloseFailure)
	}
	p.log.Debug("port closed")
	return nil
}

// SetParams configures the line with RTS and DTR asserted.
func (p *Port) SetParams(baudRate, dataBits, stopBits, parity int) error {
	return p.Configure(Mode{
		BaudRate: baudRate,
		DataBits: dataBits,
		StopBits: stopBits,
		Parity:   parity,
	})
}

// Configure applies m along with the parity handling flags from the
// environment.
func (p *Port) Configure(m Mode) error {
	h, err := p.valid("SetParams")
	if err != nil {
		return err
	}
	params := driver.Params{
		BaudRate: m.BaudRate,
		DataBits: m.DataBits,
		StopBits: m.StopBits,
		Parity:   m.Parity,
		RTS:      !m.DisableRTS,
		DTR:      !m.DisableDTR,
		Flags:    Env().Flags(),
	}
	if !p.drv.SetParams(h, params) {
		return p.fail("SetParams", ErrRejected)
	}
	return nil
}

// Purge clears or aborts the driver buffers selected by flags.
func (p *Port) Purge(flags int) error {
	h, err := p.valid("Purge")
	if err != nil {
		return err
	}
	if !p.drv.PurgePort(h, flags) {
		return p.fail("Purge", ErrRejected)
	}
	return nil
}

func (p *Port) SetEventsMask(mask EventMask) error {
	h, err := p.valid("SetEventsMask")
	if err != nil {
		return err
	}
	if !p.drv.SetEventsMask(h, mask) {
		return p.fail("SetEventsMask", ErrRejected)
	}
	return nil
}

func (p *Port) EventsMask() (EventMask, error) {
	h, err := p.valid("EventsMask")
	if err != nil {
		return 0, err
	}
	return p.drv.EventsMask(h), nil
}

// WaitEvents blocks until at least one event in the mask occurs and returns
// every event seen in that wake. Closing the port makes it return
// ErrPortNotOpened.
func (p *Port) WaitEvents() ([]Event, error) {
	h, err := p.valid("WaitEvents")
	if err != nil {
		return nil, err
	}
	raw, err := p.drv.WaitEvents(h)
	if err != nil {
		return nil, p.ioFail("WaitEvents", err)
	}
	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		events = append(events, Event{Port: p, Type: r.Type, Value: r.Value})
	}
	return events, nil
}

// Listen sets mask and calls fn for every event until the port is closed,
// the driver fails, or ctx is done. ctx is checked between wakes; close the
// port to interrupt a wait. A close ends Listen with a nil error.
func (p *Port) Listen(ctx context.Context, mask EventMask, fn func(Event)) error {
	if err := p.SetEventsMask(mask); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		events, err := p.WaitEvents()
		if errors.Is(err, ErrPortNotOpened) {
			return nil
		}
		if err != nil {
			p.log.Debug("event listener stopped", zap.Error(err))
			return err
		}
		for _, e := range events {
			fn(e)
		}
	}
}

// BuffersBytesCount returns the number of bytes in the input and output
// buffers.
func (p *Port) BuffersBytesCount() (in, out int, err error) {
	h, err := p.valid("BuffersBytesCount")
	if err != nil {
		return 0, 0, err
	}
	in, out, err = p.drv.BuffersBytesCount(h)
	if err != nil {
		return 0, 0, p.ioFail("BuffersBytesCount", err)
	}
	return in, out, nil
}

func (p *Port) InputBufferBytesCount() (int, error) {
	in, _, err := p.BuffersBytesCount()
	return in, err
}

func (p *Port) OutputBufferBytesCount() (int, error) {
	_, out, err := p.BuffersBytesCount()
	return out, err
}

// ReadBytes blocks until n bytes have been read.
func (p *Port) ReadBytes(n int) ([]byte, error) {
	h, err := p.valid("ReadBytes")
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []byte{}, nil
	}
	b, err := p.drv.ReadBytes(h, n)
	if err != nil {
		return nil, p.ioFail("ReadBytes", err)
	}
	return b, nil
}

func (p *Port) WriteBytes(b []byte) error {
	h, err := p.valid("WriteBytes")
	if err != nil {
		return err
	}
	if !p.drv.WriteBytes(h, b) {
		return p.ioFail("WriteBytes", nil)
	}
	return nil
}

func (p *Port) SetRTS(on bool) error {
	h, err := p.valid("SetRTS")
	if err != nil {
		return err
	}
	if !p.drv.SetRTS(h, on) {
		return p.fail("SetRTS", ErrRejected)
	}
	return nil
}

func (p *Port) SetDTR(on bool) error {
	h, err := p.valid("SetDTR")
	if err != nil {
		return err
	}
	if !p.drv.SetDTR(h, on) {
		return p.fail("SetDTR", ErrRejected)
	}
	return nil
}

func (p *Port) LinesStatus() (driver.LinesStatus, error) {
	h, err := p.valid("LinesStatus")
	if err != nil {
		return driver.LinesStatus{}, err
	}
	s, err := p.drv.LinesStatus(h)
	if err != nil {
		return driver.LinesStatus{}, p.ioFail("LinesStatus", err)
	}
	return s, nil
}

func (p *Port) SetFlowControlMode(mode driver.FlowControl) error {
	h, err := p.valid("SetFlowControlMode")
	if err != nil {
		return err
	}
	if !p.drv.SetFlowControlMode(h, mode) {
		return p.fail("SetFlowControlMode", ErrRejected)
	}
	return nil
}

func (p *Port) FlowControlMode() (driver.FlowControl, error) {
	h, err := p.valid("FlowControlMode")
	if err != nil {
		return driver.FlowNone, err
	}
	return p.drv.FlowControlMode(h), nil
}

// SendBreak holds the TX line in the break state for d.
func (p *Port) SendBreak(d time.Duration) error {
	h, err := p.valid("SendBreak")
	if err != nil {
		return err
	}
	if !p.drv.SendBreak(h, d) {
		return p.fail("SendBreak", ErrRejected)
	}
	return nil
}
