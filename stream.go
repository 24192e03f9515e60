package serial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultBaudRate is the line speed NewStream uses when given zero.
const DefaultBaudRate = 9600

// Stream adapts a Port to io.Reader and io.Writer. Reads are buffered in
// chunks of whatever the driver reports as available; writes go straight
// to the driver.
//
// Stream.Close, and Close on either endpoint, release the port exactly once
// no matter how many goroutines race to close it.
type Stream struct {
	port *Port
	in   *Input
	out  *Output
	log  *zap.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	closeDone atomic.Bool
}

// NewStream wraps port. A closed port is opened and set to baud 8N1, since
// USB CDC devices need a line coding before they pass data. A baud of zero
// means DefaultBaudRate. A port that is already open keeps its settings.
func NewStream(port *Port, baud int) (*Stream, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	if !port.IsOpened() {
		if err := port.Open(); err != nil {
			return nil, err
		}
		if err := port.SetParams(baud, 8, StopBits1, ParityNone); err != nil {
			port.Close()
			return nil, err
		}
	}
	s := &Stream{port: port, log: port.log}
	s.in = &Input{s: s}
	s.out = &Output{s: s}
	return s, nil
}

// OpenStream is NewStream on a new Port.
func OpenStream(name string, baud int, opts ...Option) (*Stream, error) {
	return NewStream(NewPort(name, opts...), baud)
}

func (s *Stream) Port() *Port     { return s.port }
func (s *Stream) Name() string    { return s.port.Name() }
func (s *Stream) Reader() *Input  { return s.in }
func (s *Stream) Writer() *Output { return s.out }

func (s *Stream) Read(b []byte) (int, error)  { return s.in.Read(b) }
func (s *Stream) Write(b []byte) (int, error) { return s.out.Write(b) }

// Close marks the stream closed, releases both endpoints and closes the
// port if it is still open. A failed port close takes precedence over an
// endpoint failure. Calls that overlap the running close share its result;
// calls made after it finished are no-ops returning nil.
func (s *Stream) Close() error {
	if s.closeDone.Load() {
		return nil
	}
	s.closeOnce.Do(func() {
		defer s.closeDone.Store(true)
		s.closed.Store(true)

		endpoints := multierr.Combine(s.in.release(), s.out.release())
		if endpoints != nil {
			endpoints = multierr.Append(ErrCloseFailure, endpoints)
		}
		if s.port.IsOpened() {
			if err := s.port.Close(); err != nil {
				s.closeErr = err
				s.log.Warn("stream close failed", zap.Error(err), zap.NamedError("endpoints", endpoints))
				return
			}
		}
		s.closeErr = endpoints
	})
	return s.closeErr
}

// IsClosed reports whether the stream is closed. A stream that looks open
// is probed; if the probe fails the connection is considered dead and the
// stream is closed.
func (s *Stream) IsClosed() bool {
	if s.closed.Load() {
		return true
	}
	if _, err := s.in.Available(); err != nil {
		s.log.Debug("liveness probe failed, closing", zap.Error(err))
		s.Close()
	}
	return s.closed.Load()
}

// streamErr reports ErrStreamClosed for failures caused by a close and
// wraps everything else as an I/O failure.
func (s *Stream) streamErr(err error) error {
	if s.closed.Load() || errors.Is(err, ErrPortNotOpened) {
		return ErrStreamClosed
	}
	if errors.Is(err, ErrIOFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIOFailure, err)
}

// Input is the read side of a Stream.
type Input struct {
	s *Stream

	mu  sync.Mutex
	buf []byte
	pos int

	buffered atomic.Int64 // len(buf)-pos, readable without mu
}

var (
	_ io.ReadCloser = (*Input)(nil)
	_ io.ByteReader = (*Input)(nil)
)

// Read returns buffered bytes, refilling the buffer when it is empty. When
// the driver reports nothing available it blocks on a single byte instead
// of polling. Every successful call returns at least one byte.
func (r *Input) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if r.s.closed.Load() {
		return 0, ErrStreamClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.buf) {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(b, r.buf[r.pos:])
	r.pos += n
	r.buffered.Store(int64(len(r.buf) - r.pos))
	return n, nil
}

func (r *Input) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Input) fill() error {
	avail, err := r.s.port.InputBufferBytesCount()
	if err != nil {
		return r.s.streamErr(err)
	}
	if avail <= 0 {
		avail = 1
	}
	data, err := r.s.port.ReadBytes(avail)
	if err != nil {
		return r.s.streamErr(err)
	}
	if len(data) == 0 {
		return r.s.streamErr(io.ErrNoProgress)
	}
	r.buf, r.pos = data, 0
	return nil
}

// Available returns the number of bytes that can be read without blocking.
func (r *Input) Available() (int, error) {
	if r.s.closed.Load() {
		return 0, ErrStreamClosed
	}
	n, err := r.s.port.InputBufferBytesCount()
	if err != nil {
		return 0, r.s.streamErr(err)
	}
	return n + int(r.buffered.Load()), nil
}

// Close closes the whole Stream.
func (r *Input) Close() error { return r.s.Close() }

// release drops the read buffer. A blocked Read still holds mu and will
// return once the port close unblocks it, so release must not wait on it.
func (r *Input) release() error {
	if r.mu.TryLock() {
		r.buf, r.pos = nil, 0
		r.buffered.Store(0)
		r.mu.Unlock()
	}
	return nil
}

// Output is the write side of a Stream.
type Output struct {
	s *Stream
}

var _ io.WriteCloser = (*Output)(nil)

// Write hands b to the driver in one call.
func (w *Output) Write(b []byte) (int, error) {
	if w.s.closed.Load() {
		return 0, ErrStreamClosed
	}
	if len(b) == 0 {
		return 0, nil
	}
	if err := w.s.port.WriteBytes(b); err != nil {
		return 0, w.s.streamErr(err)
	}
	return len(b), nil
}

func (w *Output) WriteByte(c byte) error {
	_, err := w.Write([]byte{c})
	return err
}

// Close closes the whole Stream.
func (w *Output) Close() error { return w.s.Close() }

func (w *Output) release() error { return nil }
