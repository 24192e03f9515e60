//go:build linux

package termios

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/luhtfiimanal/go-native-serial/driver"
)

// Version is what NativeVersion reports. It shares the native library's
// baseline so version checks treat the two backends alike.
const Version = "2.9.4-go"

// eventPollInterval bounds how stale a modem line or TXEMPTY event can be.
const eventPollInterval = 100 // ms

var errHangup = errors.New("serial line hung up")

// Driver drives Linux tty devices directly through termios ioctls.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	mu    sync.Mutex
	ports map[driver.Handle]*port
}

var _ driver.Driver = (*Driver)(nil)

type port struct {
	fd        int
	done      chan struct{}
	closeOnce sync.Once
	pipeR     int // self-pipe read fd
	pipeW     int // self-pipe write fd

	// io is held shared by blocking calls and exclusively by close, so
	// descriptors are never closed under a running poll.
	io sync.RWMutex

	mask atomic.Int32

	stateMu    sync.Mutex
	lastOut    int
	lastLines  int
	linesKnown bool
}

// New returns a Driver with no open ports.
func New() *Driver {
	return &Driver{ports: make(map[driver.Handle]*port)}
}

func (d *Driver) NativeVersion() string { return Version }

func (d *Driver) lookup(h driver.Handle) (*port, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.ports[h]
	return p, ok
}

// acquire looks the handle up and holds its io lock shared. The caller
// releases it with p.io.RUnlock when err is nil.
func (d *Driver) acquire(h driver.Handle) (*port, error) {
	p, ok := d.lookup(h)
	if !ok {
		return nil, driver.ErrIncorrectHandle
	}
	p.io.RLock()
	if p.closed() {
		p.io.RUnlock()
		return nil, driver.ErrPortClosed
	}
	return p, nil
}

// OpenPort opens a tty device for raw I/O. With exclusive set, TIOCEXCL
// keeps other processes from opening it. The descriptor stays non-blocking;
// every blocking call waits in poll so a close can wake it.
func (d *Driver) OpenPort(name string, exclusive bool) driver.Handle {
	fd, err := unix.Open(name, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return driver.ErrorCode(openError(err))
	}
	if exclusive {
		if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
			unix.Close(fd)
			return driver.ErrorCode(driver.ErrPortBusy)
		}
	}
	if _, err := unix.IoctlGetTermios(fd, unix.TCGETS); err != nil {
		unix.Close(fd)
		return driver.ErrorCode(driver.ErrIncorrectPort)
	}

	// Create self-pipe for killability
	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC); err != nil {
		unix.Close(fd)
		return driver.ErrorCode(driver.ErrIncorrectPort)
	}

	h := driver.Handle(fd)
	d.mu.Lock()
	d.ports[h] = &port{
		fd:    fd,
		done:  make(chan struct{}),
		pipeR: pipeFds[0],
		pipeW: pipeFds[1],
	}
	d.mu.Unlock()
	return h
}

func openError(err error) error {
	switch {
	case errors.Is(err, unix.EBUSY):
		return driver.ErrPortBusy
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENXIO), errors.Is(err, unix.ENODEV):
		return driver.ErrPortNotFound
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return driver.ErrPermissionDenied
	default:
		return driver.ErrIncorrectPort
	}
}

// SetParams puts the line into raw mode with the requested framing.
func (d *Driver) SetParams(h driver.Handle, p driver.Params) bool {
	pt, err := d.acquire(h)
	if err != nil {
		return false
	}
	defer pt.io.RUnlock()
	t, err := unix.IoctlGetTermios(pt.fd, unix.TCGETS)
	if err != nil {
		return false
	}

	// Raw mode
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR |
		unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY | unix.INPCK | unix.IGNPAR
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag |= unix.CREAD | unix.CLOCAL

	speed, ok := baudRates[p.BaudRate]
	if !ok {
		return false
	}
	t.Cflag &^= unix.CBAUD
	t.Cflag |= speed
	t.Ispeed = speed
	t.Ospeed = speed

	size, ok := dataBits[p.DataBits]
	if !ok {
		return false
	}
	t.Cflag &^= unix.CSIZE
	t.Cflag |= size

	switch p.StopBits {
	case driver.StopBits1:
		t.Cflag &^= unix.CSTOPB
	case driver.StopBits2, driver.StopBits1_5:
		t.Cflag |= unix.CSTOPB
	default:
		return false
	}

	t.Cflag &^= unix.PARENB | unix.PARODD | unix.CMSPAR
	switch p.Parity {
	case driver.ParityNone:
	case driver.ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	case driver.ParityEven:
		t.Cflag |= unix.PARENB
	case driver.ParityMark:
		t.Cflag |= unix.PARENB | unix.PARODD | unix.CMSPAR
	case driver.ParitySpace:
		t.Cflag |= unix.PARENB | unix.CMSPAR
	default:
		return false
	}
	if p.Parity != driver.ParityNone {
		t.Iflag |= unix.INPCK
	}
	if p.Flags&driver.FlagIgnoreParity != 0 {
		t.Iflag |= unix.IGNPAR
	}
	if p.Flags&driver.FlagMarkParity != 0 {
		t.Iflag |= unix.PARMRK
	}

	// Block reads until at least one byte is available
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(pt.fd, unix.TCSETS, t); err != nil {
		return false
	}

	// Pseudo terminals have no modem lines; failing here is not fatal.
	setModemBit(pt.fd, unix.TIOCM_RTS, p.RTS)
	setModemBit(pt.fd, unix.TIOCM_DTR, p.DTR)
	return true
}

func setModemBit(fd int, bit int, on bool) error {
	req := uint(unix.TIOCMBIC)
	if on {
		req = unix.TIOCMBIS
	}
	return unix.IoctlSetPointerInt(fd, req, bit)
}

func (d *Driver) PurgePort(h driver.Handle, flags int) bool {
	p, err := d.acquire(h)
	if err != nil {
		return false
	}
	defer p.io.RUnlock()
	rx := flags&(driver.PurgeRXClear|driver.PurgeRXAbort) != 0
	tx := flags&(driver.PurgeTXClear|driver.PurgeTXAbort) != 0
	var queue int
	switch {
	case rx && tx:
		queue = unix.TCIOFLUSH
	case rx:
		queue = unix.TCIFLUSH
	case tx:
		queue = unix.TCOFLUSH
	default:
		return true
	}
	return unix.IoctlSetInt(p.fd, unix.TCFLSH, queue) == nil
}

// ClosePort closes the device and unblocks every ReadBytes, WriteBytes and
// WaitEvents call on the handle.
func (d *Driver) ClosePort(h driver.Handle) bool {
	d.mu.Lock()
	p, ok := d.ports[h]
	delete(d.ports, h)
	d.mu.Unlock()
	if !ok {
		return false
	}
	return p.close() == nil
}

func (p *port) close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		// Wake up poll using self-pipe
		unix.Write(p.pipeW, []byte{1})

		p.io.Lock()
		defer p.io.Unlock()
		err = multierr.Combine(unix.Close(p.fd), unix.Close(p.pipeR), unix.Close(p.pipeW))
	})
	return err
}

func (p *port) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// wait polls the device for events and the self-pipe for a close.
// It reports whether any of the requested events fired.
func (p *port) wait(events int16, timeoutMs int) (bool, error) {
	// A caller that looked the port up before a close must not poll
	// descriptors that may already belong to someone else.
	if p.closed() {
		return false, driver.ErrPortClosed
	}
	pfd := []unix.PollFd{
		{Fd: int32(p.fd), Events: events},
		{Fd: int32(p.pipeR), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(pfd, timeoutMs)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, err
		}
		break
	}
	// Check killability
	if p.closed() || pfd[1].Revents&unix.POLLIN != 0 {
		return false, driver.ErrPortClosed
	}
	rev := pfd[0].Revents
	if rev&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 && rev&events == 0 {
		return false, errHangup
	}
	return rev&events != 0, nil
}

func (d *Driver) SetEventsMask(h driver.Handle, mask driver.EventMask) bool {
	p, ok := d.lookup(h)
	if !ok {
		return false
	}
	p.mask.Store(int32(mask))
	return true
}

func (d *Driver) EventsMask(h driver.Handle) driver.EventMask {
	p, ok := d.lookup(h)
	if !ok {
		return 0
	}
	return driver.EventMask(p.mask.Load())
}

// WaitEvents blocks until an event in the mask occurs. RXCHAR, TXEMPTY and
// the CTS/DSR/RING/RLSD line changes are reported; RXFLAG, BREAK and ERR
// are not observable through termios and never fire.
func (d *Driver) WaitEvents(h driver.Handle) ([]driver.RawEvent, error) {
	p, err := d.acquire(h)
	if err != nil {
		return nil, err
	}
	defer p.io.RUnlock()
	for {
		mask := driver.EventMask(p.mask.Load())
		var events int16
		if mask&driver.EventRXCHAR != 0 {
			events = unix.POLLIN
		}
		ready, err := p.wait(events, eventPollInterval)
		if err != nil {
			return nil, err
		}
		if got := p.collect(mask, ready); len(got) > 0 {
			return got, nil
		}
	}
}

var lineEvents = []struct {
	event driver.EventMask
	bit   int
}{
	{driver.EventCTS, unix.TIOCM_CTS},
	{driver.EventDSR, unix.TIOCM_DSR},
	{driver.EventRING, unix.TIOCM_RNG},
	{driver.EventRLSD, unix.TIOCM_CAR},
}

func (p *port) collect(mask driver.EventMask, readable bool) []driver.RawEvent {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	var events []driver.RawEvent
	if readable {
		if n, err := unix.IoctlGetInt(p.fd, unix.TIOCINQ); err == nil && n > 0 {
			events = append(events, driver.RawEvent{Type: driver.EventRXCHAR, Value: n})
		}
	}
	if mask&driver.EventTXEMPTY != 0 {
		if out, err := unix.IoctlGetInt(p.fd, unix.TIOCOUTQ); err == nil {
			if p.lastOut > 0 && out == 0 {
				events = append(events, driver.RawEvent{Type: driver.EventTXEMPTY})
			}
			p.lastOut = out
		}
	}
	if mask&(driver.EventCTS|driver.EventDSR|driver.EventRING|driver.EventRLSD) != 0 {
		if bits, err := unix.IoctlGetInt(p.fd, unix.TIOCMGET); err == nil {
			if p.linesKnown {
				for _, le := range lineEvents {
					if mask&le.event != 0 && (bits^p.lastLines)&le.bit != 0 {
						events = append(events, driver.RawEvent{Type: le.event, Value: boolInt(bits&le.bit != 0)})
					}
				}
			}
			p.lastLines, p.linesKnown = bits, true
		}
	}
	return events
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (d *Driver) SetRTS(h driver.Handle, on bool) bool {
	return d.setLine(h, unix.TIOCM_RTS, on)
}

func (d *Driver) SetDTR(h driver.Handle, on bool) bool {
	return d.setLine(h, unix.TIOCM_DTR, on)
}

func (d *Driver) setLine(h driver.Handle, bit int, on bool) bool {
	p, err := d.acquire(h)
	if err != nil {
		return false
	}
	defer p.io.RUnlock()
	return setModemBit(p.fd, bit, on) == nil
}

// ReadBytes blocks until exactly n bytes have been read, the line hangs
// up, or the handle is closed.
func (d *Driver) ReadBytes(h driver.Handle, n int) ([]byte, error) {
	p, err := d.acquire(h)
	if err != nil {
		return nil, err
	}
	defer p.io.RUnlock()

	buf := make([]byte, n)
	got := 0
	for got < n {
		if _, err := p.wait(unix.POLLIN, -1); err != nil {
			return nil, err
		}
		m, err := unix.Read(p.fd, buf[got:])
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if m == 0 {
			return nil, io.EOF
		}
		got += m
	}
	return buf, nil
}

// WriteBytes blocks until all of b is queued, or the handle is closed.
func (d *Driver) WriteBytes(h driver.Handle, b []byte) bool {
	p, err := d.acquire(h)
	if err != nil {
		return false
	}
	defer p.io.RUnlock()

	for len(b) > 0 {
		m, err := unix.Write(p.fd, b)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			if _, err := p.wait(unix.POLLOUT, -1); err != nil {
				return false
			}
			continue
		}
		if err != nil || m <= 0 {
			return false
		}
		b = b[m:]
	}
	p.stateMu.Lock()
	if out, err := unix.IoctlGetInt(p.fd, unix.TIOCOUTQ); err == nil {
		p.lastOut = out
	}
	p.stateMu.Unlock()
	return true
}

func (d *Driver) BuffersBytesCount(h driver.Handle) (int, int, error) {
	p, err := d.acquire(h)
	if err != nil {
		return 0, 0, err
	}
	defer p.io.RUnlock()
	in, err := unix.IoctlGetInt(p.fd, unix.TIOCINQ)
	if err != nil {
		return 0, 0, err
	}
	out, err := unix.IoctlGetInt(p.fd, unix.TIOCOUTQ)
	if err != nil {
		return 0, 0, err
	}
	return in, out, nil
}

func (d *Driver) SetFlowControlMode(h driver.Handle, mode driver.FlowControl) bool {
	p, err := d.acquire(h)
	if err != nil {
		return false
	}
	defer p.io.RUnlock()
	t, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return false
	}
	t.Cflag &^= unix.CRTSCTS
	t.Iflag &^= unix.IXON | unix.IXOFF
	if mode&(driver.FlowRTSCTSIn|driver.FlowRTSCTSOut) != 0 {
		t.Cflag |= unix.CRTSCTS
	}
	if mode&driver.FlowXonXoffIn != 0 {
		t.Iflag |= unix.IXOFF
	}
	if mode&driver.FlowXonXoffOut != 0 {
		t.Iflag |= unix.IXON
	}
	return unix.IoctlSetTermios(p.fd, unix.TCSETS, t) == nil
}

func (d *Driver) FlowControlMode(h driver.Handle) driver.FlowControl {
	p, err := d.acquire(h)
	if err != nil {
		return driver.FlowNone
	}
	defer p.io.RUnlock()
	t, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return driver.FlowNone
	}
	mode := driver.FlowNone
	if t.Cflag&unix.CRTSCTS != 0 {
		mode |= driver.FlowRTSCTSIn | driver.FlowRTSCTSOut
	}
	if t.Iflag&unix.IXOFF != 0 {
		mode |= driver.FlowXonXoffIn
	}
	if t.Iflag&unix.IXON != 0 {
		mode |= driver.FlowXonXoffOut
	}
	return mode
}

func (d *Driver) LinesStatus(h driver.Handle) (driver.LinesStatus, error) {
	p, err := d.acquire(h)
	if err != nil {
		return driver.LinesStatus{}, err
	}
	defer p.io.RUnlock()
	bits, err := unix.IoctlGetInt(p.fd, unix.TIOCMGET)
	if err != nil {
		return driver.LinesStatus{}, err
	}
	return driver.LinesStatus{
		CTS:  bits&unix.TIOCM_CTS != 0,
		DSR:  bits&unix.TIOCM_DSR != 0,
		RING: bits&unix.TIOCM_RNG != 0,
		RLSD: bits&unix.TIOCM_CAR != 0,
	}, nil
}

func (d *Driver) SendBreak(h driver.Handle, dur time.Duration) bool {
	p, err := d.acquire(h)
	if err != nil {
		return false
	}
	defer p.io.RUnlock()
	if err := unix.IoctlSetInt(p.fd, unix.TIOCSBRK, 0); err != nil {
		return false
	}
	select {
	case <-time.After(dur):
	case <-p.done:
	}
	return unix.IoctlSetInt(p.fd, unix.TIOCCBRK, 0) == nil
}

var baudRates = map[int]uint32{
	110:     unix.B110,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

var dataBits = map[int]uint32{
	5: unix.CS5,
	6: unix.CS6,
	7: unix.CS7,
	8: unix.CS8,
}
