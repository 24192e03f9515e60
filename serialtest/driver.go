// Package serialtest provides a scripted, in-memory driver.Driver for
// testing code built on package serial without hardware.
//
// One Driver simulates one device. Bytes queued with Feed (or written while
// Loopback is on) become readable; ReadBytes and WaitEvents block like a
// real backend until data or events arrive, or the handle is closed.
package serialtest

import (
	"sync"
	"time"

	"github.com/luhtfiimanal/go-native-serial/driver"
)

// Driver is a fake backend. The zero value is not usable; call New.
type Driver struct {
	mu   sync.Mutex
	cond *sync.Cond

	version  string
	next     driver.Handle
	open     map[driver.Handle]bool
	openErrs map[string]error
	loopback bool

	input   []byte
	written []byte
	reads   []int
	events  []driver.RawEvent

	counts   []int
	countErr error

	rejectParams bool
	failClose    bool
	closeGate    <-chan struct{}
	closeCalls   int

	params driver.Params
	mask   driver.EventMask
	flow   driver.FlowControl
	rts    bool
	dtr    bool
	lines  driver.LinesStatus
	breaks []time.Duration
	purges []int
}

var _ driver.Driver = (*Driver)(nil)

// New returns a fake reporting version as its native version.
func New(version string) *Driver {
	d := &Driver{
		version:  version,
		next:     1,
		open:     make(map[driver.Handle]bool),
		openErrs: make(map[string]error),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Loopback makes written bytes readable, like a wire between TX and RX.
func (d *Driver) Loopback(on bool) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loopback = on
	return d
}

// Feed queues bytes on the input side.
func (d *Driver) Feed(b ...byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receive(b)
}

// ScriptCounts makes the next BuffersBytesCount calls report these input
// counts instead of the real queue length.
func (d *Driver) ScriptCounts(counts ...int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts = append(d.counts, counts...)
}

// FailCounts makes BuffersBytesCount fail, simulating a dead connection.
func (d *Driver) FailCounts(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.countErr = err
}

// FailOpen makes OpenPort(name) fail with err, which should be one of the
// driver error sentinels.
func (d *Driver) FailOpen(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErrs[name] = err
}

// RejectParams makes SetParams report failure.
func (d *Driver) RejectParams() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejectParams = true
}

// FailClose makes ClosePort report failure. The handle is released anyway.
func (d *Driver) FailClose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failClose = true
}

// HoldClose makes ClosePort wait until gate is closed.
func (d *Driver) HoldClose(gate <-chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeGate = gate
}

// Emit queues events for the next WaitEvents wake.
func (d *Driver) Emit(events ...driver.RawEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, events...)
	d.cond.Broadcast()
}

// SetLines sets what LinesStatus reports.
func (d *Driver) SetLines(s driver.LinesStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = s
}

// Written returns every byte written so far.
func (d *Driver) Written() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.written...)
}

// Reads returns the size of every ReadBytes call, in order.
func (d *Driver) Reads() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.reads...)
}

// CloseCalls counts ClosePort calls on open handles.
func (d *Driver) CloseCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeCalls
}

// Params returns the last accepted line configuration.
func (d *Driver) Params() driver.Params {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

// Breaks returns the durations of every SendBreak call.
func (d *Driver) Breaks() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Duration(nil), d.breaks...)
}

// Purges returns the flags of every PurgePort call.
func (d *Driver) Purges() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.purges...)
}

// Lines returns the current RTS and DTR output states.
func (d *Driver) Lines() (rts, dtr bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rts, d.dtr
}

func (d *Driver) receive(b []byte) {
	d.input = append(d.input, b...)
	if d.mask&driver.EventRXCHAR != 0 && len(b) > 0 {
		d.events = append(d.events, driver.RawEvent{Type: driver.EventRXCHAR, Value: len(d.input)})
	}
	d.cond.Broadcast()
}

func (d *Driver) NativeVersion() string { return d.version }

func (d *Driver) OpenPort(name string, exclusive bool) driver.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.openErrs[name]; ok {
		return driver.ErrorCode(err)
	}
	if exclusive && len(d.open) > 0 {
		return driver.ErrorCode(driver.ErrPortBusy)
	}
	h := d.next
	d.next++
	d.open[h] = true
	return h
}

func (d *Driver) SetParams(h driver.Handle, p driver.Params) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[h] || d.rejectParams {
		return false
	}
	d.params = p
	d.rts, d.dtr = p.RTS, p.DTR
	return true
}

func (d *Driver) PurgePort(h driver.Handle, flags int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[h] {
		return false
	}
	d.purges = append(d.purges, flags)
	if flags&driver.PurgeRXClear != 0 {
		d.input = nil
	}
	return true
}

func (d *Driver) ClosePort(h driver.Handle) bool {
	d.mu.Lock()
	gate := d.closeGate
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[h] {
		return false
	}
	d.closeCalls++
	delete(d.open, h)
	d.cond.Broadcast()
	return !d.failClose
}

func (d *Driver) SetEventsMask(h driver.Handle, mask driver.EventMask) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[h] {
		return false
	}
	d.mask = mask
	return true
}

func (d *Driver) EventsMask(h driver.Handle) driver.EventMask {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mask
}

func (d *Driver) WaitEvents(h driver.Handle) ([]driver.RawEvent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.open[h] && len(d.events) == 0 {
		d.cond.Wait()
	}
	if !d.open[h] {
		return nil, driver.ErrPortClosed
	}
	events := d.events
	d.events = nil
	return events, nil
}

func (d *Driver) SetRTS(h driver.Handle, on bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[h] {
		return false
	}
	d.rts = on
	return true
}

func (d *Driver) SetDTR(h driver.Handle, on bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[h] {
		return false
	}
	d.dtr = on
	return true
}

func (d *Driver) ReadBytes(h driver.Handle, n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[h] {
		return nil, driver.ErrIncorrectHandle
	}
	d.reads = append(d.reads, n)
	for d.open[h] && len(d.input) < n {
		d.cond.Wait()
	}
	if !d.open[h] {
		return nil, driver.ErrPortClosed
	}
	out := append([]byte(nil), d.input[:n]...)
	d.input = d.input[n:]
	return out, nil
}

func (d *Driver) WriteBytes(h driver.Handle, b []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[h] {
		return false
	}
	d.written = append(d.written, b...)
	if d.loopback {
		d.receive(b)
	}
	return true
}

func (d *Driver) BuffersBytesCount(h driver.Handle) (int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[h] {
		return 0, 0, driver.ErrIncorrectHandle
	}
	if d.countErr != nil {
		return 0, 0, d.countErr
	}
	if len(d.counts) > 0 {
		n := d.counts[0]
		d.counts = d.counts[1:]
		return n, 0, nil
	}
	return len(d.input), 0, nil
}

func (d *Driver) SetFlowControlMode(h driver.Handle, mode driver.FlowControl) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[h] {
		return false
	}
	d.flow = mode
	return true
}

func (d *Driver) FlowControlMode(h driver.Handle) driver.FlowControl {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flow
}

func (d *Driver) LinesStatus(h driver.Handle) (driver.LinesStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[h] {
		return driver.LinesStatus{}, driver.ErrIncorrectHandle
	}
	return d.lines, nil
}

func (d *Driver) SendBreak(h driver.Handle, dur time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open[h] {
		return false
	}
	d.breaks = append(d.breaks, dur)
	return true
}
