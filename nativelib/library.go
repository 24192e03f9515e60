//go:build darwin || freebsd || linux || windows

package nativelib

import (
	"errors"
	"fmt"
	"time"

	"github.com/ebitengine/purego"

	"github.com/luhtfiimanal/go-native-serial/driver"
)

const maxEventPairs = 16

// Library is a loaded native library bound to the driver contract.
type Library struct {
	path string

	version        func() string
	openPort       func(name string, exclusive bool) int64
	setParams      func(h int64, baud, dataBits, stopBits, parity int32, rts, dtr bool, flags int32) bool
	purgePort      func(h int64, flags int32) bool
	closePort      func(h int64) bool
	setEventsMask  func(h int64, mask int32) bool
	getEventsMask  func(h int64) int32
	waitEvents     func(h int64, pairs *int32, maxPairs int32) int32
	setRTS         func(h int64, on bool) bool
	setDTR         func(h int64, on bool) bool
	readBytes      func(h int64, buf *byte, n int32) int32
	writeBytes     func(h int64, buf *byte, n int32) bool
	buffersCount   func(h int64, counts *int32) bool
	setFlowControl func(h int64, mask int32) bool
	getFlowControl func(h int64) int32
	linesStatus    func(h int64, lines *int32) bool
	sendBreak      func(h int64, ms int32) bool
}

var _ driver.Driver = (*Library)(nil)

// bind resolves every exported symbol through lookup. A missing symbol
// fails the whole bind so a stale binary is rejected before use.
func bind(path string, lookup func(symbol string) (uintptr, error)) (*Library, error) {
	l := &Library{path: path}
	symbols := []struct {
		name string
		fptr any
	}{
		{"nativeserial_version", &l.version},
		{"nativeserial_open_port", &l.openPort},
		{"nativeserial_set_params", &l.setParams},
		{"nativeserial_purge_port", &l.purgePort},
		{"nativeserial_close_port", &l.closePort},
		{"nativeserial_set_events_mask", &l.setEventsMask},
		{"nativeserial_get_events_mask", &l.getEventsMask},
		{"nativeserial_wait_events", &l.waitEvents},
		{"nativeserial_set_rts", &l.setRTS},
		{"nativeserial_set_dtr", &l.setDTR},
		{"nativeserial_read_bytes", &l.readBytes},
		{"nativeserial_write_bytes", &l.writeBytes},
		{"nativeserial_get_buffers_bytes_count", &l.buffersCount},
		{"nativeserial_set_flow_control_mode", &l.setFlowControl},
		{"nativeserial_get_flow_control_mode", &l.getFlowControl},
		{"nativeserial_get_lines_status", &l.linesStatus},
		{"nativeserial_send_break", &l.sendBreak},
	}
	for _, s := range symbols {
		addr, err := lookup(s.name)
		if err != nil {
			return nil, fmt.Errorf("resolve %s in %s: %w", s.name, path, err)
		}
		if addr == 0 {
			return nil, fmt.Errorf("resolve %s in %s: null symbol", s.name, path)
		}
		purego.RegisterFunc(s.fptr, addr)
	}
	return l, nil
}

// Path is the file the library was loaded from.
func (l *Library) Path() string { return l.path }

func (l *Library) NativeVersion() string { return l.version() }

func (l *Library) OpenPort(name string, exclusive bool) driver.Handle {
	return driver.Handle(l.openPort(name, exclusive))
}

func (l *Library) SetParams(h driver.Handle, p driver.Params) bool {
	return l.setParams(int64(h), int32(p.BaudRate), int32(p.DataBits), int32(p.StopBits),
		int32(p.Parity), p.RTS, p.DTR, int32(p.Flags))
}

func (l *Library) PurgePort(h driver.Handle, flags int) bool {
	return l.purgePort(int64(h), int32(flags))
}

func (l *Library) ClosePort(h driver.Handle) bool {
	return l.closePort(int64(h))
}

func (l *Library) SetEventsMask(h driver.Handle, mask driver.EventMask) bool {
	return l.setEventsMask(int64(h), int32(mask))
}

func (l *Library) EventsMask(h driver.Handle) driver.EventMask {
	return driver.EventMask(l.getEventsMask(int64(h)))
}

func (l *Library) WaitEvents(h driver.Handle) ([]driver.RawEvent, error) {
	var pairs [maxEventPairs * 2]int32
	n := l.waitEvents(int64(h), &pairs[0], maxEventPairs)
	if n < 0 {
		return nil, errors.New("native wait_events failed")
	}
	if n > maxEventPairs {
		n = maxEventPairs
	}
	events := make([]driver.RawEvent, 0, n)
	for i := 0; i < int(n); i++ {
		events = append(events, driver.RawEvent{
			Type:  driver.EventMask(pairs[2*i]),
			Value: int(pairs[2*i+1]),
		})
	}
	return events, nil
}

func (l *Library) SetRTS(h driver.Handle, on bool) bool { return l.setRTS(int64(h), on) }

func (l *Library) SetDTR(h driver.Handle, on bool) bool { return l.setDTR(int64(h), on) }

func (l *Library) ReadBytes(h driver.Handle, n int) ([]byte, error) {
	if n <= 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	got := l.readBytes(int64(h), &buf[0], int32(n))
	if got < 0 {
		return nil, errors.New("native read_bytes failed")
	}
	return buf[:got], nil
}

func (l *Library) WriteBytes(h driver.Handle, b []byte) bool {
	if len(b) == 0 {
		return true
	}
	return l.writeBytes(int64(h), &b[0], int32(len(b)))
}

func (l *Library) BuffersBytesCount(h driver.Handle) (int, int, error) {
	var counts [2]int32
	if !l.buffersCount(int64(h), &counts[0]) {
		return 0, 0, errors.New("native get_buffers_bytes_count failed")
	}
	return int(counts[0]), int(counts[1]), nil
}

func (l *Library) SetFlowControlMode(h driver.Handle, mode driver.FlowControl) bool {
	return l.setFlowControl(int64(h), int32(mode))
}

func (l *Library) FlowControlMode(h driver.Handle) driver.FlowControl {
	return driver.FlowControl(l.getFlowControl(int64(h)))
}

func (l *Library) LinesStatus(h driver.Handle) (driver.LinesStatus, error) {
	var lines [4]int32
	if !l.linesStatus(int64(h), &lines[0]) {
		return driver.LinesStatus{}, errors.New("native get_lines_status failed")
	}
	return driver.LinesStatus{
		CTS:  lines[0] == 1,
		DSR:  lines[1] == 1,
		RING: lines[2] == 1,
		RLSD: lines[3] == 1,
	}, nil
}

func (l *Library) SendBreak(h driver.Handle, d time.Duration) bool {
	return l.sendBreak(int64(h), int32(d/time.Millisecond))
}
