package serial

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/go-native-serial/driver"
	"github.com/luhtfiimanal/go-native-serial/platform"
	"github.com/luhtfiimanal/go-native-serial/serialtest"
)

func openPort(t *testing.T, drv *serialtest.Driver, name string) *Port {
	t.Helper()
	p := NewPort(name, WithDriver(drv), WithExclusive(false))
	require.NoError(t, p.Open())
	t.Cleanup(func() {
		if p.IsOpened() {
			p.Close()
		}
	})
	return p
}

func TestPort_OperationsRequireOpen(t *testing.T) {
	drv := serialtest.New("2.9.4")
	p := NewPort("COM1", WithDriver(drv))

	checks := map[string]error{
		"SetParams":     p.SetParams(9600, 8, StopBits1, ParityNone),
		"Purge":         p.Purge(driver.PurgeRXClear),
		"SetEventsMask": p.SetEventsMask(EventRXCHAR),
		"WriteBytes":    p.WriteBytes([]byte{1}),
		"SetRTS":        p.SetRTS(true),
		"SetDTR":        p.SetDTR(true),
		"SendBreak":     p.SendBreak(time.Millisecond),
		"Close":         p.Close(),
	}
	_, checks["ReadBytes"] = p.ReadBytes(1)
	_, checks["WaitEvents"] = p.WaitEvents()
	_, _, checks["BuffersBytesCount"] = p.BuffersBytesCount()
	_, checks["LinesStatus"] = p.LinesStatus()
	_, checks["FlowControlMode"] = p.FlowControlMode()

	for method, err := range checks {
		require.ErrorIs(t, err, ErrPortNotOpened, method)
		var pe *PortError
		require.ErrorAs(t, err, &pe, method)
		require.Equal(t, "COM1", pe.Port)
	}
	require.Empty(t, drv.Written())
	require.Empty(t, drv.Reads())
	require.Zero(t, drv.CloseCalls())
}

func TestPort_OpenErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"busy", ErrPortBusy},
		{"not found", ErrPortNotFound},
		{"permission denied", ErrPermissionDenied},
		{"incorrect port", ErrIncorrectPort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := serialtest.New("2.9.4")
			drv.FailOpen("COM9", tt.err)
			p := NewPort("COM9", WithDriver(drv))

			err := p.Open()
			require.ErrorIs(t, err, tt.err)
			var pe *PortError
			require.ErrorAs(t, err, &pe)
			require.Equal(t, "Open", pe.Method)
			require.False(t, p.IsOpened())
		})
	}
}

func TestPort_OpenTwice(t *testing.T) {
	p := openPort(t, serialtest.New("2.9.4"), "COM1")
	require.ErrorIs(t, p.Open(), ErrPortAlreadyOpened)
	require.True(t, p.IsOpened())
}

func TestPort_ExclusiveOpen(t *testing.T) {
	drv := serialtest.New("2.9.4")
	openPort(t, drv, "COM1")

	other := NewPort("COM1", WithDriver(drv), WithExclusive(true))
	require.ErrorIs(t, other.Open(), ErrPortBusy)
}

func TestPort_CloseClearsHandle(t *testing.T) {
	drv := serialtest.New("2.9.4")
	p := openPort(t, drv, "COM1")

	require.NoError(t, p.Close())
	require.False(t, p.IsOpened())
	require.ErrorIs(t, p.Close(), ErrPortNotOpened)
	require.Equal(t, 1, drv.CloseCalls())

	// The session can be opened again
	require.NoError(t, p.Open())
	require.True(t, p.IsOpened())
}

func TestPort_CloseFailureStillInvalidatesHandle(t *testing.T) {
	drv := serialtest.New("2.9.4")
	p := openPort(t, drv, "COM1")
	drv.FailClose()

	require.ErrorIs(t, p.Close(), ErrCloseFailure)
	require.False(t, p.IsOpened())
}

func TestPort_Configure(t *testing.T) {
	drv := serialtest.New("2.9.4")
	p := openPort(t, drv, "COM1")

	require.NoError(t, p.SetParams(115200, 7, StopBits2, ParityEven))
	got := drv.Params()
	require.Equal(t, 115200, got.BaudRate)
	require.Equal(t, 7, got.DataBits)
	require.Equal(t, StopBits2, got.StopBits)
	require.Equal(t, ParityEven, got.Parity)
	require.True(t, got.RTS)
	require.True(t, got.DTR)
	require.Equal(t, Env().Flags(), got.Flags)

	require.NoError(t, p.Configure(Mode{BaudRate: 9600, DataBits: 8, StopBits: StopBits1, DisableDTR: true}))
	rts, dtr := drv.Lines()
	require.True(t, rts)
	require.False(t, dtr)

	drv.RejectParams()
	require.ErrorIs(t, p.SetParams(9600, 8, StopBits1, ParityNone), ErrRejected)
}

func TestPort_ReadWriteBytes(t *testing.T) {
	drv := serialtest.New("2.9.4")
	p := openPort(t, drv, "COM1")

	require.NoError(t, p.WriteBytes([]byte("hi")))
	require.Equal(t, []byte("hi"), drv.Written())

	drv.Feed('o', 'k', '!')
	in, out, err := p.BuffersBytesCount()
	require.NoError(t, err)
	require.Equal(t, 3, in)
	require.Zero(t, out)

	b, err := p.ReadBytes(2)
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), b)

	n, err := p.InputBufferBytesCount()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	b, err = p.ReadBytes(0)
	require.NoError(t, err)
	require.Empty(t, b)
}

func TestPort_CountFailureIsIOFailure(t *testing.T) {
	drv := serialtest.New("2.9.4")
	p := openPort(t, drv, "COM1")
	gone := errors.New("device gone")
	drv.FailCounts(gone)

	_, err := p.OutputBufferBytesCount()
	require.ErrorIs(t, err, ErrIOFailure)
	require.ErrorIs(t, err, gone)
}

func TestPort_CloseUnblocksRead(t *testing.T) {
	drv := serialtest.New("2.9.4")
	p := openPort(t, drv, "COM1")

	done := make(chan error, 1)
	go func() {
		_, err := p.ReadBytes(4)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrPortNotOpened)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for ReadBytes to return after Close")
	}
}

func TestPort_LinesAndControl(t *testing.T) {
	drv := serialtest.New("2.9.4")
	p := openPort(t, drv, "COM1")

	require.NoError(t, p.SetRTS(false))
	require.NoError(t, p.SetDTR(true))
	rts, dtr := drv.Lines()
	require.False(t, rts)
	require.True(t, dtr)

	drv.SetLines(driver.LinesStatus{CTS: true, RLSD: true})
	lines, err := p.LinesStatus()
	require.NoError(t, err)
	require.Equal(t, driver.LinesStatus{CTS: true, RLSD: true}, lines)

	require.NoError(t, p.SetFlowControlMode(driver.FlowRTSCTSIn|driver.FlowRTSCTSOut))
	mode, err := p.FlowControlMode()
	require.NoError(t, err)
	require.Equal(t, driver.FlowRTSCTSIn|driver.FlowRTSCTSOut, mode)

	require.NoError(t, p.SendBreak(250*time.Millisecond))
	require.Equal(t, []time.Duration{250 * time.Millisecond}, drv.Breaks())

	drv.Feed(1, 2, 3)
	require.NoError(t, p.Purge(driver.PurgeRXClear|driver.PurgeTXClear))
	require.Equal(t, []int{driver.PurgeRXClear | driver.PurgeTXClear}, drv.Purges())
	n, err := p.InputBufferBytesCount()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPort_WaitEvents(t *testing.T) {
	drv := serialtest.New("2.9.4")
	p := openPort(t, drv, "COM1")

	require.NoError(t, p.SetEventsMask(EventCTS|EventDSR))
	mask, err := p.EventsMask()
	require.NoError(t, err)
	require.Equal(t, EventCTS|EventDSR, mask)

	drv.Emit(driver.RawEvent{Type: EventCTS, Value: 1}, driver.RawEvent{Type: EventDSR, Value: 0})
	events, err := p.WaitEvents()
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Same(t, p, events[0].Port)
	require.Equal(t, "COM1", events[0].PortName())
	require.True(t, events[0].IsCTS())
	require.Equal(t, 1, events[0].Value)
	require.True(t, events[1].IsDSR())
	require.Zero(t, events[1].Value)
}

func TestPort_Listen(t *testing.T) {
	drv := serialtest.New("2.9.4")
	p := openPort(t, drv, "COM1")

	got := make(chan Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- p.Listen(context.Background(), EventRXCHAR, func(e Event) { got <- e })
	}()

	require.Eventually(t, func() bool {
		mask, err := p.EventsMask()
		return err == nil && mask == EventRXCHAR
	}, time.Second, 5*time.Millisecond)

	drv.Feed('a', 'b', 'c')
	select {
	case e := <-got:
		require.True(t, e.IsRXCHAR())
		require.Equal(t, 3, e.Value)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for RXCHAR event")
	}

	require.NoError(t, p.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Listen to return after Close")
	}
}

func TestPort_ListenCanceled(t *testing.T) {
	p := openPort(t, serialtest.New("2.9.4"), "COM1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Listen(ctx, EventRXCHAR, func(Event) { t.Fatal("unexpected event") })
	require.ErrorIs(t, err, context.Canceled)
}

func TestEvent_Predicates(t *testing.T) {
	preds := map[EventMask]func(Event) bool{
		EventRXCHAR:  Event.IsRXCHAR,
		EventRXFLAG:  Event.IsRXFLAG,
		EventTXEMPTY: Event.IsTXEMPTY,
		EventCTS:     Event.IsCTS,
		EventDSR:     Event.IsDSR,
		EventRLSD:    Event.IsRLSD,
		EventBREAK:   Event.IsBREAK,
		EventERR:     Event.IsERR,
		EventRING:    Event.IsRING,
	}
	for typ := range preds {
		e := Event{Type: typ}
		for other, pred := range preds {
			require.Equal(t, typ == other, pred(e), "type %d predicate %d", typ, other)
		}
	}
}

func TestLoadEnvironment(t *testing.T) {
	vars := map[string]string{
		EnvNoExclusive:  "",
		EnvIgnoreParity: "1",
		EnvPortNames:    "abc1d|bvc",
	}
	e := LoadEnvironment(func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	})
	require.True(t, e.NoExclusive)
	require.True(t, e.IgnoreParity)
	require.False(t, e.MarkParity)
	require.Equal(t, []string{"abc", "d", "bvc"}, e.PortNames)
	require.Equal(t, driver.FlagIgnoreParity, e.Flags())

	empty := LoadEnvironment(func(string) (string, bool) { return "", false })
	require.Equal(t, Environment{}, empty)
	require.Zero(t, empty.Flags())
}

func TestPortNamePattern(t *testing.T) {
	const linux = "(ttyS|ttyUSB|ttyACM|ttyAMA|rfcomm|ttyO|ttyM|ttyMXUSB|ttyMUE%s)[0-9]{1,3}"
	const mac = `(tty|cu%s)\..*`
	extra := []string{"abc", "d", "bvc"}

	require.Equal(t, fmt.Sprintf(linux, ""), PortNamePattern(platform.Linux, nil))
	require.Equal(t, fmt.Sprintf(linux, "|abc|d|bvc"), PortNamePattern(platform.Linux, extra))
	require.Equal(t, fmt.Sprintf(mac, ""), PortNamePattern(platform.MacOS, nil))
	require.Equal(t, fmt.Sprintf(mac, "|abc|d|bvc"), PortNamePattern(platform.MacOS, extra))
	require.Equal(t, "[0-9]*|[a-z]*", PortNamePattern(platform.Solaris, extra))
	require.Empty(t, PortNamePattern(platform.Unknown, nil))

	m, err := PortNameMatcher(platform.Linux, extra)
	require.NoError(t, err)
	for _, name := range []string{"ttyS0", "ttyUSB12", "ttyACM3", "rfcomm1", "abc7", "bvc100"} {
		require.True(t, m.MatchString(name), name)
	}
	for _, name := range []string{"tty0", "ttyUSB", "ttyS1234", "xttyS0", "null"} {
		require.False(t, m.MatchString(name), name)
	}

	m, err = PortNameMatcher(platform.MacOS, nil)
	require.NoError(t, err)
	require.True(t, m.MatchString("tty.usbserial-1410"))
	require.True(t, m.MatchString("cu.usbmodem101"))
	require.False(t, m.MatchString("ttys000"))

	_, err = PortNameMatcher(platform.Unknown, nil)
	require.ErrorIs(t, err, platform.ErrUnsupportedPlatform)
}
