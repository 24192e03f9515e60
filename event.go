package serial

import "github.com/luhtfiimanal/go-native-serial/driver"

// EventMask selects the conditions WaitEvents and Listen report.
type EventMask = driver.EventMask

const (
	EventRXCHAR  = driver.EventRXCHAR
	EventRXFLAG  = driver.EventRXFLAG
	EventTXEMPTY = driver.EventTXEMPTY
	EventCTS     = driver.EventCTS
	EventDSR     = driver.EventDSR
	EventRLSD    = driver.EventRLSD
	EventBREAK   = driver.EventBREAK
	EventERR     = driver.EventERR
	EventRING    = driver.EventRING
)

// Event is one condition observed on a port.
//
// Value depends on Type: the number of bytes in the input buffer for
// RXCHAR, 1 or 0 for the new state of a modem line, and a driver specific
// error mask for ERR.
type Event struct {
	Port  *Port
	Type  EventMask
	Value int
}

// PortName is the name of the port the event was observed on.
func (e Event) PortName() string { return e.Port.Name() }

func (e Event) IsRXCHAR() bool  { return e.Type == EventRXCHAR }
func (e Event) IsRXFLAG() bool  { return e.Type == EventRXFLAG }
func (e Event) IsTXEMPTY() bool { return e.Type == EventTXEMPTY }
func (e Event) IsCTS() bool     { return e.Type == EventCTS }
func (e Event) IsDSR() bool     { return e.Type == EventDSR }
func (e Event) IsRLSD() bool    { return e.Type == EventRLSD }
func (e Event) IsBREAK() bool   { return e.Type == EventBREAK }
func (e Event) IsERR() bool     { return e.Type == EventERR }
func (e Event) IsRING() bool    { return e.Type == EventRING }
