package blemon

import (
	"fmt"

	"github.com/rigado/blemon/hdr"
)

// DefaultIdent tags user logging records.
const DefaultIdent = "blemon"

// Priority is a syslog priority, as btmon prints it.
type Priority uint8

const (
	PriEmerg Priority = iota
	PriAlert
	PriCrit
	PriErr
	PriWarning
	PriNotice
	PriInfo
	PriDebug
)

// ident_len is a single byte
const maxIdentLen = 0xff - 1

// SendCommand traces an HCI command sent to the controller. b starts at
// the opcode, without the H4 packet type.
func (m *Monitor) SendCommand(b []byte) error {
	return m.Send(OpCommandPkt, b)
}

// SendEvent traces an HCI event received from the controller.
func (m *Monitor) SendEvent(b []byte) error {
	return m.Send(OpEventPkt, b)
}

// SendACL traces ACL data. segs may hold a fragmented packet.
func (m *Monitor) SendACL(dir Direction, segs ...[]byte) error {
	op := OpACLTxPkt
	if dir == DirRx {
		op = OpACLRxPkt
	}
	return m.SendSegments(op, segs...)
}

// SendSCO traces SCO data.
func (m *Monitor) SendSCO(dir Direction, b []byte) error {
	op := OpSCOTxPkt
	if dir == DirRx {
		op = OpSCORxPkt
	}
	return m.Send(op, b)
}

// SystemNote adds a free text note to the trace.
func (m *Monitor) SystemNote(msg string) error {
	return m.SendSegments(OpSystemNote, fitString(msg, hdr.MaxPayload))
}

// UserLog adds a log line to the trace, tagged with the monitor's ident.
func (m *Monitor) UserLog(pri Priority, msg string) error {
	id := fitString(m.ident, maxIdentLen+1)

	pre := []byte{byte(pri), byte(len(id))}
	text := fitString(msg, hdr.MaxPayload-len(pre)-len(id))

	return m.SendSegments(OpUserLogging, pre, id, text)
}

// Logf formats a user logging record.
func (m *Monitor) Logf(pri Priority, format string, args ...interface{}) error {
	return m.UserLog(pri, fmt.Sprintf(format, args...))
}

// fitString returns s as a NUL terminated byte slice of at most max bytes.
func fitString(s string, max int) []byte {
	if len(s) > max-1 {
		s = s[:max-1]
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}
