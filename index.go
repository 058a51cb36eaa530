package blemon

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	// IndexNameLen is the width of the NewIndex name field, NUL included.
	IndexNameLen = 8

	// NewIndexLen is the encoded NewIndex payload size.
	NewIndexLen = 1 + 1 + 6 + IndexNameLen

	// only primary controllers are announced
	indexTypePrimary = 0x00
)

// NewIndexPkt announces a controller to the capture tool.
type NewIndexPkt struct {
	Type uint8
	Bus  uint8
	Addr Addr
	Name [IndexNameLen]byte
}

// newIndexPkt truncates name to fit and always leaves it NUL terminated.
func newIndexPkt(bus uint8, addr Addr, name string) NewIndexPkt {
	p := NewIndexPkt{
		Type: indexTypePrimary,
		Bus:  bus,
		Addr: addr,
	}

	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	copy(p.Name[:IndexNameLen-1], name)
	return p
}

func (p NewIndexPkt) Len() int {
	return NewIndexLen
}

func (p NewIndexPkt) Marshal(b []byte) error {
	if len(b) < NewIndexLen {
		return errors.Errorf("new index needs %d bytes, have %d", NewIndexLen, len(b))
	}
	b[0] = p.Type
	b[1] = p.Bus
	copy(b[2:8], p.Addr[:])
	copy(b[8:], p.Name[:])
	return nil
}

// NewIndex announces the controller at addr on bus. Names longer than
// seven bytes are truncated.
func (m *Monitor) NewIndex(bus uint8, addr Addr, name string) error {
	var b [NewIndexLen]byte
	if err := newIndexPkt(bus, addr, name).Marshal(b[:]); err != nil {
		return err
	}
	return m.Send(OpNewIndex, b[:])
}

// OpenIndex marks the announced controller as up.
func (m *Monitor) OpenIndex() error {
	return m.Send(OpOpenIndex, nil)
}

// CloseIndex marks the announced controller as down.
func (m *Monitor) CloseIndex() error {
	return m.Send(OpCloseIndex, nil)
}

// DelIndex removes the announced controller.
func (m *Monitor) DelIndex() error {
	return m.Send(OpDelIndex, nil)
}
