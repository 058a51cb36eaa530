package h4

import (
	"fmt"
	"time"
)

// H4 packet indicators.
const (
	CommandPacket = 0x01
	ACLPacket     = 0x02
	SCOPacket     = 0x03
	EventPacket   = 0x04
)

// a partial frame older than this is thrown away
const frameTimeout = 500 * time.Millisecond

// Splitter cuts an H4 byte stream into packets. Bytes before a known packet
// indicator are skipped.
type Splitter struct {
	b       []byte
	timeout time.Time
	out     func(typ byte, pkt []byte)
	pktType byte
	now     func() time.Time
}

// NewSplitter returns a splitter that calls out with each complete packet,
// without its indicator byte. pkt is only valid during the call.
func NewSplitter(out func(typ byte, pkt []byte)) *Splitter {
	return &Splitter{
		b:   make([]byte, 0, 256),
		out: out,
		now: time.Now,
	}
}

// Write feeds stream bytes to the splitter. It never fails.
func (f *Splitter) Write(b []byte) (int, error) {
	f.Assemble(b)
	return len(b), nil
}

// Pending returns the number of bytes held for an incomplete packet.
func (f *Splitter) Pending() int {
	return len(f.b)
}

func (f *Splitter) Assemble(b []byte) {
	if len(b) == 0 {
		return
	}

	if len(f.b) != 0 && f.now().After(f.timeout) {
		// stale partial frame
		f.reset()
	}

	if len(f.b) == 0 {
		if err := f.waitStart(b); err != nil {
			return
		}
	} else {
		f.b = append(f.b, b...)
	}

	for {
		tl, err := f.frameLength()
		if err != nil || len(f.b) < tl {
			return
		}

		f.out(f.pktType, f.b[1:tl])

		rem := f.b[tl:]
		if len(rem) == 0 {
			f.reset()
			return
		}

		rest := make([]byte, len(rem))
		copy(rest, rem)
		f.reset()
		if err := f.waitStart(rest); err != nil {
			return
		}
	}
}

func (f *Splitter) reset() {
	f.b = f.b[:0]
	f.timeout = time.Time{}
	f.pktType = 0
}

func (f *Splitter) waitStart(b []byte) error {
	for i, v := range b {
		switch v {
		case CommandPacket, ACLPacket, SCOPacket, EventPacket:
		default:
			continue
		}

		f.pktType = v
		f.timeout = f.now().Add(frameTimeout)
		f.b = append(f.b, b[i:]...)
		return nil
	}

	return fmt.Errorf("couldnt find start byte")
}

// frameLength returns the full frame size, indicator included.
func (f *Splitter) frameLength() (int, error) {
	var hl, pl int
	switch f.pktType {
	case CommandPacket, SCOPacket:
		hl = 3
		if len(f.b) >= 1+hl {
			pl = int(f.b[3])
		}
	case EventPacket:
		hl = 2
		if len(f.b) >= 1+hl {
			pl = int(f.b[2])
		}
	case ACLPacket:
		hl = 4
		if len(f.b) >= 1+hl {
			pl = int(f.b[3]) | int(f.b[4])<<8
		}
	default:
		return 0, fmt.Errorf("invalid packet type %v", f.pktType)
	}

	if len(f.b) < 1+hl {
		return 0, fmt.Errorf("not enough bytes")
	}
	return 1 + hl + pl, nil
}
