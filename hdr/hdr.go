package hdr

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/blemon/clock"
)

const (
	// ExtTS32 tags an extended header carrying a 32-bit timestamp.
	ExtTS32 = 0x08

	// Size is the encoded header length.
	Size = 11

	// HdrLen is the extended header length: type (1) + ts32 (4).
	HdrLen = 5

	// fixed part of data_len: opcode (2) + flags (1) + hdr_len (1)
	fixedLen = 4

	// MaxPayload is the largest payload whose data_len fits 16 bits.
	MaxPayload = 0xffff - fixedLen - HdrLen
)

// RefEpoch is 2016-01-01 00:00:00 UTC. A wall clock reading earlier than
// this is treated as never having been set.
var RefEpoch = time.Unix(1451606400, 0)

// Header is the record header understood by btmon's TTY reader.
//
//	data_len(2) opcode(2) flags(1) hdr_len(1) type(1) ts32(4)
type Header struct {
	DataLen uint16
	Opcode  uint16
	Flags   uint8
	HdrLen  uint8
	Type    uint8
	TS32    uint32
}

// New builds the header for a payload of plen bytes. A negative ts
// derives the timestamp (in microseconds) from clk.
func New(ts int64, opcode uint16, plen uint16, clk clock.Clock) Header {
	if ts < 0 {
		ts = Micros(clk)
	}

	return Header{
		DataLen: fixedLen + HdrLen + plen,
		Opcode:  opcode,
		Flags:   0,
		HdrLen:  HdrLen,
		Type:    ExtTS32,
		TS32:    uint32(ts / 100),
	}
}

// Micros returns the wall-clock time in microseconds, or the uptime if the
// wall clock is unavailable or looks unset.
func Micros(clk clock.Clock) int64 {
	wt, err := clk.WallTime()
	if err != nil || wt.Before(RefEpoch) {
		return int64(clk.Uptime() / time.Microsecond)
	}
	return wt.UnixNano() / int64(time.Microsecond)
}

// Len returns the encoded header size.
func (h Header) Len() int {
	return Size
}

// PayloadLen returns the payload length implied by DataLen.
func (h Header) PayloadLen() int {
	return int(h.DataLen) - fixedLen - int(h.HdrLen)
}

// Marshal encodes h into the first Size bytes of b.
func (h Header) Marshal(b []byte) error {
	if len(b) < Size {
		return errors.Errorf("header needs %d bytes, have %d", Size, len(b))
	}

	binary.LittleEndian.PutUint16(b[0:], h.DataLen)
	binary.LittleEndian.PutUint16(b[2:], h.Opcode)
	b[4] = h.Flags
	b[5] = h.HdrLen
	b[6] = h.Type
	binary.LittleEndian.PutUint32(b[7:], h.TS32)
	return nil
}

// Unmarshal decodes a header from b.
func (h *Header) Unmarshal(b []byte) error {
	if len(b) < Size {
		return errors.Errorf("short header: %d bytes", len(b))
	}

	hh := Header{
		DataLen: binary.LittleEndian.Uint16(b[0:]),
		Opcode:  binary.LittleEndian.Uint16(b[2:]),
		Flags:   b[4],
		HdrLen:  b[5],
		Type:    b[6],
		TS32:    binary.LittleEndian.Uint32(b[7:]),
	}

	switch {
	case hh.HdrLen != HdrLen:
		return errors.Errorf("unexpected hdr_len %d", hh.HdrLen)
	case hh.Type != ExtTS32:
		return errors.Errorf("unsupported extended header type 0x%02x", hh.Type)
	case hh.PayloadLen() < 0:
		return errors.Errorf("data_len %d shorter than header", hh.DataLen)
	}

	*h = hh
	return nil
}
