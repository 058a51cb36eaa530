package blemon

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rigado/blemon/sliceops"
)

// Addr is a BD_ADDR in controller (little-endian) byte order.
type Addr [6]byte

// ParseAddr parses "AA:BB:CC:DD:EE:FF". The most significant byte is
// written first, as printed by hciconfig and btmon.
func ParseAddr(s string) (Addr, error) {
	var a Addr

	hexStr := strings.Replace(s, ":", "", -1)
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return a, errors.Wrapf(err, "can't parse address %q", s)
	}
	if len(b) != len(a) {
		return a, errors.Errorf("address %q is %d bytes, expected %d", s, len(b), len(a))
	}

	copy(a[:], sliceops.SwapBuf(b))
	return a, nil
}

func (a Addr) String() string {
	b := sliceops.SwapBuf(a[:])
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}
