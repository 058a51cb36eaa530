package blemon

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/blemon/clock"
	"github.com/rigado/blemon/uart"
)

// An Option is a configuration function, which configures the monitor.
type Option func(*Monitor) error

// OptTransport sets the function used to open the transport.
func OptTransport(open uart.OpenFunc) Option {
	return func(m *Monitor) error {
		if open == nil {
			return errors.New("nil transport")
		}
		m.open = open
		m.dest = ""
		return nil
	}
}

// OptSerialPort sends records to the serial port at path. A zero baud
// keeps the default speed.
func OptSerialPort(path string, baud uint) Option {
	return func(m *Monitor) error {
		if len(path) == 0 {
			return errors.New("empty serial port path")
		}
		m.open = uart.Serial(path)
		m.dest = path
		if baud != 0 {
			m.speed = baud
		}
		return nil
	}
}

// OptSocket sends records to a TCP listener. A positive timeout bounds
// the dial and each write; zero never times out.
func OptSocket(addr string, timeout time.Duration) Option {
	return func(m *Monitor) error {
		if len(addr) == 0 {
			return errors.New("empty socket address")
		}
		m.open = uart.Socket(addr, timeout)
		m.dest = "tcp:" + addr
		return nil
	}
}

// OptClock overrides the timestamp source.
func OptClock(c clock.Clock) Option {
	return func(m *Monitor) error {
		if c == nil {
			return errors.New("nil clock")
		}
		m.clk = c
		return nil
	}
}

// OptLogger overrides the package logger for this monitor.
func OptLogger(l Logger) Option {
	return func(m *Monitor) error {
		m.log = l
		return nil
	}
}

// OptRingSize sets the transmit ring size. It must be a power of two.
func OptRingSize(n int) Option {
	return func(m *Monitor) error {
		if n < 2 || n&(n-1) != 0 {
			return errors.Errorf("ring size %d is not a power of two", n)
		}
		m.ringSize = n
		return nil
	}
}

// OptIdent sets the ident attached to user logging records.
func OptIdent(ident string) Option {
	return func(m *Monitor) error {
		m.ident = ident
		return nil
	}
}
