package blemon

import "sync"

var (
	defaultMonitor *Monitor
	defaultMu      sync.RWMutex
)

// SetDefaultMonitor installs the process-wide monitor used by the package
// level helpers.
func SetDefaultMonitor(m *Monitor) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultMonitor = m
}

// DefaultMonitor returns the installed monitor, or nil.
func DefaultMonitor() *Monitor {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultMonitor
}

// Send queues a record on the default monitor.
func Send(opcode uint16, data []byte) error {
	m := DefaultMonitor()
	if m == nil {
		return ErrNotInitialized
	}
	return m.Send(opcode, data)
}

// SendSegments queues a segmented record on the default monitor.
func SendSegments(opcode uint16, segs ...[]byte) error {
	m := DefaultMonitor()
	if m == nil {
		return ErrNotInitialized
	}
	return m.SendSegments(opcode, segs...)
}

// NewIndex announces a controller on the default monitor.
func NewIndex(bus uint8, addr Addr, name string) error {
	m := DefaultMonitor()
	if m == nil {
		return ErrNotInitialized
	}
	return m.NewIndex(bus, addr, name)
}

// Logf adds a user logging record on the default monitor.
func Logf(pri Priority, format string, args ...interface{}) error {
	m := DefaultMonitor()
	if m == nil {
		return ErrNotInitialized
	}
	return m.Logf(pri, format, args...)
}
