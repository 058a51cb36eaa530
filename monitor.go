package blemon

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/blemon/clock"
	"github.com/rigado/blemon/hdr"
	"github.com/rigado/blemon/ringbuf"
	"github.com/rigado/blemon/uart"
)

var (
	ErrNotInitialized     = errors.New("monitor not initialized")
	ErrAlreadyInitialized = errors.New("monitor already initialized")
	ErrClosed             = errors.New("monitor closed")
	ErrTooLong            = errors.New("record too long")
)

const (
	// DefaultRingSize is the transmit ring size in bytes.
	DefaultRingSize = 64

	// how long Close waits for queued bytes to go out
	closeFlushTimeout = time.Second
)

const (
	stateNew int32 = iota
	stateReady
	stateClosing
	stateClosed
)

// Monitor emits framed trace records over a byte transport. Records from
// concurrent callers are never interleaved; bytes leave in the order they
// were queued.
type Monitor struct {
	// mu serializes whole records. The drain path never takes it.
	mu sync.Mutex

	ring  *ringbuf.Ring
	dev   uart.Device
	state int32

	// imu guards Init and Close.
	imu sync.Mutex

	open     uart.OpenFunc
	dest     string
	speed    uint
	ringSize int
	clk      clock.Clock
	log      Logger
	ident    string
}

// New returns a monitor configured by opts. The transport is opened by Init.
func New(opts ...Option) (*Monitor, error) {
	m := &Monitor{
		speed:    uart.DefaultSpeed,
		ringSize: DefaultRingSize,
		clk:      clock.System(),
		log:      GetLogger(),
		ident:    DefaultIdent,
	}
	if err := m.Option(opts...); err != nil {
		return nil, errors.Wrap(err, "can't set options")
	}

	return m, nil
}

// Option applies opts to the monitor.
func (m *Monitor) Option(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return err
		}
	}
	return nil
}

// Init opens the transport with the monitor's ring as its byte source.
// On failure the monitor is left unusable and Init may be retried.
func (m *Monitor) Init() error {
	m.imu.Lock()
	defer m.imu.Unlock()

	switch atomic.LoadInt32(&m.state) {
	case stateReady:
		return ErrAlreadyInitialized
	case stateClosing, stateClosed:
		return ErrClosed
	}

	if m.open == nil {
		return errors.New("no monitor transport configured")
	}

	ring, err := ringbuf.New(m.ringSize, ringbuf.WithKick(m.kick))
	if err != nil {
		return err
	}

	log := transportLogger(m.log, m.dest)
	dev, err := m.open(uart.Conf{
		Speed:    m.speed,
		DataBits: 8,
		StopBits: 1,
		Parity:   uart.ParityNone,
		FlowCtl:  uart.FlowCtlNone,
		TxChar:   ring.Get,
		Log:      log,
	})
	if err != nil {
		return errors.Wrap(err, "can't open monitor transport")
	}

	m.ring = ring
	m.dev = dev
	m.log = log
	atomic.StoreInt32(&m.state, stateReady)

	m.log.Infof("monitor ready, %d byte ring", ring.Cap()+1)
	return nil
}

// Close flushes queued bytes, waiting up to a second, and closes the
// transport. Sends after Close return ErrClosed. A producer still blocked
// on a full ring when the flush gives up has its bytes dropped.
func (m *Monitor) Close() error {
	m.imu.Lock()
	defer m.imu.Unlock()

	if atomic.LoadInt32(&m.state) != stateReady {
		return nil
	}
	atomic.StoreInt32(&m.state, stateClosing)

	to := time.Now().Add(closeFlushTimeout)
	for time.Now().Before(to) {
		if m.mu.TryLock() {
			empty := m.ring.Empty()
			m.mu.Unlock()
			if empty {
				break
			}
		}
		m.dev.StartTx()
		time.Sleep(time.Millisecond)
	}

	// kicks discard from here on, so a record in flight can finish
	atomic.StoreInt32(&m.state, stateClosed)
	m.mu.Lock()
	n := m.ring.Len()
	m.mu.Unlock()
	if n > 0 {
		m.log.Warnf("monitor closed with %d bytes unsent", n)
	}

	err := m.dev.Close()
	m.discard()

	m.log.Infof("monitor closed")
	return errors.Wrap(err, "can't close monitor transport")
}

func (m *Monitor) ready() error {
	switch atomic.LoadInt32(&m.state) {
	case stateReady:
		return nil
	case stateClosing, stateClosed:
		return ErrClosed
	default:
		return ErrNotInitialized
	}
}

// kick makes the transport drain. Once closed there is nothing to drain
// into, so queued bytes are dropped instead of stalling the producer.
func (m *Monitor) kick() {
	if atomic.LoadInt32(&m.state) == stateClosed {
		m.discard()
		return
	}
	m.dev.StartTx()
}

func (m *Monitor) discard() {
	for {
		if _, ok := m.ring.Get(); !ok {
			return
		}
	}
}

// Send queues one record. It blocks while the ring is full and returns
// once every byte is queued.
func (m *Monitor) Send(opcode uint16, data []byte) error {
	return m.SendSegments(opcode, data)
}

// SendSegments queues one record whose payload is the concatenation of
// segs. The segments go out back to back under a single header.
func (m *Monitor) SendSegments(opcode uint16, segs ...[]byte) error {
	if err := m.ready(); err != nil {
		return err
	}

	var n int
	for _, s := range segs {
		n += len(s)
	}
	if n > hdr.MaxPayload {
		return errors.Wrapf(ErrTooLong, "%d byte payload", n)
	}

	var hb [hdr.Size]byte
	h := hdr.New(-1, opcode, uint16(n), m.clk)
	if err := h.Marshal(hb[:]); err != nil {
		return err
	}

	m.mu.Lock()
	m.ring.Write(hb[:])
	for _, s := range segs {
		m.ring.Write(s)
	}
	m.mu.Unlock()

	m.kick()
	return nil
}
