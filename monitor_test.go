package blemon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/blemon/clock"
	"github.com/rigado/blemon/hdr"
	"github.com/rigado/blemon/uart"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

var testWall = time.Unix(1700000000, 0)

type capture struct {
	mu     sync.Mutex
	b      bytes.Buffer
	closed bool
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.b.Write(p)
}

func (c *capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *capture) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte{}, c.b.Bytes()...)
}

// wait returns the captured bytes once at least n have arrived.
func (c *capture) wait(t *testing.T, n int) []byte {
	to := time.Now().Add(5 * time.Second)
	for time.Now().Before(to) {
		if b := c.Bytes(); len(b) >= n {
			return b
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("captured %d bytes, expected %d", len(c.Bytes()), n)
	return nil
}

func quietLogger() Logger {
	return NewLogger(&logrus.Logger{
		Out:       ioutil.Discard,
		Formatter: &logrus.TextFormatter{},
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	})
}

func newTestMonitor(t *testing.T, opts ...Option) (*Monitor, *capture) {
	c := &capture{}
	base := []Option{
		OptTransport(uart.Open(c)),
		OptClock(&clock.Fixed{Wall: testWall}),
		OptLogger(quietLogger()),
	}

	m, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("expected nil error but got %s instead", err)
	}
	if err := m.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return m, c
}

type record struct {
	h       hdr.Header
	payload []byte
}

func splitRecords(t *testing.T, b []byte) []record {
	var out []record
	for len(b) > 0 {
		var h hdr.Header
		if err := h.Unmarshal(b); err != nil {
			t.Fatalf("bad header after %d records: %v", len(out), err)
		}
		end := hdr.Size + h.PayloadLen()
		if len(b) < end {
			t.Fatalf("record %d truncated: have %d, need %d", len(out), len(b), end)
		}
		out = append(out, record{h, b[hdr.Size:end]})
		b = b[end:]
	}
	return out
}

func recordLen(plen int) int {
	return hdr.Size + plen
}

func TestSendExample(t *testing.T) {
	m, c := newTestMonitor(t)
	defer m.Close()

	if err := m.Send(0x0002, []byte{0xaa, 0xbb, 0xcc}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	got := c.wait(t, recordLen(3))

	ts := uint32(testWall.UnixNano() / 1000 / 100)
	exp := []byte{0x0c, 0x00, 0x02, 0x00, 0x00, 0x05, 0x08, 0, 0, 0, 0, 0xaa, 0xbb, 0xcc}
	binary.LittleEndian.PutUint32(exp[7:], ts)

	if !bytes.Equal(got, exp) {
		t.Fatalf("got [% x], expected [% x]", got, exp)
	}
}

func TestSendLargerThanRing(t *testing.T) {
	m, c := newTestMonitor(t, OptRingSize(8))
	defer m.Close()

	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := m.Send(OpVendorDiag, payload); err != nil {
		t.Fatal(err)
	}

	recs := splitRecords(t, c.wait(t, recordLen(len(payload))))
	if len(recs) != 1 {
		t.Fatalf("%d records, expected 1", len(recs))
	}
	if !bytes.Equal(recs[0].payload, payload) {
		t.Fatal("payload corrupted")
	}
}

func TestConcurrentRecordsAtomic(t *testing.T) {
	m, c := newTestMonitor(t)
	defer m.Close()

	const producers = 8
	const perProducer = 40

	var wg sync.WaitGroup
	total := 0
	for p := 0; p < producers; p++ {
		for i := 0; i < perProducer; i++ {
			total += recordLen(i*7%150 + 1)
		}
	}

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				b := bytes.Repeat([]byte{id}, i*7%150+1)
				if err := m.Send(uint16(id), b); err != nil {
					t.Errorf("producer %d: %v", id, err)
					return
				}
			}
		}(byte(p + 1))
	}
	wg.Wait()

	recs := splitRecords(t, c.wait(t, total))
	if len(recs) != producers*perProducer {
		t.Fatalf("%d records, expected %d", len(recs), producers*perProducer)
	}

	next := map[uint16]int{}
	for n, r := range recs {
		id := byte(r.h.Opcode)
		for _, v := range r.payload {
			if v != id {
				t.Fatalf("record %d from producer %d holds a byte from producer %d", n, id, v)
			}
		}
		i := next[r.h.Opcode]
		if len(r.payload) != i*7%150+1 {
			t.Fatalf("producer %d record %d out of order: len %d", id, i, len(r.payload))
		}
		next[r.h.Opcode] = i + 1
	}
}

func TestSendSegments(t *testing.T) {
	m, c := newTestMonitor(t)
	defer m.Close()

	segs := [][]byte{{0x02, 0x00}, {}, {0x10, 0x00, 0x0c, 0x00}, bytes.Repeat([]byte{0x55}, 70)}
	if err := m.SendSegments(OpACLTxPkt, segs...); err != nil {
		t.Fatal(err)
	}

	exp := bytes.Join(segs, nil)
	recs := splitRecords(t, c.wait(t, recordLen(len(exp))))
	if len(recs) != 1 {
		t.Fatalf("%d records, expected a single header", len(recs))
	}
	if recs[0].h.Opcode != OpACLTxPkt {
		t.Fatalf("opcode %d", recs[0].h.Opcode)
	}
	if int(recs[0].h.DataLen) != len(exp)+hdr.HdrLen+4 {
		t.Fatalf("data_len %d for %d payload bytes", recs[0].h.DataLen, len(exp))
	}
	if !bytes.Equal(recs[0].payload, exp) {
		t.Fatalf("payload [% x], expected [% x]", recs[0].payload, exp)
	}
}

func TestNewIndex(t *testing.T) {
	m, c := newTestMonitor(t)
	defer m.Close()

	addr, _ := ParseAddr("C0:FF:EE:00:11:22")
	tests := []struct {
		name string
		exp  [IndexNameLen]byte
	}{
		{"nimble", [IndexNameLen]byte{'n', 'i', 'm', 'b', 'l', 'e', 0, 0}},
		{"1234567", [IndexNameLen]byte{'1', '2', '3', '4', '5', '6', '7', 0}},
		{"a-very-long-controller-name", [IndexNameLen]byte{'a', '-', 'v', 'e', 'r', 'y', '-', 0}},
		{"ab\x00cd", [IndexNameLen]byte{'a', 'b', 0, 0, 0, 0, 0, 0}},
	}

	for _, tc := range tests {
		if err := m.NewIndex(BusUART, addr, tc.name); err != nil {
			t.Fatal(err)
		}
	}

	recs := splitRecords(t, c.wait(t, len(tests)*recordLen(NewIndexLen)))
	for i, tc := range tests {
		r := recs[i]
		if r.h.Opcode != OpNewIndex {
			t.Fatalf("%q: opcode %d", tc.name, r.h.Opcode)
		}
		if len(r.payload) != NewIndexLen {
			t.Fatalf("%q: payload %d bytes, expected %d", tc.name, len(r.payload), NewIndexLen)
		}
		if r.payload[0] != 0 || r.payload[1] != BusUART {
			t.Fatalf("%q: type/bus [% x]", tc.name, r.payload[:2])
		}
		if !bytes.Equal(r.payload[2:8], []byte{0x22, 0x11, 0x00, 0xee, 0xff, 0xc0}) {
			t.Fatalf("%q: addr [% x]", tc.name, r.payload[2:8])
		}
		if !bytes.Equal(r.payload[8:], tc.exp[:]) {
			t.Fatalf("%q: name [% x], expected [% x]", tc.name, r.payload[8:], tc.exp)
		}
	}
}

func TestIndexLifecycle(t *testing.T) {
	m, c := newTestMonitor(t)
	defer m.Close()

	m.OpenIndex()
	m.CloseIndex()
	m.DelIndex()

	recs := splitRecords(t, c.wait(t, 3*recordLen(0)))
	for i, op := range []uint16{OpOpenIndex, OpCloseIndex, OpDelIndex} {
		if recs[i].h.Opcode != op || len(recs[i].payload) != 0 {
			t.Fatalf("record %d: opcode %d len %d", i, recs[i].h.Opcode, len(recs[i].payload))
		}
	}
}

func TestPacketHelpers(t *testing.T) {
	m, c := newTestMonitor(t)
	defer m.Close()

	m.SendCommand([]byte{0x03, 0x0c, 0x00})
	m.SendEvent([]byte{0x0e, 0x04, 0x01, 0x03, 0x0c, 0x00})
	m.SendACL(DirTx, []byte{0x40, 0x00}, []byte{0x01, 0x00, 0xaa})
	m.SendACL(DirRx, []byte{0x40, 0x20, 0x00, 0x00})
	m.SendSCO(DirRx, []byte{0x01})

	exp := []uint16{OpCommandPkt, OpEventPkt, OpACLTxPkt, OpACLRxPkt, OpSCORxPkt}
	n := recordLen(3) + recordLen(6) + recordLen(5) + recordLen(4) + recordLen(1)
	recs := splitRecords(t, c.wait(t, n))
	for i, op := range exp {
		if recs[i].h.Opcode != op {
			t.Fatalf("record %d: %s, expected %s", i, OpName(recs[i].h.Opcode), OpName(op))
		}
	}
}

func TestUserLog(t *testing.T) {
	m, c := newTestMonitor(t, OptIdent("app"))
	defer m.Close()

	if err := m.Logf(PriWarning, "conn %d lost", 7); err != nil {
		t.Fatal(err)
	}

	exp := append([]byte{byte(PriWarning), 4}, "app\x00conn 7 lost\x00"...)
	recs := splitRecords(t, c.wait(t, recordLen(len(exp))))
	if recs[0].h.Opcode != OpUserLogging {
		t.Fatalf("opcode %d", recs[0].h.Opcode)
	}
	if !bytes.Equal(recs[0].payload, exp) {
		t.Fatalf("payload %q, expected %q", recs[0].payload, exp)
	}
}

func TestSystemNote(t *testing.T) {
	m, c := newTestMonitor(t)
	defer m.Close()

	m.SystemNote("boot")
	recs := splitRecords(t, c.wait(t, recordLen(5)))
	if recs[0].h.Opcode != OpSystemNote || string(recs[0].payload) != "boot\x00" {
		t.Fatalf("note %d %q", recs[0].h.Opcode, recs[0].payload)
	}
}

func TestSendBeforeInit(t *testing.T) {
	m, err := New(OptTransport(uart.Open(&capture{})), OptLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Send(OpEventPkt, []byte{1}); err != ErrNotInitialized {
		t.Fatalf("got %v, expected ErrNotInitialized", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close of uninitialized monitor: %v", err)
	}
}

func TestInitFailure(t *testing.T) {
	fail := func(uart.Conf) (uart.Device, error) {
		return nil, fmt.Errorf("no such port")
	}
	m, err := New(OptTransport(fail), OptLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Init(); err == nil {
		t.Fatal("no error when transport fails to open")
	}
	if err := m.Send(OpEventPkt, []byte{1}); err != ErrNotInitialized {
		t.Fatalf("got %v after failed init, expected ErrNotInitialized", err)
	}

	m.Option(OptTransport(uart.Open(&capture{})))
	if err := m.Init(); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if err := m.Init(); err != ErrAlreadyInitialized {
		t.Fatalf("got %v, expected ErrAlreadyInitialized", err)
	}
	m.Close()
}

func TestNoTransport(t *testing.T) {
	m, _ := New(OptLogger(quietLogger()))
	if err := m.Init(); err == nil {
		t.Fatal("no error without a transport")
	}
}

func TestBadOptions(t *testing.T) {
	for i, o := range []Option{OptRingSize(48), OptTransport(nil), OptClock(nil), OptSerialPort("", 0), OptSocket("", 0)} {
		if _, err := New(o); err == nil {
			t.Fatalf("option %d: no error", i)
		}
	}
}

func TestClose(t *testing.T) {
	m, c := newTestMonitor(t)

	m.Send(OpEventPkt, []byte{1, 2, 3})
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if !c.closed {
		t.Fatal("transport not closed")
	}
	if len(c.Bytes()) != recordLen(3) {
		t.Fatalf("close lost queued bytes: have %d", len(c.Bytes()))
	}
	if err := m.Send(OpEventPkt, nil); err != ErrClosed {
		t.Fatalf("got %v, expected ErrClosed", err)
	}
	if err := m.Init(); err != ErrClosed {
		t.Fatalf("got %v, expected ErrClosed", err)
	}
}

func TestTooLong(t *testing.T) {
	m, _ := newTestMonitor(t)
	defer m.Close()

	err := m.SendSegments(OpVendorDiag, make([]byte, hdr.MaxPayload), []byte{0})
	if errors.Cause(err) != ErrTooLong {
		t.Fatalf("got %v, expected ErrTooLong", err)
	}
}

// syncDev drains inline from StartTx.
type syncDev struct {
	mu     sync.Mutex
	txChar uart.TxCharFunc
	out    []byte
}

func (d *syncDev) StartTx() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		c, ok := d.txChar()
		if !ok {
			return
		}
		d.out = append(d.out, c)
	}
}

func (d *syncDev) Close() error { return nil }

func TestSynchronousTransport(t *testing.T) {
	d := &syncDev{}
	open := func(conf uart.Conf) (uart.Device, error) {
		d.txChar = conf.TxChar
		return d, nil
	}

	m, err := New(OptTransport(open), OptRingSize(4), OptLogger(quietLogger()), OptClock(&clock.Fixed{Wall: testWall}))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}

	payload := bytes.Repeat([]byte{0x77}, 50)
	if err := m.Send(OpVendorDiag, payload); err != nil {
		t.Fatal(err)
	}

	recs := splitRecords(t, d.out)
	if len(recs) != 1 || !bytes.Equal(recs[0].payload, payload) {
		t.Fatalf("got %d records", len(recs))
	}
}

// idleDev never drains.
type idleDev struct{}

func (idleDev) StartTx()     {}
func (idleDev) Close() error { return nil }

func TestStalledTransport(t *testing.T) {
	open := func(uart.Conf) (uart.Device, error) { return idleDev{}, nil }
	m, _ := New(OptTransport(open), OptLogger(quietLogger()))
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}

	// fits in the ring: returns even though nothing drains
	if err := m.Send(OpEventPkt, make([]byte, 10)); err != nil {
		t.Fatal(err)
	}

	// does not fit: blocks until the monitor is closed
	done := make(chan error, 1)
	go func() {
		done <- m.Send(OpEventPkt, make([]byte, 100))
	}()

	select {
	case <-done:
		t.Fatal("send returned while the transport is stalled")
	case <-time.After(50 * time.Millisecond):
	}

	m.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked send returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("blocked send never released by close")
	}
}

func TestTransportTag(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	addr := ln.Addr().String()

	l, hook := logtest.NewNullLogger()
	m, err := New(OptSocket(addr, time.Second), OptLogger(NewLogger(l)))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	m.Close()

	entries := hook.AllEntries()
	if len(entries) == 0 {
		t.Fatal("nothing logged")
	}
	for _, e := range entries {
		if e.Data["transport"] != "tcp:"+addr {
			t.Fatalf("%q logged with transport %v, expected tcp:%s", e.Message, e.Data["transport"], addr)
		}
	}
}
