package uart

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// bytes pulled before a write is issued
const txChunk = 64

// Stream drives a TxCharFunc into an io.WriteCloser from its own goroutine.
// Bytes are pulled one at a time and written in chunks.
type Stream struct {
	w      io.WriteCloser
	txChar TxCharFunc
	log    Logger

	kick chan struct{}
	idle chan struct{}

	written   uint64
	writeErrs uint64

	done chan struct{}
	cmu  sync.Mutex
	wg   sync.WaitGroup
}

// NewStream starts draining conf.TxChar into w.
func NewStream(w io.WriteCloser, conf Conf) (*Stream, error) {
	if conf.TxChar == nil {
		return nil, errors.New("no tx char callback")
	}

	s := &Stream{
		w:      w,
		txChar: conf.TxChar,
		log:    conf.Log,
		kick:   make(chan struct{}, 1),
		idle:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if s.log == nil {
		s.log = nopLogger{}
	}

	s.wg.Add(1)
	go s.txLoop()

	return s, nil
}

// Open returns an OpenFunc that streams into w.
func Open(w io.WriteCloser) OpenFunc {
	return func(conf Conf) (Device, error) {
		return NewStream(w, conf)
	}
}

// StartTx wakes the drain loop. A kick arriving while the loop is busy is
// kept, so bytes queued after the loop saw an empty source are not missed.
func (s *Stream) StartTx() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Idle returns a channel that receives each time the drain loop runs out
// of bytes.
func (s *Stream) Idle() <-chan struct{} {
	return s.idle
}

// Written returns the number of bytes handed to the writer.
func (s *Stream) Written() uint64 {
	return atomic.LoadUint64(&s.written)
}

// WriteErrors returns the number of failed writes.
func (s *Stream) WriteErrors() uint64 {
	return atomic.LoadUint64(&s.writeErrs)
}

func (s *Stream) Close() error {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	select {
	case <-s.done:
		return nil

	default:
		close(s.done)
		s.wg.Wait()
		err := s.w.Close()
		return errors.Wrap(err, "can't close stream")
	}
}

func (s *Stream) txLoop() {
	defer s.wg.Done()

	buf := make([]byte, 0, txChunk)
	for {
		select {
		case <-s.done:
			return
		case <-s.kick:
		}

		for {
			c, ok := s.txChar()
			if !ok {
				break
			}
			buf = append(buf, c)
			if len(buf) == cap(buf) {
				s.flush(buf)
				buf = buf[:0]
			}
		}

		if len(buf) > 0 {
			s.flush(buf)
			buf = buf[:0]
		}

		select {
		case s.idle <- struct{}{}:
		default:
		}
	}
}

func (s *Stream) flush(b []byte) {
	n, err := s.w.Write(b)
	atomic.AddUint64(&s.written, uint64(n))
	if err != nil {
		atomic.AddUint64(&s.writeErrs, 1)
		s.log.Errorf("monitor tx: dropped %d bytes: %v", len(b)-n, err)
	}
}
