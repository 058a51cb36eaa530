package uart

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// tcpSink bounds each write to the peer by timeout. A zero timeout
// leaves writes unbounded, matching net.DialTimeout.
type tcpSink struct {
	net.Conn
	timeout time.Duration
}

func (s *tcpSink) Write(b []byte) (int, error) {
	if s.timeout > 0 {
		if err := s.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return 0, err
		}
	}
	return s.Conn.Write(b)
}

// Socket returns an OpenFunc that streams to a TCP listener, such as a
// socat bridge in front of btmon. When timeout is positive it bounds the
// dial and each write; zero waits forever. Line settings in Conf are
// ignored.
func Socket(addr string, timeout time.Duration) OpenFunc {
	return func(conf Conf) (Device, error) {
		c, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return nil, errors.Wrapf(err, "can't dial %v", addr)
		}

		s, err := NewStream(&tcpSink{Conn: c, timeout: timeout}, conf)
		if err != nil {
			c.Close()
			return nil, err
		}

		if conf.Log != nil {
			conf.Log.Infof("monitor socket %v connected", addr)
		}
		return s, nil
	}
}
