package uart

// TxCharFunc is called by a device each time it can send another byte.
// It returns false when there is nothing to send; the device then goes
// idle until StartTx is called again.
type TxCharFunc func() (byte, bool)

type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

type FlowCtl int

const (
	FlowCtlNone FlowCtl = iota
	FlowCtlRTSCTS
)

// Conf describes the line and the byte source for a device.
type Conf struct {
	Speed    uint
	DataBits uint
	StopBits uint
	Parity   Parity
	FlowCtl  FlowCtl

	TxChar TxCharFunc

	// Log receives lifecycle and write-error messages. May be nil.
	Log Logger
}

// Logger is the subset of the package logger a device uses.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// Device is an open byte sink.
type Device interface {
	// StartTx asks the device to start pulling bytes through TxChar. It
	// never blocks and may be called from any goroutine.
	StartTx()

	Close() error
}

// OpenFunc opens and configures a device.
type OpenFunc func(Conf) (Device, error)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Errorf(string, ...interface{}) {}
