package uart

import (
	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
)

// DefaultSpeed matches btmon's default tty speed.
const DefaultSpeed = 1000000

// SerialOptions translates conf into go-serial options for the port at path.
func SerialOptions(path string, conf Conf) serial.OpenOptions {
	opts := serial.OpenOptions{
		PortName:          path,
		BaudRate:          conf.Speed,
		DataBits:          conf.DataBits,
		StopBits:          conf.StopBits,
		RTSCTSFlowControl: conf.FlowCtl == FlowCtlRTSCTS,

		// write only; never wait on reads
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	}

	switch conf.Parity {
	case ParityOdd:
		opts.ParityMode = serial.PARITY_ODD
	case ParityEven:
		opts.ParityMode = serial.PARITY_EVEN
	default:
		opts.ParityMode = serial.PARITY_NONE
	}

	if opts.BaudRate == 0 {
		opts.BaudRate = DefaultSpeed
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}

	return opts
}

// Serial returns an OpenFunc for the serial port at path.
func Serial(path string) OpenFunc {
	return func(conf Conf) (Device, error) {
		opts := SerialOptions(path, conf)

		sp, err := serial.Open(opts)
		if err != nil {
			return nil, errors.Wrapf(err, "can't open %v", path)
		}

		s, err := NewStream(sp, conf)
		if err != nil {
			sp.Close()
			return nil, err
		}

		if conf.Log != nil {
			conf.Log.Infof("monitor uart %v opened at %v baud", path, opts.BaudRate)
		}
		return s, nil
	}
}
