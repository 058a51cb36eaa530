package config

import (
	"io/ioutil"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rigado/blemon"
	"github.com/rigado/blemon/uart"
)

// Config is the on-disk monitor configuration.
type Config struct {
	// Port is a serial device path. Socket, when set, takes precedence.
	Port string `json:"port,omitempty"`
	Baud uint   `json:"baud,omitempty"`

	Socket    string `json:"socket,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`

	// controller announced by NewIndex
	Bus  uint8  `json:"bus"`
	Addr string `json:"addr,omitempty"`
	Name string `json:"name,omitempty"`

	Ident    string `json:"ident,omitempty"`
	RingSize int    `json:"ring_size,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Port:      "/dev/ttyACM0",
		Baud:      uart.DefaultSpeed,
		TimeoutMs: 2000,
		Bus:       blemon.BusVirtual,
		Addr:      "00:00:00:00:00:00",
		Name:      "blemon",
		Ident:     blemon.DefaultIdent,
		RingSize:  blemon.DefaultRingSize,
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	c := Default()
	if len(path) == 0 {
		return c, nil
	}

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return c, nil
	}

	in, err := ioutil.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "can't read config")
	}

	if err := jsoniter.Unmarshal(in, &c); err != nil {
		return c, errors.Wrapf(err, "can't parse config %v", path)
	}

	return c, c.Validate()
}

// Store writes c to path.
func (c Config) Store(path string) error {
	out, err := jsoniter.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return ioutil.WriteFile(path, out, 0644)
}

// Validate checks that c describes a usable transport and index.
func (c Config) Validate() error {
	switch {
	case len(c.Port) == 0 && len(c.Socket) == 0:
		return errors.New("config: no port or socket")
	case c.RingSize < 2 || c.RingSize&(c.RingSize-1) != 0:
		return errors.Errorf("config: ring_size %d is not a power of two", c.RingSize)
	case c.TimeoutMs < 0:
		return errors.Errorf("config: negative timeout_ms %d", c.TimeoutMs)
	}

	if _, err := blemon.ParseAddr(c.Addr); err != nil {
		return errors.Wrap(err, "config")
	}
	return nil
}

// Timeout returns the socket write timeout. Zero means no timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Options converts c into monitor options.
func (c Config) Options() []blemon.Option {
	opts := []blemon.Option{
		blemon.OptIdent(c.Ident),
		blemon.OptRingSize(c.RingSize),
	}

	if len(c.Socket) != 0 {
		opts = append(opts, blemon.OptSocket(c.Socket, c.Timeout()))
	} else {
		opts = append(opts, blemon.OptSerialPort(c.Port, c.Baud))
	}

	return opts
}
