package main

import (
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rigado/blemon"
	"github.com/rigado/blemon/config"
	"github.com/rigado/blemon/h4"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "blemon"
	app.Usage = "emit btmon trace records over a serial port or socket"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "json config file"},
		cli.StringFlag{Name: "port, p", Usage: "serial port, overrides the config"},
		cli.UintFlag{Name: "baud, b", Usage: "serial speed, overrides the config"},
		cli.StringFlag{Name: "socket, s", Usage: "tcp address to stream to instead of a serial port"},
		cli.BoolFlag{Name: "debug", Usage: "verbose logging"},
	}
	app.Commands = []cli.Command{
		{
			Name:  "announce",
			Usage: "announce and open a controller index",
			Flags: []cli.Flag{
				cli.UintFlag{Name: "bus", Usage: "bus type (0 virtual, 1 usb, 3 uart, ...)"},
				cli.StringFlag{Name: "addr", Usage: "controller address AA:BB:CC:DD:EE:FF"},
				cli.StringFlag{Name: "name", Usage: "controller name, 7 characters max"},
			},
			Action: announce,
		},
		{
			Name:      "send",
			Usage:     "send one record, each hex argument is a payload segment",
			ArgsUsage: "[hex...]",
			Flags: []cli.Flag{
				cli.UintFlag{Name: "opcode", Usage: "record opcode"},
			},
			Action: send,
		},
		{
			Name:      "note",
			Usage:     "add a system note",
			ArgsUsage: "text",
			Action:    note,
		},
		{
			Name:      "log",
			Usage:     "add a user logging record",
			ArgsUsage: "text",
			Flags: []cli.Flag{
				cli.UintFlag{Name: "priority", Value: uint(blemon.PriInfo), Usage: "syslog priority"},
			},
			Action: userLog,
		},
		{
			Name:      "relay",
			Usage:     "trace every packet of a raw H4 stream",
			ArgsUsage: "[file]",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "rx", Usage: "data packets travel controller to host"},
			},
			Action: relay,
		},
	}

	if err := app.Run(os.Args); err != nil {
		blemon.GetLogger().Error(err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return cfg, err
	}

	if c.GlobalIsSet("port") {
		cfg.Port = c.GlobalString("port")
		cfg.Socket = ""
	}
	if c.GlobalIsSet("baud") {
		cfg.Baud = c.GlobalUint("baud")
	}
	if c.GlobalIsSet("socket") {
		cfg.Socket = c.GlobalString("socket")
	}

	return cfg, cfg.Validate()
}

func openMonitor(c *cli.Context, cfg config.Config) (*blemon.Monitor, error) {
	if c.GlobalBool("debug") {
		blemon.SetLogLevelMax()
	}

	m, err := blemon.New(cfg.Options()...)
	if err != nil {
		return nil, err
	}
	if err := m.Init(); err != nil {
		return nil, err
	}

	blemon.SetDefaultMonitor(m)
	return m, nil
}

// run opens the configured monitor, calls fn and flushes.
func run(c *cli.Context, fn func(*blemon.Monitor, config.Config) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	m, err := openMonitor(c, cfg)
	if err != nil {
		return err
	}

	err = fn(m, cfg)
	if cerr := m.Close(); err == nil {
		err = cerr
	}
	return err
}

func announce(c *cli.Context) error {
	return run(c, func(m *blemon.Monitor, cfg config.Config) error {
		if c.IsSet("bus") {
			cfg.Bus = uint8(c.Uint("bus"))
		}
		if c.IsSet("addr") {
			cfg.Addr = c.String("addr")
		}
		if c.IsSet("name") {
			cfg.Name = c.String("name")
		}

		addr, err := blemon.ParseAddr(cfg.Addr)
		if err != nil {
			return err
		}
		if err := m.NewIndex(cfg.Bus, addr, cfg.Name); err != nil {
			return err
		}
		return m.OpenIndex()
	})
}

func send(c *cli.Context) error {
	if !c.IsSet("opcode") {
		return errors.New("--opcode is required")
	}
	op := c.Uint("opcode")
	if op > 0xffff {
		return errors.Errorf("opcode %d out of range", op)
	}

	var segs [][]byte
	for _, a := range c.Args() {
		b, err := hex.DecodeString(strings.Replace(a, ":", "", -1))
		if err != nil {
			return errors.Wrapf(err, "bad hex %q", a)
		}
		segs = append(segs, b)
	}

	return run(c, func(m *blemon.Monitor, _ config.Config) error {
		return m.SendSegments(uint16(op), segs...)
	})
}

func note(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("no note text")
	}
	return run(c, func(m *blemon.Monitor, _ config.Config) error {
		return m.SystemNote(strings.Join(c.Args(), " "))
	})
}

func userLog(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("no log text")
	}
	pri := c.Uint("priority")
	if pri > uint(blemon.PriDebug) {
		return errors.Errorf("priority %d out of range", pri)
	}

	return run(c, func(m *blemon.Monitor, cfg config.Config) error {
		return m.UserLog(blemon.Priority(pri), strings.Join(c.Args(), " "))
	})
}

func relay(c *cli.Context) error {
	var in io.Reader = os.Stdin
	if c.NArg() > 0 {
		f, err := os.Open(c.Args().First())
		if err != nil {
			return errors.Wrap(err, "can't open h4 stream")
		}
		defer f.Close()
		in = f
	}

	dir := blemon.DirTx
	if c.Bool("rx") {
		dir = blemon.DirRx
	}

	return run(c, func(m *blemon.Monitor, _ config.Config) error {
		n, err := relayStream(m, in, dir)
		blemon.GetLogger().Infof("relayed %d packets", n)
		return err
	})
}

// relayStream traces each H4 packet read from r.
func relayStream(m *blemon.Monitor, r io.Reader, dir blemon.Direction) (int, error) {
	var n int
	var serr error
	s := h4.NewSplitter(func(typ byte, pkt []byte) {
		op, ok := h4.Opcode(typ, dir)
		if !ok || serr != nil {
			return
		}
		err := m.Send(op, pkt)
		switch {
		case err == nil:
			n++
		case errors.Cause(err) == blemon.ErrTooLong:
			blemon.GetLogger().Warnf("skipping %s packet: %v", blemon.OpName(op), err)
		default:
			serr = err
		}
	})

	buf := make([]byte, 4096)
	for serr == nil {
		k, err := r.Read(buf)
		s.Write(buf[:k])
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, errors.Wrap(err, "can't read h4 stream")
		}
	}
	return n, serr
}
