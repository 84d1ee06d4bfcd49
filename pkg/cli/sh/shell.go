// Package sh provides the interactive bring-up shell.
package sh

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/picoload/pkg/l1/env"
	"github.com/robotalks/picoload/pkg/l1/link"
	"github.com/robotalks/picoload/pkg/l1/port"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *Conn

	// OpenPort opens a port by config, replaceable in tests.
	OpenPort func(port.Config) (*port.Port, error)
}

// Conn is an open port with its reader running.
type Conn struct {
	Port   *port.Port
	Cancel func()
	done   chan struct{}
}

const (
	shellKey     = "$shell"
	noPortPrompt = "[none] > "
)

var (
	evalOnly bool

	commands = []*ishell.Cmd{
		&PortsCmd,
		&OpenCmd,
		&CloseCmd,
		&SendPatternCmd,
		&SendCmd,
		&EchoCmd,
		&MonitorCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Shell:       ishell.New(),
		Config:      conf,
		OpenPort:    port.Open,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(noPortPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requiring an open port.
func MustBeOpen(fn func(c *ishell.Context, p *port.Port)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		conn := ShellFrom(c).Conn
		if conn == nil {
			c.Err(fmt.Errorf("no port open"))
			return
		}
		fn(c, conn.Port)
	}
}

// Open opens a port and starts reading it. An already open port is
// closed first.
func (s *Shell) Open(conf port.Config) error {
	p, err := s.OpenPort(conf)
	if err != nil {
		return err
	}
	s.Close()
	return s.Attach(p, conf.Name)
}

// Attach uses an already opened port.
func (s *Shell) Attach(p *port.Port, name string) error {
	ctx, cancel := context.WithCancel(context.Background())
	conn := &Conn{Port: p, Cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(conn.done)
		if err := p.Run(ctx); err != nil && err != context.Canceled {
			glog.Warningf("%s: %v", name, err)
		}
	}()
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", name))
	return nil
}

// Close closes current port.
func (s *Shell) Close() {
	if conn := s.Conn; conn != nil {
		conn.Cancel()
		conn.Port.Close()
		<-conn.done
		s.Conn = nil
		s.Shell.SetPrompt(noPortPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Close()
	if len(args) > 0 {
		if s.Config.Port != "" {
			if err := s.Open(port.Config{Name: s.Config.Port, BaudRate: s.Config.BaudRate}); err != nil {
				glog.Exitln(err)
			}
		}
		if err := s.Shell.Process(args...); err != nil {
			glog.Exitln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Exitln("command expected")
}

// ParseHexBytes parses arguments like "55 AA 0x01 ff00".
func ParseHexBytes(args []string) ([]byte, error) {
	var data []byte
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.TrimPrefix(arg, "0x"), "0X")
		if len(arg)%2 == 1 {
			arg = "0" + arg
		}
		bs, err := hex.DecodeString(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q", arg)
		}
		data = append(data, bs...)
	}
	return data, nil
}

var (
	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"list", "l"},
		Help:    "list serial ports",
		Func: func(c *ishell.Context) {
			names, err := port.List()
			if err != nil {
				c.Err(err)
				return
			}
			if len(names) == 0 {
				c.Println("No serial ports found")
				return
			}
			detected, _ := port.Detect()
			for _, name := range names {
				if name == detected {
					c.Println(name, "*")
				} else {
					c.Println(name)
				}
			}
		},
	}

	// OpenCmd opens a serial port.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[PORT] [BAUD]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			conf := port.Config{BaudRate: s.Config.BaudRate}
			if len(c.Args) > 0 {
				conf.Name = c.Args[0]
			} else {
				name, err := s.Config.PortName()
				if err != nil {
					c.Err(err)
					return
				}
				conf.Name = name
			}
			if len(c.Args) > 1 {
				baud, err := strconv.Atoi(c.Args[1])
				if err != nil || baud <= 0 {
					c.Err(fmt.Errorf("invalid baud rate %q", c.Args[1]))
					return
				}
				conf.BaudRate = baud
			}
			if err := s.Open(conf); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes current port.
	CloseCmd = ishell.Cmd{
		Name:    "close",
		Aliases: []string{"c"},
		Help:    "close the port",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// SendPatternCmd sends the 256-byte test pattern.
	SendPatternCmd = ishell.Cmd{
		Name: "send-pattern",
		Help: "[SETTLE] send bytes 00..FF after waiting SETTLE (default 2s)",
		Func: MustBeOpen(func(c *ishell.Context, p *port.Port) {
			sender := link.NewSender(p)
			if len(c.Args) > 0 {
				settle, err := time.ParseDuration(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				sender.Settle = settle
			}
			n, err := sender.SendPattern(context.Background())
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("sent %d bytes\n", n)
		}),
	}

	// SendCmd sends a file.
	SendCmd = ishell.Cmd{
		Name: "send",
		Help: "FILE send a program image",
		Func: MustBeOpen(func(c *ishell.Context, p *port.Port) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("FILE expected"))
				return
			}
			sender := link.NewSender(p)
			sender.Settle = 0
			n, err := sender.SendFile(context.Background(), c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("sent %d bytes\n", n)
		}),
	}

	// EchoCmd probes the diagnostic echo.
	EchoCmd = ishell.Cmd{
		Name: "echo",
		Help: "HEX... send bytes and verify they are echoed",
		Func: MustBeOpen(func(c *ishell.Context, p *port.Port) {
			data, err := ParseHexBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if len(data) == 0 {
				data = []byte{0x55, 0xaa, 0x01, 0x02, 0x03}
			}
			p.Drain()
			report, err := link.NewEchoProbe(p).Probe(context.Background(), data)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(report.String())
		}),
	}

	// MonitorCmd dumps what the device sends.
	MonitorCmd = ishell.Cmd{
		Name:    "monitor",
		Aliases: []string{"m"},
		Help:    "[SECS] dump received bytes (default 10)",
		Func: MustBeOpen(func(c *ishell.Context, p *port.Port) {
			secs := 10.0
			if len(c.Args) > 0 {
				v, err := strconv.ParseFloat(c.Args[0], 64)
				if err != nil || v <= 0 {
					c.Err(fmt.Errorf("invalid duration %q", c.Args[0]))
					return
				}
				secs = v
			}
			mon := &link.Monitor{
				R:        p,
				Duration: time.Duration(secs * float64(time.Second)),
				Handler: link.HandleChunkFunc(func(ctx context.Context, chunk link.Chunk) error {
					c.Printf("%s %s\n", chunk.At.Format("15:04:05.000"), link.FormatHex(chunk.Data))
					return nil
				}),
			}
			if err := mon.Run(context.Background()); err != nil {
				c.Err(err)
			}
			c.Printf("%d bytes\n", mon.Total())
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).Run(flag.Args()...)
}
