// Package serial owns the USB serial link to the robot: finding the port,
// opening it, writing commands and the control sequences of the robot's
// MicroPython console.
package serial

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	bugserial "go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/muurk/farmlink/internal/logging"
)

// Line settings used by the robot firmware
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 500 * time.Millisecond

	// CommandTerminator is appended to every command
	CommandTerminator = "\r\n"

	// PingPrefix marks heartbeat commands, which are not logged
	PingPrefix = "ping,"
)

// MicroPython REPL control characters
const (
	ctrlA = 0x01 // raw REPL
	ctrlB = 0x02 // normal REPL
	ctrlC = 0x03 // interrupt
	ctrlD = 0x04 // soft reset
)

// interruptDelay separates the bytes of the interrupt sequence
const interruptDelay = 100 * time.Millisecond

// Control sequence names accepted by Port.Control
const (
	ControlRaw       = "raw"
	ControlNormal    = "normal"
	ControlInterrupt = "interrupt"
	ControlReset     = "reset"
)

// ControlNames lists every control sequence, for help text
var ControlNames = []string{ControlRaw, ControlNormal, ControlInterrupt, ControlReset}

// Sender is anything that can deliver a command line to the robot
type Sender interface {
	Send(cmd string) error
}

// Options configures Open
type Options struct {
	BaudRate    int
	ReadTimeout time.Duration
}

// Port is an open link to the robot. Reads belong to the single read loop;
// writes may come from any goroutine and are serialised.
type Port struct {
	path string
	rw   io.ReadWriteCloser

	mu     sync.Mutex
	closed bool
	sleep  func(time.Duration)
}

// Open opens path at 8N1 with the configured baud rate and read timeout. A
// read that times out returns zero bytes and no error.
func Open(path string, opts Options) (*Port, error) {
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}

	sp, err := bugserial.Open(path, &bugserial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   bugserial.NoParity,
		StopBits: bugserial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	if err := sp.SetReadTimeout(opts.ReadTimeout); err != nil {
		_ = sp.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	logging.LogConnection(path, "opened")
	logging.Debug("Serial port configured",
		zap.String("path", path),
		zap.Int("baud", opts.BaudRate),
		zap.Duration("read_timeout", opts.ReadTimeout),
	)
	return NewPort(path, sp), nil
}

// NewPort wraps an already open stream, such as a pipe or a test double
func NewPort(path string, rw io.ReadWriteCloser) *Port {
	return &Port{path: path, rw: rw, sleep: time.Sleep}
}

// Path returns the device path
func (p *Port) Path() string {
	return p.path
}

// Read reads from the robot
func (p *Port) Read(b []byte) (int, error) {
	return p.rw.Read(b)
}

// Send writes cmd followed by CommandTerminator
func (p *Port) Send(cmd string) error {
	if !strings.HasPrefix(cmd, PingPrefix) {
		logging.LogCommand(cmd)
	}
	return p.write([]byte(cmd + CommandTerminator))
}

// Control writes one of the named REPL control sequences
func (p *Port) Control(name string) error {
	logging.Info("Sending control sequence", zap.String("sequence", name))

	switch name {
	case ControlRaw:
		return p.write([]byte{ctrlA})
	case ControlNormal:
		return p.write([]byte{ctrlB})
	case ControlReset:
		return p.write([]byte{ctrlD})
	case ControlInterrupt:
		steps := []byte{ctrlC, ctrlC, ctrlD}
		for i, b := range steps {
			if i > 0 {
				p.sleep(interruptDelay)
			}
			if err := p.write([]byte{b}); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown control sequence %q (valid: %s)", name, strings.Join(ControlNames, ", "))
	}
}

func (p *Port) write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("serial port is closed")
	}
	logging.LogRawBytes("Serial write", data)
	if _, err := p.rw.Write(data); err != nil {
		return fmt.Errorf("failed to write to port: %w", err)
	}
	return nil
}

// Close closes the port. Further sends fail.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	logging.LogConnection(p.path, "closed")
	return p.rw.Close()
}

// IsDisconnect reports whether err means the device went away, as opposed
// to a configuration or permission problem
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}

	if code, ok := portErrorCode(err); ok {
		switch code {
		case bugserial.PortNotFound, bugserial.PortClosed, bugserial.InvalidSerialPort:
			return true
		default:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"device not configured",
		"input/output error",
		"no such device",
		"broken pipe",
		"file already closed",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// portErrorCode unwraps a serial library error, returned either by value or
// by pointer depending on the platform backend
func portErrorCode(err error) (bugserial.PortErrorCode, bool) {
	var ptr *bugserial.PortError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code(), true
	}
	var val bugserial.PortError
	if errors.As(err, &val) {
		return val.Code(), true
	}
	return 0, false
}
