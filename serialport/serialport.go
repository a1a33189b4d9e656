// Package serialport connects a pinpad.Client to a terminal on a serial
// line (RS-232 or USB serial) instead of TCP.
package serialport

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/arloliu/go-poslink/pinpad"
)

// Default line settings, 9600 8N1.
const (
	DefaultBaudRate = 9600
	DefaultDataBits = 8
)

var supportedBaudRates = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

// Port is the part of serial.Port used by Transport.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

var openPort = func(device string, mode *serial.Mode) (Port, error) {
	return serial.Open(device, mode)
}

// Dialer opens a serial device as a pinpad.Transport.
type Dialer struct {
	device string
	mode   serial.Mode
}

var _ pinpad.Dialer = (*Dialer)(nil)

// Option configures a Dialer.
type Option func(*Dialer) error

// NewDialer creates a dialer for device, e.g. "/dev/ttyUSB0" or "COM3".
func NewDialer(device string, opts ...Option) (*Dialer, error) {
	if device == "" {
		return nil, fmt.Errorf("serialport: device is required")
	}

	d := &Dialer{
		device: device,
		mode: serial.Mode{
			BaudRate: DefaultBaudRate,
			DataBits: DefaultDataBits,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// WithBaudRate sets the line speed.
func WithBaudRate(rate int) Option {
	return func(d *Dialer) error {
		if !slices.Contains(supportedBaudRates, rate) {
			return fmt.Errorf("serialport: unsupported baud rate %d", rate)
		}
		d.mode.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits, 5 to 8.
func WithDataBits(bits int) Option {
	return func(d *Dialer) error {
		if bits < 5 || bits > 8 {
			return fmt.Errorf("serialport: data bits %d out of range [5, 8]", bits)
		}
		d.mode.DataBits = bits
		return nil
	}
}

// WithParity sets the parity mode.
func WithParity(p serial.Parity) Option {
	return func(d *Dialer) error {
		if p < serial.NoParity || p > serial.SpaceParity {
			return fmt.Errorf("serialport: unknown parity %d", p)
		}
		d.mode.Parity = p
		return nil
	}
}

// WithStopBits sets the number of stop bits.
func WithStopBits(s serial.StopBits) Option {
	return func(d *Dialer) error {
		if s < serial.OneStopBit || s > serial.TwoStopBits {
			return fmt.Errorf("serialport: unknown stop bits %d", s)
		}
		d.mode.StopBits = s
		return nil
	}
}

// Device returns the device name.
func (d *Dialer) Device() string { return d.device }

// Mode returns the line settings.
func (d *Dialer) Mode() serial.Mode { return d.mode }

// Dial opens the device and discards any pending input.
func (d *Dialer) Dial(ctx context.Context) (pinpad.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.mode
	port, err := openPort(d.device, &mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", d.device, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("serialport: reset %s: %w", d.device, err)
	}

	return NewTransport(port), nil
}

// Transport adapts a Port to pinpad.Transport. A serial read timeout
// returns no data and no error; Transport reports it as
// os.ErrDeadlineExceeded like a network connection does.
type Transport struct {
	port Port

	mu       sync.Mutex
	deadline time.Time
}

// NewTransport wraps port.
func NewTransport(port Port) *Transport {
	return &Transport{port: port}
}

// SetReadDeadline sets the deadline of future reads. The zero time blocks
// until data arrives.
func (t *Transport) SetReadDeadline(deadline time.Time) error {
	t.mu.Lock()
	t.deadline = deadline
	t.mu.Unlock()

	return nil
}

// Read reads from the port, failing with os.ErrDeadlineExceeded when the
// deadline passes first.
func (t *Transport) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	t.mu.Lock()
	deadline := t.deadline
	t.mu.Unlock()

	if deadline.IsZero() {
		if err := t.port.SetReadTimeout(serial.NoTimeout); err != nil {
			return 0, err
		}
		for {
			n, err := t.port.Read(p)
			if n > 0 || err != nil {
				return n, err
			}
		}
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, os.ErrDeadlineExceeded
	}
	if err := t.port.SetReadTimeout(remaining); err != nil {
		return 0, err
	}

	n, err := t.port.Read(p)
	if n == 0 && err == nil {
		return 0, os.ErrDeadlineExceeded
	}

	return n, err
}

// Write writes p to the port.
func (t *Transport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

// Close closes the port.
func (t *Transport) Close() error {
	return t.port.Close()
}
