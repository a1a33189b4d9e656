package pinpad

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-poslink/logger"
)

// conn owns the transport of one request exchange.
//
// Reads are made by a single goroutine, the one running the request.
// Writes are serialized, since a cancel may be written by another caller
// while the read loop acknowledges frames.
type conn struct {
	transport Transport
	reader    *bufio.Reader
	cfg       *Config
	logger    logger.Logger
	metrics   *ClientMetrics

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newConn(t Transport, cfg *Config, metrics *ClientMetrics) *conn {
	return &conn{
		transport: t,
		reader:    bufio.NewReader(t),
		cfg:       cfg,
		logger:    cfg.logger,
		metrics:   metrics,
	}
}

// readByte reads a single byte, failing once deadline passes.
func (c *conn) readByte(deadline time.Time) (byte, error) {
	if c.reader.Buffered() == 0 {
		if err := c.transport.SetReadDeadline(deadline); err != nil {
			return 0, err
		}
	}

	return c.reader.ReadByte()
}

// writeAll writes data under the write lock.
func (c *conn) writeAll(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for written := 0; written < len(data); {
		n, err := c.transport.Write(data[written:])
		written += n

		if err != nil {
			return fmt.Errorf("%w: %w", errLinkFault, err)
		}
	}

	return nil
}

// writeByte writes a single handshake byte (ACK or NAK).
func (c *conn) writeByte(b byte) error {
	return c.writeAll([]byte{b})
}

// clearInput discards stale bytes until the line is silent for the clear
// input timeout.
func (c *conn) clearInput() {
	if c.cfg.clearInputTimeout <= 0 {
		return
	}

	buf := make([]byte, 256)
	discarded := c.reader.Buffered()
	_, _ = c.reader.Discard(discarded)

	for {
		if err := c.transport.SetReadDeadline(time.Now().Add(c.cfg.clearInputTimeout)); err != nil {
			break
		}
		n, err := c.reader.Read(buf)
		discarded += n
		if err != nil {
			break
		}
	}

	if discarded > 0 {
		c.logger.Debug("pinpad: discarded stale input", "bytes", discarded)
	}
}

func (c *conn) close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	return c.transport.Close()
}

// isTimeout reports whether err is a read deadline expiry.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error

	return errors.As(err, &ne) && ne.Timeout()
}
