package pinpad

import (
	"github.com/arloliu/go-poslink/logger"
	"github.com/arloliu/go-poslink/poslink"
)

// writer writes encoded frames and handshake bytes. It never retries;
// retry decisions belong to the engine.
type writer struct {
	conn    *conn
	cfg     *Config
	logger  logger.Logger
	metrics *ClientMetrics
}

func newWriter(c *conn) *writer {
	return &writer{conn: c, cfg: c.cfg, logger: c.logger, metrics: c.metrics}
}

func (w *writer) writeFrame(frame []byte) error {
	if w.cfg.packetLogging {
		w.logger.Debug("pinpad: tx", "len", len(frame), "data", poslink.Printable(frame))
	}
	if err := w.conn.writeAll(frame); err != nil {
		return err
	}
	w.metrics.incFrameSendCount()

	return nil
}

func (w *writer) writeAck() error {
	return w.writeControl(poslink.ACK)
}

func (w *writer) writeNak() error {
	if err := w.writeControl(poslink.NAK); err != nil {
		return err
	}
	w.metrics.incNakSendCount()

	return nil
}

func (w *writer) writeControl(b byte) error {
	if w.cfg.packetLogging {
		w.logger.Debug("pinpad: tx", "len", 1, "data", poslink.Printable([]byte{b}))
	}

	return w.conn.writeByte(b)
}
