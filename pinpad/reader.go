package pinpad

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-poslink/internal/pool"
	"github.com/arloliu/go-poslink/logger"
	"github.com/arloliu/go-poslink/poslink"
)

// ackPollWindow bounds each read while waiting for an acknowledgement.
const ackPollWindow = 250 * time.Millisecond

// reader turns bytes from a conn into responses and acknowledges them.
type reader struct {
	conn    *conn
	writer  *writer
	cfg     *Config
	logger  logger.Logger
	metrics *ClientMetrics
}

func newReader(c *conn, w *writer) *reader {
	return &reader{conn: c, writer: w, cfg: c.cfg, logger: c.logger, metrics: c.metrics}
}

// waitForAck waits for the terminal to acknowledge the last frame sent.
//
// It returns nil on ACK and ErrNacked on NAK. Other bytes are ignored.
// When no ACK or NAK arrives within the ACK timeout, or the transport fails,
// it returns ErrDeviceBusy.
func (r *reader) waitForAck(ctx context.Context) error {
	deadline := time.Now().Add(r.cfg.ackTimeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			r.metrics.incAckTimeoutCount()
			return fmt.Errorf("%w: no acknowledgement within %v", ErrDeviceBusy, r.cfg.ackTimeout)
		}

		b, err := r.conn.readByte(time.Now().Add(min(remaining, ackPollWindow)))
		if err != nil {
			if !isTimeout(err) {
				return fmt.Errorf("%w: waiting for acknowledgement: %w", ErrDeviceBusy, err)
			}
			if err := pool.Sleep(ctx, min(r.cfg.readDelay, time.Until(deadline))); err != nil {
				return err
			}
			continue
		}

		switch b {
		case poslink.ACK:
			r.logRx([]byte{b})
			return nil
		case poslink.NAK:
			r.logRx([]byte{b})
			r.metrics.incNakRecvCount()
			return ErrNacked
		default:
			r.logger.Debug("pinpad: ignoring byte while waiting for acknowledgement", "byte", b)
		}
	}
}

// readMessage returns the next response sent by the terminal.
//
// Valid frames are acknowledged before they are returned. Frames that fail
// to decode are rejected with NAK and skipped, as are frames with an unknown
// tag (after ACK). A bare ACK is skipped; a bare NAK returns ErrNacked.
func (r *reader) readMessage(ctx context.Context) (poslink.Response, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := r.readFrame()
		if err != nil {
			return nil, err
		}

		if len(frame) == 1 {
			switch frame[0] {
			case poslink.ACK:
				continue
			case poslink.NAK:
				r.metrics.incNakRecvCount()
				return nil, ErrNacked
			}
		}

		if len(frame) < poslink.MinFrameLength {
			return nil, fmt.Errorf("%w: %d byte frame is shorter than %d bytes",
				poslink.ErrProtocol, len(frame), poslink.MinFrameLength)
		}

		resp, err := decodeResponse(frame)
		if err != nil {
			r.logger.Warn("pinpad: rejecting malformed frame", "error", err)
			if err := r.writer.writeNak(); err != nil {
				return nil, err
			}
			continue
		}

		if err := r.writer.writeAck(); err != nil {
			return nil, err
		}
		r.metrics.incFrameRecvCount()

		if u, ok := resp.(*poslink.UnknownResponse); ok {
			r.logger.Info("pinpad: skipping message with unknown type",
				"type", u.MessageType(),
				"reference", u.Reference(),
			)
			continue
		}

		return resp, nil
	}
}

func decodeResponse(frame []byte) (poslink.Response, error) {
	fields, err := poslink.DecodeFrame(frame)
	if err != nil {
		return nil, err
	}

	return poslink.NewResponse(fields)
}

// readFrame reads the next candidate from the line: a bare ACK or NAK byte,
// or the bytes of a frame from STX through the LRC. Bytes outside a frame
// are dropped. The whole candidate must arrive within the response timeout.
func (r *reader) readFrame() ([]byte, error) {
	deadline := time.Now().Add(r.cfg.responseTimeout)

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	next := func() (byte, error) {
		b, err := r.conn.readByte(deadline)
		if err != nil {
			return 0, fmt.Errorf("%w: reading response: %w", ErrDeviceBusy, err)
		}
		return b, nil
	}

	inFrame := false
	for {
		b, err := next()
		if err != nil {
			return nil, err
		}

		if !inFrame {
			switch b {
			case poslink.ACK, poslink.NAK:
				r.logRx([]byte{b})
				return []byte{b}, nil
			case poslink.STX:
				inFrame = true
				buf.WriteByte(b)
			default:
				r.logger.Debug("pinpad: dropping byte outside frame", "byte", b)
			}
			continue
		}

		switch b {
		case poslink.STX:
			r.logger.Debug("pinpad: restarting truncated frame", "dropped", buf.Len())
			buf.Reset()
			buf.WriteByte(b)

		case poslink.DLE:
			esc, err := next()
			if err != nil {
				return nil, err
			}
			buf.WriteByte(b)
			buf.WriteByte(esc)

		case poslink.ETX:
			lrc, err := next()
			if err != nil {
				return nil, err
			}
			buf.WriteByte(b)
			buf.WriteByte(lrc)
			frame := bytes.Clone(buf.Bytes())
			r.logRx(frame)

			return frame, nil

		default:
			buf.WriteByte(b)
		}

		if buf.Len() > poslink.MaxFrameLength {
			return nil, fmt.Errorf("%w: frame longer than %d bytes", poslink.ErrProtocol, poslink.MaxFrameLength)
		}
	}
}

func (r *reader) logRx(data []byte) {
	if r.cfg.packetLogging {
		r.logger.Debug("pinpad: rx", "len", len(data), "data", poslink.Printable(data))
	}
}
