// Package fakepad is a scripted POS Link terminal for tests and the
// terminal simulator example.
//
// A Terminal hands out in-memory connections from Dial, or serves TCP
// connections from Serve. Every frame the client sends is recorded and
// passed to a Handler, which answers through the Session.
package fakepad

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-poslink/logger"
	"github.com/arloliu/go-poslink/poslink"
)

// ErrRefused is returned by Dial while dials are being refused.
var ErrRefused = errors.New("fakepad: connection refused")

// Frame is one unit received from the client: a bare ACK or NAK byte, or a
// complete frame.
type Frame struct {
	// Control is ACK or NAK for a handshake byte, and 0 for a frame.
	Control byte
	// Raw holds the frame bytes from STX through the LRC.
	Raw []byte
	// Fields holds the decoded fields when Err is nil.
	Fields []string
	// Err is the decode error of a malformed frame.
	Err error
}

// Tag returns the message tag, or "" for a handshake byte or malformed frame.
func (f *Frame) Tag() string { return f.field(1) }

// Reference returns the merchant reference of the frame.
func (f *Frame) Reference() string { return f.field(0) }

// Merchant returns the merchant field of the frame.
func (f *Frame) Merchant() string { return f.field(2) }

func (f *Frame) field(i int) string {
	if i < len(f.Fields) {
		return f.Fields[i]
	}

	return ""
}

// Handler reacts to a unit received on a session. It runs on the session's
// read goroutine; replies are queued and written in order.
type Handler func(s *Session, f *Frame)

// Terminal is a fake terminal.
type Terminal struct {
	handler Handler
	logger  logger.Logger

	mu         sync.Mutex
	frames     []*Frame
	handshakes []byte
	sessions   []*Session

	counts *xsync.MapOf[string, *atomic.Int64]
	dials  atomic.Int64
	refuse atomic.Int64
}

// New creates a terminal answering with h. A nil h acknowledges frames and
// never replies.
func New(h Handler) *Terminal {
	if h == nil {
		h = AckOnly
	}

	return &Terminal{
		handler: h,
		logger:  logger.Nop(),
		counts:  xsync.NewMapOf[string, *atomic.Int64](),
	}
}

// SetLogger sets the logger used for session events.
func (t *Terminal) SetLogger(l logger.Logger) {
	t.logger = l
}

// RefuseDials makes the next n dials fail with ErrRefused. A negative n
// refuses all dials until RefuseDials(0).
func (t *Terminal) RefuseDials(n int) {
	t.refuse.Store(int64(n))
}

// Dial returns the client end of a new in-memory connection.
func (t *Terminal) Dial(ctx context.Context) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.dials.Add(1)

	for {
		n := t.refuse.Load()
		if n == 0 {
			break
		}
		if n < 0 {
			return nil, ErrRefused
		}
		if t.refuse.CompareAndSwap(n, n-1) {
			return nil, ErrRefused
		}
	}

	local, remote := net.Pipe()
	t.attach(remote)

	return local, nil
}

// Serve accepts connections from ln until ctx is done or ln fails.
func (t *Terminal) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}
		t.logger.Info("fakepad: client connected", "remote", c.RemoteAddr().String())
		t.attach(c)
	}
}

// Dials returns the number of Dial calls.
func (t *Terminal) Dials() int {
	return int(t.dials.Load())
}

// Sessions returns the sessions opened so far, oldest first.
func (t *Terminal) Sessions() []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]*Session(nil), t.sessions...)
}

// Frames returns every frame received so far, excluding handshake bytes.
func (t *Terminal) Frames() []*Frame {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]*Frame(nil), t.frames...)
}

// Handshakes returns the ACK and NAK bytes received so far, in order.
func (t *Terminal) Handshakes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]byte(nil), t.handshakes...)
}

// Tags returns the tags of the received frames in order.
func (t *Terminal) Tags() []string {
	frames := t.Frames()
	tags := make([]string, 0, len(frames))
	for _, f := range frames {
		tags = append(tags, f.Tag())
	}

	return tags
}

// Count returns how many frames with tag have been received.
func (t *Terminal) Count(tag string) int {
	if n, ok := t.counts.Load(tag); ok {
		return int(n.Load())
	}

	return 0
}

// Close closes every session.
func (t *Terminal) Close() {
	for _, s := range t.Sessions() {
		s.Close()
	}
}

func (t *Terminal) record(f *Frame) {
	if f.Control != 0 {
		t.mu.Lock()
		t.handshakes = append(t.handshakes, f.Control)
		t.mu.Unlock()

		return
	}

	t.mu.Lock()
	t.frames = append(t.frames, f)
	t.mu.Unlock()

	n, _ := t.counts.LoadOrCompute(f.Tag(), func() *atomic.Int64 { return new(atomic.Int64) })
	n.Add(1)
}

func (t *Terminal) attach(c net.Conn) *Session {
	s := &Session{
		term: t,
		conn: c,
		out:  make(chan []byte, 64),
		done: make(chan struct{}),
	}

	t.mu.Lock()
	t.sessions = append(t.sessions, s)
	t.mu.Unlock()

	go s.writeLoop()
	go s.readLoop()

	return s
}

// Session is the terminal end of one client connection.
type Session struct {
	term *Terminal
	conn net.Conn
	out  chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// Ack queues an ACK byte.
func (s *Session) Ack() { s.SendRaw([]byte{poslink.ACK}) }

// Nak queues a NAK byte.
func (s *Session) Nak() { s.SendRaw([]byte{poslink.NAK}) }

// Send queues a frame holding fields.
func (s *Session) Send(fields ...string) {
	s.SendRaw(poslink.AppendFrame(nil, fields...))
}

// SendRaw queues data as is.
func (s *Session) SendRaw(data []byte) {
	select {
	case s.out <- data:
	case <-s.done:
	}
}

// Close closes the connection.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) writeLoop() {
	for {
		select {
		case data := <-s.out:
			if _, err := s.conn.Write(data); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) readLoop() {
	defer s.Close()

	r := bufio.NewReader(s.conn)
	for {
		f, err := readUnit(r)
		if err != nil {
			return
		}
		s.term.record(f)
		s.term.handler(s, f)
	}
}

// readUnit reads the next handshake byte or frame, skipping other bytes.
func readUnit(r *bufio.Reader) (*Frame, error) {
	var raw []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}

		if raw == nil {
			switch b {
			case poslink.ACK, poslink.NAK:
				return &Frame{Control: b}, nil
			case poslink.STX:
				raw = []byte{b}
			}

			continue
		}

		raw = append(raw, b)
		switch b {
		case poslink.DLE:
			esc, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			raw = append(raw, esc)
		case poslink.ETX:
			lrc, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			raw = append(raw, lrc)
			fields, derr := poslink.DecodeFrame(raw)

			return &Frame{Raw: raw, Fields: fields, Err: derr}, nil
		}
	}
}

// AckOnly acknowledges every valid frame and rejects malformed ones.
func AckOnly(s *Session, f *Frame) {
	switch {
	case f.Control != 0:
	case f.Err != nil:
		s.Nak()
	default:
		s.Ack()
	}
}
