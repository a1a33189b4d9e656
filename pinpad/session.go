package pinpad

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-poslink/poslink"
)

// session is one connection to the terminal and the last frame written on
// it, kept for retransmission after a NAK.
type session struct {
	conn   *conn
	writer *writer
	reader *reader

	mu        sync.Mutex
	lastFrame []byte

	// reading is closed once the read loop for the request has started on
	// this connection.
	reading     chan struct{}
	readingOnce sync.Once
}

func newSession(c *conn) *session {
	w := newWriter(c)

	return &session{conn: c, writer: w, reader: newReader(c, w), reading: make(chan struct{})}
}

func (s *session) startReading() {
	s.readingOnce.Do(func() { close(s.reading) })
}

func (s *session) setLastFrame(frame []byte) {
	s.mu.Lock()
	s.lastFrame = frame
	s.mu.Unlock()
}

func (s *session) getLastFrame() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastFrame
}

func (s *session) close() {
	_ = s.conn.close()
}

// inflight is the request currently owned by a Client.
type inflight struct {
	req    poslink.Request
	cancel context.CancelCauseFunc

	// written is set once the request frame has been put on the wire and
	// sent once the terminal has acknowledged it.
	written atomic.Bool
	sent    atomic.Bool

	// done is closed when resp and err are final.
	done chan struct{}
	resp poslink.Response
	err  error

	mu      sync.Mutex
	sess    *session
	changed chan struct{} // closed and replaced whenever sess changes
	stopped bool
}

func newInflight(req poslink.Request, cancel context.CancelCauseFunc) *inflight {
	return &inflight{
		req:     req,
		cancel:  cancel,
		done:    make(chan struct{}),
		changed: make(chan struct{}),
	}
}

// undetermined reports whether the terminal may have acted on the request
// when it failed with err. A request frame rejected on every write never
// reached the terminal.
func (f *inflight) undetermined(err error) bool {
	if f.sent.Load() {
		return true
	}

	return f.written.Load() && !errors.Is(err, errRejected)
}

// notifyLocked wakes watchers of the live session. f.mu must be held.
func (f *inflight) notifyLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

// watch returns the live session, nil between connections, and a channel
// closed when it changes.
func (f *inflight) watch() (*session, <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.sess, f.changed
}

// setSession installs s as the live session. It fails when the request
// has already been stopped.
func (f *inflight) setSession(s *session) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return false
	}
	f.sess = s
	f.notifyLocked()

	return true
}

// endSession closes s and clears it if it is still the live session.
func (f *inflight) endSession(s *session) {
	f.mu.Lock()
	if f.sess == s {
		f.sess = nil
		f.notifyLocked()
	}
	f.mu.Unlock()

	s.close()
}

// stop closes the live session and refuses new ones. A read blocked on
// the session fails at once.
func (f *inflight) stop() {
	f.mu.Lock()
	f.stopped = true
	s := f.sess
	f.mu.Unlock()

	if s != nil {
		s.close()
	}
}

func (f *inflight) finish(resp poslink.Response, err error) {
	f.resp, f.err = resp, err
	close(f.done)
}
