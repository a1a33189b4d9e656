package pinpad

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-poslink/internal/fakepad"
	"github.com/arloliu/go-poslink/poslink"
)

// terminalDialer dials term in memory.
func terminalDialer(term *fakepad.Terminal) Dialer {
	return DialerFunc(func(ctx context.Context) (Transport, error) {
		return term.Dial(ctx)
	})
}

// newTestConfig creates a Config dialing term, with short timeouts suitable for tests.
func newTestConfig(t *testing.T, term *fakepad.Terminal, opts ...Option) *Config {
	t.Helper()

	defaults := []Option{
		WithDialer(terminalDialer(term)),
		WithAckTimeout(200 * time.Millisecond),
		WithResponseTimeout(500 * time.Millisecond),
		WithClearInputTimeout(0),
		WithReadDelay(5 * time.Millisecond),
		WithRetryDelay(5 * time.Millisecond),
		WithReferenceGenerator(poslink.NewSequentialReferences(1000)),
	}

	cfg, err := NewConfig("", 0, append(defaults, opts...)...)
	require.NoError(t, err)

	return cfg
}

// newTestClient creates a client talking to a fake terminal answering with h.
func newTestClient(t *testing.T, h fakepad.Handler, opts ...Option) (*Client, *fakepad.Terminal) {
	t.Helper()

	term := fakepad.New(h)
	t.Cleanup(term.Close)

	client := NewClient(newTestConfig(t, term, opts...))
	t.Cleanup(func() { _ = client.Close() })

	return client, term
}

// newTestSession creates a session on an in-memory connection and returns
// the terminal end of it.
func newTestSession(t *testing.T, opts ...Option) (*session, *fakepad.Session, *fakepad.Terminal) {
	t.Helper()

	term := fakepad.New(func(*fakepad.Session, *fakepad.Frame) {})
	t.Cleanup(term.Close)

	cfg := newTestConfig(t, term, opts...)
	c, err := term.Dial(context.Background())
	require.NoError(t, err)

	s := newSession(newConn(c, cfg, &ClientMetrics{}))
	t.Cleanup(s.close)

	sessions := term.Sessions()
	require.Len(t, sessions, 1)

	return s, sessions[0], term
}

// respond returns a handler acknowledging every frame, answering polls with
// status and passing other requests to reply.
func respond(status poslink.DeviceStatus, reply fakepad.Handler) fakepad.Handler {
	return func(s *fakepad.Session, f *fakepad.Frame) {
		switch {
		case f.Control != 0:
			return
		case f.Err != nil:
			s.Nak()
			return
		}
		s.Ack()

		if f.Tag() == poslink.TagPoll {
			s.Send(fakepad.PollReply(f, status)...)
			return
		}
		if reply != nil {
			reply(s, f)
		}
	}
}

// approve answers transaction requests with an approval.
func approve(s *fakepad.Session, f *fakepad.Frame) {
	s.Send(fakepad.TransactionReply(f, poslink.ResponseAccepted, fakepad.ApprovedText)...)
}

// answerWith returns a query handler answering every query with answer.
func answerWith(answer string, seen *[]*Query) QueryHandler {
	return func(q *Query) {
		if seen != nil {
			*seen = append(*seen, q)
		}
		_ = q.Answer(answer)
	}
}

func waitForCount(t *testing.T, term *fakepad.Terminal, tag string, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return term.Count(tag) >= n
	}, 2*time.Second, 5*time.Millisecond)
}
