// Package wsdialog relays pin-pad display events and operator queries to
// browser clients over WebSocket, and routes their answers back.
//
// Messages are JSON objects with a "type" field:
//
//	server → client  {"type":"display","source":"terminal","reference":"1001","text":"PRESENT CARD"}
//	server → client  {"type":"query","id":"7","kind":"signature","reference":"1001","prompt":"SIGNATURE OK?","receipt":"...","answers":["YES","NO"]}
//	client → server  {"type":"answer","id":"7","answer":"YES"}
//	server → client  {"type":"answered","id":"7","answer":"YES"}
//	server → client  {"type":"error","id":"7","error":"..."}
//	server → client  {"type":"withdrawn","id":"7"}
//
// A query is withdrawn when its request stops waiting for an answer, for
// example after a timeout.
//
// A client connecting late first receives the most recent display lines,
// then every pending query.
package wsdialog

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-poslink/internal/queue"
	"github.com/arloliu/go-poslink/logger"
	"github.com/arloliu/go-poslink/pinpad"
)

// Message types.
const (
	TypeDisplay   = "display"
	TypeQuery     = "query"
	TypeAnswer    = "answer"
	TypeAnswered  = "answered"
	TypeError     = "error"
	TypeWithdrawn = "withdrawn"
)

const (
	writeTimeout = 10 * time.Second
	sendBuffer   = 64

	// HistorySize is the number of display messages replayed to new clients.
	HistorySize = 20
)

// Message is the JSON envelope exchanged with clients.
type Message struct {
	Type      string   `json:"type"`
	ID        string   `json:"id,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Source    string   `json:"source,omitempty"`
	Reference string   `json:"reference,omitempty"`
	Text      string   `json:"text,omitempty"`
	Prompt    string   `json:"prompt,omitempty"`
	Receipt   string   `json:"receipt,omitempty"`
	Answers   []string `json:"answers,omitempty"`
	Answer    string   `json:"answer,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Bridge is an http.Handler serving the operator WebSocket.
type Bridge struct {
	upgrader websocket.Upgrader
	logger   logger.Logger

	peers   *xsync.MapOf[*peer, struct{}]
	queries *xsync.MapOf[string, *pinpad.Query]

	// historyMu also orders peer registration against display broadcasts
	historyMu sync.Mutex
	history   queue.Queue[Message]
}

// New creates a bridge. A nil l discards log output.
func New(l logger.Logger) *Bridge {
	if l == nil {
		l = logger.Nop()
	}

	return &Bridge{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  l,
		peers:   xsync.NewMapOf[*peer, struct{}](),
		queries: xsync.NewMapOf[string, *pinpad.Query](),
		history: queue.NewBoundedQueue[Message](HistorySize),
	}
}

// DisplayHandler returns a pinpad.DisplayHandler broadcasting display events.
func (b *Bridge) DisplayHandler() pinpad.DisplayHandler {
	return func(e pinpad.DisplayEvent) {
		msg := Message{
			Type:      TypeDisplay,
			Source:    e.Source.String(),
			Reference: e.Reference,
			Text:      e.Text,
		}

		b.historyMu.Lock()
		defer b.historyMu.Unlock()
		b.history.Enqueue(msg)
		b.broadcast(msg)
	}
}

// QueryHandler returns a pinpad.QueryHandler publishing queries to clients.
// The query is answered by the first valid answer from any client.
func (b *Bridge) QueryHandler() pinpad.QueryHandler {
	return func(q *pinpad.Query) {
		b.queries.Store(q.ID, q)
		b.broadcast(queryMessage(q))
		go b.withdrawWhenDone(q)
	}
}

// withdrawWhenDone drops q once its request stops waiting, telling clients
// when it ended unanswered.
func (b *Bridge) withdrawWhenDone(q *pinpad.Query) {
	<-q.Done()

	if _, ok := b.queries.LoadAndDelete(q.ID); !ok || q.Answered() {
		return
	}
	b.logger.Info("wsdialog: query withdrawn", "id", q.ID, "reference", q.Reference)
	b.broadcast(Message{Type: TypeWithdrawn, ID: q.ID, Reference: q.Reference})
}

// Pending returns the number of unanswered queries.
func (b *Bridge) Pending() int {
	return b.queries.Size()
}

// History returns the display messages a new client would be sent, oldest first.
func (b *Bridge) History() []Message {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	return b.history.Items()
}

// Clients returns the number of connected clients.
func (b *Bridge) Clients() int {
	return b.peers.Size()
}

// Close disconnects every client.
func (b *Bridge) Close() {
	b.peers.Range(func(p *peer, _ struct{}) bool {
		p.close()
		return true
	})
}

// ServeHTTP upgrades the request to a WebSocket and serves it until the
// client disconnects.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("wsdialog: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	p := &peer{conn: conn, send: make(chan Message, sendBuffer), done: make(chan struct{})}

	b.historyMu.Lock()
	for _, msg := range b.history.Items() {
		p.enqueue(msg)
	}
	b.peers.Store(p, struct{}{})
	b.historyMu.Unlock()

	b.logger.Info("wsdialog: client connected", "remote", r.RemoteAddr, "clients", b.peers.Size())

	go p.writeLoop(b.logger)

	b.queries.Range(func(_ string, q *pinpad.Query) bool {
		p.enqueue(queryMessage(q))
		return true
	})

	b.readLoop(p)

	b.peers.Delete(p)
	p.close()
	b.logger.Info("wsdialog: client disconnected", "remote", r.RemoteAddr, "clients", b.peers.Size())
}

func (b *Bridge) readLoop(p *peer) {
	for {
		var msg Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			if isDecodeError(err) {
				p.enqueue(Message{Type: TypeError, Error: "malformed message"})
				continue
			}

			return
		}

		if msg.Type != TypeAnswer {
			p.enqueue(Message{Type: TypeError, ID: msg.ID, Error: "unsupported message type " + msg.Type})
			continue
		}
		b.answer(p, msg)
	}
}

func (b *Bridge) answer(p *peer, msg Message) {
	q, ok := b.queries.Load(msg.ID)
	if !ok {
		p.enqueue(Message{Type: TypeError, ID: msg.ID, Error: "no pending query"})
		return
	}

	if err := q.Answer(msg.Answer); err != nil {
		p.enqueue(Message{Type: TypeError, ID: msg.ID, Error: err.Error()})
		return
	}

	b.queries.Delete(msg.ID)
	b.logger.Info("wsdialog: query answered", "id", msg.ID, "answer", msg.Answer)
	b.broadcast(Message{Type: TypeAnswered, ID: msg.ID, Answer: msg.Answer})
}

func (b *Bridge) broadcast(msg Message) {
	b.peers.Range(func(p *peer, _ struct{}) bool {
		p.enqueue(msg)
		return true
	})
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func queryMessage(q *pinpad.Query) Message {
	return Message{
		Type:      TypeQuery,
		ID:        q.ID,
		Kind:      q.Kind.String(),
		Reference: q.Reference,
		Prompt:    q.Prompt,
		Receipt:   q.ReceiptText,
		Answers:   q.AllowedAnswers,
	}
}

// peer is one connected client. All writes go through writeLoop.
type peer struct {
	conn *websocket.Conn
	send chan Message

	done      chan struct{}
	closeOnce sync.Once
}

// enqueue queues msg, dropping it when the client is not keeping up.
func (p *peer) enqueue(msg Message) {
	select {
	case p.send <- msg:
	case <-p.done:
	default:
	}
}

func (p *peer) writeLoop(l logger.Logger) {
	for {
		select {
		case msg := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteJSON(msg); err != nil {
				l.Debug("wsdialog: write failed", "error", err)
				p.close()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}
