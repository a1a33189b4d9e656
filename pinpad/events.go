package pinpad

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-poslink/poslink"
)

// DisplaySource tells where a display event originated.
type DisplaySource int

const (
	// SourceClient marks progress messages generated by the client.
	SourceClient DisplaySource = iota
	// SourceTerminal marks DSP frames sent by the terminal.
	SourceTerminal
)

func (s DisplaySource) String() string {
	if s == SourceTerminal {
		return "terminal"
	}

	return "client"
}

// DisplayEvent is a message to show to the operator.
type DisplayEvent struct {
	Source    DisplaySource
	Reference string
	Text      string
}

// DisplayHandler receives display events. It is called on the goroutine
// running the request and must not block.
type DisplayHandler func(DisplayEvent)

// QueryKind tells what an operator query is about.
type QueryKind int

const (
	// QueryAsk is a yes/no question from the terminal (ASK).
	QueryAsk QueryKind = iota
	// QuerySignature asks the operator to verify a signature (SIG).
	QuerySignature
	// QueryTransactionStatus asks whether a transaction whose outcome could
	// not be read from the terminal was accepted.
	QueryTransactionStatus
)

func (k QueryKind) String() string {
	switch k {
	case QueryAsk:
		return "ask"
	case QuerySignature:
		return "signature"
	case QueryTransactionStatus:
		return "transaction-status"
	default:
		return "QueryKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// transactionStatusPrompt is shown when the engine gives up on the terminal.
const transactionStatusPrompt = "Unable to read the transaction result. Check the terminal screen: was the transaction accepted?"

var queryIDs atomic.Uint64

// Query is an operator decision the request is waiting for.
//
// The request stays suspended until Answer is called with one of
// AllowedAnswers, or the request context ends.
type Query struct {
	ID             string
	Kind           QueryKind
	Reference      string
	Prompt         string
	ReceiptText    string
	AllowedAnswers []string

	answer   chan string
	answered atomic.Bool

	done     chan struct{}
	doneOnce sync.Once
}

func newQuery(kind QueryKind, reference, prompt, receipt string) *Query {
	return &Query{
		ID:             strconv.FormatUint(queryIDs.Add(1), 10),
		Kind:           kind,
		Reference:      reference,
		Prompt:         prompt,
		ReceiptText:    receipt,
		AllowedAnswers: []string{poslink.AnswerYes, poslink.AnswerNo},
		answer:         make(chan string, 1),
		done:           make(chan struct{}),
	}
}

// Answer resumes the waiting request with answer.
//
// It fails with ErrInvalidAnswer when answer is not one of AllowedAnswers,
// and with ErrQueryAnswered on every call after the first accepted one.
// Answer never blocks and may be called from any goroutine.
func (q *Query) Answer(answer string) error {
	if !slices.Contains(q.AllowedAnswers, answer) {
		return fmt.Errorf("%w: %q, want one of %v", ErrInvalidAnswer, answer, q.AllowedAnswers)
	}
	if !q.answered.CompareAndSwap(false, true) {
		return ErrQueryAnswered
	}
	q.answer <- answer

	return nil
}

// Answered reports whether the query has been answered.
func (q *Query) Answered() bool {
	return q.answered.Load()
}

// Done returns a channel closed once the request stops waiting for the
// query, answered or not. An unanswered query is withdrawn when the request
// ends, for example when its context is cancelled.
func (q *Query) Done() <-chan struct{} {
	return q.done
}

func (q *Query) finish() {
	q.doneOnce.Do(func() { close(q.done) })
}

func (q *Query) wait(ctx context.Context) (string, error) {
	select {
	case a := <-q.answer:
		return a, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// QueryHandler receives operator queries. It may answer synchronously or
// keep the query and call Answer later from another goroutine.
type QueryHandler func(*Query)
