package pinpad

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/go-poslink/internal/pool"
	"github.com/arloliu/go-poslink/poslink"
)

// attemptResult tells run what to do after one exchange.
type attemptResult int

const (
	attemptOK attemptResult = iota
	attemptRetry
	attemptAbort
)

// run drives f to a final outcome: connect, exchange, and reconnect on
// link faults until the request retry limit is reached.
func (c *Client) run(ctx context.Context, f *inflight) (poslink.Response, error) {
	stop := context.AfterFunc(ctx, f.stop)
	defer stop()

	var lastErr error
	connected := false

	for retry := 0; retry <= c.cfg.requestRetryLimit; retry++ {
		if retry > 0 {
			c.metrics.incRetryCount()
			c.logger.Info("pinpad: retrying request",
				"reference", f.req.Reference(),
				"type", f.req.RequestType(),
				"retry", retry,
				"error", lastErr,
			)
			if err := pool.Sleep(ctx, c.cfg.retryDelay); err != nil {
				return c.abort(ctx, f, err)
			}
		}

		s, err := c.connect(ctx, f)
		if err != nil {
			if !connected {
				return nil, fmt.Errorf("%w: %v", ErrConnection, err)
			}
			if ctx.Err() != nil {
				return c.abort(ctx, f, err)
			}
			lastErr = err

			continue
		}
		connected = true

		resp, result, err := c.exchange(ctx, f, s)
		f.endSession(s)

		switch result {
		case attemptOK:
			return resp, nil
		case attemptAbort:
			return c.abort(ctx, f, err)
		}
		lastErr = err
	}

	if !f.written.Load() {
		return nil, fmt.Errorf("%w: request not sent after %d attempts: %v",
			ErrDeviceBusy, c.cfg.requestRetryLimit+1, lastErr)
	}

	return c.escalate(ctx, f, fmt.Errorf("%w: retries exhausted: %v", ErrTransactionFailure, lastErr))
}

// abort ends f with err. A stopped request fails with ErrTransactionFailure
// carrying the stop cause; an undetermined outcome may be escalated.
// A request whose frame was never written cannot have an undetermined
// outcome, so rejected polls end with ErrNacked.
func (c *Client) abort(ctx context.Context, f *inflight, err error) (poslink.Response, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransactionFailure, context.Cause(ctx))
	}
	if errors.Is(err, ErrTransactionFailure) {
		if !f.written.Load() {
			return nil, fmt.Errorf("%w: request not sent: %v", ErrNacked, err)
		}

		return c.escalate(ctx, f, err)
	}

	return nil, err
}

// classify decides whether a failed exchange may be retried on a new connection.
func (c *Client) classify(ctx context.Context, err error) attemptResult {
	if ctx.Err() != nil {
		return attemptAbort
	}
	if errors.Is(err, ErrDeviceBusy) || errors.Is(err, errLinkFault) {
		return attemptRetry
	}

	return attemptAbort
}

// connect dials the terminal, making up to connectAttempts attempts.
func (c *Client) connect(ctx context.Context, f *inflight) (*session, error) {
	c.display(SourceClient, f.req.Reference(), "Connecting")

	var err error
	for attempt := 1; attempt <= c.cfg.connectAttempts; attempt++ {
		if attempt > 1 {
			if serr := pool.Sleep(ctx, c.cfg.retryDelay); serr != nil {
				return nil, serr
			}
		}

		var t Transport
		dialCtx, cancel := context.WithTimeout(ctx, c.cfg.connectTimeout)
		t, err = c.cfg.dialer.Dial(dialCtx)
		cancel()

		if err == nil {
			c.metrics.incConnectCount()
			s := newSession(newConn(t, c.cfg, c.metrics))
			if !f.setSession(s) {
				s.close()
				return nil, fmt.Errorf("request stopped: %w", context.Cause(ctx))
			}
			s.conn.clearInput()
			c.logger.Debug("pinpad: connected", "reference", f.req.Reference(), "attempt", attempt)

			return s, nil
		}

		c.metrics.incConnectFailCount()
		c.logger.Warn("pinpad: connect failed", "attempt", attempt, "error", err)
	}

	return nil, err
}

// exchange performs one attempt of f on s.
//
// Unless the request is itself a poll, the terminal is polled first. A busy
// terminal fails a request not yet written with ErrDeviceBusy; once written
// the terminal may be busy with the request itself. A ready terminal fails
// a cancel with ErrNoTransactionInProgress. Neither sends the request.
func (c *Client) exchange(ctx context.Context, f *inflight, s *session) (poslink.Response, attemptResult, error) {
	req := f.req
	ref := req.Reference()

	if p, ok := req.(*poslink.PollRequest); ok {
		resp, err := c.poll(ctx, s, p)
		if err != nil {
			return nil, c.classify(ctx, err), err
		}

		return resp, attemptOK, nil
	}

	_, isCancel := req.(*poslink.CancelRequest)

	c.display(SourceClient, ref, "Checking terminal status")
	status, err := c.poll(ctx, s, &poslink.PollRequest{
		Header: poslink.Header{MerchantReference: ref, Merchant: req.MerchantID()},
	})
	if err != nil {
		return nil, c.classify(ctx, err), err
	}

	switch {
	case !status.Ready() && !f.written.Load() && !isCancel:
		return nil, attemptAbort, fmt.Errorf("%w: terminal status %s %q", ErrDeviceBusy, status.Status, status.Display)
	case status.Ready() && isCancel:
		return nil, attemptAbort, ErrNoTransactionInProgress
	}

	frame, err := poslink.Encode(req)
	if err != nil {
		return nil, attemptAbort, err
	}

	c.display(SourceClient, ref, "Sending request")
	f.written.Store(true)
	if err := c.sendFrame(ctx, s, frame); err != nil {
		return nil, c.classify(ctx, err), err
	}
	f.sent.Store(true)
	s.startReading()

	resp, err := c.readUntil(ctx, s, req, finalResponse(req), !isCancel)
	if err != nil {
		return nil, c.classify(ctx, err), err
	}

	return resp, attemptOK, nil
}

func (c *Client) poll(ctx context.Context, s *session, p *poslink.PollRequest) (*poslink.PollResponse, error) {
	frame, err := poslink.Encode(p)
	if err != nil {
		return nil, err
	}
	if err := c.sendFrame(ctx, s, frame); err != nil {
		return nil, err
	}

	resp, err := c.readUntil(ctx, s, p, func(r poslink.Response) bool {
		_, ok := r.(*poslink.PollResponse)
		return ok
	}, false)
	if err != nil {
		return nil, err
	}

	return resp.(*poslink.PollResponse), nil
}

// sendFrame writes frame and waits for its acknowledgement, resending on
// NAK. The frame is written at most nackRetryLimit times.
func (c *Client) sendFrame(ctx context.Context, s *session, frame []byte) error {
	s.setLastFrame(frame)

	for attempt := 1; ; attempt++ {
		if err := s.writer.writeFrame(frame); err != nil {
			return err
		}

		err := s.reader.waitForAck(ctx)
		if !errors.Is(err, ErrNacked) {
			return err
		}

		if attempt >= c.cfg.nackRetryLimit {
			return fmt.Errorf("%w: %w %d times: %v", ErrTransactionFailure, errRejected, attempt, ErrNacked)
		}
		c.logger.Debug("pinpad: frame rejected, resending", "attempt", attempt)

		if err := pool.Sleep(ctx, c.cfg.retryDelay); err != nil {
			return err
		}
	}
}

// readUntil reads responses to req until final accepts one.
//
// Display messages and operator prompts are handled in between. With
// checkRef set, a response for another merchant reference is an
// unexpected response; unsolicited polls never are.
func (c *Client) readUntil(ctx context.Context, s *session, req poslink.Request,
	final func(poslink.Response) bool, checkRef bool,
) (poslink.Response, error) {
	nacks := 0

	for {
		resp, err := s.reader.readMessage(ctx)
		if errors.Is(err, ErrNacked) {
			nacks++
			if nacks >= c.cfg.nackRetryLimit {
				return nil, fmt.Errorf("%w: %w %d times: %v", ErrTransactionFailure, errRejected, nacks, ErrNacked)
			}
			if err := pool.Sleep(ctx, c.cfg.retryDelay); err != nil {
				return nil, err
			}
			if err := c.sendFrame(ctx, s, s.getLastFrame()); err != nil {
				return nil, err
			}

			continue
		}
		if err != nil {
			return nil, err
		}
		nacks = 0

		if _, isPoll := resp.(*poslink.PollResponse); checkRef && !isPoll && resp.Reference() != req.Reference() {
			return nil, &UnexpectedResponseError{Response: resp, Reason: "merchant reference mismatch"}
		}

		if final(resp) {
			return resp, nil
		}

		switch r := resp.(type) {
		case *poslink.DisplayMessage:
			c.display(SourceTerminal, r.Reference(), r.Text)

		case *poslink.AskPrompt:
			if err := c.answerPrompt(ctx, s, req, poslink.TagAsk, newQuery(QueryAsk, r.Reference(), r.Prompt, "")); err != nil {
				return nil, err
			}

		case *poslink.SignaturePrompt:
			q := newQuery(QuerySignature, r.Reference(), r.Prompt, r.ReceiptText)
			if err := c.answerPrompt(ctx, s, req, poslink.TagSignature, q); err != nil {
				return nil, err
			}

		case *poslink.ErrorResponse:
			return nil, r.Err()

		case *poslink.PollResponse:
			c.logger.Debug("pinpad: ignoring unsolicited poll response", "status", r.Status)

		default:
			return nil, &UnexpectedResponseError{
				Response: resp,
				Reason:   "not a response to " + req.RequestType(),
			}
		}
	}
}

// answerPrompt asks the operator q and sends the answer to the terminal.
func (c *Client) answerPrompt(ctx context.Context, s *session, req poslink.Request, tag string, q *Query) error {
	answer, err := c.ask(ctx, q)
	if err != nil {
		return err
	}

	frame, err := poslink.Encode(poslink.NewQueryReply(tag, q.Reference, req.MerchantID(), answer))
	if err != nil {
		return err
	}

	return c.sendFrame(ctx, s, frame)
}

// finalResponse returns the predicate accepting the response that completes req.
// A cancel completes with the transaction response of the cancelled request.
func finalResponse(req poslink.Request) func(poslink.Response) bool {
	if _, ok := req.(*poslink.CancelRequest); ok {
		return func(r poslink.Response) bool {
			_, ok := r.(*poslink.TransactionResponse)
			return ok
		}
	}

	return func(r poslink.Response) bool {
		switch r.(type) {
		case *poslink.DisplayMessage, *poslink.AskPrompt, *poslink.SignaturePrompt, *poslink.ErrorResponse:
			return false
		}

		return r.MessageType() == req.RequestType()
	}
}

// escalate resolves an undetermined transaction by asking the operator,
// when configured to. Otherwise failure is returned unchanged.
func (c *Client) escalate(ctx context.Context, f *inflight, failure error) (poslink.Response, error) {
	txn, ok := f.req.(poslink.TransactionRequest)
	if !ok || c.cfg.failureStrategy != FailQueryOperator || ctx.Err() != nil || !f.undetermined(failure) {
		return nil, failure
	}

	c.logger.Warn("pinpad: transaction outcome unknown, asking operator",
		"reference", txn.Reference(),
		"type", txn.RequestType(),
		"error", failure,
	)

	q := newQuery(QueryTransactionStatus, txn.Reference(), transactionStatusPrompt, "")
	answer, err := c.ask(ctx, q)
	if err != nil {
		c.logger.Error("pinpad: operator did not resolve transaction", "reference", txn.Reference(), "error", err)
		return nil, failure
	}

	c.metrics.incManualResponseCount()

	return poslink.NewManualResponse(txn, answer == poslink.AnswerYes), nil
}

// ask hands q to the query handler and waits for the answer.
func (c *Client) ask(ctx context.Context, q *Query) (string, error) {
	defer q.finish()

	handler := c.cfg.queryHandler
	if handler == nil {
		return "", fmt.Errorf("%w: %s prompt %q", ErrUnhandledQuery, q.Kind, q.Prompt)
	}

	c.metrics.incQueryCount()
	c.logger.Info("pinpad: waiting for operator",
		"query", q.ID,
		"kind", q.Kind.String(),
		"reference", q.Reference,
		"prompt", q.Prompt,
	)

	if !c.callHandler("query", func() { handler(q) }) && !q.Answered() {
		return "", fmt.Errorf("%w: query handler panicked", ErrUnhandledQuery)
	}

	return q.wait(ctx)
}

func (c *Client) display(src DisplaySource, ref, text string) {
	if src == SourceTerminal {
		c.logger.Debug("pinpad: terminal display", "reference", ref, "text", text)
	}

	handler := c.cfg.displayHandler
	if handler == nil {
		return
	}
	c.callHandler("display", func() { handler(DisplayEvent{Source: src, Reference: ref, Text: text}) })
}

// callHandler runs fn, recovering a panic. It reports whether fn returned normally.
func (c *Client) callHandler(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("pinpad: handler panicked", "handler", name, "panic", r)
			ok = false
		}
	}()
	fn()

	return true
}
