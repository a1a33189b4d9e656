package pinpad

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-poslink/logger"
	"github.com/arloliu/go-poslink/poslink"
)

// Client talks to one POS Link terminal.
//
// A Client runs one request at a time; a request made while another is in
// progress fails with ErrDeviceBusy. The exception is a cancel request,
// which is written to the connection of the request in progress once the
// terminal has accepted that request. Each
// request opens its own connection and closes it when done.
//
// Client is safe for concurrent use.
type Client struct {
	cfg     *Config
	logger  logger.Logger
	metrics *ClientMetrics

	mu     sync.Mutex
	active *inflight
	closed bool
}

// NewClient creates a client with cfg. No connection is made until the
// first request.
func NewClient(cfg *Config) *Client {
	return &Client{
		cfg:     cfg,
		logger:  cfg.logger,
		metrics: &ClientMetrics{},
	}
}

// Config returns the client configuration.
func (c *Client) Config() *Config {
	return c.cfg
}

// Metrics returns the client counters.
func (c *Client) Metrics() *ClientMetrics {
	return c.metrics
}

// Close aborts the request in progress, if any, and makes further requests
// fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	f := c.active
	c.mu.Unlock()

	if f != nil {
		f.cancel(ErrClosed)
	}

	return nil
}

// ProcessRequest sends req to the terminal and returns its final response.
//
// Unset request fields are filled from the configured defaults, and the
// request is validated before anything is sent. The returned error matches
// one of poslink.ErrInvalidArgument, poslink.ErrProtocol, ErrConnection,
// ErrDeviceBusy, ErrNacked, ErrNoTransactionInProgress, ErrUnexpectedResponse,
// ErrUnhandledQuery, ErrTransactionFailure or ErrClosed. Unless ctx ends,
// ErrTransactionFailure is only returned once the request frame has been
// written to the terminal; earlier failures end with ErrConnection,
// ErrDeviceBusy or ErrNacked.
//
// Cancelling ctx closes the connection; the request then fails with
// ErrTransactionFailure since its outcome on the terminal is unknown.
func (c *Client) ProcessRequest(ctx context.Context, req poslink.Request) (poslink.Response, error) {
	c.metrics.incRequestCount()

	resp, err := c.process(ctx, req)
	if err != nil {
		c.metrics.incRequestErrCount()
		c.logger.Debug("pinpad: request failed",
			"reference", req.Reference(),
			"type", req.RequestType(),
			"error", err,
		)
	}

	return resp, err
}

func (c *Client) process(ctx context.Context, req poslink.Request) (poslink.Response, error) {
	if cr, ok := req.(*poslink.CancelRequest); ok {
		if f := c.current(); f != nil {
			return c.cancelInflight(ctx, f, cr)
		}
	}

	if err := c.prepare(req); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	f, err := c.acquire(req, cancel)
	if err != nil {
		return nil, err
	}

	c.metrics.incRequestInflight()
	resp, err := c.run(runCtx, f)
	c.metrics.decRequestInflight()

	c.release(f, resp, err)

	return resp, err
}

func (c *Client) prepare(req poslink.Request) error {
	req.ApplyDefaults(c.cfg.defaults)

	return req.Validate()
}

func (c *Client) current() *inflight {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active
}

func (c *Client) acquire(req poslink.Request, cancel context.CancelCauseFunc) (*inflight, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.active != nil {
		return nil, fmt.Errorf("%w: request %s %s is in progress",
			ErrDeviceBusy, c.active.req.RequestType(), c.active.req.Reference())
	}
	c.active = newInflight(req, cancel)

	return c.active, nil
}

func (c *Client) release(f *inflight, resp poslink.Response, err error) {
	c.mu.Lock()
	if c.active == f {
		c.active = nil
	}
	c.mu.Unlock()

	f.finish(resp, err)
}

// cancelInflight writes cr on the connection of f once the read loop of f
// is running on it, and returns the outcome of f. The read loop of f
// consumes the acknowledgement and the final response. When f reconnects
// before finishing, cr is written again once the read loop resumes on the
// new connection.
func (c *Client) cancelInflight(ctx context.Context, f *inflight, cr *poslink.CancelRequest) (poslink.Response, error) {
	if cr.MerchantReference == "" {
		cr.MerchantReference = f.req.Reference()
	}
	if cr.Merchant == 0 {
		cr.Merchant = f.req.MerchantID()
	}
	if err := c.prepare(cr); err != nil {
		return nil, err
	}

	frame, err := poslink.Encode(cr)
	if err != nil {
		return nil, err
	}

	for {
		s, changed := f.watch()

		var reading <-chan struct{}
		if s != nil {
			reading = s.reading
		}

		select {
		case <-reading:
		case <-changed:
			continue
		case <-f.done:
			return f.resp, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		select {
		case <-f.done:
			return f.resp, f.err
		default:
		}

		c.logger.Info("pinpad: cancelling request in progress", "reference", f.req.Reference())
		c.display(SourceClient, cr.Reference(), "Cancelling")

		s.setLastFrame(frame)
		if err := s.writer.writeFrame(frame); err != nil {
			c.logger.Debug("pinpad: cancel not written", "reference", f.req.Reference(), "error", err)
		}

		select {
		case <-f.done:
			return f.resp, f.err
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Do runs req and returns its response as T. A response of another type
// fails with ErrUnexpectedResponse.
func Do[T poslink.Response](ctx context.Context, c *Client, req poslink.Request) (T, error) {
	var zero T

	resp, err := c.ProcessRequest(ctx, req)
	if err != nil {
		return zero, err
	}

	typed, ok := resp.(T)
	if !ok {
		return zero, &UnexpectedResponseError{Response: resp, Reason: fmt.Sprintf("want %T", zero)}
	}

	return typed, nil
}

// --- Convenience requests ---

// Purchase charges amount to a card, with an optional cash out amount.
func (c *Client) Purchase(ctx context.Context, amount, cash poslink.Amount) (*poslink.TransactionResponse, error) {
	return Do[*poslink.TransactionResponse](ctx, c, &poslink.PurchaseRequest{Amount: amount, CashAmount: cash})
}

// CashOut withdraws amount without a purchase.
func (c *Client) CashOut(ctx context.Context, amount poslink.Amount) (*poslink.TransactionResponse, error) {
	return Do[*poslink.TransactionResponse](ctx, c, &poslink.CashOutRequest{Amount: amount})
}

// Refund refunds amount to a card.
func (c *Client) Refund(ctx context.Context, amount poslink.Amount) (*poslink.TransactionResponse, error) {
	return Do[*poslink.TransactionResponse](ctx, c, &poslink.RefundRequest{Amount: amount})
}

// Logon logs the terminal on to the bank.
func (c *Client) Logon(ctx context.Context) (*poslink.ReceiptResponse, error) {
	return Do[*poslink.ReceiptResponse](ctx, c, &poslink.LogonRequest{})
}

// Poll returns the terminal status.
func (c *Client) Poll(ctx context.Context) (*poslink.PollResponse, error) {
	return Do[*poslink.PollResponse](ctx, c, &poslink.PollRequest{})
}

// Cancel cancels the transaction in progress, either the one running on
// this client or one started elsewhere on the terminal.
func (c *Client) Cancel(ctx context.Context) (*poslink.TransactionResponse, error) {
	return Do[*poslink.TransactionResponse](ctx, c, &poslink.CancelRequest{})
}

// QueryCard reads a card without charging it.
func (c *Client) QueryCard(ctx context.Context) (*poslink.QueryCardResponse, error) {
	return Do[*poslink.QueryCardResponse](ctx, c, &poslink.QueryCardRequest{})
}

// ReprintReceipt reprints the last receipt.
func (c *Client) ReprintReceipt(ctx context.Context) (*poslink.ReceiptResponse, error) {
	return Do[*poslink.ReceiptResponse](ctx, c, &poslink.ReprintReceiptRequest{})
}

// Settle performs the settlement cutover.
func (c *Client) Settle(ctx context.Context) (*poslink.ReceiptResponse, error) {
	return Do[*poslink.ReceiptResponse](ctx, c, &poslink.SettlementRequest{})
}

// SettlementEnquiry returns the settlement totals of date.
func (c *Client) SettlementEnquiry(ctx context.Context, date time.Time) (*poslink.ReceiptResponse, error) {
	return Do[*poslink.ReceiptResponse](ctx, c, &poslink.SettlementEnquiryRequest{Date: date})
}

// TerminalTotals prints the terminal totals, resetting them when reset is set.
func (c *Client) TerminalTotals(ctx context.Context, reset bool) (*poslink.ReceiptResponse, error) {
	return Do[*poslink.ReceiptResponse](ctx, c, &poslink.TerminalTotalsRequest{ResetTotals: reset})
}
