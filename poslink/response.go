package poslink

import (
	"fmt"
	"strconv"
)

// Response is a message received from the terminal.
//
// The set of responses is closed: NewResponse returns one of the concrete
// types in this package, and *UnknownResponse for tags it does not know.
type Response interface {
	// Reference returns the merchant reference, field 0.
	Reference() string
	// MessageType returns the three letter message tag, field 1.
	MessageType() string
	// MerchantID returns the merchant number, field 2.
	MerchantID() int
	// Fields returns the decoded fields the response was built from.
	Fields() []string

	isResponse()
}

// responseHeader holds the fields shared by all responses.
type responseHeader struct {
	fields   []string
	merchant int
}

func (h *responseHeader) Reference() string   { return h.fields[0] }
func (h *responseHeader) MessageType() string { return h.fields[1] }
func (h *responseHeader) MerchantID() int     { return h.merchant }

func (h *responseHeader) Fields() []string {
	out := make([]string, len(h.fields))
	copy(out, h.fields)

	return out
}

func (*responseHeader) isResponse() {}

// fieldParser reads response fields by offset. Missing trailing fields read
// as empty; the first parse failure is kept in err.
type fieldParser struct {
	fields []string
	err    error
}

func (p *fieldParser) text(i int) string {
	if i < len(p.fields) {
		return p.fields[i]
	}

	return ""
}

func (p *fieldParser) amount(i int) Amount {
	v, err := ParseAmount(p.text(i))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%w: field %d: %w", ErrProtocol, i, err)
	}

	return v
}

func (p *fieldParser) code(i int) ResponseCode {
	return ResponseCode(p.text(i))
}

// TransactionResponse is the result of a purchase, cash out, refund, manual
// PAN, cheque or tip pre-authorisation request.
type TransactionResponse struct {
	responseHeader
	PurchaseAmount  Amount
	CashAmount      Amount
	Response        ResponseCode
	Display         string
	BankReference   string
	Stan            string
	TruncatedPan    string
	Account         string
	MerchantReceipt string
	CustomerReceipt string

	// Manual is set when the outcome was asserted by an operator rather
	// than reported by the terminal.
	Manual bool
}

// Accepted reports whether the terminal approved the transaction.
func (r *TransactionResponse) Accepted() bool {
	return r.Response == ResponseAccepted
}

func newTransactionResponse(h responseHeader, p *fieldParser) *TransactionResponse {
	return &TransactionResponse{
		responseHeader:  h,
		PurchaseAmount:  p.amount(3),
		CashAmount:      p.amount(4),
		Response:        p.code(5),
		Display:         p.text(6),
		BankReference:   p.text(7),
		Stan:            p.text(8),
		TruncatedPan:    p.text(9),
		Account:         p.text(10),
		MerchantReceipt: p.text(11),
		CustomerReceipt: p.text(12),
	}
}

// PollResponse reports whether the terminal is ready for a new request.
type PollResponse struct {
	responseHeader
	Status  DeviceStatus
	Display string
}

// Ready reports whether the terminal is idle.
func (r *PollResponse) Ready() bool {
	return r.Status == DeviceReady
}

// ReceiptResponse is the result of logon, reprint, settlement, settlement
// enquiry and terminal totals requests.
type ReceiptResponse struct {
	responseHeader
	Response    ResponseCode
	Display     string
	ReceiptData string
}

// Accepted reports whether the terminal completed the request.
func (r *ReceiptResponse) Accepted() bool {
	return r.Response == ResponseAccepted
}

// QueryCardResponse carries the card tracks read by a query card request.
type QueryCardResponse struct {
	responseHeader
	Response ResponseCode
	Display  string
	Track2   string
	Track1   string
}

// TipAddResponse is the result of a tip add request.
type TipAddResponse struct {
	responseHeader
	PurchaseAmount Amount
	TipAmount      Amount
	Response       ResponseCode
	Display        string
}

// TipVoidResponse is the result of a tip void request.
type TipVoidResponse struct {
	responseHeader
	Amount          Amount
	Response        ResponseCode
	Display         string
	MerchantReceipt string
	CustomerReceipt string
}

// TipBatchUploadResponse is the result of a tip batch upload.
type TipBatchUploadResponse struct {
	responseHeader
	Response        ResponseCode
	Display         string
	MerchantReceipt string
	CustomerReceipt string
}

// DisplayMessage is text the terminal shows to the customer, sent while a
// request is in progress.
type DisplayMessage struct {
	responseHeader
	Text string
}

// AskPrompt is a yes/no question for the operator.
type AskPrompt struct {
	responseHeader
	Prompt string
}

// SignaturePrompt asks the operator to verify the customer's signature on
// the printed receipt.
type SignaturePrompt struct {
	responseHeader
	Prompt      string
	ReceiptText string
}

// ErrorResponse is an error reported by the terminal.
type ErrorResponse struct {
	responseHeader
	Response ResponseCode
	Display  string
}

// Err returns the error as a *ProtocolError.
func (r *ErrorResponse) Err() error {
	return &ProtocolError{Code: r.Response, Display: r.Display}
}

// UnknownResponse is a well formed frame with a tag this package does not know.
type UnknownResponse struct {
	responseHeader
}

func merchantNumber(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	m, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid merchant %q", ErrProtocol, s)
	}

	return m, nil
}
