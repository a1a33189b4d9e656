package poslink

import (
	"time"
)

const (
	idLength         = 10
	stanLength       = 6
	cardExpiryLength = 4
	cardNumberLength = 16
)

func idField(id string) Field {
	return TextField("Id", idLength, false, id)
}

func positive(name string, a Amount) error {
	if a <= 0 {
		return invalidArg("%s must be greater than zero, got %s", name, a)
	}

	return nil
}

func nonNegative(name string, a Amount) error {
	if a < 0 {
		return invalidArg("%s must not be negative, got %s", name, a)
	}

	return nil
}

func digits(name, s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return invalidArg("%s must contain digits only", name)
		}
	}

	return nil
}

// --- Transaction requests ---

// PurchaseRequest (PUR) charges a card, optionally with cash out.
type PurchaseRequest struct {
	TxnHeader
	Amount     Amount
	CashAmount Amount
	ID         string
}

var _ TransactionRequest = (*PurchaseRequest)(nil)

// RequestType returns TagPurchase.
func (r *PurchaseRequest) RequestType() string { return TagPurchase }

// TransactionAmounts returns the purchase and cash out amounts, used for
// manual responses.
func (r *PurchaseRequest) TransactionAmounts() (Amount, Amount) { return r.Amount, r.CashAmount }

// Validate checks the header and that Amount is positive and CashAmount
// not negative.
func (r *PurchaseRequest) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}
	if err := positive("purchase amount", r.Amount); err != nil {
		return err
	}

	return nonNegative("cash amount", r.CashAmount)
}

// Fields returns the header, amounts, ID and options in wire order.
func (r *PurchaseRequest) Fields() []Field {
	return r.fields(TagPurchase,
		AmountField("PurchaseAmount", true, r.Amount),
		AmountField("CashAmount", false, r.CashAmount),
		idField(r.ID),
	)
}

// CashOutRequest (CSH) withdraws cash without a purchase.
type CashOutRequest struct {
	TxnHeader
	Amount Amount
	ID     string
}

var _ TransactionRequest = (*CashOutRequest)(nil)

// RequestType implements Request.
func (r *CashOutRequest) RequestType() string { return TagCashOut }

// TransactionAmounts returns the purchase and cash amounts.
func (r *CashOutRequest) TransactionAmounts() (Amount, Amount) { return 0, r.Amount }

// Validate checks the request before it is encoded.
func (r *CashOutRequest) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}

	return positive("cash amount", r.Amount)
}

// Fields returns the wire fields in order.
func (r *CashOutRequest) Fields() []Field {
	return r.fields(TagCashOut, AmountField("CashAmount", true, r.Amount), idField(r.ID))
}

// RefundRequest (REF) refunds an amount to a card.
type RefundRequest struct {
	TxnHeader
	Amount Amount
	ID     string
}

var _ TransactionRequest = (*RefundRequest)(nil)

// RequestType implements Request.
func (r *RefundRequest) RequestType() string { return TagRefund }

// TransactionAmounts returns the purchase and cash amounts.
func (r *RefundRequest) TransactionAmounts() (Amount, Amount) { return r.Amount, 0 }

// Validate checks the request before it is encoded.
func (r *RefundRequest) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}

	return positive("refund amount", r.Amount)
}

// Fields returns the wire fields in order.
func (r *RefundRequest) Fields() []Field {
	return r.fields(TagRefund, AmountField("RefundAmount", true, r.Amount), idField(r.ID))
}

// ManualPanRequest is a purchase (MAN) or refund (MRF) with a keyed card number.
// Empty card details are collected on the terminal.
type ManualPanRequest struct {
	TxnHeader
	Refund     bool
	Amount     Amount
	CardExpiry string // MMyy
	CardNumber string
	ID         string
}

var _ TransactionRequest = (*ManualPanRequest)(nil)

// RequestType returns TagManualRefund with Refund set, otherwise TagManualPurchase.
func (r *ManualPanRequest) RequestType() string {
	if r.Refund {
		return TagManualRefund
	}

	return TagManualPurchase
}

// TransactionAmounts returns the purchase and cash amounts.
func (r *ManualPanRequest) TransactionAmounts() (Amount, Amount) { return r.Amount, 0 }

// Validate checks the request before it is encoded.
func (r *ManualPanRequest) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}
	if err := positive("amount", r.Amount); err != nil {
		return err
	}
	if err := digits("card expiry", r.CardExpiry); err != nil {
		return err
	}

	return digits("card number", r.CardNumber)
}

// Fields returns the wire fields in order.
func (r *ManualPanRequest) Fields() []Field {
	return r.fields(r.RequestType(),
		AmountField("Amount", true, r.Amount),
		TextField("CardExpiryDate", cardExpiryLength, false, r.CardExpiry),
		TextField("CardNumber", cardNumberLength, false, r.CardNumber),
		idField(r.ID),
	)
}

// ChequeAuthorisationRequest (CHQ) authorises a cheque.
type ChequeAuthorisationRequest struct {
	TxnHeader
	Amount        Amount
	BankAndBranch string
	AccountNumber string
	SerialNumber  string
	ID            string
}

var _ TransactionRequest = (*ChequeAuthorisationRequest)(nil)

// RequestType implements Request.
func (r *ChequeAuthorisationRequest) RequestType() string { return TagCheque }

// TransactionAmounts returns the purchase and cash amounts.
func (r *ChequeAuthorisationRequest) TransactionAmounts() (Amount, Amount) { return r.Amount, 0 }

// Validate checks the request before it is encoded.
func (r *ChequeAuthorisationRequest) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}
	if err := positive("cheque amount", r.Amount); err != nil {
		return err
	}
	if len(r.SerialNumber) != 6 {
		return invalidArg("cheque serial number must be 6 characters, got %d", len(r.SerialNumber))
	}

	return nil
}

// Fields returns the wire fields in order.
func (r *ChequeAuthorisationRequest) Fields() []Field {
	return r.fields(TagCheque,
		AmountField("Amount", true, r.Amount),
		PaddedTextField("BankAndBranch", 8, true, r.BankAndBranch),
		PaddedTextField("AccountNumber", 10, true, r.AccountNumber),
		TextField("SerialNumber", 6, true, r.SerialNumber),
		idField(r.ID),
	)
}

// TipPreAuthRequest (TPA) pre-authorises a purchase that may later carry a tip.
// With Manual set it is sent as TPM and carries keyed card details.
type TipPreAuthRequest struct {
	TxnHeader
	Manual     bool
	Amount     Amount
	CardExpiry string
	CardNumber string
	ID         string
}

var _ TransactionRequest = (*TipPreAuthRequest)(nil)

// RequestType returns TagTipPreAuthManual with Manual set, otherwise TagTipPreAuth.
func (r *TipPreAuthRequest) RequestType() string {
	if r.Manual {
		return TagTipPreAuthManual
	}

	return TagTipPreAuth
}

// TransactionAmounts returns the purchase and cash amounts.
func (r *TipPreAuthRequest) TransactionAmounts() (Amount, Amount) { return r.Amount, 0 }

// Validate checks the request before it is encoded.
func (r *TipPreAuthRequest) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}
	if err := positive("purchase amount", r.Amount); err != nil {
		return err
	}
	if !r.Manual && (r.CardExpiry != "" || r.CardNumber != "") {
		return invalidArg("card details are only sent with a manual pre-authorisation")
	}
	if err := digits("card expiry", r.CardExpiry); err != nil {
		return err
	}

	return digits("card number", r.CardNumber)
}

// Fields returns the wire fields in order.
func (r *TipPreAuthRequest) Fields() []Field {
	if !r.Manual {
		return r.fields(TagTipPreAuth, AmountField("PurchaseAmount", true, r.Amount), idField(r.ID))
	}

	return r.fields(TagTipPreAuthManual,
		AmountField("PurchaseAmount", true, r.Amount),
		TextField("CardExpiryDate", cardExpiryLength, false, r.CardExpiry),
		TextField("CardNumber", cardNumberLength, false, r.CardNumber),
		idField(r.ID),
	)
}

// --- Tip requests without a card transaction ---

// TipAddRequest (TAR) adds a tip to a completed purchase.
type TipAddRequest struct {
	TxnHeader
	OriginalAmount Amount
	TipAmount      Amount
	Stan           string
	ID             string
}

// RequestType implements Request.
func (r *TipAddRequest) RequestType() string { return TagTipAdd }

// Validate checks the request before it is encoded.
func (r *TipAddRequest) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}
	if err := positive("original purchase amount", r.OriginalAmount); err != nil {
		return err
	}
	if err := positive("tip amount", r.TipAmount); err != nil {
		return err
	}
	if r.Stan == "" {
		return invalidArg("STAN is required")
	}

	return nil
}

// Fields returns the wire fields in order.
func (r *TipAddRequest) Fields() []Field {
	return r.fields(TagTipAdd,
		AmountField("OriginalPurchaseAmount", true, r.OriginalAmount),
		AmountField("TipAmount", true, r.TipAmount),
		TextField("Stan", stanLength, true, r.Stan),
		idField(r.ID),
	)
}

// TipVoidRequest (TVD) voids a tipped transaction.
type TipVoidRequest struct {
	TxnHeader
	TotalAmount Amount
	Stan        string
	ID          string
}

// RequestType implements Request.
func (r *TipVoidRequest) RequestType() string { return TagTipVoid }

// Validate checks the request before it is encoded.
func (r *TipVoidRequest) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}
	if err := positive("total amount", r.TotalAmount); err != nil {
		return err
	}
	if r.Stan == "" {
		return invalidArg("STAN is required")
	}

	return nil
}

// Fields returns the wire fields in order.
func (r *TipVoidRequest) Fields() []Field {
	return r.fields(TagTipVoid,
		AmountField("TotalAmount", true, r.TotalAmount),
		TextField("Stan", stanLength, true, r.Stan),
		idField(r.ID),
	)
}

// TipBatchUploadRequest (TBU) uploads the pending tip batch.
type TipBatchUploadRequest struct {
	TxnHeader
	ID string
}

// RequestType and Validate implement Request.
func (r *TipBatchUploadRequest) RequestType() string { return TagTipBatchUpload }
func (r *TipBatchUploadRequest) Validate() error     { return r.validate() }

// Fields returns the wire fields in order.
func (r *TipBatchUploadRequest) Fields() []Field {
	return r.fields(TagTipBatchUpload, idField(r.ID))
}

// --- Administrative requests ---

// LogonRequest (LOG) logs the terminal on to the bank.
type LogonRequest struct {
	TxnHeader
	ID string
}

// RequestType, Validate and Fields implement Request.
func (r *LogonRequest) RequestType() string { return TagLogon }
func (r *LogonRequest) Validate() error     { return r.validate() }
func (r *LogonRequest) Fields() []Field     { return r.fields(TagLogon, idField(r.ID)) }

// QueryCardRequest (QCD) reads a card without charging it.
type QueryCardRequest struct {
	TxnHeader
	ID string
}

// RequestType, Validate and Fields implement Request.
func (r *QueryCardRequest) RequestType() string { return TagQueryCard }
func (r *QueryCardRequest) Validate() error     { return r.validate() }
func (r *QueryCardRequest) Fields() []Field     { return r.fields(TagQueryCard, idField(r.ID)) }

// ReprintReceiptRequest (REP) reprints the last receipt.
type ReprintReceiptRequest struct {
	TxnHeader
	ID string
}

// RequestType and Validate implement Request.
func (r *ReprintReceiptRequest) RequestType() string { return TagReprintReceipt }
func (r *ReprintReceiptRequest) Validate() error     { return r.validate() }

// Fields returns the wire fields in order.
func (r *ReprintReceiptRequest) Fields() []Field {
	return r.fields(TagReprintReceipt, idField(r.ID))
}

// SettlementRequest (SET) performs the settlement cutover.
type SettlementRequest struct {
	TxnHeader
	ID string
}

// RequestType, Validate and Fields implement Request.
func (r *SettlementRequest) RequestType() string { return TagSettlement }
func (r *SettlementRequest) Validate() error     { return r.validate() }
func (r *SettlementRequest) Fields() []Field     { return r.fields(TagSettlement, idField(r.ID)) }

// SettlementEnquiryRequest (ENQ) asks for the totals of a past settlement.
type SettlementEnquiryRequest struct {
	TxnHeader
	Date time.Time
	ID   string
}

// RequestType and Validate implement Request.
func (r *SettlementEnquiryRequest) RequestType() string { return TagSettlementEnquiry }
func (r *SettlementEnquiryRequest) Validate() error     { return r.validate() }

// Fields returns the wire fields in order.
func (r *SettlementEnquiryRequest) Fields() []Field {
	return r.fields(TagSettlementEnquiry, DateField("SettlementDate", true, r.Date), idField(r.ID))
}

// TerminalTotalsRequest (TOL) prints the terminal totals, optionally resetting them.
type TerminalTotalsRequest struct {
	TxnHeader
	ResetTotals bool
	ID          string
}

// RequestType and Validate implement Request.
func (r *TerminalTotalsRequest) RequestType() string { return TagTerminalTotals }
func (r *TerminalTotalsRequest) Validate() error     { return r.validate() }

// Fields returns the wire fields in order.
func (r *TerminalTotalsRequest) Fields() []Field {
	return r.fields(TagTerminalTotals, YesNoField("ResetTotals", r.ResetTotals), idField(r.ID))
}

// CancelRequest (CAN) cancels the transaction in progress on the terminal.
type CancelRequest struct {
	TxnHeader
}

// RequestType, Validate and Fields implement Request.
func (r *CancelRequest) RequestType() string { return TagCancel }
func (r *CancelRequest) Validate() error     { return r.validate() }
func (r *CancelRequest) Fields() []Field     { return r.fields(TagCancel) }

// --- Requests without transaction options ---

// PollRequest (POL) asks for the terminal status.
type PollRequest struct {
	Header
}

// RequestType and Validate implement Request.
func (r *PollRequest) RequestType() string { return TagPoll }
func (r *PollRequest) Validate() error     { return r.validate() }

// Fields returns the wire fields in order.
func (r *PollRequest) Fields() []Field {
	return r.fields(TagPoll, TextField("SpecVersion", 3, true, ProtocolVersion))
}

// QueryReply answers an ASK or SIG prompt.
type QueryReply struct {
	Header
	Tag    string
	Answer string
}

// NewQueryReply builds the reply to prompt with the given answer.
func NewQueryReply(tag, reference string, merchant int, answer string) *QueryReply {
	return &QueryReply{
		Header: Header{MerchantReference: reference, Merchant: merchant},
		Tag:    tag,
		Answer: answer,
	}
}

// RequestType returns the tag of the prompt being answered.
func (r *QueryReply) RequestType() string { return r.Tag }

// Validate checks the reference and that Answer is YES or NO.
func (r *QueryReply) Validate() error {
	if err := r.validate(); err != nil {
		return err
	}
	if r.Tag != TagAsk && r.Tag != TagSignature {
		return invalidArg("query reply tag must be %s or %s, got %q", TagAsk, TagSignature, r.Tag)
	}
	if r.Answer != AnswerYes && r.Answer != AnswerNo {
		return invalidArg("query answer must be %s or %s, got %q", AnswerYes, AnswerNo, r.Answer)
	}

	return nil
}

// Fields returns the wire fields in order.
func (r *QueryReply) Fields() []Field {
	return r.fields(r.Tag, TextField("Response", 3, true, r.Answer))
}
