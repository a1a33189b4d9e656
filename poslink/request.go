package poslink

// Request is a message sent to the terminal.
//
// Requests are plain records; fields left at their zero value are filled by
// ApplyDefaults before validation.
type Request interface {
	// Reference returns the merchant reference correlating the request and its response.
	Reference() string
	// RequestType returns the three letter message tag.
	RequestType() string
	// MerchantID returns the merchant number, 1 to 8.
	MerchantID() int
	// ApplyDefaults fills unset header and option fields from d.
	ApplyDefaults(d Defaults)
	// Validate checks the request before it is encoded.
	Validate() error
	// Fields returns the wire layout of the request in order.
	Fields() []Field
}

// TransactionRequest is a request that moves money. When the outcome of such
// a request cannot be determined, an operator may assert it and a manual
// response is built with NewManualResponse.
type TransactionRequest interface {
	Request
	// TransactionAmounts returns the purchase and cash amounts echoed in a manual response.
	TransactionAmounts() (purchase, cash Amount)
}

// Defaults supplies the values used for unset request fields.
type Defaults struct {
	Merchant      int
	ReturnReceipt bool
	AllowCredit   bool
	References    ReferenceGenerator
}

// StandardDefaults returns merchant 1, receipts and credit allowed, and the
// process-wide reference generator.
func StandardDefaults() Defaults {
	return Defaults{
		Merchant:      MinMerchant,
		ReturnReceipt: true,
		AllowCredit:   true,
		References:    DefaultReferenceGenerator(),
	}
}

// Header holds the fields common to every request.
type Header struct {
	MerchantReference string
	Merchant          int
}

// Reference returns the merchant reference.
func (h *Header) Reference() string { return h.MerchantReference }

// MerchantID returns the merchant number.
func (h *Header) MerchantID() int { return h.Merchant }

// ApplyDefaults sets the reference and merchant when they are unset.
func (h *Header) ApplyDefaults(d Defaults) {
	if h.MerchantReference == "" && d.References != nil {
		h.MerchantReference = d.References.NextReference()
	}
	if h.Merchant == 0 {
		h.Merchant = d.Merchant
	}
}

func (h *Header) validate() error {
	if h.MerchantReference == "" {
		return invalidArg("merchant reference is required")
	}
	if len(h.MerchantReference) > MaxReferenceLength {
		return invalidArg("merchant reference %q longer than %d characters", h.MerchantReference, MaxReferenceLength)
	}
	if h.Merchant < MinMerchant || h.Merchant > MaxMerchant {
		return invalidArg("merchant %d out of range [%d, %d]", h.Merchant, MinMerchant, MaxMerchant)
	}

	return nil
}

func (h *Header) fields(tag string, body ...Field) []Field {
	out := make([]Field, 0, 3+len(body))
	out = append(out,
		TextField("MerchantReference", MaxReferenceLength, true, h.MerchantReference),
		TextField("RequestType", 3, true, tag),
		TextField("Merchant", 1, true, merchantText(h.Merchant)),
	)

	return append(out, body...)
}

// TxnOptions are the transaction flags sent as the last field of most requests.
type TxnOptions struct {
	ReturnReceipt bool
	AllowCredit   bool
}

// TxnHeader is a Header followed by trailing transaction options.
// A nil Options takes the defaults.
type TxnHeader struct {
	Header
	Options *TxnOptions
}

// ApplyDefaults sets the header fields and options when they are unset.
func (h *TxnHeader) ApplyDefaults(d Defaults) {
	h.Header.ApplyDefaults(d)
	if h.Options == nil {
		h.Options = &TxnOptions{ReturnReceipt: d.ReturnReceipt, AllowCredit: d.AllowCredit}
	}
}

func (h *TxnHeader) fields(tag string, body ...Field) []Field {
	opts := TxnOptions{ReturnReceipt: true, AllowCredit: true}
	if h.Options != nil {
		opts = *h.Options
	}
	out := h.Header.fields(tag, body...)

	return append(out, TextField("TransactionOptions", 2, true, yesNo(opts.ReturnReceipt)+yesNo(opts.AllowCredit)))
}
