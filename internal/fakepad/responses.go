package fakepad

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-poslink/poslink"
)

// Approval texts.
const (
	ApprovedText  = "APPROVED"
	DeclinedText  = "DECLINED"
	CancelledText = "CANCELLED"
)

// PollReply returns the fields of a poll response to req.
func PollReply(req *Frame, status poslink.DeviceStatus) []string {
	display := "READY"
	if status == poslink.DeviceBusy {
		display = "BUSY"
	}

	return []string{req.Reference(), poslink.TagPoll, req.Merchant(), string(status), display}
}

// TransactionReply returns the fields of a transaction response to req,
// echoing its amounts.
func TransactionReply(req *Frame, code poslink.ResponseCode, display string) []string {
	purchase, cash := "000000.00", "000000.00"
	switch req.Tag() {
	case poslink.TagCashOut:
		cash = req.field(3)
	case poslink.TagPurchase:
		purchase, cash = req.field(3), req.field(4)
	default:
		purchase = req.field(3)
	}

	return []string{
		req.Reference(), req.Tag(), req.Merchant(),
		purchase, cash,
		string(code), display,
		"123456789012", "000001", "411111...1111", "CREDIT",
		"MERCHANT COPY", "CUSTOMER COPY",
	}
}

// ReceiptReply returns the fields of a logon, reprint, settlement or totals response.
func ReceiptReply(req *Frame, code poslink.ResponseCode, display string) []string {
	return []string{req.Reference(), req.Tag(), req.Merchant(), string(code), display, "*** RECEIPT ***"}
}

// ErrorReply returns the fields of an ERR frame for req.
func ErrorReply(req *Frame, code poslink.ResponseCode, display string) []string {
	return []string{req.Reference(), poslink.TagError, req.Merchant(), string(code), display}
}

// Simulator answers like a terminal that approves every request.
//
// Purchases above SignatureOver ask for a signature first and are declined
// when the operator answers NO. A CAN frame cancels a purchase waiting for
// its signature.
type Simulator struct {
	// Display, when set, is sent as a DSP frame before each result.
	Display string
	// SignatureOver enables the signature prompt; zero disables it.
	SignatureOver poslink.Amount

	pending *xsync.MapOf[*Session, *Frame]
}

// NewSimulator creates a simulator.
func NewSimulator(display string, signatureOver poslink.Amount) *Simulator {
	return &Simulator{
		Display:       display,
		SignatureOver: signatureOver,
		pending:       xsync.NewMapOf[*Session, *Frame](),
	}
}

// Handle implements Handler.
func (sim *Simulator) Handle(s *Session, f *Frame) {
	switch {
	case f.Control != 0:
		return
	case f.Err != nil:
		s.Nak()
		return
	}
	s.Ack()

	switch tag := f.Tag(); tag {
	case poslink.TagPoll:
		status := poslink.DeviceReady
		if _, busy := sim.pending.Load(s); busy {
			status = poslink.DeviceBusy
		}
		s.Send(PollReply(f, status)...)

	case poslink.TagSignature, poslink.TagAsk:
		req, ok := sim.pending.LoadAndDelete(s)
		if !ok {
			return
		}
		if f.field(3) == poslink.AnswerYes {
			s.Send(TransactionReply(req, poslink.ResponseAccepted, ApprovedText)...)
		} else {
			s.Send(TransactionReply(req, poslink.ResponseDeclined, DeclinedText)...)
		}

	case poslink.TagCancel:
		if req, ok := sim.pending.LoadAndDelete(s); ok {
			s.Send(TransactionReply(req, poslink.ResponseTransactionCancelled, CancelledText)...)
		}

	case poslink.TagPurchase, poslink.TagCashOut, poslink.TagRefund,
		poslink.TagManualPurchase, poslink.TagManualRefund, poslink.TagCheque,
		poslink.TagTipPreAuth, poslink.TagTipPreAuthManual:
		sim.display(s, f)
		if tag == poslink.TagPurchase && sim.SignatureOver > 0 && sim.amount(f) > sim.SignatureOver {
			sim.pending.Store(s, f)
			s.Send(f.Reference(), poslink.TagSignature, f.Merchant(), "SIGNATURE OK?", "SIGN HERE: ________")

			return
		}
		s.Send(TransactionReply(f, poslink.ResponseAccepted, ApprovedText)...)

	case poslink.TagLogon, poslink.TagReprintReceipt, poslink.TagSettlement,
		poslink.TagSettlementEnquiry, poslink.TagTerminalTotals:
		sim.display(s, f)
		s.Send(ReceiptReply(f, poslink.ResponseAccepted, ApprovedText)...)

	case poslink.TagQueryCard:
		s.Send(f.Reference(), tag, f.Merchant(), string(poslink.ResponseAccepted), ApprovedText,
			";4111111111111111=29122011234567890?", "")

	case poslink.TagTipAdd:
		s.Send(f.Reference(), tag, f.Merchant(), f.field(3), f.field(4),
			string(poslink.ResponseAccepted), ApprovedText)

	case poslink.TagTipVoid:
		s.Send(f.Reference(), tag, f.Merchant(), f.field(3),
			string(poslink.ResponseAccepted), ApprovedText, "MERCHANT COPY", "CUSTOMER COPY")

	case poslink.TagTipBatchUpload:
		s.Send(f.Reference(), tag, f.Merchant(),
			string(poslink.ResponseAccepted), ApprovedText, "MERCHANT COPY", "CUSTOMER COPY")

	default:
		s.Send(ErrorReply(f, poslink.ResponseInvalidRequest, "INVALID REQUEST")...)
	}
}

func (sim *Simulator) display(s *Session, f *Frame) {
	if sim.Display != "" {
		s.Send(f.Reference(), poslink.TagDisplay, f.Merchant(), sim.Display)
	}
}

func (sim *Simulator) amount(f *Frame) poslink.Amount {
	a, err := poslink.ParseAmount(f.field(3))
	if err != nil {
		return 0
	}

	return a
}
