package poslink

import (
	"fmt"
)

// NewResponse builds the response held in the decoded fields of a frame.
//
// The concrete type is selected by fields[1]. Unknown tags yield
// *UnknownResponse rather than an error. NewResponse fails with ErrProtocol
// when fewer than three fields are present or a numeric field cannot be parsed.
func NewResponse(fields []string) (Response, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: response has %d fields, want at least 3", ErrProtocol, len(fields))
	}

	merchant, err := merchantNumber(fields[2])
	if err != nil {
		return nil, err
	}

	h := responseHeader{fields: fields, merchant: merchant}
	p := &fieldParser{fields: fields}

	var resp Response
	switch fields[1] {
	case TagPurchase, TagCashOut, TagRefund, TagManualPurchase, TagManualRefund,
		TagCheque, TagTipPreAuth, TagTipPreAuthManual:
		resp = newTransactionResponse(h, p)

	case TagPoll:
		resp = &PollResponse{responseHeader: h, Status: DeviceStatus(p.text(3)), Display: p.text(4)}

	case TagLogon, TagReprintReceipt, TagSettlement, TagSettlementEnquiry, TagTerminalTotals:
		resp = &ReceiptResponse{responseHeader: h, Response: p.code(3), Display: p.text(4), ReceiptData: p.text(5)}

	case TagQueryCard:
		resp = &QueryCardResponse{
			responseHeader: h,
			Response:       p.code(3),
			Display:        p.text(4),
			Track2:         p.text(5),
			Track1:         p.text(6),
		}

	case TagTipAdd:
		resp = &TipAddResponse{
			responseHeader: h,
			PurchaseAmount: p.amount(3),
			TipAmount:      p.amount(4),
			Response:       p.code(5),
			Display:        p.text(6),
		}

	case TagTipVoid:
		resp = &TipVoidResponse{
			responseHeader:  h,
			Amount:          p.amount(3),
			Response:        p.code(4),
			Display:         p.text(5),
			MerchantReceipt: p.text(6),
			CustomerReceipt: p.text(7),
		}

	case TagTipBatchUpload:
		resp = &TipBatchUploadResponse{
			responseHeader:  h,
			Response:        p.code(3),
			Display:         p.text(4),
			MerchantReceipt: p.text(5),
			CustomerReceipt: p.text(6),
		}

	case TagDisplay:
		resp = &DisplayMessage{responseHeader: h, Text: p.text(3)}

	case TagAsk:
		resp = &AskPrompt{responseHeader: h, Prompt: p.text(3)}

	case TagSignature:
		resp = &SignaturePrompt{responseHeader: h, Prompt: p.text(3), ReceiptText: p.text(4)}

	case TagError:
		resp = &ErrorResponse{responseHeader: h, Response: p.code(3), Display: p.text(4)}

	default:
		resp = &UnknownResponse{responseHeader: h}
	}

	if p.err != nil {
		return nil, p.err
	}

	return resp, nil
}

// Display texts of manual responses.
const (
	ManualAcceptedText = "ACCEPTED"
	ManualDeclinedText = "DECLINED"
)

// NewManualResponse builds the response for req whose outcome was asserted
// by an operator. The reference, merchant and amounts are taken from req;
// the response code is 00 when accepted and 01 otherwise. Bank reference,
// card and receipt fields are empty.
func NewManualResponse(req TransactionRequest, accepted bool) *TransactionResponse {
	code, text := ResponseDeclined, ManualDeclinedText
	if accepted {
		code, text = ResponseAccepted, ManualAcceptedText
	}

	purchase, cash := req.TransactionAmounts()
	fields := []string{
		req.Reference(),
		req.RequestType(),
		merchantText(req.MerchantID()),
		padAmount(purchase),
		padAmount(cash),
		string(code),
		text,
		"", "", "", "", "", "",
	}

	resp := newTransactionResponse(
		responseHeader{fields: fields, merchant: req.MerchantID()},
		&fieldParser{fields: fields},
	)
	resp.Manual = true

	return resp
}

func padAmount(a Amount) string {
	v, err := AmountField("", false, a).Value()
	if err != nil {
		return a.String()
	}

	return v
}
