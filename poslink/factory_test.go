package poslink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResponse_Transaction(t *testing.T) {
	fields := []string{
		"D25310001", "PUR", "1", "000010.00", "000000.00", "00", "APPROVED",
		"BANKREF", "000123", "411111...1111", "CREDIT", "merchant copy", "customer copy",
	}

	resp, err := NewResponse(fields)
	require.NoError(t, err)

	tr, ok := resp.(*TransactionResponse)
	require.True(t, ok)
	assert.Equal(t, "D25310001", tr.Reference())
	assert.Equal(t, TagPurchase, tr.MessageType())
	assert.Equal(t, 1, tr.MerchantID())
	assert.Equal(t, Dollars(10, 0), tr.PurchaseAmount)
	assert.Equal(t, Amount(0), tr.CashAmount)
	assert.True(t, tr.Accepted())
	assert.Equal(t, "APPROVED", tr.Display)
	assert.Equal(t, "BANKREF", tr.BankReference)
	assert.Equal(t, "000123", tr.Stan)
	assert.Equal(t, "411111...1111", tr.TruncatedPan)
	assert.Equal(t, "CREDIT", tr.Account)
	assert.Equal(t, "merchant copy", tr.MerchantReceipt)
	assert.Equal(t, "customer copy", tr.CustomerReceipt)
	assert.False(t, tr.Manual)
	assert.Equal(t, fields, tr.Fields())
}

func TestNewResponse_TransactionWithoutReceipts(t *testing.T) {
	resp, err := NewResponse([]string{"1", "REF", "2", "000005.00", "000000.00", "01", "DECLINED", "", "", "", ""})
	require.NoError(t, err)

	tr := resp.(*TransactionResponse)
	assert.False(t, tr.Accepted())
	assert.Equal(t, ResponseDeclined, tr.Response)
	assert.Empty(t, tr.MerchantReceipt)
	assert.Empty(t, tr.CustomerReceipt)
}

func TestNewResponse_Variants(t *testing.T) {
	tests := []struct {
		fields []string
		check  func(t *testing.T, r Response)
	}{
		{[]string{"*", "POL", "1", "81", "BUSY"}, func(t *testing.T, r Response) {
			p := r.(*PollResponse)
			assert.False(t, p.Ready())
			assert.Equal(t, DeviceBusy, p.Status)
			assert.Equal(t, "BUSY", p.Display)
		}},
		{[]string{"1", "DSP", "1", "PRESENT CARD"}, func(t *testing.T, r Response) {
			assert.Equal(t, "PRESENT CARD", r.(*DisplayMessage).Text)
		}},
		{[]string{"1", "ASK", "1", "CREDIT?"}, func(t *testing.T, r Response) {
			assert.Equal(t, "CREDIT?", r.(*AskPrompt).Prompt)
		}},
		{[]string{"1", "SIG", "1", "SIGNATURE OK?", "receipt"}, func(t *testing.T, r Response) {
			s := r.(*SignaturePrompt)
			assert.Equal(t, "SIGNATURE OK?", s.Prompt)
			assert.Equal(t, "receipt", s.ReceiptText)
		}},
		{[]string{"1", "ERR", "1", "02", "INVALID REQUEST"}, func(t *testing.T, r Response) {
			e := r.(*ErrorResponse)
			err := e.Err()
			require.ErrorIs(t, err, ErrProtocol)
			var pe *ProtocolError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, ResponseInvalidRequest, pe.Code)
			assert.Equal(t, "INVALID REQUEST", pe.Display)
		}},
		{[]string{"1", "LOG", "1", "00", "LOGON OK", "receipt"}, func(t *testing.T, r Response) {
			l := r.(*ReceiptResponse)
			assert.True(t, l.Accepted())
			assert.Equal(t, "receipt", l.ReceiptData)
		}},
		{[]string{"1", "QCD", "1", "00", "OK", "track2", "track1"}, func(t *testing.T, r Response) {
			q := r.(*QueryCardResponse)
			assert.Equal(t, "track2", q.Track2)
			assert.Equal(t, "track1", q.Track1)
		}},
		{[]string{"1", "TAR", "1", "000025.00", "000003.00", "00", "OK"}, func(t *testing.T, r Response) {
			a := r.(*TipAddResponse)
			assert.Equal(t, Dollars(25, 0), a.PurchaseAmount)
			assert.Equal(t, Dollars(3, 0), a.TipAmount)
		}},
		{[]string{"1", "TVD", "1", "000028.00", "00", "OK", "m", "c"}, func(t *testing.T, r Response) {
			v := r.(*TipVoidResponse)
			assert.Equal(t, Dollars(28, 0), v.Amount)
			assert.Equal(t, "c", v.CustomerReceipt)
		}},
		{[]string{"1", "TBU", "1", "00", "OK"}, func(t *testing.T, r Response) {
			assert.Equal(t, ResponseAccepted, r.(*TipBatchUploadResponse).Response)
		}},
		{[]string{"1", "ZZZ", "1", "x"}, func(t *testing.T, r Response) {
			u := r.(*UnknownResponse)
			assert.Equal(t, "ZZZ", u.MessageType())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.fields[1], func(t *testing.T) {
			resp, err := NewResponse(tt.fields)
			require.NoError(t, err)
			tt.check(t, resp)
		})
	}
}

func TestNewResponse_Errors(t *testing.T) {
	_, err := NewResponse([]string{"1", "PUR"})
	require.ErrorIs(t, err, ErrProtocol)

	_, err = NewResponse([]string{"1", "PUR", "x"})
	require.ErrorIs(t, err, ErrProtocol)

	_, err = NewResponse([]string{"1", "PUR", "1", "12.345"})
	require.ErrorIs(t, err, ErrProtocol)
}

func TestNewManualResponse(t *testing.T) {
	req := &PurchaseRequest{
		TxnHeader:  TxnHeader{Header: Header{MerchantReference: "77", Merchant: 2}},
		Amount:     Dollars(10, 0),
		CashAmount: Dollars(5, 0),
	}

	accepted := NewManualResponse(req, true)
	assert.True(t, accepted.Manual)
	assert.True(t, accepted.Accepted())
	assert.Equal(t, "77", accepted.Reference())
	assert.Equal(t, TagPurchase, accepted.MessageType())
	assert.Equal(t, 2, accepted.MerchantID())
	assert.Equal(t, Dollars(10, 0), accepted.PurchaseAmount)
	assert.Equal(t, Dollars(5, 0), accepted.CashAmount)
	assert.Equal(t, ManualAcceptedText, accepted.Display)
	assert.Empty(t, accepted.BankReference)
	assert.Empty(t, accepted.TruncatedPan)
	assert.Empty(t, accepted.MerchantReceipt)

	declined := NewManualResponse(req, false)
	assert.Equal(t, ResponseDeclined, declined.Response)
	assert.Equal(t, ManualDeclinedText, declined.Display)
	assert.False(t, declined.Accepted())
}

func TestResponseCode_Description(t *testing.T) {
	assert.Equal(t, "transaction cancelled", ResponseTransactionCancelled.Description())
	assert.Equal(t, "unknown response code", ResponseCode("42").Description())
}
