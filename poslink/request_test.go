package poslink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRefs string

func (f fixedRefs) NextReference() string { return string(f) }

func TestApplyDefaults(t *testing.T) {
	d := Defaults{Merchant: 4, ReturnReceipt: false, AllowCredit: true, References: fixedRefs("42")}

	req := &PurchaseRequest{Amount: 100}
	req.ApplyDefaults(d)

	assert.Equal(t, "42", req.Reference())
	assert.Equal(t, 4, req.MerchantID())
	require.NotNil(t, req.Options)
	assert.Equal(t, TxnOptions{ReturnReceipt: false, AllowCredit: true}, *req.Options)

	frame, err := Encode(req)
	require.NoError(t, err)
	fields, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, "NY", fields[len(fields)-1])
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	req := &RefundRequest{
		TxnHeader: TxnHeader{
			Header:  Header{MerchantReference: "mine", Merchant: 2},
			Options: &TxnOptions{ReturnReceipt: true},
		},
		Amount: 5,
	}
	req.ApplyDefaults(StandardDefaults())

	assert.Equal(t, "mine", req.Reference())
	assert.Equal(t, 2, req.MerchantID())
	assert.False(t, req.Options.AllowCredit)
}

func TestPollRequest_HasNoOptions(t *testing.T) {
	req := &PollRequest{Header: Header{MerchantReference: "1", Merchant: 1}}
	req.ApplyDefaults(StandardDefaults())

	frame, err := Encode(req)
	require.NoError(t, err)
	fields, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "POL", "1", ProtocolVersion}, fields)
}

func TestValidate_Rejects(t *testing.T) {
	hdr := TxnHeader{Header: Header{MerchantReference: "1", Merchant: 1}}

	tests := []struct {
		name string
		req  Request
	}{
		{"missing reference", &PurchaseRequest{TxnHeader: TxnHeader{Header: Header{Merchant: 1}}, Amount: 1}},
		{"long reference", &PurchaseRequest{TxnHeader: TxnHeader{Header: Header{MerchantReference: "1234567890123", Merchant: 1}}, Amount: 1}},
		{"merchant zero", &PurchaseRequest{TxnHeader: TxnHeader{Header: Header{MerchantReference: "1"}}, Amount: 1}},
		{"merchant nine", &PurchaseRequest{TxnHeader: TxnHeader{Header: Header{MerchantReference: "1", Merchant: 9}}, Amount: 1}},
		{"zero purchase", &PurchaseRequest{TxnHeader: hdr}},
		{"negative cash", &PurchaseRequest{TxnHeader: hdr, Amount: 1, CashAmount: -1}},
		{"zero cash out", &CashOutRequest{TxnHeader: hdr}},
		{"zero refund", &RefundRequest{TxnHeader: hdr}},
		{"long id", &PurchaseRequest{TxnHeader: hdr, Amount: 1, ID: "12345678901"}},
		{"escaped id too long", &PurchaseRequest{TxnHeader: hdr, Amount: 1, ID: "\x02\x02\x02\x02\x02\x02"}},
		{"amount too wide", &PurchaseRequest{TxnHeader: hdr, Amount: Dollars(1_000_000, 0)}},
		{"card letters", &ManualPanRequest{TxnHeader: hdr, Amount: 1, CardNumber: "41x1"}},
		{"long card", &ManualPanRequest{TxnHeader: hdr, Amount: 1, CardNumber: "12345678901234567"}},
		{"cheque serial", &ChequeAuthorisationRequest{TxnHeader: hdr, Amount: 1, BankAndBranch: "1", AccountNumber: "1", SerialNumber: "12345"}},
		{"cheque bank missing", &ChequeAuthorisationRequest{TxnHeader: hdr, Amount: 1, AccountNumber: "1", SerialNumber: "123456"}},
		{"tip add no stan", &TipAddRequest{TxnHeader: hdr, OriginalAmount: 1, TipAmount: 1}},
		{"tip add zero tip", &TipAddRequest{TxnHeader: hdr, OriginalAmount: 1, Stan: "1"}},
		{"tip void no stan", &TipVoidRequest{TxnHeader: hdr, TotalAmount: 1}},
		{"pre-auth card without manual", &TipPreAuthRequest{TxnHeader: hdr, Amount: 1, CardNumber: "4111"}},
		{"enquiry without date", &SettlementEnquiryRequest{TxnHeader: hdr}},
		{"reply bad answer", NewQueryReply(TagAsk, "1", 1, "MAYBE")},
		{"reply bad tag", NewQueryReply(TagPurchase, "1", 1, AnswerYes)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.req)
			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.Nil(t, frame)
		})
	}

	_, err := Encode(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFieldValue_Formats(t *testing.T) {
	v, err := AmountField("a", false, Dollars(10, 0)).Value()
	require.NoError(t, err)
	assert.Equal(t, "000010.00", v)

	v, err = AmountField("a", false, 0).Value()
	require.NoError(t, err)
	assert.Equal(t, "000000.00", v)

	v, err = PaddedTextField("p", 8, true, "12").Value()
	require.NoError(t, err)
	assert.Equal(t, "12      ", v)

	v, err = YesNoField("y", true).Value()
	require.NoError(t, err)
	assert.Equal(t, "Y", v)

	v, err = YesNoField("y", false).Value()
	require.NoError(t, err)
	assert.Equal(t, "N", v)

	v, err = DateField("d", true, time.Date(2023, time.December, 31, 23, 0, 0, 0, time.UTC)).Value()
	require.NoError(t, err)
	assert.Equal(t, "31122023", v)

	v, err = DateField("d", false, time.Time{}).Value()
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = TextField("t", 3, true, "  ").Value()
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = AmountField("a", false, -1).Value()
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestManualPanRequest_Tag(t *testing.T) {
	assert.Equal(t, TagManualPurchase, (&ManualPanRequest{}).RequestType())
	assert.Equal(t, TagManualRefund, (&ManualPanRequest{Refund: true}).RequestType())
	assert.Equal(t, TagTipPreAuth, (&TipPreAuthRequest{}).RequestType())
	assert.Equal(t, TagTipPreAuthManual, (&TipPreAuthRequest{Manual: true}).RequestType())
}
