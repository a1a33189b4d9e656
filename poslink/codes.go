package poslink

// Message tags, field 1 of every frame.
const (
	TagLogon             = "LOG"
	TagPurchase          = "PUR"
	TagCashOut           = "CSH"
	TagManualPurchase    = "MAN"
	TagManualRefund      = "MRF"
	TagRefund            = "REF"
	TagPoll              = "POL"
	TagAsk               = "ASK"
	TagSignature         = "SIG"
	TagDisplay           = "DSP"
	TagError             = "ERR"
	TagCancel            = "CAN"
	TagQueryCard         = "QCD"
	TagReprintReceipt    = "REP"
	TagSettlement        = "SET"
	TagSettlementEnquiry = "ENQ"
	TagTerminalTotals    = "TOL"
	TagCheque            = "CHQ"
	TagTipAdd            = "TAR"
	TagTipBatchUpload    = "TBU"
	TagTipPreAuth        = "TPA"
	TagTipPreAuthManual  = "TPM"
	TagTipVoid           = "TVD"
)

// ProtocolVersion is the POS Link protocol version sent in polls.
const ProtocolVersion = "2.2"

// Answers accepted by ASK and SIG prompts.
const (
	AnswerYes = "YES"
	AnswerNo  = "NO"
)

// Merchant number range.
const (
	MinMerchant = 1
	MaxMerchant = 8
)

// MaxReferenceLength is the maximum length of a merchant reference.
const MaxReferenceLength = 12

// ResponseCode is the two digit result code returned by the terminal.
type ResponseCode string

const (
	ResponseAccepted                   ResponseCode = "00"
	ResponseDeclined                   ResponseCode = "01"
	ResponseInvalidRequest             ResponseCode = "02"
	ResponseInvalidAmount              ResponseCode = "03"
	ResponseTransactionCancelled       ResponseCode = "04"
	ResponseInvalidCard                ResponseCode = "05"
	ResponseTerminalConfigurationError ResponseCode = "06"
	ResponseInvalidMerchant            ResponseCode = "07"
	ResponseInvalidReference           ResponseCode = "08"
	ResponseTransactionNotFound        ResponseCode = "09"
	ResponseMustSupportReceiptPrinting ResponseCode = "10"
	ResponseExcessiveTip               ResponseCode = "11"
	ResponseMismatchedReference        ResponseCode = "12"
	ResponseInvalidAccount             ResponseCode = "13"
	ResponseNoTransactionsAvailable    ResponseCode = "14"
	ResponseTerminalIdle               ResponseCode = "80"
	ResponseTerminalBusy               ResponseCode = "81"
	ResponseTerminalFault              ResponseCode = "99"
)

var responseDescriptions = map[ResponseCode]string{
	ResponseAccepted:                   "accepted",
	ResponseDeclined:                   "declined",
	ResponseInvalidRequest:             "invalid request",
	ResponseInvalidAmount:              "invalid amount",
	ResponseTransactionCancelled:       "transaction cancelled",
	ResponseInvalidCard:                "invalid card",
	ResponseTerminalConfigurationError: "terminal configuration error",
	ResponseInvalidMerchant:            "invalid merchant",
	ResponseInvalidReference:           "invalid reference",
	ResponseTransactionNotFound:        "transaction not found",
	ResponseMustSupportReceiptPrinting: "receipt printing required",
	ResponseExcessiveTip:               "excessive tip",
	ResponseMismatchedReference:        "mismatched reference",
	ResponseInvalidAccount:             "invalid account",
	ResponseNoTransactionsAvailable:    "no transactions available",
	ResponseTerminalIdle:               "terminal idle",
	ResponseTerminalBusy:               "terminal busy",
	ResponseTerminalFault:              "terminal fault",
}

// Description returns a human readable name for the code.
func (c ResponseCode) Description() string {
	if d, ok := responseDescriptions[c]; ok {
		return d
	}

	return "unknown response code"
}

// DeviceStatus is the terminal state reported by a poll.
type DeviceStatus string

const (
	DeviceReady DeviceStatus = "80"
	DeviceBusy  DeviceStatus = "81"
)
