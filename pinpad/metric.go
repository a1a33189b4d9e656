package pinpad

import (
	"sync/atomic"
)

// ClientMetrics contains atomic metrics for a Client.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ClientMetrics struct {
	// FrameSendCount indicates the number of frames written, retransmissions included.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of valid frames received and acknowledged.
	FrameRecvCount atomic.Uint64
	// NakSendCount indicates the number of malformed frames rejected with NAK.
	NakSendCount atomic.Uint64
	// NakRecvCount indicates the number of NAKs received from the terminal.
	NakRecvCount atomic.Uint64
	// AckTimeoutCount indicates the number of frames that were never acknowledged.
	AckTimeoutCount atomic.Uint64

	// ConnectCount indicates the number of successful connections.
	ConnectCount atomic.Uint64
	// ConnectFailCount indicates the number of failed connection attempts.
	ConnectFailCount atomic.Uint64
	// RetryCount indicates the number of requests retried over a new connection.
	RetryCount atomic.Uint64

	// RequestCount indicates the number of requests processed.
	RequestCount atomic.Uint64
	// RequestErrCount indicates the number of requests that returned an error.
	RequestErrCount atomic.Uint64
	// RequestInflight indicates the number of requests in progress.
	RequestInflight atomic.Int64

	// QueryCount indicates the number of operator queries raised.
	QueryCount atomic.Uint64
	// ManualResponseCount indicates the number of operator-asserted responses.
	ManualResponseCount atomic.Uint64
}

func (m *ClientMetrics) incFrameSendCount()      { m.FrameSendCount.Add(1) }
func (m *ClientMetrics) incFrameRecvCount()      { m.FrameRecvCount.Add(1) }
func (m *ClientMetrics) incNakSendCount()        { m.NakSendCount.Add(1) }
func (m *ClientMetrics) incNakRecvCount()        { m.NakRecvCount.Add(1) }
func (m *ClientMetrics) incAckTimeoutCount()     { m.AckTimeoutCount.Add(1) }
func (m *ClientMetrics) incConnectCount()        { m.ConnectCount.Add(1) }
func (m *ClientMetrics) incConnectFailCount()    { m.ConnectFailCount.Add(1) }
func (m *ClientMetrics) incRetryCount()          { m.RetryCount.Add(1) }
func (m *ClientMetrics) incRequestCount()        { m.RequestCount.Add(1) }
func (m *ClientMetrics) incRequestErrCount()     { m.RequestErrCount.Add(1) }
func (m *ClientMetrics) incRequestInflight()     { m.RequestInflight.Add(1) }
func (m *ClientMetrics) decRequestInflight()     { m.RequestInflight.Add(-1) }
func (m *ClientMetrics) incQueryCount()          { m.QueryCount.Add(1) }
func (m *ClientMetrics) incManualResponseCount() { m.ManualResponseCount.Add(1) }
