package pinpad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-poslink/internal/fakepad"
	"github.com/arloliu/go-poslink/logger"
	"github.com/arloliu/go-poslink/poslink"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(" 10.0.0.20 ", 0)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.20", cfg.Host())
	assert.Equal(t, DefaultPort, cfg.Port())
	assert.Equal(t, "10.0.0.20:4444", cfg.Addr())
	assert.Equal(t, DefaultAckTimeout, cfg.AckTimeout())
	assert.Equal(t, DefaultResponseTimeout, cfg.ResponseTimeout())
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout())
	assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay())
	assert.Equal(t, DefaultNackRetryLimit, cfg.NackRetryLimit())
	assert.Equal(t, DefaultConnectAttempts, cfg.ConnectAttempts())
	assert.Equal(t, DefaultRequestRetryLimit, cfg.RequestRetryLimit())
	assert.Equal(t, FailReturnError, cfg.FailureStrategy())
	assert.False(t, cfg.PacketLogging())
	assert.Equal(t, poslink.MinMerchant, cfg.Merchant())
	assert.Equal(t, logger.Nop(), cfg.GetLogger())

	d := cfg.Defaults()
	assert.True(t, d.ReturnReceipt)
	assert.True(t, d.AllowCredit)
	assert.NotNil(t, d.References)
}

func TestNewConfig_Options(t *testing.T) {
	refs := poslink.NewSequentialReferences(0)
	cfg, err := NewConfig("pinpad.local", 5000,
		WithAckTimeout(time.Second),
		WithResponseTimeout(2*time.Minute),
		WithConnectTimeout(5*time.Second),
		WithNackRetryLimit(5),
		WithConnectAttempts(1),
		WithRequestRetryLimit(0),
		WithMerchant(3),
		WithReturnReceipt(false),
		WithAllowCredit(false),
		WithReferenceGenerator(refs),
		WithFailureStrategy(FailQueryOperator),
		WithQueryHandler(func(*Query) {}),
		WithPacketLogging(true),
	)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port())
	assert.Equal(t, time.Second, cfg.AckTimeout())
	assert.Equal(t, 2*time.Minute, cfg.ResponseTimeout())
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout())
	assert.Equal(t, 5, cfg.NackRetryLimit())
	assert.Equal(t, 1, cfg.ConnectAttempts())
	assert.Equal(t, 0, cfg.RequestRetryLimit())
	assert.Equal(t, 3, cfg.Merchant())
	assert.Equal(t, FailQueryOperator, cfg.FailureStrategy())
	assert.True(t, cfg.PacketLogging())

	d := cfg.Defaults()
	assert.False(t, d.ReturnReceipt)
	assert.False(t, d.AllowCredit)
	assert.Same(t, refs, d.References)
}

func TestNewConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int
		opts []Option
	}{
		{name: "empty host", host: "", port: 0},
		{name: "negative port", host: "h", port: -1},
		{name: "port too large", host: "h", port: 65536},
		{name: "ack timeout too short", host: "h", opts: []Option{WithAckTimeout(time.Millisecond)}},
		{name: "ack timeout too long", host: "h", opts: []Option{WithAckTimeout(time.Minute)}},
		{name: "response timeout too short", host: "h", opts: []Option{WithResponseTimeout(time.Millisecond)}},
		{name: "connect timeout too short", host: "h", opts: []Option{WithConnectTimeout(time.Millisecond)}},
		{name: "negative retry delay", host: "h", opts: []Option{WithRetryDelay(-time.Second)}},
		{name: "read delay too long", host: "h", opts: []Option{WithReadDelay(2 * time.Second)}},
		{name: "zero nack limit", host: "h", opts: []Option{WithNackRetryLimit(0)}},
		{name: "zero connect attempts", host: "h", opts: []Option{WithConnectAttempts(0)}},
		{name: "request retries too many", host: "h", opts: []Option{WithRequestRetryLimit(11)}},
		{name: "merchant zero", host: "h", opts: []Option{WithMerchant(0)}},
		{name: "merchant nine", host: "h", opts: []Option{WithMerchant(9)}},
		{name: "nil reference generator", host: "h", opts: []Option{WithReferenceGenerator(nil)}},
		{name: "nil dialer", host: "h", opts: []Option{WithDialer(nil)}},
		{name: "unknown strategy", host: "h", opts: []Option{WithFailureStrategy(FailureStrategy(7))}},
		{name: "operator strategy without handler", host: "h", opts: []Option{WithFailureStrategy(FailQueryOperator)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConfig(tt.host, tt.port, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestNewConfig_DialerWithoutHost(t *testing.T) {
	cfg, err := NewConfig("", 0, WithDialer(terminalDialer(fakepad.New(nil))))
	require.NoError(t, err)
	assert.Empty(t, cfg.Host())
}

func TestFailureStrategy_String(t *testing.T) {
	assert.Equal(t, "return-error", FailReturnError.String())
	assert.Equal(t, "query-operator", FailQueryOperator.String())
}
