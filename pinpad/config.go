package pinpad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-poslink/logger"
	"github.com/arloliu/go-poslink/poslink"
)

// Default protocol timing. The terminal is expected to acknowledge a frame
// within the ACK timeout and to finish a transaction within the response
// timeout.
const (
	DefaultPort = 4444

	DefaultAckTimeout        = 3 * time.Second
	DefaultResponseTimeout   = 60 * time.Second
	DefaultConnectTimeout    = 3 * time.Second
	DefaultClearInputTimeout = 100 * time.Millisecond
	DefaultReadDelay         = 100 * time.Millisecond
	DefaultRetryDelay        = 100 * time.Millisecond

	DefaultNackRetryLimit    = 3
	DefaultConnectAttempts   = 3
	DefaultRequestRetryLimit = 3
)

// Range limits of the configurable values.
const (
	MinAckTimeout = 10 * time.Millisecond
	MaxAckTimeout = 30 * time.Second

	MinResponseTimeout = 50 * time.Millisecond
	MaxResponseTimeout = 10 * time.Minute

	MinConnectTimeout = 100 * time.Millisecond
	MaxConnectTimeout = time.Minute

	MaxReadDelay         = time.Second
	MaxRetryDelay        = 10 * time.Second
	MaxClearInputTimeout = 5 * time.Second

	MaxNackRetryLimit    = 10
	MaxConnectAttempts   = 10
	MaxRequestRetryLimit = 10
)

// FailureStrategy selects what happens when a transaction's outcome cannot
// be determined after all retries.
type FailureStrategy int

const (
	// FailReturnError returns ErrTransactionFailure to the caller.
	FailReturnError FailureStrategy = iota
	// FailQueryOperator asks the operator whether the terminal accepted the
	// transaction and returns a manual response built from the answer.
	// Only requests that move money are escalated.
	FailQueryOperator
)

func (s FailureStrategy) String() string {
	switch s {
	case FailReturnError:
		return "return-error"
	case FailQueryOperator:
		return "query-operator"
	default:
		return "FailureStrategy(" + strconv.Itoa(int(s)) + ")"
	}
}

// Transport is a byte stream to one terminal.
//
// net.Conn satisfies Transport.
type Transport interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

// Dialer opens a Transport to the terminal.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Transport, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Transport, error) { return f(ctx) }

type tcpDialer struct {
	addr    string
	timeout time.Duration
}

func (d *tcpDialer) Dial(ctx context.Context) (Transport, error) {
	nd := net.Dialer{Timeout: d.timeout, KeepAlive: 30 * time.Second}

	return nd.DialContext(ctx, "tcp", d.addr)
}

// Config holds the configuration of a Client.
type Config struct {
	host string
	port int

	defaults poslink.Defaults

	ackTimeout        time.Duration
	responseTimeout   time.Duration
	connectTimeout    time.Duration
	clearInputTimeout time.Duration
	readDelay         time.Duration
	retryDelay        time.Duration

	nackRetryLimit    int
	connectAttempts   int
	requestRetryLimit int

	failureStrategy FailureStrategy
	queryHandler    QueryHandler
	displayHandler  DisplayHandler

	logger        logger.Logger
	packetLogging bool
	dialer        Dialer
}

// NewConfig creates a client configuration for the terminal at host:port.
//
// A port of 0 selects DefaultPort. host may be empty when WithDialer
// supplies the transport. opts are applied in order; see the With* functions.
func NewConfig(host string, port int, opts ...Option) (*Config, error) {
	cfg := &Config{
		defaults:          poslink.StandardDefaults(),
		ackTimeout:        DefaultAckTimeout,
		responseTimeout:   DefaultResponseTimeout,
		connectTimeout:    DefaultConnectTimeout,
		clearInputTimeout: DefaultClearInputTimeout,
		readDelay:         DefaultReadDelay,
		retryDelay:        DefaultRetryDelay,
		nackRetryLimit:    DefaultNackRetryLimit,
		connectAttempts:   DefaultConnectAttempts,
		requestRetryLimit: DefaultRequestRetryLimit,
		failureStrategy:   FailReturnError,
		logger:            logger.Nop(),
	}

	if port == 0 {
		port = DefaultPort
	}
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("pinpad: port %d out of range [0, 65535]", port)
	}
	cfg.host = strings.TrimSpace(host)
	cfg.port = port

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.dialer == nil {
		if cfg.host == "" {
			return nil, errors.New("pinpad: host is required without a custom dialer")
		}
		cfg.dialer = &tcpDialer{addr: cfg.Addr(), timeout: cfg.connectTimeout}
	}

	if cfg.failureStrategy == FailQueryOperator && cfg.queryHandler == nil {
		return nil, errors.New("pinpad: the query-operator failure strategy requires a query handler")
	}

	return cfg, nil
}

// --- Getters ---

// Host returns the configured host.
func (cfg *Config) Host() string { return cfg.host }

// Port returns the configured TCP port.
func (cfg *Config) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *Config) Addr() string { return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port)) }

// Merchant returns the default merchant number.
func (cfg *Config) Merchant() int { return cfg.defaults.Merchant }

// Defaults returns the values applied to unset request fields.
func (cfg *Config) Defaults() poslink.Defaults { return cfg.defaults }

// AckTimeout returns how long to wait for the terminal to acknowledge a frame.
func (cfg *Config) AckTimeout() time.Duration { return cfg.ackTimeout }

// ResponseTimeout returns how long to wait for the next frame of a response.
func (cfg *Config) ResponseTimeout() time.Duration { return cfg.responseTimeout }

// ConnectTimeout returns the TCP dial timeout.
func (cfg *Config) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// RetryDelay returns the pause between retries.
func (cfg *Config) RetryDelay() time.Duration { return cfg.retryDelay }

// NackRetryLimit returns how many times a frame is sent before NAKs fail the request.
func (cfg *Config) NackRetryLimit() int { return cfg.nackRetryLimit }

// ConnectAttempts returns the number of connection attempts per connect.
func (cfg *Config) ConnectAttempts() int { return cfg.connectAttempts }

// RequestRetryLimit returns how many times a request is retried on a new connection.
func (cfg *Config) RequestRetryLimit() int { return cfg.requestRetryLimit }

// FailureStrategy returns the configured failure strategy.
func (cfg *Config) FailureStrategy() FailureStrategy { return cfg.failureStrategy }

// PacketLogging reports whether raw frames are logged.
func (cfg *Config) PacketLogging() bool { return cfg.packetLogging }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// --- Option ---

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

func durationOpt(name string, d, lo, hi time.Duration, set func(*Config)) Option {
	return optFunc(func(cfg *Config) error {
		if d < lo || d > hi {
			return fmt.Errorf("pinpad: %s %v out of range [%v, %v]", name, d, lo, hi)
		}
		set(cfg)
		return nil
	})
}

func intOpt(name string, n, lo, hi int, set func(*Config)) Option {
	return optFunc(func(cfg *Config) error {
		if n < lo || n > hi {
			return fmt.Errorf("pinpad: %s %d out of range [%d, %d]", name, n, lo, hi)
		}
		set(cfg)
		return nil
	})
}

// WithAckTimeout sets how long to wait for ACK or NAK after sending a frame.
func WithAckTimeout(d time.Duration) Option {
	return durationOpt("ack timeout", d, MinAckTimeout, MaxAckTimeout, func(c *Config) { c.ackTimeout = d })
}

// WithResponseTimeout sets how long to wait for each frame of a response.
func WithResponseTimeout(d time.Duration) Option {
	return durationOpt("response timeout", d, MinResponseTimeout, MaxResponseTimeout,
		func(c *Config) { c.responseTimeout = d })
}

// WithConnectTimeout sets the TCP dial timeout.
func WithConnectTimeout(d time.Duration) Option {
	return durationOpt("connect timeout", d, MinConnectTimeout, MaxConnectTimeout,
		func(c *Config) { c.connectTimeout = d })
}

// WithClearInputTimeout sets the silence that ends the input drain after connecting.
func WithClearInputTimeout(d time.Duration) Option {
	return durationOpt("clear input timeout", d, 0, MaxClearInputTimeout, func(c *Config) { c.clearInputTimeout = d })
}

// WithReadDelay sets the pause between empty reads while waiting for ACK.
func WithReadDelay(d time.Duration) Option {
	return durationOpt("read delay", d, 0, MaxReadDelay, func(c *Config) { c.readDelay = d })
}

// WithRetryDelay sets the pause between send, connect and request retries.
func WithRetryDelay(d time.Duration) Option {
	return durationOpt("retry delay", d, 0, MaxRetryDelay, func(c *Config) { c.retryDelay = d })
}

// WithNackRetryLimit sets how many times a frame is sent before repeated
// NAKs fail the request with ErrTransactionFailure.
func WithNackRetryLimit(n int) Option {
	return intOpt("nack retry limit", n, 1, MaxNackRetryLimit, func(c *Config) { c.nackRetryLimit = n })
}

// WithConnectAttempts sets the number of dial attempts per connect.
func WithConnectAttempts(n int) Option {
	return intOpt("connect attempts", n, 1, MaxConnectAttempts, func(c *Config) { c.connectAttempts = n })
}

// WithRequestRetryLimit sets how many times a request is retried over a new
// connection after a connection fault.
func WithRequestRetryLimit(n int) Option {
	return intOpt("request retry limit", n, 0, MaxRequestRetryLimit, func(c *Config) { c.requestRetryLimit = n })
}

// WithMerchant sets the merchant number used by requests that do not set one.
func WithMerchant(merchant int) Option {
	return optFunc(func(cfg *Config) error {
		if merchant < poslink.MinMerchant || merchant > poslink.MaxMerchant {
			return fmt.Errorf("pinpad: merchant %d out of range [%d, %d]", merchant, poslink.MinMerchant, poslink.MaxMerchant)
		}
		cfg.defaults.Merchant = merchant
		return nil
	})
}

// WithReturnReceipt sets the default ReturnReceipt transaction option.
func WithReturnReceipt(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.defaults.ReturnReceipt = enabled
		return nil
	})
}

// WithAllowCredit sets the default AllowCredit transaction option.
func WithAllowCredit(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.defaults.AllowCredit = enabled
		return nil
	})
}

// WithReferenceGenerator sets the generator of merchant references.
func WithReferenceGenerator(g poslink.ReferenceGenerator) Option {
	return optFunc(func(cfg *Config) error {
		if g == nil {
			return errors.New("pinpad: reference generator is nil")
		}
		cfg.defaults.References = g
		return nil
	})
}

// WithFailureStrategy sets what happens when a transaction's outcome cannot be determined.
func WithFailureStrategy(s FailureStrategy) Option {
	return optFunc(func(cfg *Config) error {
		if s != FailReturnError && s != FailQueryOperator {
			return fmt.Errorf("pinpad: unknown failure strategy %d", int(s))
		}
		cfg.failureStrategy = s
		return nil
	})
}

// WithQueryHandler sets the handler of operator queries.
func WithQueryHandler(h QueryHandler) Option {
	return optFunc(func(cfg *Config) error {
		cfg.queryHandler = h
		return nil
	})
}

// WithDisplayHandler sets the handler of display events.
func WithDisplayHandler(h DisplayHandler) Option {
	return optFunc(func(cfg *Config) error {
		cfg.displayHandler = h
		return nil
	})
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			l = logger.Nop()
		}
		cfg.logger = l
		return nil
	})
}

// WithPacketLogging enables debug logging of every frame and handshake byte.
func WithPacketLogging(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.packetLogging = enabled
		return nil
	})
}

// WithDialer replaces the TCP dialer, e.g. with a serial port dialer.
func WithDialer(d Dialer) Option {
	return optFunc(func(cfg *Config) error {
		if d == nil {
			return errors.New("pinpad: dialer is nil")
		}
		cfg.dialer = d
		return nil
	})
}
