package transport

import (
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

const (
	DefaultReadSize      = 4096
	DefaultHighWatermark = 64 * 1024
)

type Options struct {
	Logger      *zap.Logger
	Scope       tally.Scope
	Server      Server
	Extra       map[string]any
	Waiter      func()
	ReadSize    int
	HangupCheck bool
}

type Option func(options *Options)

func WithLogger(logger *zap.Logger) Option {
	return func(options *Options) {
		if logger != nil {
			options.Logger = logger
		}
	}
}

// WithScope
// sets the metrics scope. Counters are reported under it without a prefix.
func WithScope(scope tally.Scope) Option {
	return func(options *Options) {
		if scope != nil {
			options.Scope = scope
		}
	}
}

// WithServer
// attaches the transport to server at construction and detaches it once
// the connection is lost.
func WithServer(server Server) Option {
	return func(options *Options) {
		options.Server = server
	}
}

func WithExtra(name string, value any) Option {
	return func(options *Options) {
		if options.Extra == nil {
			options.Extra = make(map[string]any)
		}
		options.Extra[name] = value
	}
}

// WithWaiter
// is called on the loop right after ConnectionMade.
func WithWaiter(fn func()) Option {
	return func(options *Options) {
		options.Waiter = fn
	}
}

func WithReadSize(n int) Option {
	return func(options *Options) {
		if n > 0 {
			options.ReadSize = n
		}
	}
}

// WithHangupCheck
// makes a write pipe watch its handle for the reader going away.
func WithHangupCheck() Option {
	return func(options *Options) {
		options.HangupCheck = true
	}
}

func newOptions(options []Option) Options {
	opts := Options{
		Logger:   zap.NewNop(),
		Scope:    tally.NoopScope,
		ReadSize: DefaultReadSize,
	}
	for _, option := range options {
		option(&opts)
	}
	return opts
}

type limits struct {
	high    int
	low     int
	highSet bool
	lowSet  bool
}

type LimitOption func(l *limits)

func High(n int) LimitOption {
	return func(l *limits) {
		l.high = n
		l.highSet = true
	}
}

func Low(n int) LimitOption {
	return func(l *limits) {
		l.low = n
		l.lowSet = true
	}
}

func resolveLimits(options []LimitOption) (high int, low int, err error) {
	l := limits{}
	for _, option := range options {
		option(&l)
	}
	switch {
	case l.highSet && l.lowSet:
		high, low = l.high, l.low
	case l.highSet:
		high, low = l.high, l.high/4
	case l.lowSet:
		high, low = 4*l.low, l.low
	default:
		high, low = DefaultHighWatermark, DefaultHighWatermark/4
	}
	if !(high >= low && low >= 0) {
		err = ErrInvalidLimits
		high, low = 0, 0
	}
	return
}
