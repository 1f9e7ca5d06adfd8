package proactor

import (
	"github.com/brickingsoft/proactor/pkg/aio"
	"github.com/brickingsoft/proactor/transport"
	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/rxp/pkg/maxprocs"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
	"time"
)

type Options struct {
	RxpOptions       rxp.Options
	Multiplexer      aio.Multiplexer
	DialTimeout      time.Duration
	DialKeepAlive    time.Duration
	ReadSize         int
	Logger           *zap.Logger
	Scope            tally.Scope
	ExceptionHandler ExceptionHandler
}

func (options *Options) AsRxpOptions() []rxp.Option {
	opts := make([]rxp.Option, 0, 1)
	if n := options.RxpOptions.MaxprocsOptions.MinGOMAXPROCS; n > 0 {
		opts = append(opts, rxp.MinGOMAXPROCS(n))
	}
	if fn := options.RxpOptions.MaxprocsOptions.Procs; fn != nil {
		opts = append(opts, rxp.Procs(fn))
	}
	if fn := options.RxpOptions.MaxprocsOptions.RoundQuotaFunc; fn != nil {
		opts = append(opts, rxp.RoundQuotaFunc(fn))
	}
	if n := options.RxpOptions.MaxGoroutines; n > 0 {
		opts = append(opts, rxp.MaxGoroutines(n))
	}
	if n := options.RxpOptions.MaxReadyGoroutinesIdleDuration; n > 0 {
		opts = append(opts, rxp.MaxReadyGoroutinesIdleDuration(n))
	}
	if n := options.RxpOptions.CloseTimeout; n > 0 {
		opts = append(opts, rxp.WithCloseTimeout(n))
	}
	return opts
}

// transportOptions are the options every transport made by the loop gets.
func (options *Options) transportOptions() []transport.Option {
	return []transport.Option{
		transport.WithLogger(options.Logger),
		transport.WithScope(options.Scope),
		transport.WithReadSize(options.ReadSize),
	}
}

type Option func(options *Options) (err error)

// WithMultiplexer
// replaces the default executor-backed multiplexer. The loop takes ownership
// and closes it on Close.
func WithMultiplexer(mux aio.Multiplexer) Option {
	return func(options *Options) (err error) {
		options.Multiplexer = mux
		return
	}
}

// WithLogger
// sets the logger of the loop and of every transport it creates.
func WithLogger(logger *zap.Logger) Option {
	return func(options *Options) (err error) {
		if logger != nil {
			options.Logger = logger
		}
		return
	}
}

// WithScope
// sets the metrics scope.
func WithScope(scope tally.Scope) Option {
	return func(options *Options) (err error) {
		if scope != nil {
			options.Scope = scope
		}
		return
	}
}

func WithExceptionHandler(handler ExceptionHandler) Option {
	return func(options *Options) (err error) {
		options.ExceptionHandler = handler
		return
	}
}

// WithReadSize
// sets the size of each read issued by transports. Default is 4096.
func WithReadSize(n int) Option {
	return func(options *Options) (err error) {
		if n > 0 {
			options.ReadSize = n
		}
		return
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(options *Options) (err error) {
		options.DialTimeout = d
		return
	}
}

func WithDialKeepAlive(d time.Duration) Option {
	return func(options *Options) (err error) {
		options.DialKeepAlive = d
		return
	}
}

// WithMinGOMAXPROCS
// minimum GOMAXPROCS, linux only. Mostly useful in containers.
func WithMinGOMAXPROCS(n int) Option {
	return func(options *Options) error {
		return rxp.MinGOMAXPROCS(n)(&options.RxpOptions)
	}
}

func WithProcsFunc(fn maxprocs.ProcsFunc) Option {
	return func(options *Options) error {
		return rxp.Procs(fn)(&options.RxpOptions)
	}
}

func WithRoundQuotaFunc(fn maxprocs.RoundQuotaFunc) Option {
	return func(options *Options) error {
		return rxp.RoundQuotaFunc(fn)(&options.RxpOptions)
	}
}

// WithMaxGoroutines
// bounds the executor goroutines, and so the requests parked in the OS.
func WithMaxGoroutines(n int) Option {
	return func(options *Options) error {
		return rxp.MaxGoroutines(n)(&options.RxpOptions)
	}
}

func WithMaxReadyGoroutinesIdleDuration(d time.Duration) Option {
	return func(options *Options) error {
		return rxp.MaxReadyGoroutinesIdleDuration(d)(&options.RxpOptions)
	}
}

// WithCloseTimeout
// bounds how long closing the executors may wait.
func WithCloseTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		return rxp.WithCloseTimeout(timeout)(&options.RxpOptions)
	}
}
