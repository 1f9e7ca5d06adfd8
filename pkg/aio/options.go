package aio

import (
	"github.com/brickingsoft/rxp"
	"go.uber.org/zap"
	"time"
)

type Options struct {
	MaxGoroutines   int
	CloseTimeout    time.Duration
	DialTimeout     time.Duration
	DialKeepAlive   time.Duration
	ExecutorOptions []rxp.Option
	Logger          *zap.Logger
}

type Option func(*Options)

// WithMaxGoroutines bounds the number of requests blocked in the OS at once.
func WithMaxGoroutines(n int) Option {
	return func(opts *Options) {
		if n > 0 {
			opts.MaxGoroutines = n
		}
	}
}

func WithCloseTimeout(d time.Duration) Option {
	return func(opts *Options) {
		if d > 0 {
			opts.CloseTimeout = d
		}
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(opts *Options) {
		if d > 0 {
			opts.DialTimeout = d
		}
	}
}

func WithDialKeepAlive(d time.Duration) Option {
	return func(opts *Options) {
		opts.DialKeepAlive = d
	}
}

// WithExecutorOptions
// passes options straight to the rxp executors. They are applied after
// WithMaxGoroutines and WithCloseTimeout.
func WithExecutorOptions(options ...rxp.Option) Option {
	return func(opts *Options) {
		opts.ExecutorOptions = append(opts.ExecutorOptions, options...)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *Options) {
		if logger != nil {
			opts.Logger = logger
		}
	}
}
