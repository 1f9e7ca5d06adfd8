// Command proactor-echo serves a TCP echo protocol on a proactor loop.
//
// Usage:
//
//	proactor-echo [flags]
//
// Flags:
//
//	-config string     YAML configuration file
//	-address string    Listen address, overrides the file (default "127.0.0.1:9000")
//	-log-level string  debug, info, warn or error (default "info")
//
// With "framing: length_field" in the file, messages carry an 8 byte
// big-endian length prefix and are echoed whole.
package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/proactor"
	"github.com/brickingsoft/proactor/codec"
	"github.com/brickingsoft/proactor/transport"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Config is the YAML configuration file. Framing is "raw" or "length_field".
type Config struct {
	Network        string        `yaml:"network"`
	Address        string        `yaml:"address"`
	LogLevel       string        `yaml:"log_level"`
	ReadSize       int           `yaml:"read_size"`
	HighWatermark  int           `yaml:"high_watermark"`
	LowWatermark   int           `yaml:"low_watermark"`
	MaxGoroutines  int           `yaml:"max_goroutines"`
	CloseTimeout   time.Duration `yaml:"close_timeout"`
	Framing        string        `yaml:"framing"`
	MaxFrameLength int           `yaml:"max_frame_length"`
}

func defaultConfig() Config {
	return Config{
		Network:  "tcp",
		Address:  "127.0.0.1:9000",
		LogLevel: "info",
		ReadSize: transport.DefaultReadSize,
		Framing:  "raw",
	}
}

func loadConfig(path string) (cfg Config, err error) {
	cfg = defaultConfig()
	if path == "" {
		return
	}
	b, readErr := os.ReadFile(path)
	if readErr != nil {
		err = errors.New("read config failed", errors.WithMeta("path", path), errors.WithWrap(readErr))
		return
	}
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		err = errors.New("parse config failed", errors.WithMeta("path", path), errors.WithWrap(err))
	}
	return
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}

// echoProtocol writes every chunk back and pauses reading while the peer
// is not draining its replies.
type echoProtocol struct {
	t      transport.Transport
	logger *zap.Logger
	high   int
	low    int
}

func (p *echoProtocol) ConnectionMade(t transport.Base) {
	p.t = t.(transport.Transport)
	if p.high > 0 {
		if err := p.t.SetWriteBufferLimits(transport.High(p.high), transport.Low(p.low)); err != nil {
			p.logger.Warn("invalid watermarks", zap.Error(err))
		}
	}
	peer, _ := t.ExtraInfo(transport.ExtraPeerName)
	p.logger.Debug("connection made", zap.String("transport", t.ID()), zap.Any("peer", peer))
}

func (p *echoProtocol) DataReceived(b []byte) {
	if err := p.t.Write(b); err != nil {
		p.logger.Warn("echo failed", zap.String("transport", p.t.ID()), zap.Error(err))
	}
}

func (p *echoProtocol) EOFReceived() bool {
	return false
}

func (p *echoProtocol) PauseWriting() {
	_ = p.t.PauseReading()
}

func (p *echoProtocol) ResumeWriting() {
	_ = p.t.ResumeReading()
}

func (p *echoProtocol) ConnectionLost(err error) {
	if err != nil {
		p.logger.Debug("connection lost", zap.String("transport", p.t.ID()), zap.Error(err))
	}
}

// frameEcho echoes whole length-field frames.
type frameEcho struct {
	echoProtocol
	codec codec.LengthField
}

func (p *frameEcho) MessageReceived(message []byte) {
	if len(message) == 0 {
		return
	}
	if err := codec.Encode[[]byte](p.t, p.codec, message); err != nil {
		p.logger.Warn("echo failed", zap.String("transport", p.t.ID()), zap.Error(err))
	}
}

var errUnknownFraming = errors.Define("framing must be raw or length_field")

func newProtocolFactory(cfg Config, logger *zap.Logger) (factory proactor.ProtocolFactory, err error) {
	switch cfg.Framing {
	case "", "raw":
		factory = func() transport.Protocol {
			return &echoProtocol{logger: logger, high: cfg.HighWatermark, low: cfg.LowWatermark}
		}
	case "length_field":
		lf := codec.LengthField{MaxLength: cfg.MaxFrameLength}
		factory = func() transport.Protocol {
			h := &frameEcho{
				echoProtocol: echoProtocol{logger: logger, high: cfg.HighWatermark, low: cfg.LowWatermark},
				codec:        lf,
			}
			return codec.NewProtocol[[]byte](lf, h)
		}
	default:
		err = errors.New("unknown framing", errors.WithMeta("framing", cfg.Framing), errors.WithWrap(errUnknownFraming))
	}
	return
}

func main() {
	var (
		configFile string
		address    string
		logLevel   string
	)
	flag.StringVar(&configFile, "config", "", "YAML configuration file")
	flag.StringVar(&address, "address", "", "listen address, overrides the file")
	flag.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	flag.Parse()

	cfg, err := loadConfig(configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if address != "" {
		cfg.Address = address
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid log level:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err = run(cfg, logger); err != nil {
		logger.Error("proactor-echo stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg Config, logger *zap.Logger) (err error) {
	options := []proactor.Option{
		proactor.WithLogger(logger),
		proactor.WithReadSize(cfg.ReadSize),
	}
	if cfg.MaxGoroutines > 0 {
		options = append(options, proactor.WithMaxGoroutines(cfg.MaxGoroutines))
	}
	if cfg.CloseTimeout > 0 {
		options = append(options, proactor.WithCloseTimeout(cfg.CloseTimeout))
	}
	factory, err := newProtocolFactory(cfg, logger)
	if err != nil {
		return
	}
	loop, err := proactor.New(options...)
	if err != nil {
		return
	}
	defer loop.Close()

	srv, err := loop.CreateServer(factory, cfg.Network, cfg.Address)
	if err != nil {
		return
	}
	logger.Info("serving", zap.Stringer("addr", srv.Addrs()[0]))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err = loop.Run(ctx); err != nil && ctx.Err() == nil {
		return
	}
	err = nil

	// one more iteration lets the closes run their callbacks
	loop.CallSoon(func() {
		_ = srv.Close()
		srv.CloseTransports()
		loop.CallSoon(loop.Stop)
	})
	shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if runErr := loop.Run(shutdown); runErr != nil {
		logger.Warn("shutdown incomplete", zap.Error(runErr))
	}
	logger.Info("stopped", zap.Int("transports", srv.Count()))
	return
}
