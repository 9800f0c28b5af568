package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/gwillem/armrecord/pkg/control"
	"github.com/gwillem/armrecord/pkg/metrics"
)

// SessionFlags are shared by record and run.
type SessionFlags struct {
	Port        string `long:"port" env:"ARMRECORD_PORT" description:"Follower arm serial port (overrides config)"`
	Env         string `long:"env" env:"ARMRECORD_ENV" description:"Environment name"`
	Cycles      int    `long:"cycles" description:"Stop after this many cycles (0 runs until interrupted)"`
	ImageShape  string `long:"image-shape" description:"Image observation shape as HxWxC"`
	Headless    bool   `long:"headless" description:"Log to stderr instead of showing the TUI"`
	MetricsAddr string `long:"metrics-addr" env:"ARMRECORD_METRICS_ADDR" description:"Serve Prometheus metrics on this address"`
}

// sessionLogger returns the logger for a session, plus the channel feeding
// the TUI log box when not headless.
func (f *SessionFlags) sessionLogger() (*zap.SugaredLogger, chan string) {
	if f.Headless {
		return stderrLogger(opts.Verbose), nil
	}
	ch := make(chan string, 10)
	return newLogger(opts.Verbose, logWriter{ch: ch}), ch
}

// execute runs cfg as one loop session until it ends or the process is
// interrupted.
func (f *SessionFlags) execute(title string, cfg control.Config, log *zap.SugaredLogger, logCh chan string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if f.MetricsAddr != "" {
		m := metrics.New()
		cfg.Metrics = m
		go func() {
			if err := m.Serve(ctx, f.MetricsAddr); err != nil {
				log.Warnf("metrics server: %v", err)
			}
		}()
		log.Infof("serving metrics on %s/metrics", f.MetricsAddr)
	}

	cfg.Logger = log
	cfg.MaxCycles = f.Cycles
	loop, err := control.New(cfg)
	if err != nil {
		return err
	}

	if f.Headless {
		err = loop.Run(ctx)
	} else {
		err = runTUI(ctx, cancel, title, loop, logCh)
	}
	if isCancel(err) {
		log.Infof("%s stopped", title)
		return nil
	}
	return err
}

// isCancel reports an interrupted session whose teardown succeeded.
func isCancel(err error) bool {
	return err == context.Canceled
}
