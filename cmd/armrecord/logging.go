package main

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(verbose bool, out zapcore.WriteSyncer) *zap.SugaredLogger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), out, level)
	return zap.New(core).Sugar()
}

func stderrLogger(verbose bool) *zap.SugaredLogger {
	return newLogger(verbose, zapcore.Lock(os.Stderr))
}

// logWriter feeds log lines into the TUI log box.
type logWriter struct {
	ch chan string
}

func (w logWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	select {
	case w.ch <- msg:
	default:
		// Drop if channel full
	}
	return len(p), nil
}

func (logWriter) Sync() error { return nil }
