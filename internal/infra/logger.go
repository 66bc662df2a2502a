package infra

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls the rotating log file.
type LogConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	Debug      bool
}

// NewLogger builds a JSON zap logger writing to a rotating file.
// The returned close func flushes and closes the file.
func NewLogger(cfg LogConfig) (*zap.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, func() {}, err
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 5
	}
	if cfg.MaxBackups <= 0 {
		// Without this, rotated logs will never be deleted.
		cfg.MaxBackups = 1
	}

	w := &closeOnceWriter{w: &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}}
	logger := newJSONLogger(zapcore.AddSync(w), cfg.Debug)

	closeFn := func() {
		_ = logger.Sync()
		_ = w.Close()
	}
	return logger, closeFn, nil
}

func newJSONLogger(ws zapcore.WriteSyncer, debug bool) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), ws, level)
	return zap.New(core, zap.AddCaller())
}

// closeOnceWriter stops writes after Close. lumberjack reopens its file
// on every Write, so late log lines would otherwise recreate it.
type closeOnceWriter struct {
	w io.WriteCloser

	mu     sync.Mutex
	closed bool
}

func (c *closeOnceWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	return c.w.Write(p)
}

func (c *closeOnceWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.w.Close()
}
