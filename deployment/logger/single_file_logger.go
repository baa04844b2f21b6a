package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	// The logger interface we're implementing:
	commonlogger "github.com/smartcontractkit/chainlink-common/pkg/logger"
)

// SingleFileLogger is a wrapper around a zap SugaredLogger that implements
// the chainlink-common logger.Logger interface and writes JSON lines to one
// file.
type SingleFileLogger struct {
	*zap.SugaredLogger
	file *os.File
}

// Ensure it truly implements the interface at compile time:
var _ commonlogger.Logger = (*SingleFileLogger)(nil)

// NewSingleFileLogger creates a zap-based logger appending everything at or
// above lvl to path. Parent directories are created.
func NewSingleFileLogger(path string, lvl zapcore.Level) (*SingleFileLogger, error) {
	fullPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %q: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir for %q: %w", fullPath, err)
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", fullPath, err)
	}

	// Auto-flush writer so we don't lose logs if the process dies abruptly
	writer := &autoFlushWriter{file: f}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(writer),
		lvl,
	)

	zapLogger := zap.New(core, zap.AddCaller())
	return &SingleFileLogger{SugaredLogger: zapLogger.Sugar(), file: f}, nil
}

// autoFlushWriter flushes on every log write.
type autoFlushWriter struct {
	file *os.File
}

func (w *autoFlushWriter) Write(p []byte) (n int, err error) {
	n, err = w.file.Write(p)
	if err == nil {
		_ = w.file.Sync()
	}
	return n, err
}

func (w *autoFlushWriter) Sync() error {
	return w.file.Sync()
}

// Close syncs and closes the underlying file. Loggers derived with Named or
// With share the file and must not be used afterwards.
func (l *SingleFileLogger) Close() error {
	_ = l.SugaredLogger.Sync()
	return l.file.Close()
}

func (l *SingleFileLogger) Name() string {
	return l.Desugar().Name()
}

func (l *SingleFileLogger) Named(name string) commonlogger.Logger {
	return &SingleFileLogger{SugaredLogger: l.SugaredLogger.Named(name), file: l.file}
}

func (l *SingleFileLogger) With(args ...interface{}) commonlogger.Logger {
	return &SingleFileLogger{SugaredLogger: l.SugaredLogger.With(args...), file: l.file}
}
