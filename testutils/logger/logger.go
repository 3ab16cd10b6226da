package logger

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/iort-labs/qtrust/logger"
)

/*
New returns logger for test t on debug level, records are written with
t.Log so they show up only when the test fails or "-v" is used.

Level can be overridden with the QT_TEST_LOG_LEVEL environment variable.
*/
func New(t testing.TB) *slog.Logger {
	return newLogger(t, env("QT_TEST_LOG_LEVEL", "debug"))
}

// NewLvl returns logger for test t on the given level.
func NewLvl(t testing.TB, level slog.Level) *slog.Logger {
	return newLogger(t, level.String())
}

/*
LoggerBuilder returns func which builds test logger, the configuration
argument is ignored. Useful where code under test expects a logger factory.
*/
func LoggerBuilder(t testing.TB) func(*logger.LogConfiguration) (*slog.Logger, error) {
	return func(*logger.LogConfiguration) (*slog.Logger, error) {
		return New(t), nil
	}
}

// NOP returns logger which discards everything.
func NOP() *slog.Logger {
	return logger.NOP()
}

func newLogger(t testing.TB, level string) *slog.Logger {
	cfg := &logger.LogConfiguration{
		Level:      level,
		Format:     logger.FormatConsole,
		TimeFormat: "15:04:05.0000",
	}
	cfg.SetWriter(testLogWriter{t: t})
	l, err := logger.New(cfg)
	if err != nil {
		t.Fatalf("creating test logger: %v", err)
	}
	return l
}

type testLogWriter struct {
	t testing.TB
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

func env(name, defaultValue string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return defaultValue
}
