package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

/*
LogConfiguration describes how the logger should be built, it can be loaded
from YAML file and individual fields overridden by command line flags.
*/
type LogConfiguration struct {
	// Level is the minimum level to log, one of TRACE, DEBUG, INFO, WARN, ERROR, NONE.
	// Offsets like "info+2" or "debug-1" are supported too.
	Level string `yaml:"defaultLevel"`
	// Format is one of "text", "json", "ecs", "console".
	Format string `yaml:"format"`
	// OutputPath is file name or one of the special values "stdout", "stderr", "discard".
	OutputPath string `yaml:"outputPath"`
	// TimeFormat is Go time layout for the time attribute, "none" removes it.
	TimeFormat string `yaml:"timeFormat"`
	// ShowSource adds source code position to the log records.
	ShowSource bool `yaml:"showSource"`

	writer io.Writer
}

const (
	LevelTrace slog.Level = slog.LevelDebug - 4
	levelNone  slog.Level = slog.LevelError + 100
)

const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatECS     = "ecs"
	FormatConsole = "console"
)

/*
New creates *slog.Logger based on configuration cfg.
*/
func New(cfg *LogConfiguration) (*slog.Logger, error) {
	h, err := cfg.Handler()
	if err != nil {
		return nil, fmt.Errorf("creating handler: %w", err)
	}
	return slog.New(h), nil
}

/*
LoadConfiguration reads logger configuration from YAML file.
*/
func LoadConfiguration(fileName string) (*LogConfiguration, error) {
	b, err := os.ReadFile(filepath.Clean(fileName))
	if err != nil {
		return nil, fmt.Errorf("reading logger configuration file: %w", err)
	}
	cfg := &LogConfiguration{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("decoding logger configuration (%s): %w", fileName, err)
	}
	return cfg, nil
}

// SetWriter makes the handler write into w instead of the OutputPath.
func (cfg *LogConfiguration) SetWriter(w io.Writer) {
	cfg.writer = w
}

func (cfg *LogConfiguration) Handler() (slog.Handler, error) {
	out, err := cfg.output()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		AddSource: cfg.ShowSource,
		Level:     cfg.logLevel(),
	}

	switch strings.ToLower(cfg.Format) {
	case FormatJSON:
		opts.ReplaceAttr = chain(timeFormatter(cfg.TimeFormat))
		return slog.NewJSONHandler(out, opts), nil
	case FormatECS:
		opts.ReplaceAttr = chain(timeFormatter(cfg.TimeFormat), ecsFields)
		return slog.NewJSONHandler(out, opts), nil
	case FormatConsole:
		cw := zerolog.ConsoleWriter{Out: out, NoColor: !isTerminal(out)}
		switch cfg.TimeFormat {
		case "":
		case "none":
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		default:
			cw.TimeFormat = cfg.TimeFormat
		}
		opts.ReplaceAttr = chain(timeFormatter(noneOnly(cfg.TimeFormat)), dataAsJSON, consoleKeys)
		return slog.NewJSONHandler(cw, opts), nil
	case FormatText, "":
		opts.ReplaceAttr = chain(timeFormatter(cfg.TimeFormat), dataAsJSON)
		return slog.NewTextHandler(out, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func (cfg *LogConfiguration) output() (io.Writer, error) {
	if cfg.writer != nil {
		return cfg.writer, nil
	}
	switch strings.ToLower(cfg.OutputPath) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "discard", os.DevNull:
		return io.Discard, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0700); err != nil {
			return nil, fmt.Errorf("creating directory for log file: %w", err)
		}
		f, err := os.OpenFile(filepath.Clean(cfg.OutputPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		return f, nil
	}
}

/*
logLevel parses the Level field, unknown values default to INFO.
When output is discarded levelNone is returned so that no work is done formatting records.
*/
func (cfg *LogConfiguration) logLevel() slog.Level {
	switch strings.ToLower(cfg.OutputPath) {
	case "discard", os.DevNull:
		return levelNone
	}

	name, offset := strings.ToLower(cfg.Level), 0
	if i := strings.IndexAny(name, "+-"); i > 0 {
		if n, err := strconv.Atoi(name[i:]); err == nil {
			name, offset = name[:i], n
		}
	}

	var lvl slog.Level
	switch name {
	case "trace":
		lvl = LevelTrace
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "none":
		lvl = levelNone
	default:
		lvl = slog.LevelInfo
	}
	return lvl + slog.Level(offset)
}

func consoleLevelName(lvl slog.Level) string {
	switch {
	case lvl < slog.LevelDebug:
		return zerolog.LevelTraceValue
	case lvl < slog.LevelInfo:
		return zerolog.LevelDebugValue
	case lvl < slog.LevelWarn:
		return zerolog.LevelInfoValue
	case lvl < slog.LevelError:
		return zerolog.LevelWarnValue
	default:
		return zerolog.LevelErrorValue
	}
}

// noneOnly keeps the "none" time format, other formats are applied by the console writer.
func noneOnly(format string) string {
	if format == "none" {
		return format
	}
	return ""
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

/*
NOP returns logger which discards everything.
*/
func NOP() *slog.Logger {
	return slog.New(discardHandler{})
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
