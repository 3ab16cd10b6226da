package logger

import (
	"encoding/json"
	"log/slog"
	"path"
	"reflect"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

// attrFormatter rewrites attribute before it is handled, see slog.HandlerOptions.ReplaceAttr
type attrFormatter func(groups []string, a slog.Attr) slog.Attr

/*
chain returns formatter applying "fs" in order, nil entries are skipped.
Returns nil when there is nothing to apply so that handler can take the fast path.
*/
func chain(fs ...attrFormatter) func(groups []string, a slog.Attr) slog.Attr {
	fs = slices.DeleteFunc(fs, func(f attrFormatter) bool { return f == nil })
	if len(fs) == 0 {
		return nil
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		for _, f := range fs {
			a = f(groups, a)
		}
		return a
	}
}

func topLevel(groups []string, a slog.Attr, key string) bool {
	return len(groups) == 0 && a.Key == key
}

// timeFormatter formats the record time with layout, "none" drops it and empty layout keeps the handler default.
func timeFormatter(layout string) attrFormatter {
	switch layout {
	case "":
		return nil
	case "none":
		return func(groups []string, a slog.Attr) slog.Attr {
			if topLevel(groups, a, slog.TimeKey) {
				return slog.Attr{}
			}
			return a
		}
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if topLevel(groups, a, slog.TimeKey) && a.Value.Kind() == slog.KindTime && !a.Value.Time().IsZero() {
			a.Value = slog.StringValue(a.Value.Time().Format(layout))
		}
		return a
	}
}

func dataAsJSON(_ []string, a slog.Attr) slog.Attr {
	if a.Key != DataKey || a.Value.Kind() != slog.KindAny {
		return a
	}
	if b, err := json.Marshal(a.Value.Any()); err == nil {
		a.Value = slog.StringValue(string(b))
	}
	return a
}

// consoleKeys renames the built-in attributes to what zerolog.ConsoleWriter expects.
func consoleKeys(groups []string, a slog.Attr) slog.Attr {
	if len(groups) != 0 {
		return a
	}
	switch a.Key {
	case slog.MessageKey:
		return slog.String(zerolog.MessageFieldName, a.Value.String())
	case slog.LevelKey:
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			return slog.String(slog.LevelKey, consoleLevelName(lvl))
		}
	case ErrorKey:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(zerolog.ErrorFieldName, err.Error())
		}
		a.Key = zerolog.ErrorFieldName
	}
	return a
}

/*
ecsFields maps the well known attributes to Elastic Common Schema fields,
attributes without ECS counterpart are passed on unchanged.
*/
func ecsFields(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.MessageKey:
		return slog.String("message", a.Value.String())
	case slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok {
			return slog.Group("log", slog.Group("origin",
				slog.String("function", shortFuncName(src.Function)),
				slog.Group("file", slog.String("name", src.File), slog.Int("line", src.Line)),
			))
		}
	case NodeIDKey:
		return slog.Group("service", slog.Group("node", slog.Any("name", a.Value)))
	case ErrorKey:
		return slog.Group("error", slog.Any("message", a.Value.Any()))
	case DataKey:
		return slog.Group(DataKey, slog.Any(typeNamespace(a.Value), a.Value))
	}
	return a
}

// typeNamespace is the name of the type of "v" usable as a field name, ie "types_RoundResult".
func typeNamespace(v slog.Value) string {
	if k := v.Kind(); k != slog.KindAny && k != slog.KindLogValuer {
		return k.String()
	}
	rt := reflect.TypeOf(v.Any())
	if rt == nil {
		return "nil"
	}
	return strings.ReplaceAll(strings.TrimLeft(rt.String(), "*"), ".", "_")
}

/*
shortFuncName strips the import path and package name from fully qualified
function name, "github.com/iort-labs/qtrust/orchestrator.(*Orchestrator).RunRound"
becomes "(*Orchestrator).RunRound".
*/
func shortFuncName(fn string) string {
	fn = path.Base(fn)
	if _, name, ok := strings.Cut(fn, "."); ok {
		return name
	}
	return fn
}
