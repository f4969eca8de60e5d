package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	scierrors "github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

// ZerologProvider is the default LoggerProvider. Every logger it hands out
// shares one output and one level, so SetLevel takes effect immediately.
type ZerologProvider struct {
	root  zerolog.Logger
	level atomic.Int64
}

// NewZerologProvider creates a provider writing JSON lines to stderr.
func NewZerologProvider(level slog.Level) *ZerologProvider {
	return NewZerologProviderWithWriter(os.Stderr, level)
}

// NewZerologProviderWithWriter creates a provider writing JSON lines to w.
func NewZerologProviderWithWriter(w io.Writer, level slog.Level) *ZerologProvider {
	p := &ZerologProvider{
		root: zerolog.New(w).With().Timestamp().Logger(),
	}
	p.level.Store(int64(level))
	return p
}

func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{p: p, zl: p.root}
}

func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{p: p, zl: p.root.With().Str(ComponentKey, name).Logger()}
}

func (p *ZerologProvider) SetLevel(level Level) {
	p.level.Store(int64(level))
}

type zerologLogger struct {
	p  *ZerologProvider
	zl zerolog.Logger
}

func (l *zerologLogger) enabled(level Level) bool {
	return level >= Level(l.p.level.Load())
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	if l.enabled(LevelDebug) {
		emit(l.zl.Debug(), msg, fields)
	}
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	if l.enabled(LevelInfo) {
		emit(l.zl.Info(), msg, fields)
	}
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	if l.enabled(LevelWarn) {
		emit(l.zl.Warn(), msg, fields)
	}
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	if !l.enabled(LevelError) {
		return
	}
	ev := l.zl.Error()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = withError(ev, err)
			fields = fields[1:]
		}
	}
	emit(ev, msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case string:
			ctx = ctx.Str(key, v)
		case int:
			ctx = ctx.Int(key, v)
		case float64:
			ctx = ctx.Float64(key, v)
		case error:
			ctx = ctx.AnErr(key, v)
		default:
			ctx = ctx.Interface(key, v)
		}
	}
	return &zerologLogger{p: l.p, zl: ctx.Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.enabled(level)
}

func withError(ev *zerolog.Event, err error) *zerolog.Event {
	ev = ev.Err(err)
	if st := extractStacktrace(err); st != "" {
		ev = ev.Str(StacktraceAttrKey, st)
	}
	var m zerolog.LogObjectMarshaler
	if scierrors.As(err, &m) {
		ev = ev.Object("detail", m)
	}
	return ev
}

func emit(ev *zerolog.Event, msg string, fields []any) {
	for i := 0; i < len(fields); i += 2 {
		if i+1 == len(fields) {
			ev = ev.Interface("!BADKEY", fields[i])
			break
		}
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case string:
			ev = ev.Str(key, v)
		case int:
			ev = ev.Int(key, v)
		case int64:
			ev = ev.Int64(key, v)
		case float64:
			ev = ev.Float64(key, v)
		case bool:
			ev = ev.Bool(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		case error:
			ev = ev.AnErr(key, v)
		case zerolog.LogObjectMarshaler:
			ev = ev.Object(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

var (
	globalMu       sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(slog.LevelInfo)
)

// SetProvider replaces the process-wide provider and routes library warnings
// from pkg/errors through it.
func SetProvider(p LoggerProvider) {
	globalMu.Lock()
	globalProvider = p
	globalMu.Unlock()

	warnLogger := p.GetLoggerWithName("warnings")
	scierrors.SetZerologWarnFunc(func(w error) {
		fields := []any{ErrorTypeKey, fmt.Sprintf("%T", w)}
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			fields = append(fields, "detail", m)
		}
		warnLogger.Warn(w.Error(), fields...)
	})
}

// GetProvider returns the process-wide provider.
func GetProvider() LoggerProvider {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider
}

// GetLogger returns the default logger of the process-wide provider.
func GetLogger() Logger {
	return GetProvider().GetLogger()
}

// GetLoggerWithName returns a component logger of the process-wide provider.
func GetLoggerWithName(name string) Logger {
	return GetProvider().GetLoggerWithName(name)
}
