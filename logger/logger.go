package logger

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Level is a named logger's verbosity threshold. Trace is finer than
// zap's Debug; trace records are emitted at Debug with a trace marker.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// Logger is a named logger with its own level threshold, writing
// through the registry's shared zap base.
type Logger struct {
	name string
	lvl  atomic.Int32

	mu sync.Mutex
	z  *zap.Logger
}

// Name returns the logger's registered name.
func (l *Logger) Name() string {
	return l.name
}

// Level returns the current threshold.
func (l *Logger) Level() Level {
	return Level(l.lvl.Load())
}

// SetLevel changes the threshold.
func (l *Logger) SetLevel(lvl Level) {
	l.lvl.Store(int32(lvl))
}

// Enabled reports whether records at lvl pass the threshold.
func (l *Logger) Enabled(lvl Level) bool {
	return lvl <= l.Level()
}

func (l *Logger) zlog() *zap.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.z
}

func (l *Logger) log(lvl Level, msg string, fields ...zap.Field) {
	if !l.Enabled(lvl) {
		return
	}
	z := l.zlog()
	switch lvl {
	case LevelError:
		z.Error(msg, fields...)
	case LevelWarn:
		z.Warn(msg, fields...)
	case LevelInfo:
		z.Info(msg, fields...)
	case LevelDebug:
		z.Debug(msg, fields...)
	case LevelTrace:
		z.Debug(msg, append(fields, zap.Bool("trace", true))...)
	}
}

func (l *Logger) Error(msg string, fields ...zap.Field) { l.log(LevelError, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.log(LevelWarn, msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.log(LevelInfo, msg, fields...) }
func (l *Logger) Debug(msg string, fields ...zap.Field) { l.log(LevelDebug, msg, fields...) }
func (l *Logger) Trace(msg string, fields ...zap.Field) { l.log(LevelTrace, msg, fields...) }

type registry struct {
	mu      sync.Mutex
	base    *zap.Logger
	loggers map[string]*Logger
}

var reg = &registry{
	base:    zap.NewNop(),
	loggers: make(map[string]*Logger),
}

// Named returns the logger registered under name, creating it at Info
// level on first use. Loggers are process-wide: two calls with the
// same name share state.
func Named(name string) *Logger {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if l, ok := reg.loggers[name]; ok {
		return l
	}
	l := &Logger{name: name, z: reg.base.Named(name)}
	l.lvl.Store(int32(LevelInfo))
	reg.loggers[name] = l
	return l
}

// SetBase rewires every registered logger, present and future, onto a
// new zap base.
func SetBase(base *zap.Logger) {
	if base == nil {
		base = zap.NewNop()
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.base = base
	for name, l := range reg.loggers {
		l.mu.Lock()
		l.z = base.Named(name)
		l.mu.Unlock()
	}
}

// SetAllLevels applies one threshold to every registered logger.
func SetAllLevels(lvl Level) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, l := range reg.loggers {
		l.SetLevel(lvl)
	}
}

// Names returns the registered logger names.
func Names() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	names := make([]string, 0, len(reg.loggers))
	for name := range reg.loggers {
		names = append(names, name)
	}
	return names
}
