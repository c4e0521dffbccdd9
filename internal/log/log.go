// Package log provides the contextual, per-module logger used throughout
// graelnode. It follows the same module-scoped-logger idiom as klaytn's
// storage/database package (log.NewModuleLogger(log.StorageDatabase)),
// backed by go.uber.org/zap's sugared logger instead of a hand-rolled
// formatter.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module names, mirroring the klaytn convention of one constant per
// subsystem that owns a logger.
const (
	ModuleBlockchain = "blockchain"
	ModuleIndex      = "index"
	ModuleBlockLog   = "blocklog"
	ModuleMempool    = "mempool"
	ModuleMinter     = "minter"
	ModuleWire       = "wire"
	ModuleConn       = "conn"
	ModuleSub        = "subscriptions"
	ModuleCmd        = "cmd"
)

// Logger is a contextual logger: New attaches key/value pairs that are
// included on every subsequent call.
type Logger interface {
	New(ctx ...interface{}) Logger
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

var (
	once base

	mu    sync.Mutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

type base struct {
	s *zap.SugaredLogger
}

func root() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if once.s == nil {
		enc := zap.NewProductionEncoderConfig()
		enc.TimeKey = "ts"
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(enc),
			zapcore.Lock(os.Stderr),
			level,
		)
		once.s = zap.New(core).Sugar()
	}
	return once.s
}

// SetDebug switches every module logger to debug verbosity.
func SetDebug(on bool) {
	if on {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
}

type sugarLogger struct {
	s    *zap.SugaredLogger
	name string
}

// NewModuleLogger returns the logger scoped to a single subsystem, e.g.
//
//	var logger = log.NewModuleLogger(log.ModuleIndex)
func NewModuleLogger(module string) Logger {
	return &sugarLogger{s: root().With("module", module), name: module}
}

func (l *sugarLogger) New(ctx ...interface{}) Logger {
	return &sugarLogger{s: l.s.With(ctx...), name: l.name}
}

func (l *sugarLogger) Trace(msg string, ctx ...interface{}) { l.s.Debugw(msg, ctx...) }
func (l *sugarLogger) Debug(msg string, ctx ...interface{}) { l.s.Debugw(msg, ctx...) }
func (l *sugarLogger) Info(msg string, ctx ...interface{})  { l.s.Infow(msg, ctx...) }
func (l *sugarLogger) Warn(msg string, ctx ...interface{})  { l.s.Warnw(msg, ctx...) }
func (l *sugarLogger) Error(msg string, ctx ...interface{}) { l.s.Errorw(msg, ctx...) }
