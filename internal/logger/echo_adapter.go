package logger

import (
	"fmt"
	"io"
	"sync/atomic"

	echolog "github.com/labstack/gommon/log"
)

// EchoLoggerAdapter lets echo write through a module Logger:
//
//	e := echo.New()
//	e.Logger = logger.NewEchoLoggerAdapter(logger.Global().Module("http"), echolog.INFO)
type EchoLoggerAdapter struct {
	logger Logger
	level  atomic.Uint32
}

// NewEchoLoggerAdapter creates an adapter that drops messages below level
func NewEchoLoggerAdapter(log Logger, level echolog.Lvl) *EchoLoggerAdapter {
	if log == nil {
		log = NewDiscard()
	}
	a := &EchoLoggerAdapter{logger: log}
	a.level.Store(uint32(level))
	return a
}

// EchoLevel maps a configured level name to echo's level
func EchoLevel(level string) echolog.Lvl {
	switch LogLevel(level) {
	case LogLevelTrace, LogLevelDebug:
		return echolog.DEBUG
	case LogLevelWarn:
		return echolog.WARN
	case LogLevelError:
		return echolog.ERROR
	default:
		return echolog.INFO
	}
}

func (a *EchoLoggerAdapter) enabled(l echolog.Lvl) bool {
	return uint32(l) >= a.level.Load()
}

// Output is unused; output is owned by the central logger
func (a *EchoLoggerAdapter) Output() io.Writer   { return io.Discard }
func (a *EchoLoggerAdapter) SetOutput(io.Writer) {}
func (a *EchoLoggerAdapter) Prefix() string      { return "" }
func (a *EchoLoggerAdapter) SetPrefix(string)    {}
func (a *EchoLoggerAdapter) SetHeader(string)    {}

func (a *EchoLoggerAdapter) Level() echolog.Lvl {
	return echolog.Lvl(a.level.Load())
}

func (a *EchoLoggerAdapter) SetLevel(l echolog.Lvl) {
	a.level.Store(uint32(l))
}

func (a *EchoLoggerAdapter) Print(i ...any) { a.Info(i...) }
func (a *EchoLoggerAdapter) Printf(format string, args ...any) {
	a.Infof(format, args...)
}
func (a *EchoLoggerAdapter) Printj(j echolog.JSON) { a.Infoj(j) }

func (a *EchoLoggerAdapter) Debug(i ...any) {
	if a.enabled(echolog.DEBUG) {
		a.logger.Debug(fmt.Sprint(i...))
	}
}

func (a *EchoLoggerAdapter) Debugf(format string, args ...any) {
	if a.enabled(echolog.DEBUG) {
		a.logger.Debug(fmt.Sprintf(format, args...))
	}
}

func (a *EchoLoggerAdapter) Debugj(j echolog.JSON) {
	if a.enabled(echolog.DEBUG) {
		a.logger.Debug("echo", Any("data", j))
	}
}

func (a *EchoLoggerAdapter) Info(i ...any) {
	if a.enabled(echolog.INFO) {
		a.logger.Info(fmt.Sprint(i...))
	}
}

func (a *EchoLoggerAdapter) Infof(format string, args ...any) {
	if a.enabled(echolog.INFO) {
		a.logger.Info(fmt.Sprintf(format, args...))
	}
}

func (a *EchoLoggerAdapter) Infoj(j echolog.JSON) {
	if a.enabled(echolog.INFO) {
		a.logger.Info("echo", Any("data", j))
	}
}

func (a *EchoLoggerAdapter) Warn(i ...any) {
	if a.enabled(echolog.WARN) {
		a.logger.Warn(fmt.Sprint(i...))
	}
}

func (a *EchoLoggerAdapter) Warnf(format string, args ...any) {
	if a.enabled(echolog.WARN) {
		a.logger.Warn(fmt.Sprintf(format, args...))
	}
}

func (a *EchoLoggerAdapter) Warnj(j echolog.JSON) {
	if a.enabled(echolog.WARN) {
		a.logger.Warn("echo", Any("data", j))
	}
}

func (a *EchoLoggerAdapter) Error(i ...any) { a.logger.Error(fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...))
}
func (a *EchoLoggerAdapter) Errorj(j echolog.JSON) { a.logger.Error("echo", Any("data", j)) }

// Fatal logs at error and panics so the server can shut down cleanly
func (a *EchoLoggerAdapter) Fatal(i ...any) {
	msg := fmt.Sprint(i...)
	a.logger.Error(msg)
	panic("echo fatal error: " + msg)
}

func (a *EchoLoggerAdapter) Fatalf(format string, args ...any) {
	a.Fatal(fmt.Sprintf(format, args...))
}

func (a *EchoLoggerAdapter) Fatalj(j echolog.JSON) {
	a.Fatal(fmt.Sprint(j))
}

func (a *EchoLoggerAdapter) Panic(i ...any) {
	msg := fmt.Sprint(i...)
	a.logger.Error(msg)
	panic(msg)
}

func (a *EchoLoggerAdapter) Panicf(format string, args ...any) {
	a.Panic(fmt.Sprintf(format, args...))
}

func (a *EchoLoggerAdapter) Panicj(j echolog.JSON) {
	a.logger.Error("echo panic", Any("data", j))
	panic(j)
}
