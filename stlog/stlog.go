// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stlog exposes leveled logging capabilities.
//
// stlog wraps two loggers and adds log levels to them:
// There is a standard "log" package logger and another
// using the kernel syslog system.
//
// The package level functions log through a process wide default logger
// and are meant for the command line tool. Library code takes a Logger
// value instead.
package stlog

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

const (
	prefix   string = "nvtrust: "
	errorTag string = "[ERROR] "
	warnTag  string = "[WARN]  "
	infoTag  string = "[INFO]  "
	debugTag string = "[DEBUG] "
)

type LogLevel int

const (
	ErrorLevel LogLevel = iota
	WarnLevel
	InfoLevel
	DebugLevel
)

// String implements fmt.Stringer.
func (l LogLevel) String() string {
	switch l {
	case ErrorLevel:
		return "error"
	case WarnLevel:
		return "warn"
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	default:
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
}

// ParseLevel accepts the long and the one letter form of a level name.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "e", "error":
		return ErrorLevel, nil
	case "w", "warn":
		return WarnLevel, nil
	case "i", "info":
		return InfoLevel, nil
	case "d", "debug":
		return DebugLevel, nil
	default:
		return InfoLevel, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

type LogOutput int

const (
	StdError LogOutput = iota
	KernelSyslog
)

// Logger is the leveled logging sink handed to library code.
type Logger interface {
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Info(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

type levelLogger interface {
	Logger
	setLevel(level LogLevel)
	logLevel() LogLevel
}

//nolint:gochecknoglobals
var (
	mu  sync.RWMutex
	stl levelLogger = newStandardLogger(os.Stderr)
)

func current() levelLogger {
	mu.RLock()
	defer mu.RUnlock()

	return stl
}

// SetOutput sets the packages underlying logger. The log level of the
// previous logger is carried over.
func SetOutput(o LogOutput) error {
	var next levelLogger

	switch o {
	case KernelSyslog:
		kl, err := newKernelLogger()
		if err != nil {
			return err
		}

		next = kl
	default:
		next = newStandardLogger(os.Stderr)
	}

	mu.Lock()
	defer mu.Unlock()

	next.setLevel(stl.logLevel())
	stl = next

	return nil
}

// SetLevel sets the logging level of stlog package. Unknown levels fall
// back to DebugLevel.
func SetLevel(level LogLevel) {
	switch level {
	case ErrorLevel, WarnLevel, InfoLevel, DebugLevel:
	default:
		level = DebugLevel
	}

	current().setLevel(level)
}

// Level returns the log level set.
func Level() LogLevel {
	return current().logLevel()
}

// Default returns the process wide logger, for handing it to library code.
func Default() Logger {
	return defaultLogger{}
}

// defaultLogger resolves the package logger on every call, so a later
// SetOutput is honoured by Loggers obtained earlier.
type defaultLogger struct{}

func (defaultLogger) Error(format string, v ...interface{}) { Error(format, v...) }
func (defaultLogger) Warn(format string, v ...interface{})  { Warn(format, v...) }
func (defaultLogger) Info(format string, v ...interface{})  { Info(format, v...) }
func (defaultLogger) Debug(format string, v ...interface{}) { Debug(format, v...) }

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return discard{}
}

type discard struct{}

func (discard) Error(string, ...interface{}) {}
func (discard) Warn(string, ...interface{})  {}
func (discard) Info(string, ...interface{})  {}
func (discard) Debug(string, ...interface{}) {}

// Error prints error messages to the currently active logger when permitted
// by the log level. Input can be formatted according to fmt.Printf.
func Error(format string, v ...interface{}) {
	current().Error(format, v...)
}

// Warn prints waring messages to the currently active logger when permitted
// by the log level. Input can be formatted according to fmt.Printf.
func Warn(format string, v ...interface{}) {
	current().Warn(format, v...)
}

// Info prints info messages to the currently active logger when permitted
// by the log level. Input can be formatted according to fmt.Printf.
func Info(format string, v ...interface{}) {
	current().Info(format, v...)
}

// Debug prints debug messages to the currently active logger when permitted
// by the log level. Input can be formatted according to fmt.Printf.
func Debug(format string, v ...interface{}) {
	current().Debug(format, v...)
}
