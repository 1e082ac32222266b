// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stlog

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"
)

type standardLogger struct {
	out   *log.Logger
	level int32
}

func newStandardLogger(w io.Writer) *standardLogger {
	sl := log.New(w, "", log.LstdFlags)

	return &standardLogger{
		out:   sl,
		level: int32(InfoLevel),
	}
}

// New returns a Logger writing to w at the given level.
func New(w io.Writer, level LogLevel) Logger {
	l := newStandardLogger(w)
	l.out.SetFlags(0)
	l.setLevel(level)

	return l
}

func (l *standardLogger) setLevel(level LogLevel) {
	atomic.StoreInt32(&l.level, int32(level))
}

func (l *standardLogger) logLevel() LogLevel {
	return LogLevel(atomic.LoadInt32(&l.level))
}

func (l *standardLogger) Error(format string, v ...interface{}) {
	if l.logLevel() >= ErrorLevel {
		msg := errorTag + prefix + fmt.Sprintf(format, v...)
		l.out.Print(msg)
	}
}

func (l *standardLogger) Warn(format string, v ...interface{}) {
	if l.logLevel() >= WarnLevel {
		msg := warnTag + prefix + fmt.Sprintf(format, v...)
		l.out.Print(msg)
	}
}

func (l *standardLogger) Info(format string, v ...interface{}) {
	if l.logLevel() >= InfoLevel {
		msg := infoTag + prefix + fmt.Sprintf(format, v...)
		l.out.Print(msg)
	}
}

func (l *standardLogger) Debug(format string, v ...interface{}) {
	if l.logLevel() >= DebugLevel {
		msg := debugTag + prefix + fmt.Sprintf(format, v...)
		l.out.Print(msg)
	}
}
