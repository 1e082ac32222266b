// Copyright 2021 the System Transparency Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stlog

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for _, tt := range []struct {
		input string
		want  LogLevel
		err   error
	}{
		{input: "e", want: ErrorLevel},
		{input: "error", want: ErrorLevel},
		{input: "w", want: WarnLevel},
		{input: "WARN", want: WarnLevel},
		{input: "i", want: InfoLevel},
		{input: "info", want: InfoLevel},
		{input: "d", want: DebugLevel},
		{input: "debug", want: DebugLevel},
		{input: "verbose", want: InfoLevel, err: ErrUnknownLevel},
	} {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if !errors.Is(err, tt.err) {
				t.Fatalf("ParseLevel(%q) err = %v, want %v", tt.input, err, tt.err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	defer SetLevel(Level())

	for _, tt := range []struct {
		name  string
		level LogLevel
		want  LogLevel
	}{
		{"error", ErrorLevel, ErrorLevel},
		{"warn", WarnLevel, WarnLevel},
		{"info", InfoLevel, InfoLevel},
		{"debug", DebugLevel, DebugLevel},
		{"invalid defaults to debug", 5, DebugLevel},
	} {
		t.Run(tt.name, func(t *testing.T) {
			SetLevel(tt.level)
			if got := Level(); got != tt.want {
				t.Errorf("Level() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("nothing %d", 1)
	l.Warn("nothing %d", 2)
	l.Info("nothing %d", 3)
	l.Debug("nothing %d", 4)
}

func TestPackageLevelFunctions(t *testing.T) {
	var buf bytes.Buffer

	mu.Lock()
	prev := stl
	stl = newStandardLogger(&buf)
	mu.Unlock()

	defer func() {
		mu.Lock()
		stl = prev
		mu.Unlock()
	}()

	SetLevel(DebugLevel)
	Error("bad %s", "thing")
	Default().Warn("careful")

	out := buf.String()
	if !strings.Contains(out, "[ERROR] nvtrust: bad thing") {
		t.Errorf("output %q misses the error line", out)
	}

	if !strings.Contains(out, "[WARN]  nvtrust: careful") {
		t.Errorf("output %q misses the warn line", out)
	}
}

func TestErrUnknownLevel(t *testing.T) {
	_, err := ParseLevel("loud")

	var target setupError
	if !errors.As(err, &target) {
		t.Fatalf("ParseLevel err = %v, want a setupError", err)
	}

	if got, want := err.Error(), `unknown log level: "loud"`; got != want {
		t.Errorf("err.Error() = %q, want %q", got, want)
	}
}
