// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log supports structured and unstructured logging with levels.
package log

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// Severity is the severity of a log entry.
type Severity int

const (
	SeverityDefault Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityDefault:
		return "Default"
	case SeverityDebug:
		return "Debug"
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	case SeverityCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

func toLevel(v string) Severity {
	switch strings.ToLower(v) {
	case "debug":
		return SeverityDebug
	case "info":
		return SeverityInfo
	case "warning":
		return SeverityWarning
	case "error":
		return SeverityError
	case "fatal":
		return SeverityCritical
	default:
		return SeverityDefault
	}
}

// A Logger receives every log entry that passes the current level.
type Logger interface {
	Log(ctx context.Context, s Severity, payload any)
	Flush()
}

var (
	mu           sync.Mutex
	logger       Logger = stdlibLogger{}
	currentLevel        = SeverityDefault
)

// Use sets the logger that receives log entries.
func Use(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// SetLevel sets the minimum severity that is logged. An empty or unknown
// value logs everything.
func SetLevel(v string) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = toLevel(v)
}

func getLevel() Severity {
	mu.Lock()
	defer mu.Unlock()
	return currentLevel
}

type traceIDKey struct{}

// NewContextWithTraceID creates a new context from ctx that adds the trace ID.
// webbuild uses one trace ID per build invocation.
func NewContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceID returns the trace ID stored in ctx, or the empty string.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// stdlibLogger uses the Go standard library logger.
type stdlibLogger struct{}

func (stdlibLogger) Log(ctx context.Context, s Severity, payload any) {
	if traceID := TraceID(ctx); traceID != "" {
		log.Printf("%s (build %s): %+v", s, traceID, payload)
	} else {
		log.Printf("%s: %+v", s, payload)
	}
}

func (stdlibLogger) Flush() {}

// Infof logs a formatted string at the Info level.
func Infof(ctx context.Context, format string, args ...any) {
	logf(ctx, SeverityInfo, format, args)
}

// Warningf logs a formatted string at the Warning level.
func Warningf(ctx context.Context, format string, args ...any) {
	logf(ctx, SeverityWarning, format, args)
}

// Errorf logs a formatted string at the Error level.
func Errorf(ctx context.Context, format string, args ...any) {
	logf(ctx, SeverityError, format, args)
}

// Debugf logs a formatted string at the Debug level.
func Debugf(ctx context.Context, format string, args ...any) {
	logf(ctx, SeverityDebug, format, args)
}

// Fatalf is equivalent to Errorf followed by exiting the program.
func Fatalf(ctx context.Context, format string, args ...any) {
	Errorf(ctx, format, args...)
	die()
}

func logf(ctx context.Context, s Severity, format string, args []any) {
	doLog(ctx, s, fmt.Sprintf(format, args...))
}

// Info logs arg, which can be a string or a struct, at the Info level.
func Info(ctx context.Context, arg any) { doLog(ctx, SeverityInfo, arg) }

// Warning logs arg, which can be a string or a struct, at the Warning level.
func Warning(ctx context.Context, arg any) { doLog(ctx, SeverityWarning, arg) }

// Error logs arg, which can be a string or a struct, at the Error level.
func Error(ctx context.Context, arg any) { doLog(ctx, SeverityError, arg) }

// Debug logs arg, which can be a string or a struct, at the Debug level.
func Debug(ctx context.Context, arg any) { doLog(ctx, SeverityDebug, arg) }

// Fatal is equivalent to Error followed by exiting the program.
func Fatal(ctx context.Context, arg any) {
	Error(ctx, arg)
	die()
}

func doLog(ctx context.Context, s Severity, payload any) {
	if getLevel() > s {
		return
	}
	mu.Lock()
	l := logger
	mu.Unlock()
	l.Log(ctx, s, payload)
}

// Flush flushes the current logger.
func Flush() {
	mu.Lock()
	l := logger
	mu.Unlock()
	l.Flush()
}

func die() {
	Flush()
	os.Exit(1)
}
