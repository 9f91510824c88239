// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stackdriverlogger forwards build logs to Cloud Logging, for builds
// that run in CI on GCP.
package stackdriverlogger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/logging"
	"golang.org/x/webbuild/internal/derrors"
	"golang.org/x/webbuild/internal/log"
)

type labelsKey struct{}

// NewContextWithLabel creates a new context from ctx that adds a label that will
// appear in the log entry.
func NewContextWithLabel(ctx context.Context, key, value string) context.Context {
	oldLabels, _ := ctx.Value(labelsKey{}).(map[string]string)
	// Copy the labels, to preserve immutability of contexts.
	newLabels := map[string]string{}
	for k, v := range oldLabels {
		newLabels[k] = v
	}
	newLabels[key] = value
	return context.WithValue(ctx, labelsKey{}, newLabels)
}

// logger logs to GCP Cloud Logging.
type logger struct {
	sdlogger *logging.Logger
}

func stackdriverSeverity(s log.Severity) logging.Severity {
	switch s {
	case log.SeverityDefault:
		return logging.Default
	case log.SeverityDebug:
		return logging.Debug
	case log.SeverityInfo:
		return logging.Info
	case log.SeverityWarning:
		return logging.Warning
	case log.SeverityError:
		return logging.Error
	case log.SeverityCritical:
		return logging.Critical
	default:
		panic(fmt.Errorf("unknown severity: %v", s))
	}
}

func (l *logger) Log(ctx context.Context, s log.Severity, payload any) {
	// Convert errors to strings, or they may serialize as the empty JSON object.
	if err, ok := payload.(error); ok {
		payload = err.Error()
	}
	labels, _ := ctx.Value(labelsKey{}).(map[string]string)
	if id := log.TraceID(ctx); id != "" {
		nl := map[string]string{"build_id": id}
		for k, v := range labels {
			nl[k] = v
		}
		labels = nl
	}
	l.sdlogger.Log(logging.Entry{
		Severity: stackdriverSeverity(s),
		Labels:   labels,
		Payload:  payload,
	})
}

func (l *logger) Flush() {
	l.sdlogger.Flush()
}

var (
	mu            sync.Mutex
	alreadyCalled bool
)

// New creates a new log.Logger that writes to the log named logName in
// projectID. The result should be passed to log.Use.
//
// New can only be called once. If it is called a second time, it returns an error.
func New(ctx context.Context, logName, projectID string, opts ...logging.LoggerOption) (_ log.Logger, err error) {
	defer derrors.Wrap(&err, "New(ctx, %q, %q)", logName, projectID)
	mu.Lock()
	defer mu.Unlock()
	if alreadyCalled {
		return nil, errors.New("already called once")
	}
	client, err := logging.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	alreadyCalled = true
	return &logger{client.Logger(logName, opts...)}, nil
}
