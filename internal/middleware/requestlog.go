// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package middleware

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/logging"
	"github.com/google/uuid"
	"golang.org/x/webbuild/internal/log"
)

// RequestIDHeader carries the ID under which a request was logged.
const RequestIDHeader = "X-Webbuild-Request-Id"

// Logger receives request log entries.
type Logger interface {
	Log(logging.Entry)
}

// LocalLogger writes request log entries through the internal log package.
type LocalLogger struct{}

// Log implements the Logger interface.
func (LocalLogger) Log(entry logging.Entry) {
	var msg strings.Builder
	if r := entry.HTTPRequest; r != nil {
		msg.WriteString(strconv.Itoa(r.Status) + " ")
		if r.Request != nil {
			msg.WriteString(r.Request.Method + " " + r.Request.URL.Path + " ")
		}
		msg.WriteString(r.Latency.Round(time.Microsecond).String())
	}
	if entry.Payload != nil {
		msg.WriteString(" " + fmt.Sprint(entry.Payload))
	}
	ctx := log.NewContextWithTraceID(context.Background(), entry.Trace)
	switch entry.Severity {
	case logging.Error:
		log.Error(ctx, msg.String())
	case logging.Warning:
		log.Warning(ctx, msg.String())
	case logging.Debug:
		log.Debug(ctx, msg.String())
	default:
		log.Info(ctx, msg.String())
	}
}

// RequestLog returns a middleware that logs one entry per completed request
// with lg. Each request gets a new ID, which is returned in RequestIDHeader
// and set as the trace ID of the request context.
func RequestLog(lg Logger) Middleware {
	return func(h http.Handler) http.Handler {
		return &handler{delegate: h, logger: lg}
	}
}

type handler struct {
	delegate http.Handler
	logger   Logger
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := uuid.NewString()
	w.Header().Set(RequestIDHeader, id)
	w2 := &responseWriter{ResponseWriter: w}
	h.delegate.ServeHTTP(w2, r.WithContext(log.NewContextWithTraceID(r.Context(), id)))

	severity := logging.Info
	switch {
	case w2.status >= 500:
		severity = logging.Error
	case w2.status == http.StatusNotFound:
		severity = logging.Warning
	case w2.status == http.StatusNotModified:
		severity = logging.Debug
	}
	h.logger.Log(logging.Entry{
		HTTPRequest: &logging.HTTPRequest{
			Request: r,
			Status:  translateStatus(w2.status),
			Latency: time.Since(start),
		},
		Severity: severity,
		Trace:    id,
	})
}

type responseWriter struct {
	http.ResponseWriter

	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

// Hijack lets websocket handlers take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("middleware: response writer cannot be hijacked")
	}
	rw.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func translateStatus(code int) int {
	if code == 0 {
		return http.StatusOK
	}
	return code
}
