// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dcensus provides functionality for debug instrumentation of builds
// and of the preview server.
package dcensus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/plugin/ochttp"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
	"golang.org/x/webbuild/internal/derrors"
)

// RouteTagger is a func that can be used to derive a dynamic route tag for an
// incoming request.
type RouteTagger func(route string, r *http.Request) string

// Router is an http multiplexer that instruments per-handler debugging
// information and census instrumentation.
type Router struct {
	http.Handler
	mux    *http.ServeMux
	tagger RouteTagger
}

// NewRouter creates a new Router, using tagger to tag incoming requests in
// monitoring. If tagger is nil, a default route tagger is used.
func NewRouter(tagger RouteTagger) *Router {
	if tagger == nil {
		tagger = func(route string, r *http.Request) string {
			return strings.Trim(route, "/")
		}
	}
	mux := http.NewServeMux()
	return &Router{
		mux:     mux,
		Handler: &ochttp.Handler{Handler: mux},
		tagger:  tagger,
	}
}

// Handle registers handler with the given route. It has the same routing
// semantics as http.ServeMux.
func (r *Router) Handle(route string, handler http.Handler) {
	r.mux.HandleFunc(route, func(w http.ResponseWriter, req *http.Request) {
		tag := r.tagger(route, req)
		ochttp.SetRoute(req.Context(), tag)
		handler.ServeHTTP(w, req)
	})
}

// HandleFunc is a wrapper around Handle for http.HandlerFuncs.
func (r *Router) HandleFunc(route string, handler http.HandlerFunc) {
	r.Handle(route, handler)
}

// Init registers the given views, or all views of this package if none are
// given.
func Init(views ...*view.View) error {
	if len(views) == 0 {
		views = Views
	}
	if err := view.Register(views...); err != nil {
		return fmt.Errorf("view.Register: %v", err)
	}
	return nil
}

// NewServer creates a new http.Handler for serving debug information.
func NewServer() (http.Handler, error) {
	pe, err := prometheus.NewExporter(prometheus.Options{Namespace: "webbuild"})
	if err != nil {
		return nil, fmt.Errorf("prometheus.NewExporter: %v", err)
	}
	view.RegisterExporter(pe)
	mux := http.NewServeMux()
	mux.Handle("/statsz", pe)
	return mux, nil
}

var (
	keyMode    = tag.MustNewKey("webbuild.mode")
	keyOutcome = tag.MustNewKey("webbuild.outcome")

	buildLatency = stats.Float64(
		"webbuild/build/latency",
		"Latency of a bundling engine run",
		stats.UnitMilliseconds,
	)

	// BuildLatency is the distribution of build latencies by mode and
	// outcome.
	BuildLatency = &view.View{
		Name:        "webbuild/build/latency",
		Measure:     buildLatency,
		Aggregation: ochttp.DefaultLatencyDistribution,
		Description: "Build latency, by mode and outcome",
		TagKeys:     []tag.Key{keyMode, keyOutcome},
	}

	// BuildCount counts builds by mode and outcome.
	BuildCount = &view.View{
		Name:        "webbuild/build/count",
		Measure:     buildLatency,
		Aggregation: view.Count(),
		Description: "Build count, by mode and outcome",
		TagKeys:     []tag.Key{keyMode, keyOutcome},
	}

	// ServerResponseCount is a view of preview server responses
	// parameterized by status code and route.
	ServerResponseCount = &view.View{
		Name:        "opencensus.io/http/server/response_count_by_status_code",
		Description: "Server response count by status code",
		TagKeys:     []tag.Key{ochttp.StatusCode, ochttp.KeyServerRoute},
		Measure:     ochttp.ServerLatency,
		Aggregation: view.Count(),
	}

	// Views are all the views of this package.
	Views = []*view.View{BuildLatency, BuildCount, ServerResponseCount}
)

// Outcome classifies a build error for tagging.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, derrors.Configuration):
		return "configuration_error"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "build_error"
	}
}

// RecordBuild records the latency and outcome of one build.
func RecordBuild(ctx context.Context, mode string, err error, d time.Duration) {
	ctx, terr := tag.New(ctx,
		tag.Upsert(keyMode, mode),
		tag.Upsert(keyOutcome, Outcome(err)))
	if terr != nil {
		return
	}
	stats.Record(ctx, buildLatency.M(float64(d)/float64(time.Millisecond)))
}
