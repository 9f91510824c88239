// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package devserver implements the preview server: it serves a build's
// output directory and tells connected pages to reload after every rebuild.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/webbuild/internal/dcensus"
	"golang.org/x/webbuild/internal/log"
	"golang.org/x/webbuild/internal/middleware"
	"golang.org/x/webbuild/internal/middleware/timeout"
	"golang.org/x/webbuild/internal/plan"
)

const (
	// LiveReloadPath is the websocket endpoint pages connect to.
	LiveReloadPath = "/__webbuild/livereload"
	// LiveReloadScript is the URL of the client script that connects to
	// LiveReloadPath.
	LiveReloadScript = "/__webbuild/livereload.js"
	// DebugPrefix is where the debug handler is mounted.
	DebugPrefix = "/__webbuild/debug"
)

// Options configures a Server.
type Options struct {
	// Logger receives request logs. Nil means middleware.LocalLogger.
	Logger middleware.Logger
	// Debug, if non-nil, is served under DebugPrefix.
	Debug http.Handler
	// RequestTimeout bounds each request other than websocket upgrades.
	// Zero means no limit.
	RequestTimeout time.Duration
}

// A Server serves the output directory of a plan.
type Server struct {
	plan   *plan.BuildPlan
	outDir string
	opts   Options
	hub    *hub

	mu       sync.Mutex
	buildErr error
}

// New returns a server for the output of bp.
func New(bp *plan.BuildPlan, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = middleware.LocalLogger{}
	}
	return &Server{
		plan:   bp,
		outDir: filepath.Join(bp.Dir, filepath.FromSlash(bp.Output.Dir)),
		opts:   opts,
		hub:    newHub(),
	}
}

// Handler returns the server's http handler.
func (s *Server) Handler() http.Handler {
	r := dcensus.NewRouter(func(route string, req *http.Request) string {
		if route == "/" {
			return "files"
		}
		return route
	})
	files := middleware.Chain(
		middleware.AcceptMethods(http.MethodGet, http.MethodHead),
		middleware.CacheControl(),
		s.overlay,
	)(http.FileServer(http.Dir(s.outDir)))
	r.Handle("/", files)
	r.Handle(LiveReloadPath, s.hub.handler())
	r.HandleFunc(LiveReloadScript, serveClient)
	if s.opts.Debug != nil {
		r.Handle(DebugPrefix+"/", http.StripPrefix(DebugPrefix, s.opts.Debug))
	}
	return middleware.Chain(
		middleware.Panic(nil),
		middleware.RequestLog(s.opts.Logger),
		middleware.When(s.opts.RequestTimeout > 0, timeout.Timeout(s.opts.RequestTimeout)),
	)(r)
}

// Reload tells every connected page to reload and returns how many were
// told.
func (s *Server) Reload(ctx context.Context) int {
	n := s.hub.broadcast(reloadMessage)
	log.Debugf(ctx, "reloaded %d page(s)", n)
	return n
}

// Clients returns the number of connected pages.
func (s *Server) Clients() int {
	return s.hub.count()
}

// ListenAndServe listens on addr and serves until ctx is done. Once the
// listener is up, ready is called with the server's URL.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(url string)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("devserver: %v", err)
	}
	return s.Serve(ctx, ln, ready)
}

// Serve is like ListenAndServe but accepts connections on ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener, ready func(url string)) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	url := "http://" + ln.Addr().String() + "/"

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.hub.closeAll()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	log.Infof(ctx, "serving %s at %s", s.plan.Output.Dir, url)
	if ready != nil {
		ready(url)
	}
	return g.Wait()
}
