// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Webbuild builds a single-page web application.
//
// Usage:
//
//	webbuild [flags] plan     # print the resolved build plan
//	webbuild [flags] build    # build once, write index.html, run checks
//	webbuild [flags] check    # run the type-checker and the linter
//	webbuild [flags] serve    # rebuild on change and serve the output
//	webbuild [flags] publish  # upload the output directory
//
// Publish skips files it has already uploaded unchanged; -force uploads
// everything.
//
// The build mode comes from -mode, or else $NODE_ENV. Other settings are
// read from webbuild.yaml in the project directory and from $WEBBUILD_*
// variables. The exit status is 2 for configuration errors and 1 for other
// failures.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/webbuild/internal/cache"
	"golang.org/x/webbuild/internal/config"
	"golang.org/x/webbuild/internal/config/buildconfig"
	"golang.org/x/webbuild/internal/dcensus"
	"golang.org/x/webbuild/internal/derrors"
	"golang.org/x/webbuild/internal/devserver"
	"golang.org/x/webbuild/internal/htmldoc"
	"golang.org/x/webbuild/internal/log"
	"golang.org/x/webbuild/internal/log/stackdriverlogger"
	"golang.org/x/webbuild/internal/plan"
	"golang.org/x/webbuild/internal/publish"
	"golang.org/x/webbuild/internal/static"
	"golang.org/x/webbuild/internal/toolchain"
	"gopkg.in/yaml.v3"
)

// errUsage reports a malformed command line.
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if err != nil && !errors.Is(err, errUsage) {
		log.Error(ctx, err)
	}
	log.Flush()
	os.Exit(derrors.ExitCode(err))
}

// options are the command-line settings. Nil fields were not given.
type options struct {
	dir    string
	force  bool
	mode   *string
	port   *int
	open   *bool
	strict *bool
}

func parseFlags(args []string, stderr io.Writer) (*options, string, error) {
	fs := flag.NewFlagSet("webbuild", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: webbuild [flags] plan|build|check|serve|publish\n")
		fs.PrintDefaults()
	}
	var (
		o      options
		mode   = fs.String("mode", "", "build mode: development or production (default $NODE_ENV)")
		port   = fs.Int("port", 0, "preview server port (default 3000)")
		open   = fs.Bool("open", true, "open a browser when the preview server starts")
		strict = fs.Bool("strict", false, "fail when the type-checker or the linter fails")
	)
	fs.StringVar(&o.dir, "dir", ".", "project directory")
	fs.BoolVar(&o.force, "force", false, "publish: upload every file, even if it is unchanged")
	if err := fs.Parse(args); err != nil {
		return nil, "", fmt.Errorf("%v: %w", err, errUsage)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			o.mode = mode
		case "port":
			o.port = port
		case "open":
			o.open = open
		case "strict":
			o.strict = strict
		}
	})
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, "", errUsage
	}
	return &o, fs.Arg(0), nil
}

// loadConfig reads the project configuration and applies the flags, which
// take precedence. The result is validated after the flags are applied.
func loadConfig(ctx context.Context, o *options) (*config.Config, error) {
	return buildconfig.Init(ctx, o.dir, func(cfg *config.Config) (err error) {
		if o.mode != nil {
			if cfg.Mode, err = config.ParseMode(*o.mode); err != nil {
				return err
			}
		}
		if o.port != nil {
			cfg.DevServer.Port = *o.port
		}
		if o.open != nil {
			cfg.DevServer.Open = *o.open
		}
		if o.strict != nil {
			cfg.StrictChecks = *o.strict
		}
		return nil
	})
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	o, cmd, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(ctx, o)
	if err != nil {
		return err
	}
	if cfg.LogProject != "" {
		logger, err := stackdriverlogger.New(ctx, "webbuild", cfg.LogProject)
		if err != nil {
			return err
		}
		log.Use(logger)
		ctx = stackdriverlogger.NewContextWithLabel(ctx, "command", cmd)
		ctx = stackdriverlogger.NewContextWithLabel(ctx, "mode", cfg.Mode.String())
	}
	buildID := uuid.NewString()
	ctx = log.NewContextWithTraceID(ctx, buildID)
	log.Debugf(ctx, "webbuild %s: mode %s, project %s", cmd, cfg.Mode, cfg.Dir)

	fsys := osfs.New(cfg.Dir)
	bp, err := plan.Resolve(cfg, fsys)
	if err != nil {
		return err
	}
	runner := toolchain.ExecRunner{}
	switch cmd {
	case "plan":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(bp); err != nil {
			return err
		}
		return enc.Close()
	case "build":
		return build(ctx, bp, fsys, runner, stdout)
	case "check":
		reports, err := toolchain.Check(ctx, bp, runner)
		printReports(stdout, reports)
		return err
	case "serve":
		return serve(ctx, bp, fsys, runner)
	case "publish":
		return publishOutput(ctx, cfg, bp, fsys, o.force, stdout)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

// build builds once and runs the checks alongside.
func build(ctx context.Context, bp *plan.BuildPlan, fsys billy.Filesystem, runner toolchain.Runner, stdout io.Writer) error {
	var (
		res     *static.Result
		doc     string
		reports []toolchain.Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res, err = static.NewBuilder(bp, fsys, runner).Build(gctx)
		if err != nil {
			return err
		}
		doc, err = htmldoc.Write(fsys, bp, htmldoc.AssetsFor(bp, res))
		return err
	})
	g.Go(func() error {
		var err error
		reports, err = toolchain.Check(gctx, bp, runner)
		return err
	})
	err := g.Wait()
	printReports(stdout, reports)
	if err != nil {
		return err
	}
	for _, o := range res.Outputs {
		fmt.Fprintf(stdout, "%-9s %8d  %s/%s\n", o.Kind, o.Bytes, bp.Output.Dir, o.Path)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(stdout, "warning: %s\n", w)
	}
	fmt.Fprintf(stdout, "%-9s %8s  %s\n", "html", "", doc)
	return nil
}

func printReports(w io.Writer, reports []toolchain.Report) {
	for _, r := range reports {
		fmt.Fprintln(w, r)
	}
}

// serve rebuilds on every change and serves the output with live reload
// until ctx is done.
func serve(ctx context.Context, bp *plan.BuildPlan, fsys billy.Filesystem, runner toolchain.Runner) error {
	if err := dcensus.Init(); err != nil {
		return err
	}
	debug, err := dcensus.NewServer()
	if err != nil {
		return err
	}
	srv := devserver.New(bp, devserver.Options{Debug: debug})

	var (
		mu    sync.Mutex
		last  *static.Result
		once  sync.Once
		built = make(chan struct{})
	)
	// writeDoc holds mu until the document is written, so a rebuild and a
	// template change cannot interleave their writes.
	writeDoc := func() {
		mu.Lock()
		defer mu.Unlock()
		if last == nil {
			return
		}
		a := htmldoc.AssetsFor(bp, last)
		a.LiveReload = devserver.LiveReloadScript
		if _, err := htmldoc.Write(fsys, bp, a); err != nil {
			log.Errorf(ctx, "%v", err)
			return
		}
		srv.Reload(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return static.NewBuilder(bp, fsys, runner).Watch(gctx, func(res *static.Result, err error) {
			srv.SetBuildError(err)
			if err != nil {
				srv.Reload(gctx)
				return
			}
			mu.Lock()
			last = res
			mu.Unlock()
			writeDoc()
			once.Do(func() { close(built) })
		})
	})
	g.Go(func() error {
		err := devserver.WatchFile(gctx, filepath.Join(bp.Dir, filepath.FromSlash(bp.HTML.Template)), writeDoc)
		if err != nil {
			// The built-in page is used and there is nothing to watch.
			log.Warningf(gctx, "not watching the HTML template: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		// Check failures are reported but do not stop the server.
		reports, err := toolchain.Check(gctx, bp, runner)
		for _, r := range reports {
			log.Info(gctx, r)
		}
		if err != nil {
			log.Errorf(gctx, "%v", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, bp.DevServer.Addr(), func(url string) {
			if !bp.DevServer.Open {
				return
			}
			go openWhenBuilt(gctx, built, runner, url)
		})
	})
	return g.Wait()
}

// openWhenBuilt opens url in a browser once built is closed, so that the
// first page shown is a built document. It gives up when ctx is done.
func openWhenBuilt(ctx context.Context, built <-chan struct{}, runner toolchain.Runner, url string) {
	select {
	case <-built:
	case <-ctx.Done():
		return
	}
	if err := devserver.OpenBrowser(ctx, runner, url); err != nil {
		log.Warningf(ctx, "opening browser: %v", err)
	}
}

func publishOutput(ctx context.Context, cfg *config.Config, bp *plan.BuildPlan, fsys billy.Filesystem, force bool, stdout io.Writer) error {
	open := func(ctx context.Context, name string) (publish.Bucket, error) {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		return publish.GCS(client)(ctx, name)
	}
	var index publish.Index
	if cfg.Publish.RedisAddr != "" {
		index = cache.New(redis.NewClient(&redis.Options{Addr: cfg.Publish.RedisAddr}), 0)
	}
	p, err := publish.New(ctx, bp, fsys, cfg.Publish, open, index)
	if err != nil {
		return err
	}
	if force {
		if err := p.Reset(ctx); err != nil {
			return err
		}
	}
	rep, err := p.Publish(ctx)
	if err != nil {
		return err
	}
	for _, o := range rep.Uploaded {
		fmt.Fprintf(stdout, "uploaded  gs://%s/%s\n", cfg.Publish.Bucket, o)
	}
	for _, o := range rep.Skipped {
		fmt.Fprintf(stdout, "unchanged gs://%s/%s\n", cfg.Publish.Bucket, o)
	}
	return nil
}
