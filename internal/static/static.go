// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !plan9

// Package static bundles a project's scripts, styles and assets according to
// a build plan, using github.com/evanw/esbuild.
package static

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/webbuild/internal/dcensus"
	"golang.org/x/webbuild/internal/derrors"
	"golang.org/x/webbuild/internal/log"
	"golang.org/x/webbuild/internal/plan"
	"golang.org/x/webbuild/internal/toolchain"
)

// Options translates bp into bundler options. The result has no plugins;
// rules that need one are implemented by a Builder.
func Options(bp *plan.BuildPlan) api.BuildOptions {
	opts := api.BuildOptions{
		EntryPoints:       []string{"./" + bp.EntryPoint},
		AbsWorkingDir:     bp.Dir,
		Outdir:            filepath.Join(bp.Dir, filepath.FromSlash(bp.Output.Dir)),
		PublicPath:        bp.Output.PublicPath,
		Bundle:            true,
		Write:             true,
		Metafile:          true,
		Platform:          api.PlatformBrowser,
		Format:            api.FormatESModule,
		EntryNames:        bp.Output.Scripts.Template(),
		AssetNames:        bp.Output.Assets.Template(),
		ResolveExtensions: append([]string(nil), bp.Resolve.Extensions...),
		Loader:            loaders(),
		LogLevel:          api.LogLevelSilent,
	}
	if bp.Splitting.Enabled() {
		opts.Splitting = true
		// Every shared chunk is called "chunk", so chunk names always
		// carry the hash.
		opts.ChunkNames = "[name].[hash]"
	}
	if bp.SourceMap {
		opts.Sourcemap = api.SourceMapLinked
	}
	if bp.Minify {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}
	if bp.Mode != "" {
		opts.Define = map[string]string{
			"process.env.NODE_ENV": strconv.Quote(string(bp.Mode)),
		}
	}
	return opts
}

// loaders maps file extensions to the bundler's built-in loaders. Components
// and preprocessed styles are handled by plugins.
func loaders() map[string]api.Loader {
	m := map[string]api.Loader{
		".ts":   api.LoaderTS,
		".tsx":  api.LoaderTSX,
		".js":   api.LoaderJS,
		".jsx":  api.LoaderJSX,
		".mjs":  api.LoaderJS,
		".cjs":  api.LoaderJS,
		".json": api.LoaderJSON,
		".css":  api.LoaderCSS,
	}
	for _, ext := range plan.AssetExtensions {
		m["."+ext] = api.LoaderFile
	}
	return m
}

// A Builder runs builds for one plan.
type Builder struct {
	plan     *plan.BuildPlan
	fs       billy.Filesystem
	runner   toolchain.Runner
	resolver *plan.ModuleResolver
	compiled *compileCache
}

// NewBuilder returns a Builder for bp. fsys must be rooted at bp.Dir. The
// runner executes the style preprocessor and the component compiler.
func NewBuilder(bp *plan.BuildPlan, fsys billy.Filesystem, r toolchain.Runner) *Builder {
	return &Builder{
		plan:     bp,
		fs:       fsys,
		runner:   r,
		resolver: bp.NewModuleResolver(fsys),
		compiled: newCompileCache(256),
	}
}

// Build runs one build and returns the emitted files. When the plan asks for
// it, the output directory is removed first.
//
// Errors raised while applying the plan's rules, such as an import of a file
// type no rule covers or a missing alias target, keep their
// derrors.Configuration classification. Other bundler errors wrap
// derrors.BuildFailed.
func (b *Builder) Build(ctx context.Context) (_ *Result, err error) {
	defer derrors.Wrap(&err, "Build(%s)", b.plan.Mode)

	start := time.Now()
	defer func() {
		dcensus.RecordBuild(ctx, b.plan.Mode.String(), err, time.Since(start))
	}()

	if err := b.clean(); err != nil {
		return nil, err
	}
	st := &buildState{}
	opts := Options(b.plan)
	opts.Plugins = b.plugins(ctx, st)
	result := api.Build(opts)
	return b.result(&result, st)
}

// Watch builds the project, then rebuilds it whenever one of its inputs
// changes, until ctx is done. onRebuild is called after every build,
// including the first, with its result or error.
func (b *Builder) Watch(ctx context.Context, onRebuild func(*Result, error)) (err error) {
	defer derrors.Wrap(&err, "Watch(%s)", b.plan.Mode)

	if err := b.clean(); err != nil {
		return err
	}
	st := &buildState{}
	opts := Options(b.plan)
	opts.Plugins = append(b.plugins(ctx, st), api.Plugin{
		Name: "webbuild-rebuild",
		Setup: func(pb api.PluginBuild) {
			var start time.Time
			pb.OnStart(func() (api.OnStartResult, error) {
				st.reset()
				start = time.Now()
				return api.OnStartResult{}, nil
			})
			pb.OnEnd(func(r *api.BuildResult) (api.OnEndResult, error) {
				res, err := b.result(r, st)
				dcensus.RecordBuild(ctx, b.plan.Mode.String(), err, time.Since(start))
				if err != nil {
					log.Errorf(ctx, "rebuild: %v", err)
				} else {
					log.Infof(ctx, "rebuilt %s in %s", res.Entry, time.Since(start).Round(time.Millisecond))
				}
				onRebuild(res, err)
				return api.OnEndResult{}, nil
			})
		},
	})
	bctx, cerr := api.Context(opts)
	if cerr != nil {
		return fmt.Errorf("%w: %s", derrors.BuildFailed, formatMessages(cerr.Errors, api.ErrorMessage))
	}
	defer bctx.Dispose()
	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (b *Builder) clean() error {
	if !b.plan.Output.Clean {
		return nil
	}
	if err := util.RemoveAll(b.fs, b.plan.Output.Dir); err != nil {
		return fmt.Errorf("cleaning %s: %v", b.plan.Output.Dir, err)
	}
	return nil
}

func (b *Builder) result(r *api.BuildResult, st *buildState) (*Result, error) {
	if err := st.err(); err != nil {
		return nil, err
	}
	if len(r.Errors) > 0 {
		return nil, fmt.Errorf("%w: %d error(s)\n%s", derrors.BuildFailed, len(r.Errors), formatMessages(r.Errors, api.ErrorMessage))
	}
	res, err := parseMetafile(b.plan, r.Metafile)
	if err != nil {
		return nil, err
	}
	res.addOutputs(st.outputs())
	for _, w := range r.Warnings {
		res.Warnings = append(res.Warnings, w.Text)
	}
	return res, nil
}

// rel returns the project-relative, slash-separated form of an absolute
// path seen by the bundler.
func (b *Builder) rel(p string) string {
	r, err := filepath.Rel(b.plan.Dir, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(r)
}

func formatMessages(msgs []api.Message, kind api.MessageKind) string {
	return strings.Join(api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: kind}), "")
}

// A buildState collects what plugin callbacks produce during one build:
// the errors they return, which the bundler reduces to text, and the files
// written by nested style builds, which the bundler's metadata does not
// list.
type buildState struct {
	mu      sync.Mutex
	errs    []error
	emitted []Output
}

func (s *buildState) add(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
	return err
}

// err returns the first configuration error, or else the first error.
func (s *buildState) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, err := range s.errs {
		if errors.Is(err, derrors.Configuration) {
			return err
		}
	}
	if len(s.errs) > 0 {
		return s.errs[0]
	}
	return nil
}

func (s *buildState) emit(o Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitted = append(s.emitted, o)
}

// outputs returns the emitted files in the order they were written.
func (s *buildState) outputs() []Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Output(nil), s.emitted...)
}

func (s *buildState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = nil
	s.emitted = nil
}
