// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !plan9

package static

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/webbuild/internal/derrors"
	"golang.org/x/webbuild/internal/plan"
	"golang.org/x/webbuild/internal/toolchain"
)

// plugins returns the bundler plugins implementing the plan's rules. Load
// callbacks run in plugin order and the first one returning contents wins,
// so the rule check comes first.
func (b *Builder) plugins(ctx context.Context, st *buildState) []api.Plugin {
	ps := []api.Plugin{
		b.unmatchedPlugin(st),
		b.excludePlugin(st),
		b.componentPlugin(ctx, st),
		b.stylePlugin(ctx, st),
	}
	if len(b.plan.Resolve.Aliases) > 0 {
		ps = append([]api.Plugin{b.resolvePlugin(st)}, ps...)
	}
	return ps
}

// aliasFilter matches import paths that start with one of the aliases.
func aliasFilter(aliases []plan.Alias) string {
	var prefixes []string
	for _, a := range aliases {
		prefixes = append(prefixes, regexp.QuoteMeta(a.Prefix))
	}
	return `^(` + strings.Join(prefixes, "|") + `)(/|$)`
}

// resolvePlugin resolves aliased imports with the plan's resolver, so that
// a missing alias target is reported as a configuration error.
func (b *Builder) resolvePlugin(st *buildState) api.Plugin {
	return api.Plugin{
		Name: "webbuild-resolve",
		Setup: func(pb api.PluginBuild) {
			pb.OnResolve(api.OnResolveOptions{Filter: aliasFilter(b.plan.Resolve.Aliases)},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					from := b.rel(args.ResolveDir)
					p, err := b.resolver.Resolve(args.Path, from)
					if err != nil {
						return api.OnResolveResult{}, st.add(err)
					}
					return api.OnResolveResult{Path: filepath.Join(b.plan.Dir, filepath.FromSlash(p))}, nil
				})
		},
	}
}

// unmatchedPlugin rejects any loaded file that no rule covers.
func (b *Builder) unmatchedPlugin(st *buildState) api.Plugin {
	return api.Plugin{
		Name: "webbuild-unmatched",
		Setup: func(pb api.PluginBuild) {
			pb.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					if _, err := b.plan.MatchRule(b.rel(args.Path)); err != nil {
						return api.OnLoadResult{}, st.add(err)
					}
					return api.OnLoadResult{}, nil
				})
		},
	}
}

// excludePlugin loads scripts excluded from transpilation as they are.
func (b *Builder) excludePlugin(st *buildState) api.Plugin {
	return api.Plugin{
		Name: "webbuild-exclude",
		Setup: func(pb api.PluginBuild) {
			pb.OnLoad(api.OnLoadOptions{Filter: `\.[cm]?[jt]sx?$`, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					rel := b.rel(args.Path)
					rule, err := b.plan.MatchRule(rel)
					if err != nil || !rule.Has(plan.LoaderJavaScript) {
						return api.OnLoadResult{}, nil
					}
					src, err := util.ReadFile(b.fs, rel)
					if err != nil {
						return api.OnLoadResult{}, st.add(err)
					}
					contents := string(src)
					return api.OnLoadResult{
						Contents:   &contents,
						ResolveDir: filepath.Dir(args.Path),
						Loader:     api.LoaderJS,
					}, nil
				})
		},
	}
}

// componentPlugin compiles single-file components with the external
// component compiler, which prints the compiled module.
func (b *Builder) componentPlugin(ctx context.Context, st *buildState) api.Plugin {
	return api.Plugin{
		Name: "webbuild-component",
		Setup: func(pb api.PluginBuild) {
			pb.OnLoad(api.OnLoadOptions{Filter: `\.vue$`, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					out, err := b.compileComponent(ctx, args.Path)
					if err != nil {
						return api.OnLoadResult{}, st.add(err)
					}
					contents := string(out)
					return api.OnLoadResult{
						Contents:   &contents,
						ResolveDir: filepath.Dir(args.Path),
						Loader:     api.LoaderTS,
					}, nil
				})
		},
	}
}

// compileComponent returns the compiled module for the component at path,
// running the compiler only when the source changed since it was last
// compiled.
func (b *Builder) compileComponent(ctx context.Context, path string) ([]byte, error) {
	cmd := b.plan.Tools.ComponentCompiler
	src, err := util.ReadFile(b.fs, b.rel(path))
	if err != nil {
		return nil, err
	}
	key := strings.Join(cmd, " ") + "\x00" + path + "\x00" + plan.ContentHash(src)
	if out, ok := b.compiled.get(key); ok {
		return out, nil
	}
	out, err := b.runTool(ctx, "component compiler", cmd, path)
	if err != nil {
		return nil, err
	}
	b.compiled.put(key, out)
	return out, nil
}

// runTool runs an external tool on one file and returns its standard
// output. An unconfigured tool is a configuration error.
func (b *Builder) runTool(ctx context.Context, name string, cmd []string, file string) ([]byte, error) {
	if len(cmd) == 0 {
		return nil, derrors.Configurationf("%s: no command configured for %s", name, b.rel(file))
	}
	args := append(append([]string(nil), cmd...), file)
	res, err := b.runner.Run(ctx, toolchain.Command{Args: args, Dir: b.plan.Dir})
	if toolchain.IsNotInstalled(err) {
		return nil, derrors.Configurationf("%s: %v", name, err)
	}
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("%s %s: %w\n%s", name, b.rel(file), derrors.BuildFailed, res.Output())
		}
		return nil, fmt.Errorf("%s %s: %v: %w", name, b.rel(file), err, derrors.BuildFailed)
	}
	return res.Stdout, nil
}
