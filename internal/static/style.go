// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !plan9

package static

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/webbuild/internal/derrors"
	"golang.org/x/webbuild/internal/plan"
)

// injectTemplate wraps CSS in a module that adds it to the document in a
// <style> element. Reloading the module replaces the element's text.
const injectTemplate = `const __file = %s;
let s = document.querySelector('style[data-webbuild="' + __file + '"]');
if (!s) {
  s = document.createElement("style");
  s.setAttribute("data-webbuild", __file);
  document.head.appendChild(s);
}
s.textContent = %s;
export default s.textContent;
`

// stylePlugin runs the loader chain of each style rule.
func (b *Builder) stylePlugin(ctx context.Context, st *buildState) api.Plugin {
	return api.Plugin{
		Name: "webbuild-style",
		Setup: func(pb api.PluginBuild) {
			pb.OnLoad(api.OnLoadOptions{Filter: `\.s?css$`, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					rule, err := b.plan.MatchRule(b.rel(args.Path))
					if err != nil || rule.Kind != plan.KindStyle {
						return api.OnLoadResult{}, nil
					}
					res, err := b.runStyleChain(ctx, st, rule, args.Path)
					if err != nil {
						return api.OnLoadResult{}, st.add(err)
					}
					return res, nil
				})
		},
	}
}

// runStyleChain applies rule's loaders to the file at path, in order.
func (b *Builder) runStyleChain(ctx context.Context, st *buildState, rule plan.Rule, path string) (_ api.OnLoadResult, err error) {
	rel := b.rel(path)
	defer derrors.Wrap(&err, "style %s", rel)

	var (
		css   []byte
		watch []string
	)
	for _, l := range rule.Use {
		switch l {
		case plan.LoaderSass:
			css, err = b.runTool(ctx, "sass", b.plan.Tools.Sass, path)
			if err != nil {
				return api.OnLoadResult{}, err
			}
		case plan.LoaderCSS:
			if css == nil {
				css, err = util.ReadFile(b.fs, rel)
				if err != nil {
					return api.OnLoadResult{}, err
				}
			}
			if rule.Has(plan.LoaderInject) {
				// Injected styles never reach the main bundle, so their
				// imports and references are bundled here.
				css, watch, err = b.bundleCSS(css, path, st)
			} else {
				css, err = interpretCSS(css, rel)
			}
			if err != nil {
				return api.OnLoadResult{}, err
			}
		case plan.LoaderExtract:
			contents := string(css)
			return api.OnLoadResult{
				Contents:   &contents,
				ResolveDir: filepath.Dir(path),
				Loader:     api.LoaderCSS,
			}, nil
		case plan.LoaderInject:
			contents, err := injectModule(rel, css)
			if err != nil {
				return api.OnLoadResult{}, err
			}
			return api.OnLoadResult{
				Contents:   &contents,
				ResolveDir: filepath.Dir(path),
				Loader:     api.LoaderJS,
				WatchFiles: watch,
			}, nil
		default:
			return api.OnLoadResult{}, derrors.Configurationf("rule %s: %q is not a style loader", rule.Name, l)
		}
	}
	return api.OnLoadResult{}, derrors.Configurationf("rule %s has no terminal style loader", rule.Name)
}

// interpretCSS parses and normalizes a stylesheet.
func interpretCSS(css []byte, sourcefile string) ([]byte, error) {
	r := api.Transform(string(css), api.TransformOptions{
		Loader:     api.LoaderCSS,
		Sourcefile: sourcefile,
		LogLevel:   api.LogLevelSilent,
	})
	if len(r.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", derrors.BuildFailed, formatMessages(r.Errors, api.ErrorMessage))
	}
	return r.Code, nil
}

// bundleCSS bundles the stylesheet at path, whose source is css: imports
// are inlined and referenced assets are written to the output directory
// under their content-addressed names, with references rewritten to match.
// It returns the bundled stylesheet and the files it was built from.
func (b *Builder) bundleCSS(css []byte, path string, st *buildState) (_ []byte, inputs []string, err error) {
	opts := Options(b.plan)
	opts.EntryPoints = nil
	opts.Stdin = &api.StdinOptions{
		Contents:   string(css),
		ResolveDir: filepath.Dir(path),
		Sourcefile: b.rel(path),
		Loader:     api.LoaderCSS,
	}
	opts.Write = false
	opts.Splitting = false
	opts.Format = api.FormatDefault
	opts.Sourcemap = api.SourceMapNone
	opts.Define = nil
	opts.Plugins = []api.Plugin{b.unmatchedPlugin(st)}
	if len(b.plan.Resolve.Aliases) > 0 {
		opts.Plugins = append([]api.Plugin{b.resolvePlugin(st)}, opts.Plugins...)
	}
	r := api.Build(opts)
	if err := st.err(); err != nil {
		return nil, nil, err
	}
	if len(r.Errors) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", derrors.BuildFailed, formatMessages(r.Errors, api.ErrorMessage))
	}

	var out []byte
	for _, f := range r.OutputFiles {
		rel := b.rel(f.Path)
		if filepath.Ext(f.Path) == ".css" {
			out = f.Contents
			continue
		}
		if err := util.WriteFile(b.fs, rel, f.Contents, 0o644); err != nil {
			return nil, nil, err
		}
		p := outputPath(b.plan, rel)
		st.emit(Output{Path: p, Kind: outputKind(p), Bytes: len(f.Contents)})
	}
	if out == nil {
		return nil, nil, fmt.Errorf("%w: no stylesheet output", derrors.BuildFailed)
	}

	var m struct {
		Inputs map[string]json.RawMessage `json:"inputs"`
	}
	if err := json.Unmarshal([]byte(r.Metafile), &m); err != nil {
		return nil, nil, fmt.Errorf("parsing metafile: %v", err)
	}
	for in := range m.Inputs {
		if in == "<stdin>" {
			continue
		}
		inputs = append(inputs, filepath.Join(b.plan.Dir, filepath.FromSlash(in)))
	}
	sort.Strings(inputs)
	return out, inputs, nil
}

// injectModule returns the script that injects css at runtime.
func injectModule(name string, css []byte) (string, error) {
	// JSON strings are valid JavaScript string literals.
	file, err := json.Marshal(name)
	if err != nil {
		return "", err
	}
	text, err := json.Marshal(string(css))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(injectTemplate, file, text), nil
}
