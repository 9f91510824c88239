// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package plan resolves a build mode and a project configuration into a
// complete, deterministic build plan: the loader rules for each file type,
// the output naming rules and the post-processing plugins of one build.
//
// Resolving a plan performs no I/O except existence checks through the
// filesystem it is given. Compiling, type-checking and linting are done by
// the consumers of the plan.
package plan

import (
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/webbuild/internal/config"
	"golang.org/x/webbuild/internal/derrors"
)

// A BuildPlan describes one build. It is never modified after Resolve
// returns it.
type BuildPlan struct {
	Mode config.Mode `yaml:"mode"`
	// Dir is the absolute project root.
	Dir string `yaml:"dir"`
	// EntryPoint is project-relative and slash-separated.
	EntryPoint string `yaml:"entry"`

	// SourceMap is true when source maps are emitted next to the bundles.
	SourceMap bool `yaml:"sourceMap"`
	// Minify is true when bundles are minified.
	Minify bool `yaml:"minify"`

	Output    Output         `yaml:"output"`
	Resolve   ResolveOptions `yaml:"resolve"`
	Rules     []Rule         `yaml:"rules"`
	Splitting SplitPolicy    `yaml:"splitting"`
	Plugins   []Plugin       `yaml:"plugins"`
	HTML      HTMLOptions    `yaml:"html"`

	DevServer    config.DevServer `yaml:"devServer"`
	Tools        config.Tools     `yaml:"tools"`
	StrictChecks bool             `yaml:"strictChecks"`
}

// Output describes where and under which names files are emitted.
type Output struct {
	// Dir is project-relative and slash-separated.
	Dir        string `yaml:"dir"`
	PublicPath string `yaml:"publicPath"`
	Clean      bool   `yaml:"clean"`

	Scripts NamingRule `yaml:"scripts"`
	Styles  NamingRule `yaml:"styles"`
	// Assets are always content-addressed.
	Assets NamingRule `yaml:"assets"`
}

// ResolveOptions configures module resolution.
type ResolveOptions struct {
	Extensions []string `yaml:"extensions"`
	// Aliases are ordered longest prefix first.
	Aliases []Alias `yaml:"aliases"`
}

// SplitPolicy selects which chunks may be split into shared bundles.
type SplitPolicy struct {
	// Chunks is "all": every eligible chunk may be split, not only those
	// loaded on demand.
	Chunks string `yaml:"chunks"`
}

// Enabled reports whether code splitting is on.
func (s SplitPolicy) Enabled() bool { return s.Chunks != "" }

// HTMLOptions configures generation of the HTML entry document.
type HTMLOptions struct {
	// Template is project-relative.
	Template string `yaml:"template"`
	Filename string `yaml:"filename"`
}

// A Plugin is a build-time hook that runs once per build.
type Plugin string

const (
	PluginComponentCompiler Plugin = "component-compiler"
	PluginCSSExtract        Plugin = "css-extract"
	PluginHTML              Plugin = "html"
	PluginTypeCheck         Plugin = "type-check"
	PluginLint              Plugin = "lint"
)

// HasPlugin reports whether p is part of the plan's plugin set.
func (bp *BuildPlan) HasPlugin(p Plugin) bool {
	for _, q := range bp.Plugins {
		if q == p {
			return true
		}
	}
	return false
}

// MatchRule returns the rule for file. See the package-level MatchRule.
func (bp *BuildPlan) MatchRule(file string) (Rule, error) {
	return MatchRule(bp.Rules, file)
}

// Resolve builds the plan for cfg. fsys must be rooted at cfg.Dir; it is used
// only to check that alias targets exist.
//
// The mode comes from cfg.Mode. ModeUnset is accepted and resolves like
// production except that bundles are not minified. Any other value is a
// configuration error, as is an alias whose target is missing or lies
// outside the source root, and an entry point that no rule matches.
//
// Resolve is deterministic: equal inputs produce equal plans.
func Resolve(cfg *config.Config, fsys billy.Basic) (_ *BuildPlan, err error) {
	defer derrors.Wrap(&err, "plan.Resolve(%s)", cfg.Mode)

	mode, err := config.ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	dev := mode.IsDevelopment()

	entry, err := projectPath(cfg.EntryPoint)
	if err != nil {
		return nil, err
	}
	outDir, err := projectPath(cfg.OutDir)
	if err != nil {
		return nil, err
	}
	srcRoot, err := projectPath(cfg.SourceRoot)
	if err != nil {
		return nil, err
	}
	aliases, err := resolveAliases(cfg.Aliases, srcRoot, fsys)
	if err != nil {
		return nil, err
	}

	bp := &BuildPlan{
		Mode:       mode,
		Dir:        cfg.Dir,
		EntryPoint: entry,
		SourceMap:  dev,
		Minify:     mode.IsProduction(),
		Output: Output{
			Dir:        outDir,
			PublicPath: cfg.PublicPath,
			Clean:      cfg.Clean,
			Scripts:    NamingRuleFor(dev),
			Styles:     NamingRuleFor(dev),
			Assets:     NamingRule{Hashed: true},
		},
		Resolve: ResolveOptions{
			Extensions: append([]string(nil), Extensions...),
			Aliases:    aliases,
		},
		Rules:     moduleRules(dev),
		Splitting: SplitPolicy{Chunks: "all"},
		Plugins: []Plugin{
			PluginComponentCompiler,
			PluginCSSExtract,
			PluginHTML,
			PluginTypeCheck,
			PluginLint,
		},
		HTML: HTMLOptions{
			Template: filepath.ToSlash(cfg.Template),
			Filename: cfg.HTMLFilename,
		},
		DevServer:    cfg.DevServer,
		Tools:        cfg.Tools,
		StrictChecks: cfg.StrictChecks,
	}
	sort.Slice(bp.Plugins, func(i, j int) bool { return bp.Plugins[i] < bp.Plugins[j] })

	if _, err := bp.MatchRule(entry); err != nil {
		return nil, err
	}
	return bp, nil
}

// projectPath cleans a project-relative path and rejects paths that leave
// the project.
func projectPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return "", derrors.Configurationf("path %q must be relative to the project root", p)
	}
	c := path.Clean(filepath.ToSlash(p))
	if c == ".." || strings.HasPrefix(c, "../") {
		return "", derrors.Configurationf("path %q is outside the project", p)
	}
	return c, nil
}

func resolveAliases(m map[string]string, srcRoot string, fsys billy.Basic) ([]Alias, error) {
	var as []Alias
	for prefix, target := range m {
		t, err := projectPath(target)
		if err != nil {
			return nil, err
		}
		if t != srcRoot && !strings.HasPrefix(t, srcRoot+"/") && srcRoot != "." {
			return nil, derrors.Configurationf("alias %q: target %q is not under source root %q", prefix, t, srcRoot)
		}
		if _, err := fsys.Stat(t); err != nil {
			return nil, derrors.Configurationf("alias %q: target %q: %v", prefix, t, err)
		}
		as = append(as, Alias{Prefix: prefix, Target: t})
	}
	sortAliases(as)
	return as, nil
}
