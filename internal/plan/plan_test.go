// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package plan

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/webbuild/internal/config"
	"golang.org/x/webbuild/internal/derrors"
)

func testConfig(mode config.Mode) *config.Config {
	return &config.Config{
		Dir:          "/work/app",
		Mode:         mode,
		EntryPoint:   "./src/main.ts",
		SourceRoot:   "src",
		OutDir:       "dist",
		Clean:        true,
		Template:     "src/index.html",
		HTMLFilename: "index.html",
		Aliases: map[string]string{
			"@":           "src",
			"@components": "src/components",
			"@images":     "src/assets/images",
		},
		DevServer: config.DevServer{Port: 3000, Open: true},
	}
}

var projectFiles = []string{
	"src/main.ts",
	"src/index.html",
	"src/components/Button.vue",
	"src/assets/images/logo.png",
}

func TestResolvePlan(t *testing.T) {
	fsys := newFS(t, projectFiles...)
	for _, test := range []struct {
		mode          config.Mode
		wantSourceMap bool
		wantMinify    bool
		wantHashed    bool
		wantTerminal  Loader
	}{
		{config.ModeDevelopment, true, false, false, LoaderInject},
		{config.ModeProduction, false, true, true, LoaderExtract},
		{config.ModeUnset, false, false, true, LoaderExtract},
	} {
		t.Run(test.mode.String(), func(t *testing.T) {
			bp, err := Resolve(testConfig(test.mode), fsys)
			if err != nil {
				t.Fatal(err)
			}
			if bp.SourceMap != test.wantSourceMap || bp.Minify != test.wantMinify {
				t.Errorf("SourceMap, Minify = %t, %t; want %t, %t", bp.SourceMap, bp.Minify, test.wantSourceMap, test.wantMinify)
			}
			if bp.Output.Scripts.Hashed != test.wantHashed || bp.Output.Styles.Hashed != test.wantHashed {
				t.Errorf("Output = %+v, want hashed = %t", bp.Output, test.wantHashed)
			}
			if !bp.Output.Assets.Hashed {
				t.Error("assets are not content-addressed")
			}
			r, err := bp.MatchRule("src/theme.scss")
			if err != nil {
				t.Fatal(err)
			}
			if got := r.Use[len(r.Use)-1]; got != test.wantTerminal {
				t.Errorf("terminal style stage = %q, want %q", got, test.wantTerminal)
			}
			if bp.EntryPoint != "src/main.ts" {
				t.Errorf("EntryPoint = %q", bp.EntryPoint)
			}
			if diff := cmp.Diff(Extensions, bp.Resolve.Extensions); diff != "" {
				t.Errorf("Extensions mismatch (-want +got):\n%s", diff)
			}
			if !bp.Splitting.Enabled() || bp.Splitting.Chunks != "all" {
				t.Errorf("Splitting = %+v", bp.Splitting)
			}
			wantAliases := []Alias{
				{Prefix: "@components", Target: "src/components"},
				{Prefix: "@images", Target: "src/assets/images"},
				{Prefix: "@", Target: "src"},
			}
			if diff := cmp.Diff(wantAliases, bp.Resolve.Aliases); diff != "" {
				t.Errorf("Aliases mismatch (-want +got):\n%s", diff)
			}
			for _, p := range []Plugin{PluginComponentCompiler, PluginCSSExtract, PluginHTML, PluginTypeCheck, PluginLint} {
				if !bp.HasPlugin(p) {
					t.Errorf("missing plugin %s", p)
				}
			}
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	fsys := newFS(t, projectFiles...)
	for _, mode := range []config.Mode{config.ModeDevelopment, config.ModeProduction} {
		a, err := Resolve(testConfig(mode), fsys)
		if err != nil {
			t.Fatal(err)
		}
		b, err := Resolve(testConfig(mode), fsys)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("%s: plans differ (-first +second):\n%s", mode, diff)
		}
		hash := ContentHash([]byte("export default 1"))
		if a.Output.Scripts.Filename("main", "js", hash) != b.Output.Scripts.Filename("main", "js", hash) {
			t.Errorf("%s: file names differ", mode)
		}
	}
}

func TestResolvePlanErrors(t *testing.T) {
	fsys := newFS(t, projectFiles...)
	for _, test := range []struct {
		name   string
		modify func(*config.Config)
	}{
		{"unknown mode", func(c *config.Config) { c.Mode = "staging" }},
		{"missing alias target", func(c *config.Config) { c.Aliases["@styles"] = "src/styles" }},
		{"alias outside source root", func(c *config.Config) { c.Aliases["@lib"] = "lib" }},
		{"entry with no rule", func(c *config.Config) { c.EntryPoint = "./src/main.coffee" }},
		{"entry outside project", func(c *config.Config) { c.EntryPoint = "../main.ts" }},
	} {
		t.Run(test.name, func(t *testing.T) {
			cfg := testConfig(config.ModeProduction)
			test.modify(cfg)
			_, err := Resolve(cfg, fsys)
			if !errors.Is(err, derrors.Configuration) {
				t.Errorf("Resolve = %v, want a configuration error", err)
			}
		})
	}
}

func TestModuleResolverFromPlan(t *testing.T) {
	fsys := newFS(t, projectFiles...)
	bp, err := Resolve(testConfig(config.ModeDevelopment), fsys)
	if err != nil {
		t.Fatal(err)
	}
	r := bp.NewModuleResolver(fsys)
	got, err := r.Resolve("@components/Button.vue", "src")
	if err != nil {
		t.Fatal(err)
	}
	if got != "src/components/Button.vue" {
		t.Errorf("Resolve = %q, want src/components/Button.vue", got)
	}
	if _, err := r.Resolve("@components/Missing.vue", "src"); !errors.Is(err, derrors.Configuration) {
		t.Errorf("Resolve(missing) = %v, want a configuration error", err)
	}
}
