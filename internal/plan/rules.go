// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package plan

import (
	"path"
	"regexp"
	"sync"

	"golang.org/x/webbuild/internal/derrors"
)

// A Loader identifies one transformation stage applied to a source file.
type Loader string

const (
	// LoaderComponent compiles a single-file component with the external
	// component-template compiler.
	LoaderComponent Loader = "component"
	// LoaderTranspile compiles TypeScript and JSX to JavaScript.
	LoaderTranspile Loader = "transpile"
	// LoaderJavaScript loads a file as JavaScript without transpiling it.
	LoaderJavaScript Loader = "javascript"
	// LoaderJSON loads a JSON module.
	LoaderJSON Loader = "json"

	// LoaderSass is the style preprocessor stage.
	LoaderSass Loader = "sass"
	// LoaderCSS interprets CSS: imports and url() references.
	LoaderCSS Loader = "css"
	// LoaderExtract writes styles to a separate stylesheet bundle.
	LoaderExtract Loader = "extract"
	// LoaderInject turns styles into a script that adds a <style> element
	// at runtime.
	LoaderInject Loader = "inject"

	// LoaderAsset emits the file unchanged under a content-addressed name.
	LoaderAsset Loader = "asset"
)

// Kind groups rules by the kind of output they produce.
type Kind string

const (
	KindScript    Kind = "script"
	KindComponent Kind = "component"
	KindStyle     Kind = "style"
	KindAsset     Kind = "asset"
	KindData      Kind = "data"
)

// A Rule maps files whose path matches Test, and does not match Exclude, to
// an ordered list of loaders. Use is in execution order: Use[0] sees the
// source file and the last loader produces the output.
type Rule struct {
	Name    string   `yaml:"name"`
	Kind    Kind     `yaml:"kind"`
	Test    string   `yaml:"test"`
	Exclude string   `yaml:"exclude,omitempty"`
	Use     []Loader `yaml:"use"`
}

var (
	patternMu sync.Mutex
	patterns  = map[string]*regexp.Regexp{}
)

// compile returns the compiled form of a rule pattern. Rule patterns are
// constants of this package, so a bad one is a programming error.
func compile(pattern string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	re, ok := patterns[pattern]
	if !ok {
		re = regexp.MustCompile(pattern)
		patterns[pattern] = re
	}
	return re
}

// Matches reports whether the rule's test pattern matches file, ignoring
// Exclude.
func (r Rule) Matches(file string) bool {
	return compile(r.Test).MatchString(file)
}

// Excludes reports whether file matches the rule's exclusion pattern.
func (r Rule) Excludes(file string) bool {
	return r.Exclude != "" && compile(r.Exclude).MatchString(file)
}

// Has reports whether l is one of the rule's loaders.
func (r Rule) Has(l Loader) bool {
	for _, u := range r.Use {
		if u == l {
			return true
		}
	}
	return false
}

// StyleLoaders returns the loader chain for style files in execution order.
// The preprocessor, if any, runs first; CSS interpretation runs next; the
// last stage injects the styles in development and extracts them to a file
// otherwise.
func StyleLoaders(dev bool, preprocessor Loader) []Loader {
	var loaders []Loader
	if preprocessor != "" {
		loaders = append(loaders, preprocessor)
	}
	loaders = append(loaders, LoaderCSS)
	if dev {
		loaders = append(loaders, LoaderInject)
	} else {
		loaders = append(loaders, LoaderExtract)
	}
	return loaders
}

// AssetExtensions are the binary file types emitted without transformation.
var AssetExtensions = []string{"jpg", "jpeg", "gif", "svg", "png"}

// moduleRules returns the rule set in declaration order.
func moduleRules(dev bool) []Rule {
	return []Rule{
		{
			Name: "component",
			Kind: KindComponent,
			Test: `\.vue$`,
			Use:  []Loader{LoaderComponent},
		},
		{
			Name:    "script",
			Kind:    KindScript,
			Test:    `\.(js|ts)x?$`,
			Exclude: `node_modules`,
			Use:     []Loader{LoaderTranspile},
		},
		{
			// Explicit module formats are already plain JavaScript.
			Name: "module-script",
			Kind: KindScript,
			Test: `\.(mjs|cjs)$`,
			Use:  []Loader{LoaderJavaScript},
		},
		{
			Name: "css",
			Kind: KindStyle,
			Test: `\.css$`,
			Use:  StyleLoaders(dev, ""),
		},
		{
			Name: "scss",
			Kind: KindStyle,
			Test: `\.scss$`,
			Use:  StyleLoaders(dev, LoaderSass),
		},
		{
			Name: "asset",
			Kind: KindAsset,
			Test: `\.(jpg|jpeg|gif|svg|png)$`,
			Use:  []Loader{LoaderAsset},
		},
		{
			// The bundler understands JSON natively.
			Name: "json",
			Kind: KindData,
			Test: `\.json$`,
			Use:  []Loader{LoaderJSON},
		},
	}
}

// excludedScript is the rule used for script files excluded from
// transpilation: they are loaded as they are.
var excludedScript = Rule{
	Name: "script-excluded",
	Kind: KindScript,
	Test: `\.(js|ts)x?$`,
	Use:  []Loader{LoaderJavaScript},
}

// MatchRule returns the first rule that applies to file. A script file
// matching the script rule's exclusion pattern gets a rule that loads it
// without transpiling. A file that no rule matches is a configuration
// error.
func MatchRule(rules []Rule, file string) (Rule, error) {
	for _, r := range rules {
		if !r.Matches(file) {
			continue
		}
		if r.Excludes(file) {
			if r.Kind == KindScript {
				return excludedScript, nil
			}
			continue
		}
		return r, nil
	}
	return Rule{}, derrors.Configurationf("no rule matches %q (extension %q)", file, path.Ext(file))
}
