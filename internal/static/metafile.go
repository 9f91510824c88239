// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package static

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/webbuild/internal/plan"
)

// KindSourceMap is the kind of source map outputs.
const KindSourceMap plan.Kind = "sourcemap"

// An Output is one emitted file.
type Output struct {
	// Path is relative to the output directory and slash-separated.
	Path  string
	Kind  plan.Kind
	Bytes int
	// EntryPoint is the project-relative source of an entry bundle.
	EntryPoint string
}

// Result describes the files emitted by one build.
type Result struct {
	// Outputs are sorted by path.
	Outputs []Output
	// Entry is the output path of the entry script.
	Entry string
	// Styles are the output paths of the stylesheets the entry script
	// needs. They are empty when styles are injected.
	Styles   []string
	Warnings []string
}

// Paths returns the paths of all outputs of kind k.
func (r *Result) Paths(k plan.Kind) []string {
	var ps []string
	for _, o := range r.Outputs {
		if o.Kind == k {
			ps = append(ps, o.Path)
		}
	}
	return ps
}

// metafile is the part of the bundler's metadata that names outputs.
type metafile struct {
	Outputs map[string]struct {
		Bytes      int    `json:"bytes"`
		EntryPoint string `json:"entryPoint"`
		CSSBundle  string `json:"cssBundle"`
	} `json:"outputs"`
}

// parseMetafile builds a Result from the bundler's JSON metadata. Paths in
// the metadata are relative to the project directory.
func parseMetafile(bp *plan.BuildPlan, data string) (*Result, error) {
	var m metafile
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("parsing metafile: %v", err)
	}
	res := &Result{}
	for p, o := range m.Outputs {
		rel := outputPath(bp, p)
		res.Outputs = append(res.Outputs, Output{
			Path:       rel,
			Kind:       outputKind(rel),
			Bytes:      o.Bytes,
			EntryPoint: o.EntryPoint,
		})
		if o.EntryPoint == bp.EntryPoint && path.Ext(rel) == ".js" {
			res.Entry = rel
			if o.CSSBundle != "" {
				res.Styles = append(res.Styles, outputPath(bp, o.CSSBundle))
			}
		}
	}
	sort.Slice(res.Outputs, func(i, j int) bool { return res.Outputs[i].Path < res.Outputs[j].Path })
	if res.Entry == "" {
		return nil, fmt.Errorf("no output for entry point %q", bp.EntryPoint)
	}
	if len(res.Styles) == 0 {
		// Older metadata does not link a script to its stylesheet; they
		// share a name.
		stem, _, _ := strings.Cut(res.Entry, ".")
		for _, o := range res.Outputs {
			if o.Kind == plan.KindStyle && strings.HasPrefix(o.Path, stem+".") {
				res.Styles = append(res.Styles, o.Path)
			}
		}
	}
	return res, nil
}

// addOutputs adds files written outside the main bundle, keeping Outputs
// sorted and free of duplicates.
func (r *Result) addOutputs(outs []Output) {
	seen := map[string]bool{}
	for _, o := range r.Outputs {
		seen[o.Path] = true
	}
	for _, o := range outs {
		if seen[o.Path] {
			continue
		}
		seen[o.Path] = true
		r.Outputs = append(r.Outputs, o)
	}
	sort.Slice(r.Outputs, func(i, j int) bool { return r.Outputs[i].Path < r.Outputs[j].Path })
}

func outputPath(bp *plan.BuildPlan, p string) string {
	if bp.Output.Dir == "." {
		return p
	}
	return strings.TrimPrefix(p, bp.Output.Dir+"/")
}

func outputKind(p string) plan.Kind {
	switch path.Ext(p) {
	case ".js":
		return plan.KindScript
	case ".css":
		return plan.KindStyle
	case ".map":
		return KindSourceMap
	default:
		return plan.KindAsset
	}
}
