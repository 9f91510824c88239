// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package plan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/webbuild/internal/derrors"
)

// Extensions are tried, in this order, when an import names a file without
// its extension.
var Extensions = []string{".ts", ".tsx", ".jsx", ".js", ".vue"}

// An Alias replaces an import prefix with a directory relative to the
// project root.
type Alias struct {
	Prefix string `yaml:"prefix"`
	Target string `yaml:"target"`
}

// sortAliases orders aliases so that the longest prefix is tried first.
func sortAliases(as []Alias) {
	sort.Slice(as, func(i, j int) bool {
		if len(as[i].Prefix) != len(as[j].Prefix) {
			return len(as[i].Prefix) > len(as[j].Prefix)
		}
		return as[i].Prefix < as[j].Prefix
	})
}

// Apply returns request with the alias prefix replaced, and whether the
// alias applies. An alias applies to the prefix itself and to anything
// below it; "@" does not apply to "@components/x".
func (a Alias) Apply(request string) (string, bool) {
	if request == a.Prefix {
		return a.Target, true
	}
	if rest, ok := strings.CutPrefix(request, a.Prefix+"/"); ok {
		return path.Join(a.Target, rest), true
	}
	return "", false
}

// A ModuleResolver maps import requests to files using the plan's aliases
// and extension order. It only checks fsys for existence.
type ModuleResolver struct {
	fsys       billy.Basic
	extensions []string
	aliases    []Alias
}

// NewModuleResolver returns a resolver for the plan over fsys, which must be
// rooted at the project directory.
func (p *BuildPlan) NewModuleResolver(fsys billy.Basic) *ModuleResolver {
	return &ModuleResolver{
		fsys:       fsys,
		extensions: p.Resolve.Extensions,
		aliases:    p.Resolve.Aliases,
	}
}

// Resolve returns the slash-separated, project-relative path of the file
// that request names when imported from the project-relative directory
// fromDir.
//
// Aliases are substituted first. Then the path is tried as is, then with
// each extension in order, then as a directory containing an index file.
// The first existing file wins. A missing file behind an alias is a
// configuration error; otherwise the error wraps derrors.NotFound. Bare
// package names are left to the bundling engine and are rejected with
// derrors.InvalidArgument.
func (r *ModuleResolver) Resolve(request, fromDir string) (_ string, err error) {
	defer derrors.Wrap(&err, "Resolve(%q, %q)", request, fromDir)

	var (
		p       string
		aliased bool
	)
	for _, a := range r.aliases {
		if t, ok := a.Apply(request); ok {
			p, aliased = t, true
			break
		}
	}
	switch {
	case aliased:
	case strings.HasPrefix(request, "./"), strings.HasPrefix(request, "../"), request == ".", request == "..":
		p = path.Join(fromDir, request)
	case strings.HasPrefix(request, "/"):
		p = strings.TrimPrefix(path.Clean(request), "/")
	default:
		return "", fmt.Errorf("bare module specifier: %w", derrors.InvalidArgument)
	}
	p = path.Clean(p)
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%q is outside the project: %w", p, derrors.InvalidArgument)
	}

	if f, ok, err := r.lookup(p); err != nil {
		return "", err
	} else if ok {
		return f, nil
	}
	if aliased {
		return "", derrors.Configurationf("alias target %q does not exist", p)
	}
	return "", derrors.NotFound
}

// lookup tries p, then p with each extension, then p/index with each
// extension.
func (r *ModuleResolver) lookup(p string) (string, bool, error) {
	isDir, err := r.isDir(p)
	if err != nil {
		return "", false, err
	}
	if !isDir {
		if ok, err := r.isFile(p); err != nil || ok {
			return p, ok, err
		}
	}
	for _, ext := range r.extensions {
		if ok, err := r.isFile(p + ext); err != nil || ok {
			return p + ext, ok, err
		}
	}
	if isDir {
		for _, ext := range r.extensions {
			f := path.Join(p, "index"+ext)
			if ok, err := r.isFile(f); err != nil || ok {
				return f, ok, err
			}
		}
	}
	return "", false, nil
}

func (r *ModuleResolver) stat(p string) (os.FileInfo, error) {
	fi, err := r.fsys.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return fi, err
}

func (r *ModuleResolver) isFile(p string) (bool, error) {
	fi, err := r.stat(p)
	return fi != nil && !fi.IsDir(), err
}

func (r *ModuleResolver) isDir(p string) (bool, error) {
	fi, err := r.stat(p)
	return fi != nil && fi.IsDir(), err
}
