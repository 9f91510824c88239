// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Since github.com/evanw/esbuild doesn't build on plan9
// the builder is stubbed out with one that panics.

//go:build plan9

package static

import (
	"context"

	"github.com/go-git/go-billy/v5"
	"golang.org/x/webbuild/internal/plan"
	"golang.org/x/webbuild/internal/toolchain"
)

type Builder struct{}

func NewBuilder(*plan.BuildPlan, billy.Filesystem, toolchain.Runner) *Builder {
	return &Builder{}
}

func (*Builder) Build(context.Context) (*Result, error) {
	panic("This functionality is not supported on plan9")
}

func (*Builder) Watch(context.Context, func(*Result, error)) error {
	panic("This functionality is not supported on plan9")
}
