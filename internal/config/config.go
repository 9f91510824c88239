// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the resolved inputs of one webbuild invocation.
// Values are filled in by package buildconfig.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/webbuild/internal/derrors"
)

// Mode is the build mode. It is read once, from NODE_ENV, and never changes
// during an invocation.
type Mode string

const (
	// ModeUnset is used when NODE_ENV is empty. See plan.Resolve for how it
	// is treated.
	ModeUnset       Mode = ""
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ParseMode parses a mode flag. The empty string yields ModeUnset; any other
// unrecognized value is a configuration error.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case ModeUnset, ModeDevelopment, ModeProduction:
		return m, nil
	default:
		return "", derrors.Configurationf("unrecognized mode %q (want %q or %q)", s, ModeDevelopment, ModeProduction)
	}
}

func (m Mode) String() string {
	if m == ModeUnset {
		return "unset"
	}
	return string(m)
}

// IsDevelopment reports whether m is ModeDevelopment.
func (m Mode) IsDevelopment() bool { return m == ModeDevelopment }

// IsProduction reports whether m is ModeProduction.
func (m Mode) IsProduction() bool { return m == ModeProduction }

// Config holds shared configuration values used by webbuild.
type Config struct {
	// Dir is the absolute project root. Every other path is relative to it.
	Dir string

	Mode Mode

	// EntryPoint is the single root module of the dependency graph.
	EntryPoint string

	// SourceRoot is the directory that alias targets must live under.
	SourceRoot string

	// OutDir receives every emitted file.
	OutDir string

	// PublicPath is prepended to bundle references in the HTML document.
	PublicPath string

	// Clean removes OutDir before emitting.
	Clean bool

	// Template is the source HTML document. If it does not exist a default
	// document is generated.
	Template string

	// HTMLFilename is the name of the emitted HTML document within OutDir.
	HTMLFilename string

	// Aliases maps an import prefix to a directory.
	Aliases map[string]string

	DevServer DevServer
	Tools     Tools

	// StrictChecks turns type-check and lint failures into a failed build.
	StrictChecks bool

	LogLevel string
	// LogProject is the GCP project to send logs to. Empty means stderr.
	LogProject string

	Publish PublishSettings
}

// DevServer configures the local preview server.
type DevServer struct {
	Port int
	Open bool
}

// Addr returns the address the preview server listens on.
func (d DevServer) Addr() string {
	return fmt.Sprintf("localhost:%d", d.Port)
}

// Tools holds the command lines of the external collaborators. Each is
// a program followed by its arguments.
type Tools struct {
	// Sass is the style preprocessor. The source file path is appended and
	// CSS is read from standard output.
	Sass []string
	// ComponentCompiler compiles single-file components. The source file
	// path is appended and JavaScript is read from standard output.
	ComponentCompiler []string
	TypeCheck         []string
	Lint              []string
}

// PublishSettings configures where emitted files are uploaded.
type PublishSettings struct {
	Bucket string
	Prefix string
	// RedisAddr, if set, is the Redis server that records which objects
	// have already been published.
	RedisAddr string
}

// Path returns p resolved against the project root.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Dir, filepath.FromSlash(p))
}
