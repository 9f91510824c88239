// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package toolchain runs the external programs a build delegates to: the
// style preprocessor, the component-template compiler, the type-checker and
// the linter.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"golang.org/x/webbuild/internal/derrors"
	"golang.org/x/webbuild/internal/log"
)

// A Command is one invocation of an external program.
type Command struct {
	// Args is the program followed by its arguments.
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is added to the current environment.
	Env   map[string]string
	Stdin []byte
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Output returns standard error if it is not empty, and standard output
// otherwise. Checkers disagree about where they print diagnostics.
func (r *Result) Output() string {
	if s := strings.TrimSpace(string(r.Stderr)); s != "" {
		return s
	}
	return strings.TrimSpace(string(r.Stdout))
}

// A Runner runs commands.
type Runner interface {
	// Run runs cmd to completion. If the program ran but exited with a
	// non-zero status, Run returns the result together with an error
	// wrapping *exec.ExitError. If the program does not exist, the error
	// wraps exec.ErrNotFound.
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, c Command) (_ *Result, err error) {
	defer derrors.Wrap(&err, "Run(%q)", c.String())
	if len(c.Args) == 0 {
		return nil, fmt.Errorf("empty command: %w", derrors.InvalidArgument)
	}
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(c.Env)...)
	}
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	log.Debugf(ctx, "running %s in %q", c, c.Dir)
	err = cmd.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, err
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// envList returns m as sorted KEY=VALUE pairs.
func envList(m map[string]string) []string {
	var env []string
	for k, v := range m {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// IsNotInstalled reports whether err means the program could not be found.
func IsNotInstalled(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
