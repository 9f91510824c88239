// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/webbuild/internal/derrors"
	"golang.org/x/webbuild/internal/toolchain"
)

var project = map[string]string{
	"src/index.html":          "<!DOCTYPE html><html><head><title>app</title></head><body><div id=\"app\"></div></body></html>",
	"src/main.ts":             "import \"./style.css\";\nimport { greet } from \"@/util\";\ndocument.title = greet(\"web\");\n",
	"src/util.ts":             "export function greet(name: string): string {\n  return \"hello \" + name;\n}\n",
	"src/style.css":           "body { color: red; }\n",
	"src/components/.keep":    "",
	"src/assets/images/.keep": "",
	"webbuild.yaml":           "tools:\n  typeCheck: [webbuild-test-missing-tsc]\n  lint: [webbuild-test-missing-eslint]\n",
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range project {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestParseFlags(t *testing.T) {
	o, cmd, err := parseFlags([]string{"-dir", "web", "-port", "8080", "-open=false", "serve"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cmd != "serve" {
		t.Errorf("command = %q, want serve", cmd)
	}
	if o.dir != "web" || o.port == nil || *o.port != 8080 || o.open == nil || *o.open {
		t.Errorf("got %+v", o)
	}
	if o.mode != nil || o.strict != nil {
		t.Errorf("unset flags were recorded: %+v", o)
	}
}

func TestUsageErrors(t *testing.T) {
	t.Setenv("NODE_ENV", "")
	dir := writeProject(t)
	for _, args := range [][]string{
		nil,
		{"build", "extra"},
		{"-no-such-flag", "build"},
		{"-dir", dir, "deploy"},
	} {
		err := run(context.Background(), args, io.Discard, io.Discard)
		if !errors.Is(err, errUsage) {
			t.Errorf("run(%q) = %v, want usage error", args, err)
		}
		if got := derrors.ExitCode(err); got != derrors.ExitFailure {
			t.Errorf("run(%q): exit code %d, want %d", args, got, derrors.ExitFailure)
		}
	}
}

func TestConfigurationErrorExitCode(t *testing.T) {
	t.Setenv("NODE_ENV", "")
	dir := writeProject(t)
	err := run(context.Background(), []string{"-dir", dir, "-mode", "staging", "plan"}, io.Discard, io.Discard)
	if got := derrors.ExitCode(err); got != derrors.ExitConfiguration {
		t.Errorf("exit code %d (%v), want %d", got, err, derrors.ExitConfiguration)
	}
}

func TestPlan(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	dir := writeProject(t)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-dir", dir, "-port", "4000", "plan"}, &out, io.Discard); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"mode: development", "port: 4000", "sourceMap: true"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("plan output does not contain %q:\n%s", want, out.String())
		}
	}
}

func TestPlanModeFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	dir := writeProject(t)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-dir", dir, "-mode", "production", "plan"}, &out, io.Discard); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "mode: production") {
		t.Errorf("plan output:\n%s", out.String())
	}
}

func TestBuild(t *testing.T) {
	t.Setenv("NODE_ENV", "")
	dir := writeProject(t)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-dir", dir, "-mode", "production", "build"}, &out, io.Discard); err != nil {
		t.Fatal(err)
	}
	doc, err := os.ReadFile(filepath.Join(dir, "dist", "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`<script type="module" src="main.`, `<link rel="stylesheet" href="main.`, `<div id="app">`} {
		if !strings.Contains(string(doc), want) {
			t.Errorf("index.html does not contain %q:\n%s", want, doc)
		}
	}
	var checks []string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.Contains(line, "skipped") {
			checks = append(checks, strings.SplitN(line, ":", 2)[0])
		}
	}
	if diff := cmp.Diff([]string{"type-check", "lint"}, checks); diff != "" {
		t.Errorf("skipped checks mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(out.String(), "dist/index.html") {
		t.Errorf("output does not name the HTML document:\n%s", out.String())
	}
}

func TestPlanModeFlagReplacesInvalidEnvironment(t *testing.T) {
	t.Setenv("NODE_ENV", "test")
	dir := writeProject(t)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-dir", dir, "-mode", "production", "plan"}, &out, io.Discard); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "mode: production") {
		t.Errorf("plan output:\n%s", out.String())
	}

	err := run(context.Background(), []string{"-dir", dir, "plan"}, io.Discard, io.Discard)
	if got := derrors.ExitCode(err); got != derrors.ExitConfiguration {
		t.Errorf("without -mode: exit code %d (%v), want %d", got, err, derrors.ExitConfiguration)
	}
}

// recordingRunner records the commands it is asked to run.
type recordingRunner struct {
	ran chan toolchain.Command
}

func (r *recordingRunner) Run(ctx context.Context, c toolchain.Command) (*toolchain.Result, error) {
	r.ran <- c
	return &toolchain.Result{}, nil
}

func TestOpenWhenBuilt(t *testing.T) {
	r := &recordingRunner{ran: make(chan toolchain.Command, 1)}
	built := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		openWhenBuilt(context.Background(), built, r, "http://localhost:3000/")
	}()

	select {
	case c := <-r.ran:
		t.Fatalf("browser opened before the first build: %v", c)
	case <-time.After(50 * time.Millisecond):
	}
	close(built)
	select {
	case c := <-r.ran:
		if got := c.Args[len(c.Args)-1]; got != "http://localhost:3000/" {
			t.Errorf("opened %q, want the server URL", got)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("browser not opened after the build")
	}
	<-done
}

func TestOpenWhenBuiltCanceled(t *testing.T) {
	r := &recordingRunner{ran: make(chan toolchain.Command, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	openWhenBuilt(ctx, make(chan struct{}), r, "http://localhost:3000/")
	select {
	case c := <-r.ran:
		t.Errorf("browser opened after cancellation: %v", c)
	default:
	}
}
