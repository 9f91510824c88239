// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testenv lets tests skip themselves when the external tools a
// build delegates to are not installed.
package testenv

import (
	"os/exec"
	"sync"
	"testing"
)

var execPaths sync.Map // path -> error

// MustHaveExecPath checks that the current system can start the named
// executable. If not, MustHaveExecPath calls t.Skip with an explanation.
func MustHaveExecPath(t testing.TB, path string) {
	t.Helper()
	err, found := execPaths.Load(path)
	if !found {
		_, err = exec.LookPath(path)
		err, _ = execPaths.LoadOrStore(path, err)
	}
	if err != nil {
		t.Skipf("skipping test: %s: %s", path, err)
	}
}

// MustHaveTool is like MustHaveExecPath for the program of a configured
// tool command. It also skips in short mode, since external tools are slow
// to start.
func MustHaveTool(t testing.TB, cmd []string) {
	t.Helper()
	if len(cmd) == 0 {
		t.Skip("skipping test: no command configured")
	}
	if testing.Short() {
		t.Skipf("skipping test in short mode: runs %s", cmd[0])
	}
	MustHaveExecPath(t, cmd[0])
}
