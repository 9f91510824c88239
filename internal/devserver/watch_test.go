// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package devserver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "index.html")
	if err := os.WriteFile(tmpl, []byte("v0"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- WatchFile(ctx, tmpl, func() { changed <- struct{}{} })
	}()

	// The watcher may not be registered yet; keep writing until it sees
	// a change.
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
loop:
	for {
		select {
		case <-changed:
			break loop
		case <-tick.C:
			if err := os.WriteFile(filepath.Join(dir, "other.html"), []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(tmpl, []byte("v1"), 0o644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no change reported")
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("WatchFile() = %v, want nil", err)
	}
}

func TestWatchFileMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "index.html")
	err := WatchFile(context.Background(), path, func() {})
	if err == nil {
		t.Fatal("got nil error, want error for missing directory")
	}
	if !strings.Contains(err.Error(), "WatchFile(") || !strings.Contains(err.Error(), "index.html") {
		t.Errorf("error %q does not name the watched file", err)
	}
}

func TestBrowserCommand(t *testing.T) {
	const url = "http://localhost:3000/"
	for _, test := range []struct {
		goos string
		want []string
	}{
		{"darwin", []string{"open", url}},
		{"windows", []string{"rundll32", "url.dll,FileProtocolHandler", url}},
		{"linux", []string{"xdg-open", url}},
		{"freebsd", []string{"xdg-open", url}},
	} {
		if diff := cmp.Diff(test.want, browserCommand(test.goos, url)); diff != "" {
			t.Errorf("%s: mismatch (-want +got):\n%s", test.goos, diff)
		}
	}
}
