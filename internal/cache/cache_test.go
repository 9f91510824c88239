// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// github.com/alicebob/miniredis/v2 pulls in
// github.com/yuin/gopher-lua which uses a non
// build-tag-guarded use of the syscall package.
//go:build !plan9

package cache

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/go-cmp/cmp"
)

func newIndex(t *testing.T, ttl time.Duration) (*Index, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return New(redis.NewClient(&redis.Options{Addr: s.Addr()}), ttl), s
}

func TestBasics(t *testing.T) {
	ctx := context.Background()
	x, _ := newIndex(t, 0)

	must(t, x.Record(ctx, "site/main.js", "abc"))
	got, err := x.Digest(ctx, "site/main.js")
	if err != nil {
		t.Fatal(err)
	}
	if got != "abc" {
		t.Fatalf("got %q, want %q", got, "abc")
	}

	must(t, x.Record(ctx, "site/main.js", "def"))
	got, err = x.Digest(ctx, "site/main.js")
	if err != nil {
		t.Fatal(err)
	}
	if got != "def" {
		t.Fatalf("got %q after re-recording, want %q", got, "def")
	}
	got, err = x.Digest(ctx, "site/never-recorded.js")
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("got %q for an unknown object, want empty", got)
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	x, s := newIndex(t, time.Hour)
	must(t, x.Record(ctx, "index.html", "d1"))
	s.FastForward(2 * time.Hour)
	got, err := x.Digest(ctx, "index.html")
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("got %q after expiry, want empty", got)
	}
}

func TestForgetPrefix(t *testing.T) {
	ctx := context.Background()
	x, _ := newIndex(t, 0)

	check := func(want []string) {
		t.Helper()
		got, err := x.client.Keys(ctx, "*").Result()
		if err != nil {
			t.Fatal(err)
		}
		for i := range got {
			got[i] = strings.TrimPrefix(got[i], keyPrefix)
		}
		sort.Strings(want)
		sort.Strings(got)
		if !cmp.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	}

	all := []string{"a", "b", "c", "a@x", "a/x"}
	for _, k := range all {
		must(t, x.Record(ctx, k, "digest"))
	}
	check(all)

	scanCount = 1
	defer func() { scanCount = 100 }()
	must(t, x.ForgetPrefix(ctx, "a"))
	check([]string{"b", "c"})
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
