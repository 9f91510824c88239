// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package plan

import "testing"

func TestFilename(t *testing.T) {
	for _, test := range []struct {
		dev             bool
		name, ext, hash string
		want            string
	}{
		{true, "main", "js", "", "main.js"},
		{true, "main", "js", "abc123", "main.js"},
		{false, "main", "js", "abc123", "main.abc123.js"},
		{false, "main", "css", "abc123", "main.abc123.css"},
		{false, "vendor", "js", "", "vendor.js"},
	} {
		got := NamingRuleFor(test.dev).Filename(test.name, test.ext, test.hash)
		if got != test.want {
			t.Errorf("NamingRuleFor(%t).Filename(%q, %q, %q) = %q, want %q",
				test.dev, test.name, test.ext, test.hash, got, test.want)
		}
	}
}

func TestContentHash(t *testing.T) {
	a := []byte("console.log(1)")
	b := []byte("console.log(2)")

	if ContentHash(a) != ContentHash(append([]byte(nil), a...)) {
		t.Error("equal contents produced different hashes")
	}
	if ContentHash(a) == ContentHash(b) {
		t.Error("different contents produced the same hash")
	}
	if got := NamingRuleFor(true).Filename("main", "js", ContentHash(a)); got != "main.js" {
		t.Errorf("development Filename = %q, want main.js", got)
	}
	if got := len(ContentHash(a)); got != HashLength {
		t.Errorf("len(ContentHash) = %d, want %d", got, HashLength)
	}
}

func TestTemplate(t *testing.T) {
	if got := NamingRuleFor(true).Template(); got != "[name]" {
		t.Errorf("development Template = %q", got)
	}
	if got := NamingRuleFor(false).Template(); got != "[name].[hash]" {
		t.Errorf("production Template = %q", got)
	}
}

func TestIsContentAddressed(t *testing.T) {
	prod := NamingRuleFor(false)
	for _, test := range []struct {
		name string
		want bool
	}{
		{prod.Filename("main", "js", ContentHash([]byte("x"))), true},
		{"main.K3N2QZ7A.js", true},
		{"logo.AB2CD3EF.png", true},
		{"main.js", false},
		{"index.html", false},
		{"main.js.map", false},
	} {
		if got := IsContentAddressed(test.name); got != test.want {
			t.Errorf("IsContentAddressed(%q) = %t, want %t", test.name, got, test.want)
		}
	}
}
