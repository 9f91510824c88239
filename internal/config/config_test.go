// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/webbuild/internal/derrors"
)

func TestParseMode(t *testing.T) {
	for _, test := range []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeUnset, false},
		{"development", ModeDevelopment, false},
		{" production ", ModeProduction, false},
		{"staging", "", true},
		{"Production", "", true},
	} {
		got, err := ParseMode(test.in)
		if (err != nil) != test.wantErr {
			t.Fatalf("ParseMode(%q) error = %v, want error = %t", test.in, err, test.wantErr)
		}
		if err != nil {
			if !errors.Is(err, derrors.Configuration) {
				t.Errorf("ParseMode(%q) = %v, want a configuration error", test.in, err)
			}
			continue
		}
		if got != test.want {
			t.Errorf("ParseMode(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}

func TestPath(t *testing.T) {
	root := filepath.FromSlash("/work/app")
	cfg := &Config{Dir: root}
	if got, want := cfg.Path("src/main.ts"), filepath.Join(root, "src", "main.ts"); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	abs := filepath.FromSlash("/elsewhere/x")
	if got := cfg.Path(abs); got != abs {
		t.Errorf("Path(%q) = %q", abs, got)
	}
}
