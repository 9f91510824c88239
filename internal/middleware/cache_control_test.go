// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCacheControl(t *testing.T) {
	h := CacheControl()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for _, test := range []struct {
		path string
		want string
	}{
		{"/", RevalidateCacheControl},
		{"/index.html", RevalidateCacheControl},
		{"/main.js", RevalidateCacheControl},
		{"/main.HGKD6DSP.js", ImmutableCacheControl},
		{"/chunk.Q3BTKYKT.js", ImmutableCacheControl},
		{"/assets/logo.0123456789abcdef0123.png", ImmutableCacheControl},
		{"/main.hgkd6dsp.js", RevalidateCacheControl},
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", test.path, nil))
		if got := w.Header().Get("Cache-Control"); got != test.want {
			t.Errorf("%s: Cache-Control = %q, want %q", test.path, got, test.want)
		}
	}
}
