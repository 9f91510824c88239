// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package middleware

import (
	"net/http"
	"path"

	"golang.org/x/webbuild/internal/plan"
)

const (
	// ImmutableCacheControl is sent for content-addressed files.
	ImmutableCacheControl = "public, max-age=31536000, immutable"
	// RevalidateCacheControl is sent for everything else.
	RevalidateCacheControl = "no-cache"
)

// CacheControlFor returns the Cache-Control value for a file name.
func CacheControlFor(name string) string {
	if plan.IsContentAddressed(path.Base(name)) {
		return ImmutableCacheControl
	}
	return RevalidateCacheControl
}

// CacheControl sets the Cache-Control header of each response from the
// requested file name. Hashed names never change content and may be cached
// forever; other files must be revalidated.
func CacheControl() Middleware {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", CacheControlFor(r.URL.Path))
			h.ServeHTTP(w, r)
		})
	}
}
