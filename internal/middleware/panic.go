// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package middleware

import (
	"net/http"
	"runtime/debug"

	"golang.org/x/webbuild/internal/log"
)

// Panic returns a middleware that recovers from a panic in the delegate
// handler, logs it with its stack, and serves panicHandler instead.
// A nil panicHandler serves a plain 500.
func Panic(panicHandler http.Handler) Middleware {
	if panicHandler == nil {
		panicHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		})
	}
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if e := recover(); e != nil {
					if e == http.ErrAbortHandler {
						panic(e)
					}
					log.Errorf(r.Context(), "middleware.Panic: %s %s: %v\n%s", r.Method, r.URL.Path, e, debug.Stack())
					panicHandler.ServeHTTP(w, r)
				}
			}()
			h.ServeHTTP(w, r)
		})
	}
}
