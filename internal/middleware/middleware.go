// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package middleware implements the http handler wrappers of the preview
// server.
package middleware

import "net/http"

// A Middleware is a func that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain returns a Middleware that applies middlewares so that the first one
// sees each request first: Chain(m1, m2)(h) = m1(m2(h)).
func Chain(middlewares ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}

// Identity is a middleware that does nothing. It stands in for a disabled
// middleware in a chain.
func Identity() Middleware {
	return func(h http.Handler) http.Handler {
		return h
	}
}

// When returns m if cond is true and Identity otherwise.
func When(cond bool, m Middleware) Middleware {
	if cond {
		return m
	}
	return Identity()
}
