// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package derrors defines internal error values to categorize the different
// types error semantics we support.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
)

//lint:file-ignore ST1012 prefixing error values with Err would stutter

var (
	// Configuration indicates that the declared build inputs cannot produce a
	// build plan: an unrecognized mode, an alias whose target does not exist,
	// or a file type that no rule matches. It is always fatal.
	Configuration = errors.New("configuration error")
	// NotFound indicates that a requested entity was not found (HTTP 404).
	NotFound = errors.New("not found")
	// InvalidArgument indicates that the input into the request is invalid in
	// some way (HTTP 400).
	InvalidArgument = errors.New("invalid argument")
	// BuildFailed indicates that the bundling engine reported errors.
	BuildFailed = errors.New("build failed")
	// CheckFailed indicates that an out-of-process checker (type-checker or
	// linter) reported problems and the caller asked to gate on them.
	CheckFailed = errors.New("check failed")

	// Unknown indicates that the error has unknown semantics.
	Unknown = errors.New("unknown")
)

var httpCodes = []struct {
	err  error
	code int
}{
	{NotFound, http.StatusNotFound},
	{InvalidArgument, http.StatusBadRequest},
	{Configuration, http.StatusInternalServerError},
	// Since the following aren't HTTP statuses, pick unused codes.
	{BuildFailed, 590},
	{CheckFailed, 591},
}

// ToHTTPStatus returns an HTTP status code corresponding to err.
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, e := range httpCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return http.StatusInternalServerError
}

// Process exit statuses returned by ExitCode.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
)

// ExitCode returns the process exit status for err. Configuration errors
// are distinguished from other failures so that callers can tell a
// malformed project from a broken build.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, Configuration):
		return ExitConfiguration
	default:
		return ExitFailure
	}
}

// Configurationf returns an error wrapping Configuration with the given
// formatted message.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, Configuration)...)
}

// Add adds context to the error.
// The result cannot be unwrapped to recover the original error.
// It does nothing when *errp == nil.
//
// Example:
//
//	defer derrors.Add(&err, "copy(%s, %s)", src, dst)
//
// See Wrap for an equivalent function that allows
// the result to be unwrapped.
func Add(errp *error, format string, args ...any) {
	if *errp != nil {
		*errp = fmt.Errorf("%s: %v", fmt.Sprintf(format, args...), *errp)
	}
}

// Wrap adds context to the error and allows
// unwrapping the result to recover the original error.
//
// Example:
//
//	defer derrors.Wrap(&err, "copy(%s, %s)", src, dst)
//
// See Add for an equivalent function that does not allow
// the result to be unwrapped.
func Wrap(errp *error, format string, args ...any) {
	if *errp != nil {
		*errp = fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), *errp)
	}
}
