// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package devserver

import (
	"bytes"
	"context"
	"net/http"
	"path"

	"github.com/google/safehtml"
	"github.com/google/safehtml/template"
	"golang.org/x/webbuild/internal/derrors"
	"golang.org/x/webbuild/internal/log"
)

var overlayTemplate = template.Must(template.New("overlay").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Build failed</title>
<script src="{{.Script}}"></script>
</head>
<body>
<h1>Build failed</h1>
<pre>{{.Message}}</pre>
</body>
</html>
`))

type overlayData struct {
	Script  safehtml.TrustedResourceURL
	Message string
}

// SetBuildError records the outcome of the latest build. While it is
// non-nil, requests for the HTML document get a page describing err
// instead, and that page reloads once a later build succeeds.
func (s *Server) SetBuildError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildErr = err
}

func (s *Server) buildError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildErr
}

// overlay serves the build error page for document requests while the
// latest build has failed.
func (s *Server) overlay(h http.Handler) http.Handler {
	doc := "/" + s.plan.HTML.Filename
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := s.buildError()
		if err == nil || (r.URL.Path != "/" && path.Clean(r.URL.Path) != doc) {
			h.ServeHTTP(w, r)
			return
		}
		s.serveOverlay(r.Context(), w, err)
	})
}

func (s *Server) serveOverlay(ctx context.Context, w http.ResponseWriter, err error) {
	var buf bytes.Buffer
	data := overlayData{
		Script:  safehtml.TrustedResourceURLFromConstant(LiveReloadScript),
		Message: err.Error(),
	}
	if terr := overlayTemplate.Execute(&buf, data); terr != nil {
		log.Errorf(ctx, "devserver: overlay: %v", terr)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(derrors.ToHTTPStatus(err))
	w.Write(buf.Bytes())
}
