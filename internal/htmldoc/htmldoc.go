// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package htmldoc generates the HTML entry document of a build: the
// project's page template with the emitted stylesheets and entry script
// linked into its head.
package htmldoc

import (
	"bytes"
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/safehtml/template"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/webbuild/internal/derrors"
	"golang.org/x/webbuild/internal/plan"
	"golang.org/x/webbuild/internal/static"
)

// Assets are the files an entry document refers to.
type Assets struct {
	// PublicPath is prepended to every file path.
	PublicPath string
	// Styles and Scripts are relative to the output directory.
	Styles  []string
	Scripts []string
	// LiveReload is the URL of a script that reloads the page after a
	// rebuild. It is empty outside the preview server.
	LiveReload string
}

// AssetsFor returns the assets of a build result.
func AssetsFor(bp *plan.BuildPlan, res *static.Result) Assets {
	return Assets{
		PublicPath: bp.Output.PublicPath,
		Styles:     res.Styles,
		Scripts:    []string{res.Entry},
	}
}

func (a Assets) url(p string) string {
	if a.PublicPath == "" {
		return p
	}
	return strings.TrimSuffix(a.PublicPath, "/") + "/" + p
}

// Generate returns tmpl with a stylesheet link for each style and a module
// script for each script appended to its head, in that order.
func Generate(tmpl []byte, a Assets) (_ []byte, err error) {
	defer derrors.Wrap(&err, "htmldoc.Generate")

	doc, err := html.Parse(bytes.NewReader(tmpl))
	if err != nil {
		return nil, err
	}
	head := findElement(doc, atom.Head)
	if head == nil {
		// The parser always creates a head.
		return nil, errors.New("no head element")
	}
	for _, s := range a.Styles {
		head.AppendChild(element(atom.Link, "rel", "stylesheet", "href", a.url(s)))
	}
	for _, s := range a.Scripts {
		head.AppendChild(element(atom.Script, "type", "module", "src", a.url(s)))
	}
	if a.LiveReload != "" {
		head.AppendChild(element(atom.Script, "src", a.LiveReload))
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findElement(c, a); f != nil {
			return f
		}
	}
	return nil
}

// DefaultData is the data of the default document.
type DefaultData struct {
	Title string
}

var defaultTemplate = template.Must(template.New("index.html").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
<div id="app"></div>
</body>
</html>
`))

// Default returns the document used when a project has no page template.
func Default(title string) ([]byte, error) {
	var buf bytes.Buffer
	if err := defaultTemplate.Execute(&buf, DefaultData{Title: title}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write generates the entry document of bp from the project's template,
// or from the default document if the template does not exist, and writes
// it to the output directory. fsys must be rooted at the project directory.
// It returns the project-relative path of the document.
func Write(fsys billy.Filesystem, bp *plan.BuildPlan, a Assets) (_ string, err error) {
	defer derrors.Wrap(&err, "htmldoc.Write")

	tmpl, err := util.ReadFile(fsys, bp.HTML.Template)
	if errors.Is(err, fs.ErrNotExist) {
		tmpl, err = Default(filepath.Base(bp.Dir))
	}
	if err != nil {
		return "", err
	}
	out, err := Generate(tmpl, a)
	if err != nil {
		return "", err
	}
	name := path.Join(bp.Output.Dir, bp.HTML.Filename)
	if err := fsys.MkdirAll(bp.Output.Dir, 0o755); err != nil {
		return "", err
	}
	if err := util.WriteFile(fsys, name, out, 0o644); err != nil {
		return "", err
	}
	return name, nil
}
