// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package publish uploads the output directory of a build to a storage
// bucket.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/sync/errgroup"
	"golang.org/x/webbuild/internal/config"
	"golang.org/x/webbuild/internal/derrors"
	"golang.org/x/webbuild/internal/log"
	"golang.org/x/webbuild/internal/middleware"
	"golang.org/x/webbuild/internal/plan"
)

// Attrs are the metadata of an uploaded object.
type Attrs struct {
	ContentType  string
	CacheControl string
}

// A Bucket stores objects.
type Bucket interface {
	Upload(ctx context.Context, object string, r io.Reader, attrs Attrs) error
}

// An Opener returns the bucket with the given name.
type Opener func(ctx context.Context, name string) (Bucket, error)

// An Index remembers the digests of published objects.
type Index interface {
	Digest(ctx context.Context, object string) (string, error)
	Record(ctx context.Context, object, digest string) error
	// ForgetPrefix deletes the digests of objects whose names begin with
	// prefix.
	ForgetPrefix(ctx context.Context, prefix string) error
}

// GCS returns an Opener for Google Cloud Storage buckets.
func GCS(client *storage.Client) Opener {
	return func(ctx context.Context, name string) (Bucket, error) {
		return gcsBucket{client.Bucket(name)}, nil
	}
}

type gcsBucket struct {
	h *storage.BucketHandle
}

func (b gcsBucket) Upload(ctx context.Context, object string, r io.Reader, attrs Attrs) (err error) {
	defer derrors.Wrap(&err, "Upload(%q)", object)
	w := b.h.Object(object).NewWriter(ctx)
	w.ContentType = attrs.ContentType
	w.CacheControl = attrs.CacheControl
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// A Publisher uploads the output directory of a plan.
type Publisher struct {
	plan   *plan.BuildPlan
	fs     billy.Filesystem
	bucket Bucket
	prefix string
	index  Index
}

// New returns a Publisher for the output of bp, which fsys holds. Without
// a bucket name in s, New returns a configuration error. A nil index
// uploads every file.
func New(ctx context.Context, bp *plan.BuildPlan, fsys billy.Filesystem, s config.PublishSettings, open Opener, index Index) (*Publisher, error) {
	if s.Bucket == "" {
		return nil, derrors.Configurationf("no publish bucket configured (set WEBBUILD_PUBLISH_BUCKET or publish.bucket)")
	}
	b, err := open(ctx, s.Bucket)
	if err != nil {
		return nil, err
	}
	return &Publisher{plan: bp, fs: fsys, bucket: b, prefix: s.Prefix, index: index}, nil
}

// Report lists the object names of a publish run.
type Report struct {
	Uploaded []string
	// Skipped objects had the same digest when last published.
	Skipped []string
}

// maxUploads bounds the number of concurrent uploads.
const maxUploads = 8

// Publish uploads every file of the output directory whose contents
// changed since it was last published.
func (p *Publisher) Publish(ctx context.Context) (_ *Report, err error) {
	defer derrors.Wrap(&err, "Publish(%s)", p.plan.Output.Dir)

	files, err := p.files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s is empty: %w", p.plan.Output.Dir, derrors.NotFound)
	}
	var (
		mu  sync.Mutex
		rep Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxUploads)
	for _, f := range files {
		f := f
		g.Go(func() error {
			uploaded, err := p.publishFile(gctx, f)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if uploaded {
				rep.Uploaded = append(rep.Uploaded, p.object(f))
			} else {
				rep.Skipped = append(rep.Skipped, p.object(f))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(rep.Uploaded)
	sort.Strings(rep.Skipped)
	log.Infof(ctx, "published %d file(s), %d unchanged", len(rep.Uploaded), len(rep.Skipped))
	return &rep, nil
}

// Reset forgets the recorded digests of every object under the publish
// prefix, so that the next Publish uploads every file. It does nothing
// without an index.
func (p *Publisher) Reset(ctx context.Context) (err error) {
	defer derrors.Wrap(&err, "Reset(%q)", p.prefix)
	if p.index == nil {
		return nil
	}
	prefix := p.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return p.index.ForgetPrefix(ctx, prefix)
}

// files returns the output files, relative to the output directory.
func (p *Publisher) files() ([]string, error) {
	root := p.plan.Output.Dir
	var files []string
	err := util.Walk(p.fs, root, func(name string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, name)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (p *Publisher) object(file string) string {
	return path.Join(p.prefix, file)
}

func (p *Publisher) publishFile(ctx context.Context, file string) (uploaded bool, err error) {
	data, err := util.ReadFile(p.fs, path.Join(p.plan.Output.Dir, file))
	if err != nil {
		return false, err
	}
	object := p.object(file)
	digest := plan.ContentHash(data)
	if p.index != nil {
		old, err := p.index.Digest(ctx, object)
		if err != nil {
			log.Warningf(ctx, "publish index: %v", err)
		} else if old == digest {
			return false, nil
		}
	}
	if err := p.bucket.Upload(ctx, object, bytes.NewReader(data), AttrsFor(file)); err != nil {
		return false, err
	}
	if p.index != nil {
		if err := p.index.Record(ctx, object, digest); err != nil {
			log.Warningf(ctx, "publish index: %v", err)
		}
	}
	return true, nil
}

// contentTypes fixes the types of build outputs, which system MIME
// databases disagree on.
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".txt":   "text/plain; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".mjs":   "text/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".map":   "application/json",
	".json":  "application/json",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// AttrsFor returns the metadata of the object for file.
func AttrsFor(file string) Attrs {
	ext := path.Ext(file)
	ct, ok := contentTypes[strings.ToLower(ext)]
	if !ok {
		ct = "application/octet-stream"
	}
	return Attrs{ContentType: ct, CacheControl: middleware.CacheControlFor(file)}
}
