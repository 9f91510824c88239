// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package devserver

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/webbuild/internal/derrors"
	"golang.org/x/webbuild/internal/log"
)

// settle is how long a file must be quiet before a change is reported.
// Editors often save in several steps.
const settle = 100 * time.Millisecond

// WatchFile calls onChange each time the file at path is written,
// created or replaced, until ctx is done. Bursts of events are reported
// once. The file's directory must exist.
func WatchFile(ctx context.Context, path string, onChange func()) (err error) {
	defer derrors.Add(&err, "WatchFile(%q)", path)

	path, err = filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	// Watching the directory survives editors that replace the file.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(settle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warningf(ctx, "watching %s: %v", path, err)
		case <-timer.C:
			onChange()
		}
	}
}
