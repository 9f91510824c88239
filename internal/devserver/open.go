// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package devserver

import (
	"context"
	"runtime"

	"golang.org/x/webbuild/internal/toolchain"
)

// browserCommand returns the command that opens url in the system browser
// on goos.
func browserCommand(goos, url string) []string {
	switch goos {
	case "darwin":
		return []string{"open", url}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", url}
	default:
		return []string{"xdg-open", url}
	}
}

// OpenBrowser opens url in the system browser.
func OpenBrowser(ctx context.Context, r toolchain.Runner, url string) error {
	_, err := r.Run(ctx, toolchain.Command{Args: browserCommand(runtime.GOOS, url)})
	return err
}
