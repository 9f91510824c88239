// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package devserver

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/net/websocket"
)

const reloadMessage = "reload"

const clientScript = `(function () {
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var ws = new WebSocket(proto + "//" + location.host + "` + LiveReloadPath + `");
  ws.onmessage = function (e) {
    if (e.data === "` + reloadMessage + `") location.reload();
  };
})();
`

func serveClient(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	io.WriteString(w, clientScript)
}

// A hub tracks the live reload connections.
type hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func newHub() *hub {
	return &hub{conns: map[*websocket.Conn]bool{}}
}

func (h *hub) handler() http.Handler {
	return websocket.Server{
		Handshake: sameOrigin,
		Handler:   h.serve,
	}
}

// sameOrigin accepts connections from pages served by this server and
// from clients that send no origin.
func sameOrigin(config *websocket.Config, r *http.Request) error {
	o := r.Header.Get("Origin")
	if o == "" {
		return nil
	}
	u, err := url.Parse(o)
	if err != nil {
		return err
	}
	if u.Host != r.Host {
		return fmt.Errorf("origin %q is not %q", o, r.Host)
	}
	config.Origin = u
	return nil
}

func (h *hub) serve(ws *websocket.Conn) {
	h.mu.Lock()
	h.conns[ws] = true
	h.mu.Unlock()
	defer h.remove(ws)
	// Clients never send; reading detects the close.
	io.Copy(io.Discard, ws)
}

func (h *hub) remove(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[ws] {
		delete(h.conns, ws)
		ws.Close()
	}
}

func (h *hub) broadcast(msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for ws := range h.conns {
		if err := websocket.Message.Send(ws, msg); err != nil {
			delete(h.conns, ws)
			ws.Close()
			continue
		}
		n++
	}
	return n
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ws := range h.conns {
		ws.Close()
		delete(h.conns, ws)
	}
}
