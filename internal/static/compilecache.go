// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package static

import (
	"math"
	"sync"
)

// compileCache holds the output of the component compiler for recently
// compiled sources, so that a rebuild in watch mode only recompiles the
// components that changed. Keys name the command and the source digest.
type compileCache struct {
	mu      sync.Mutex
	size    int
	entries map[string]*compiled
	tick    uint // increases every time an entry is used
}

type compiled struct {
	lastUsed uint
	out      []byte
}

// newCompileCache returns a cache of at most size entries. It panics if size
// is not positive.
func newCompileCache(size int) *compileCache {
	if size < 1 {
		panic("static: non-positive compile cache size")
	}
	return &compileCache{size: size, entries: map[string]*compiled{}}
}

func (c *compileCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.tick++
	e.lastUsed = c.tick
	return e.out, true
}

// put stores out under key, evicting the least recently used entry when
// the cache is full.
func (c *compileCache) put(key string, out []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.size {
		var (
			oldestTick uint = math.MaxUint
			oldestKey  string
		)
		for k, e := range c.entries {
			if e.lastUsed <= oldestTick {
				oldestTick = e.lastUsed
				oldestKey = k
			}
		}
		delete(c.entries, oldestKey)
	}
	c.tick++
	c.entries[key] = &compiled{lastUsed: c.tick, out: out}
}

func (c *compileCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
