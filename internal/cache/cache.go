// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cache implements a Redis-based index of the content digests of
// published files.
package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/webbuild/internal/derrors"
)

// keyPrefix namespaces the index within a shared Redis database.
const keyPrefix = "webbuild:digest:"

// An Index maps published object names to the digest of their contents.
type Index struct {
	client *redis.Client
	// ttl is the lifetime of entries. Zero means they never expire.
	ttl time.Duration
}

// New creates a new Index using the given Redis client. Entries expire
// after ttl, or never if ttl is zero.
func New(client *redis.Client, ttl time.Duration) *Index {
	return &Index{client: client, ttl: ttl}
}

// Digest returns the recorded digest of object, or "" if there is none.
func (x *Index) Digest(ctx context.Context, object string) (_ string, err error) {
	defer derrors.Wrap(&err, "Digest(%q)", object)
	val, err := x.client.Get(ctx, keyPrefix+object).Result()
	if err == redis.Nil { // not found
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Record records the digest of object.
func (x *Index) Record(ctx context.Context, object, digest string) (err error) {
	defer derrors.Wrap(&err, "Record(%q, %q)", object, digest)
	return x.client.Set(ctx, keyPrefix+object, digest, x.ttl).Err()
}

// ForgetPrefix deletes the entries of all objects whose names begin with
// prefix.
func (x *Index) ForgetPrefix(ctx context.Context, prefix string) (err error) {
	defer derrors.Wrap(&err, "ForgetPrefix(%q)", prefix)
	iter := x.client.Scan(ctx, 0, keyPrefix+prefix+"*", int64(scanCount)).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= scanCount {
			if err := x.client.Unlink(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if iter.Err() != nil {
		return iter.Err()
	}
	if len(keys) > 0 {
		return x.client.Unlink(ctx, keys...).Err()
	}
	return nil
}

// The "count" argument to the Redis SCAN command, which is a hint for how much
// work to perform.
// Also used as the batch size for deletes in ForgetPrefix.
// var for testing.
var scanCount = 100
