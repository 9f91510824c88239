// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// HashLength is the number of hex digits of a content hash that appear in a
// file name.
const HashLength = 20

// ContentHash returns the content hash used in production file names.
// Equal contents always produce equal hashes.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:HashLength]
}

// A NamingRule maps a logical asset name and extension to an output file
// name.
type NamingRule struct {
	// Hashed is true when the content hash is part of the name.
	Hashed bool `yaml:"hashed"`
}

// NamingRuleFor returns the naming rule for script and style bundles in mode.
// Only development output omits the content hash.
func NamingRuleFor(dev bool) NamingRule {
	return NamingRule{Hashed: !dev}
}

// Filename returns the output file name for name and ext. The hash is only
// used when the rule is hashed; an empty hash yields an unhashed name.
//
//	development: main.js
//	production:  main.abc123.js
func (r NamingRule) Filename(name, ext, hash string) string {
	if r.Hashed && hash != "" {
		return name + "." + hash + "." + ext
	}
	return name + "." + ext
}

// Template returns the rule as a bundler path template without the
// extension, using the bundler's [name] and [hash] placeholders.
func (r NamingRule) Template() string {
	return strings.TrimSuffix(r.Filename("[name]", "", "[hash]"), ".")
}

// hashedName matches file names carrying a content hash, whether produced by
// ContentHash or by the bundler's [hash] placeholder (8 base32 characters).
var hashedName = regexp.MustCompile(`\.([0-9a-f]{20}|[A-Z2-7]{8})\.[A-Za-z0-9]+$`)

// IsContentAddressed reports whether the file name carries a content hash,
// so that its contents can never change under the same name.
func IsContentAddressed(name string) bool {
	return hashedName.MatchString(name)
}
