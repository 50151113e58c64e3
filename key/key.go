// Package key implements the structured, URN-shaped cache key grammar and
// the per-call key/config build pipeline.
package key

import (
	"net/url"
	"sort"
	"strings"
)

// WatermarkUseCase is reserved; descriptors may not register with it.
const WatermarkUseCase = "watermark"

// Layer identifies a tier participating in the cache chain.
type Layer string

const (
	LayerLocal  Layer = "LOCAL"
	LayerRemote Layer = "REMOTE"
)

// Key is the immutable identity of a cached value. Its Args map makes Key
// non-comparable in Go; Canonical renders the string form used as the
// storage key.
type Key struct {
	KeyType string
	ID      string
	Args    map[string]string
	UseCase string
}

// Canonical renders the URN wire format:
//
//	urn:<prefix>:<key_type>:<id>?<name1>=<v1>&<name2>=<v2>#<use_case>
//
// Args are sorted lexicographically by name and percent-escaped. The
// duplicate "urn" framing (scheme plus a literal prefix segment) is kept
// on purpose for bit-compatibility with already-deployed keys.
func (k Key) Canonical(prefix string) string {
	var b strings.Builder
	b.WriteString("urn:")
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(k.KeyType)
	b.WriteByte(':')
	b.WriteString(k.ID)

	if len(k.Args) > 0 {
		names := make([]string, 0, len(k.Args))
		for n := range k.Args {
			names = append(names, n)
		}
		sort.Strings(names)

		b.WriteByte('?')
		for i, n := range names {
			if i > 0 {
				b.WriteByte('&')
			}
			b.WriteString(n)
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(k.Args[n]))
		}
	}

	b.WriteByte('#')
	b.WriteString(k.UseCase)
	return b.String()
}

// WatermarkKey is the key under which the invalidation watermark for
// (key_type, id) is stored, independent of use_case and args. It reuses
// the canonical grammar with the reserved watermark use_case so that a
// hash-tag-aware deployment can still co-locate envelope and watermark
// keys for the same entity on one shard.
func WatermarkKey(prefix, keyType, id string) string {
	k := Key{KeyType: keyType, ID: id, UseCase: WatermarkUseCase}
	return k.Canonical(prefix)
}
