// Package store is the durable document/permission registry (spec.md §4.A):
// an in-memory staging layer over a snapshot loaded from, and periodically
// flushed back to, a single file under the service's XDG data directory.
package store

// Bits is a bitfield over the three permission flags a (document, app) pair
// can hold.
type Bits uint32

const (
	// PermRead grants Read and GetInfo on the document.
	PermRead Bits = 1 << iota
	// PermWrite grants PrepareUpdate/FinishUpdate/AbortUpdate.
	PermWrite
	// PermGrant allows the holder to call Grant/RevokePermissions for other apps.
	PermGrant
)

// AllPermissions is the full bitfield, held implicitly by the owning user
// (the empty app-id).
const AllPermissions = PermRead | PermWrite | PermGrant

// Has reports whether every bit set in want is also set in b.
func (b Bits) Has(want Bits) bool {
	return b&want == want
}

// TokenBits maps the wire permission token names (spec.md GLOSSARY) to their bit.
var TokenBits = map[string]Bits{
	"read":              PermRead,
	"write":             PermWrite,
	"grant-permissions": PermGrant,
}

// BitsFromTokens ORs together the bits for a set of permission tokens. An
// unrecognized token is ignored; callers that must reject unknown tokens do
// so before calling this (spec.md §4.D: "all-or-nothing" token validation).
func BitsFromTokens(tokens []string) Bits {
	var b Bits
	for _, t := range tokens {
		b |= TokenBits[t]
	}

	return b
}

// Document is one row of the registry: a short id bound to a URI and an
// optional title. See spec.md §3 for title/promise semantics.
type Document struct {
	ID    string
	URI   string
	Title string
}

// IsPromise reports whether the document is a not-yet-materialized promise
// (created with a title, pending its first FinishUpdate) rather than a
// reference to an existing file.
func (d Document) IsPromise() bool {
	return d.Title != ""
}

// Permission is the persisted bitfield for one (document, app) pair.
type Permission struct {
	// ID is an internal identifier used only as a stable map/log key; it is
	// never sent over the bus.
	ID         string
	DocumentID string
	AppID      string
	Bits       Bits
}
