package store

import "errors"

// ErrDocumentNotFound is returned by lookups and mutations naming a document
// id that does not exist in the merged (staged + persisted) view.
var ErrDocumentNotFound = errors.New("document not found")

// ErrIDSpaceExhausted is returned by CreateDoc if no unused 6-char id could
// be found after the bounded number of random draws (practically
// unreachable: the id space is 62^6, far larger than any realistic document
// count).
var ErrIDSpaceExhausted = errors.New("document id space exhausted")
