// Package uid generates identifiers: snowflake numbers for row keys, UUIDv7
// for token and correlation ids, ULIDs for sortable string keys and random
// opaque tokens for bearer secrets.
package uid

// NumberID generates unique, roughly time ordered int64 identifiers.
type NumberID interface {
	Generate() int64
}

// StringID generates unique string identifiers.
type StringID interface {
	Generate() string
}
