package model

import "strings"

// Entry is one indexed, searchable record in an embedding store.
// Identifier is unique within a store; writing the same identifier again
// replaces the prior entry.
type Entry struct {
	Identifier  string    `json:"identifier"`
	Description string    `json:"description"`
	Embedding   []float32 `json:"embedding"`
	Extra       string    `json:"extra,omitempty"`
	Mtime       int64     `json:"mtime"`
}

// SearchResult is one ranked match returned by a store search.
type SearchResult struct {
	Identifier  string  `json:"identifier"`
	Description string  `json:"description"`
	Similarity  float32 `json:"similarity"`
	Extra       string  `json:"extra,omitempty"`
}

// CompositeIdentifier builds a sub-unit identifier such as a text sentence
// or a video keyframe: "{owner}#{sub}".
func CompositeIdentifier(owner, sub string) string {
	return owner + "#" + sub
}

// OwnerOf returns the owning file path of a possibly composite identifier.
func OwnerOf(identifier string) string {
	owner, _, _ := strings.Cut(identifier, "#")
	return owner
}
