// Package graph turns parse events into node and relationship creation
// requests against a store, modeling the document as a navigable graph.
package graph

import "context"

// Node labels.
const (
	LabelDocument   = "XmlDocument"
	LabelTag        = "XmlTag"
	LabelWord       = "XmlWord"
	LabelCharacters = "XmlCharacters"
	LabelProcInst   = "XmlProcessingInstruction"
)

// Relationship types. NE chains Characters nodes the way NEXT_WORD
// chains Word nodes.
const (
	RelNext        = "NEXT"
	RelNextSibling = "NEXT_SIBLING"
	RelFirstChild  = "FIRST_CHILD_OF"
	RelLastChild   = "LAST_CHILD_OF"
	RelNextWord    = "NEXT_WORD"
	RelNextEntity  = "NE"
)

// Store receives creation requests in document order. Implementations
// own transaction boundaries and id assignment; the builder never
// retries a failed request.
type Store interface {
	CreateNode(ctx context.Context, label string, props map[string]any) (int64, error)
	CreateRel(ctx context.Context, from, to int64, typ string) error
}

// Options select the tokenization mode and which content chain to build.
type Options struct {
	// ConnectCharacters creates one Characters node per text run and
	// chains consecutive runs with NE relationships. When unset, runs
	// split into whitespace-separated Word nodes instead.
	ConnectCharacters bool

	// CreateNextWordRelationships chains consecutive Word nodes with
	// NEXT_WORD relationships. Ignored in character mode.
	CreateNextWordRelationships bool

	// FilterLeadingWhitespace trims leading whitespace from the first
	// content run of the document. Character mode only; word splitting
	// discards surrounding whitespace anyway.
	FilterLeadingWhitespace bool
}

// Stats counts created nodes per label and relationships per type.
type Stats struct {
	Nodes map[string]int64 `json:"nodes"`
	Rels  map[string]int64 `json:"relationships"`
}

func newStats() Stats {
	return Stats{Nodes: map[string]int64{}, Rels: map[string]int64{}}
}

// NodeTotal sums node counts across labels.
func (s Stats) NodeTotal() int64 {
	var n int64
	for _, c := range s.Nodes {
		n += c
	}
	return n
}

// RelTotal sums relationship counts across types.
func (s Stats) RelTotal() int64 {
	var n int64
	for _, c := range s.Rels {
		n += c
	}
	return n
}

// Summary is the result of one document import.
type Summary struct {
	Root  int64 `json:"root"`
	Stats Stats `json:"stats"`
}
