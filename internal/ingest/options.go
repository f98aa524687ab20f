package ingest

import "github.com/dgallion1/xmlgest/internal/parser"

// Options controls a record-mode load.
type Options struct {
	// Path scopes the result to matching subtrees. Empty or "/" selects
	// the whole document.
	Path string `json:"path,omitempty"`
	// FailOnError propagates read and parse failures. When false, those
	// failures yield a single empty record instead. Security violations
	// and invalid path expressions always propagate.
	FailOnError bool `json:"failOnError"`
	// SimpleMode names each children key after the parent element's tag
	// instead of the canonical _children.
	SimpleMode bool `json:"simpleMode,omitempty"`
	// AllowDTD opts in to fetching external DTDs and entities through
	// the source resolver. Off by default: external references parse to
	// explicit absence markers.
	AllowDTD bool `json:"allowDtd,omitempty"`
	// Charset overrides encoding detection.
	Charset string `json:"charset,omitempty"`
	// Limits bounds parser resource use. Zero fields take defaults.
	Limits parser.Limits `json:"-"`
}

// DefaultOptions is what callers get with no configuration.
func DefaultOptions() Options {
	return Options{FailOnError: true}
}

// GraphOptions controls a graph-mode import.
type GraphOptions struct {
	ConnectCharacters           bool   `json:"connectCharacters,omitempty"`
	CreateNextWordRelationships bool   `json:"createNextWordRelationships,omitempty"`
	FilterLeadingWhitespace     bool   `json:"filterLeadingWhitespace,omitempty"`
	FailOnError                 bool   `json:"failOnError"`
	AllowDTD                    bool   `json:"allowDtd,omitempty"`
	Charset                     string `json:"charset,omitempty"`

	Limits parser.Limits `json:"-"`
}

// DefaultGraphOptions is what import callers get with no configuration.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{FailOnError: true}
}
