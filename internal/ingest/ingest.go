// Package ingest ties source resolution, decoding, parsing, record
// building, path selection, and graph building into the operations the
// service exposes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dgallion1/xmlgest/internal/parser"
	"github.com/dgallion1/xmlgest/internal/record"
	"github.com/dgallion1/xmlgest/internal/source"
	"github.com/dgallion1/xmlgest/internal/xpath"
)

// Loader runs load and import operations against one source resolver.
type Loader struct {
	src *source.Resolver
	log *slog.Logger
}

// NewLoader wires a loader to its resolver.
func NewLoader(src *source.Resolver, log *slog.Logger) *Loader {
	return &Loader{src: src, log: log}
}

// Load resolves a locator, parses the document, and returns the records
// selected by opts.Path, in document order. An invalid path expression
// fails before the source is touched.
func (l *Loader) Load(ctx context.Context, locator string, opts Options) ([]*record.Record, error) {
	expr, err := xpath.Compile(opts.Path)
	if err != nil {
		return nil, err
	}
	data, err := l.read(ctx, locator, opts.Charset)
	if err != nil {
		return l.softenLoad(locator, err, opts.FailOnError)
	}
	root, err := record.Build(parser.New(data, l.parserOptions(ctx, opts.AllowDTD, opts.Limits)), opts.SimpleMode)
	if err != nil {
		return l.softenLoad(locator, err, opts.FailOnError)
	}
	return expr.Select(root), nil
}

// Parse runs the record engine over an inline document. There is no
// source resolution, so external references always parse to absence
// markers even when opts.AllowDTD is set.
func Parse(xml string, opts Options) ([]*record.Record, error) {
	expr, err := xpath.Compile(opts.Path)
	if err != nil {
		return nil, err
	}
	popts := parser.Options{AllowDTD: opts.AllowDTD, Limits: opts.Limits}
	root, err := record.Build(parser.New([]byte(xml), popts), opts.SimpleMode)
	if err != nil {
		if opts.FailOnError || !suppressible(err) {
			return nil, fmt.Errorf("parse document: %w", err)
		}
		return []*record.Record{{}}, nil
	}
	return expr.Select(root), nil
}

// read opens the locator and materializes it as UTF-8 bytes.
func (l *Loader) read(ctx context.Context, locator, charset string) ([]byte, error) {
	rc, err := l.src.Open(ctx, locator)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	dec, err := source.DecodeReader(rc, charset)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(dec)
}

// parserOptions wires external entity resolution through the source
// resolver when the caller opted in.
func (l *Loader) parserOptions(ctx context.Context, allowDTD bool, limits parser.Limits) parser.Options {
	popts := parser.Options{AllowDTD: allowDTD, Limits: limits}
	if allowDTD {
		popts.Resolve = func(systemID string) ([]byte, error) {
			rc, err := l.src.Open(ctx, systemID)
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return popts
}

// softenLoad downgrades suppressible failures to the single empty record.
func (l *Loader) softenLoad(locator string, err error, failOnError bool) ([]*record.Record, error) {
	if failOnError || !suppressible(err) {
		return nil, fmt.Errorf("load %s: %w", locator, err)
	}
	l.log.Warn("load failed softly", "locator", locator, "error", err)
	return []*record.Record{{}}, nil
}

// suppressible reports whether failOnError=false may swallow err.
// Security violations and invalid path expressions never soften.
func suppressible(err error) bool {
	var sec *parser.SecurityError
	if errors.As(err, &sec) {
		return false
	}
	return !errors.Is(err, xpath.ErrInvalid)
}
