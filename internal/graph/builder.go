package graph

import (
	"context"
	"fmt"
	"io"

	"github.com/dgallion1/xmlgest/internal/parser"
)

// Builder walks one document's events and issues creation requests.
type Builder struct {
	store Store
	opts  Options
}

// NewBuilder returns a builder writing to store.
func NewBuilder(store Store, opts Options) *Builder {
	return &Builder{store: store, opts: opts}
}

// frame tracks the child list of one open parent node. Only element
// children are structural: words and processing instructions never join
// sibling chains.
type frame struct {
	node      int64
	lastChild int64
	haveChild bool
}

// Build consumes the whole event stream. The document node carries url
// when it is non-empty. A store error aborts the walk immediately.
func (b *Builder) Build(ctx context.Context, p *parser.Parser, url string) (*Summary, error) {
	stats := newStats()
	createNode := func(label string, props map[string]any) (int64, error) {
		id, err := b.store.CreateNode(ctx, label, props)
		if err != nil {
			return 0, fmt.Errorf("create %s node: %w", label, err)
		}
		stats.Nodes[label]++
		return id, nil
	}
	createRel := func(from, to int64, typ string) error {
		if err := b.store.CreateRel(ctx, from, to, typ); err != nil {
			return fmt.Errorf("create %s relationship: %w", typ, err)
		}
		stats.Rels[typ]++
		return nil
	}

	docProps := map[string]any{}
	if url != "" {
		docProps["url"] = url
	}
	doc, err := createNode(LabelDocument, docProps)
	if err != nil {
		return nil, err
	}

	leafLabel := b.opts.leafLabel()
	chainRel := b.opts.chainRel()

	last := doc // document-order NEXT cursor, every node kind
	var lastLeaf int64
	haveLeaf := false
	frames := []*frame{{node: doc}}

	for {
		ev, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch ev.Kind {
		case parser.EventStart:
			props := map[string]any{"_name": ev.Name}
			for _, a := range ev.Attrs {
				props[a.Name] = a.Value
			}
			id, err := createNode(LabelTag, props)
			if err != nil {
				return nil, err
			}
			if err := createRel(last, id, RelNext); err != nil {
				return nil, err
			}
			last = id
			parent := frames[len(frames)-1]
			if !parent.haveChild {
				if err := createRel(parent.node, id, RelFirstChild); err != nil {
					return nil, err
				}
			} else {
				if err := createRel(parent.lastChild, id, RelNextSibling); err != nil {
					return nil, err
				}
			}
			parent.haveChild = true
			parent.lastChild = id
			frames = append(frames, &frame{node: id})

		case parser.EventEnd:
			f := frames[len(frames)-1]
			frames = frames[:len(frames)-1]
			// The last-child pointer is created once the parent closes,
			// so it is written exactly once per parent.
			if f.haveChild {
				if err := createRel(f.node, f.lastChild, RelLastChild); err != nil {
					return nil, err
				}
			}

		case parser.EventText:
			if ev.Unresolved {
				// No node for an absent entity; the chains continue
				// across the gap.
				continue
			}
			for _, tok := range b.opts.tokens(ev.Text, !haveLeaf) {
				id, err := createNode(leafLabel, map[string]any{"text": tok})
				if err != nil {
					return nil, err
				}
				if err := createRel(last, id, RelNext); err != nil {
					return nil, err
				}
				last = id
				if chainRel != "" && haveLeaf {
					if err := createRel(lastLeaf, id, chainRel); err != nil {
						return nil, err
					}
				}
				lastLeaf = id
				haveLeaf = true
			}

		case parser.EventProcInst:
			id, err := createNode(LabelProcInst, map[string]any{
				"_piTarget": ev.Name,
				"_piData":   ev.Text,
			})
			if err != nil {
				return nil, err
			}
			if err := createRel(last, id, RelNext); err != nil {
				return nil, err
			}
			last = id

		case parser.EventEndDocument:
			root := frames[0]
			if root.haveChild {
				if err := createRel(root.node, root.lastChild, RelLastChild); err != nil {
					return nil, err
				}
			}
			return &Summary{Root: doc, Stats: stats}, nil
		}
	}
	return nil, fmt.Errorf("event stream ended without end of document")
}
