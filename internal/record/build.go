package record

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/xmlgest/internal/parser"
)

// Build consumes the whole event stream and returns the root element's
// record. simple selects the per-tag children key instead of "_children".
func Build(p *parser.Parser, simple bool) (*Record, error) {
	var root *Record
	var stack []*frame
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
			rec, err := newRecord(ev, simple)
			if err != nil {
				return nil, err
			}
			if len(stack) == 0 {
				root = rec
			} else {
				f := stack[len(stack)-1]
				f.flush()
				f.rec.Children = append(f.rec.Children, Fragment{Elem: rec})
			}
			stack = append(stack, &frame{rec: rec})
		case parser.EventText:
			if len(stack) == 0 {
				continue
			}
			f := stack[len(stack)-1]
			if ev.Unresolved {
				f.flush()
				f.rec.Children = append(f.rec.Children, Fragment{Absent: true})
			} else {
				f.pending.WriteString(ev.Text)
			}
		case parser.EventEnd:
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			f.finalize()
		case parser.EventProcInst:
			// Processing instructions have no place in the record form.
		case parser.EventEndDocument:
			return root, nil
		}
	}
	if root == nil {
		return nil, fmt.Errorf("document produced no root record")
	}
	return root, nil
}

// frame tracks one open element. Character data accumulates across event
// boundaries (comments, CDATA sections) and is flushed as a single
// trimmed fragment when a child element or absence marker interrupts it.
type frame struct {
	rec     *Record
	pending strings.Builder
}

func (f *frame) flush() {
	if f.pending.Len() == 0 {
		return
	}
	t := strings.TrimSpace(f.pending.String())
	f.pending.Reset()
	if t != "" {
		f.rec.Children = append(f.rec.Children, Fragment{Text: t})
	}
}

// finalize collapses a lone text fragment into the element's Text field;
// anything richer stays an ordered children sequence.
func (f *frame) finalize() {
	f.flush()
	frs := f.rec.Children
	if len(frs) == 1 && frs[0].Elem == nil && !frs[0].Absent {
		f.rec.Text = frs[0].Text
		f.rec.Children = nil
	}
}

func newRecord(ev parser.Event, simple bool) (*Record, error) {
	key := "_children"
	if simple {
		key = "_" + ev.Name
	}
	if err := checkAttrs(ev, key); err != nil {
		return nil, err
	}
	return &Record{Type: ev.Name, Attrs: ev.Attrs, childKey: key}, nil
}
