// Package record converts parse events into nested, JSON-friendly record
// trees that preserve document order.
package record

import (
	"bytes"
	"encoding/json"

	"github.com/dgallion1/xmlgest/internal/parser"
)

// Fragment is one entry in an element's ordered children sequence: a
// child element, a trimmed text run, or an explicit absence left behind
// by an entity reference that could not be resolved.
type Fragment struct {
	Text   string
	Elem   *Record
	Absent bool
}

// Record is one element. Attributes keep their source order. Text is set
// only when the element holds character data and no child fragments;
// otherwise the interleaved children sequence carries everything.
type Record struct {
	Type     string
	Attrs    []parser.Attr
	Text     string
	Children []Fragment

	childKey string
}

// ChildrenKey returns the JSON key the children sequence renders under:
// "_children", or "_" + the element's own tag name in simple mode.
func (r *Record) ChildrenKey() string {
	if r.childKey == "" {
		return "_children"
	}
	return r.childKey
}

// Attr returns the value of the named attribute.
func (r *Record) Attr(name string) (string, bool) {
	for _, a := range r.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// ChildElems returns the element children in order, skipping text and
// absence entries.
func (r *Record) ChildElems() []*Record {
	var out []*Record
	for _, fr := range r.Children {
		if fr.Elem != nil {
			out = append(out, fr.Elem)
		}
	}
	return out
}

// ChildText returns the text content of the first child element with the
// given name.
func (r *Record) ChildText(name string) (string, bool) {
	for _, fr := range r.Children {
		if fr.Elem != nil && fr.Elem.Type == name {
			return fr.Elem.Text, true
		}
	}
	return "", false
}

// MarshalJSON renders the record deterministically: _type first, then
// attributes in source order, then _text or the children sequence. A zero
// record renders as an empty object, which is what fail-soft loads return.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r.Type == "" && len(r.Attrs) == 0 && len(r.Children) == 0 && r.Text == "" {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteString(`{"_type":`)
	writeJSONString(&buf, r.Type)
	for _, a := range r.Attrs {
		buf.WriteByte(',')
		writeJSONString(&buf, a.Name)
		buf.WriteByte(':')
		writeJSONString(&buf, a.Value)
	}
	if len(r.Children) > 0 {
		buf.WriteByte(',')
		writeJSONString(&buf, r.ChildrenKey())
		buf.WriteString(`:[`)
		for i, fr := range r.Children {
			if i > 0 {
				buf.WriteByte(',')
			}
			switch {
			case fr.Absent:
				buf.WriteString("null")
			case fr.Elem != nil:
				b, err := fr.Elem.MarshalJSON()
				if err != nil {
					return nil, err
				}
				buf.Write(b)
			default:
				writeJSONString(&buf, fr.Text)
			}
		}
		buf.WriteByte(']')
	} else if r.Text != "" {
		buf.WriteString(`,"_text":`)
		writeJSONString(&buf, r.Text)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
