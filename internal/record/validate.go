package record

import (
	"fmt"

	"github.com/dgallion1/xmlgest/internal/parser"
)

// ReservedKeyError reports an attribute whose name collides with one of
// the keys the record form reserves for itself. Such a document cannot
// be rendered without silently losing data, so it is rejected instead.
type ReservedKeyError struct {
	Element string
	Attr    string
}

func (e *ReservedKeyError) Error() string {
	return fmt.Sprintf("element <%s> has attribute %q which collides with a reserved record key", e.Element, e.Attr)
}

// checkAttrs rejects attributes named after the reserved keys of the
// element being built: _type, _text, and the active children key.
func checkAttrs(ev parser.Event, childKey string) error {
	for _, a := range ev.Attrs {
		if a.Name == "_type" || a.Name == "_text" || a.Name == childKey {
			return &ReservedKeyError{Element: ev.Name, Attr: a.Name}
		}
	}
	return nil
}
