package xpath

import "github.com/dgallion1/xmlgest/internal/record"

// Select evaluates the expression against a built tree and returns the
// matching records in document order. No match is an empty result, not
// an error.
func (e *Expr) Select(root *record.Record) []*record.Record {
	if root == nil {
		return nil
	}
	if len(e.steps) == 0 {
		return []*record.Record{root}
	}
	cur := []*record.Record{root}
	// The first named step is matched against the context nodes
	// themselves: both /catalog/book and catalog/book start at the
	// document, whose only element is the root.
	atDocument := true
	for _, st := range e.steps {
		if st.self {
			continue
		}
		var next []*record.Record
		for _, r := range cur {
			cands := r.ChildElems()
			if atDocument {
				cands = []*record.Record{r}
			}
			for _, c := range cands {
				if st.name != "*" && c.Type != st.name {
					continue
				}
				if !matchPreds(c, st.preds) {
					continue
				}
				next = append(next, c)
			}
		}
		atDocument = false
		cur = next
		if len(cur) == 0 {
			return nil
		}
	}
	return cur
}

func matchPreds(r *record.Record, preds []pred) bool {
	for _, p := range preds {
		if !matchPred(r, p) {
			return false
		}
	}
	return true
}

func matchPred(r *record.Record, p pred) bool {
	if p.attr {
		v, ok := r.Attr(p.name)
		if !ok {
			return false
		}
		return p.exists || v == p.value
	}
	v, ok := r.ChildText(p.name)
	return ok && v == p.value
}
