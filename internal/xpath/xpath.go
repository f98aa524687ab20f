// Package xpath compiles and evaluates the restricted path expressions
// used to narrow loaded documents: absolute or relative element-name
// steps, the "." self step, "*" name tests, attribute predicates and
// child-text predicates. Nothing else of XPath is supported.
package xpath

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is wrapped by every compile failure, regardless of any
// failure-softening options elsewhere.
var ErrInvalid = errors.New("invalid path expression")

// Expr is a compiled path expression.
type Expr struct {
	steps []step
}

type step struct {
	name  string // element name or "*"
	self  bool   // the "." step
	preds []pred
}

type pred struct {
	attr   bool // @name form
	exists bool // [@name] without a comparison
	name   string
	value  string
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// Compile parses expr. The empty expression and "/" select the whole
// document.
func Compile(expr string) (*Expr, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "/" {
		return &Expr{}, nil
	}
	parts, err := splitSteps(expr)
	if err != nil {
		return nil, err
	}
	e := &Expr{}
	for i, part := range parts {
		if part == "" {
			if i == 0 {
				// Leading slash: absolute and relative paths both
				// evaluate from the document.
				continue
			}
			return nil, invalidf("empty step in %q", expr)
		}
		st, err := parseStep(part)
		if err != nil {
			return nil, err
		}
		e.steps = append(e.steps, st)
	}
	if len(e.steps) == 0 {
		return nil, invalidf("no steps in %q", expr)
	}
	return e, nil
}

// splitSteps splits on '/' outside predicates and quoted strings.
func splitSteps(s string) ([]string, error) {
	var parts []string
	var cur strings.Builder
	inPred := false
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			cur.WriteByte(c)
		case c == '"' || c == '\'':
			quote = c
			cur.WriteByte(c)
		case c == '[':
			if inPred {
				return nil, invalidf("nested predicate")
			}
			inPred = true
			cur.WriteByte(c)
		case c == ']':
			if !inPred {
				return nil, invalidf("unexpected ]")
			}
			inPred = false
			cur.WriteByte(c)
		case c == '/' && !inPred:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, invalidf("unterminated string literal")
	}
	if inPred {
		return nil, invalidf("unterminated predicate")
	}
	parts = append(parts, cur.String())
	return parts, nil
}

func parseStep(part string) (step, error) {
	if part == "." {
		return step{self: true}, nil
	}
	nameEnd := strings.IndexByte(part, '[')
	if nameEnd < 0 {
		nameEnd = len(part)
	}
	name := part[:nameEnd]
	if !isNameTest(name) {
		return step{}, invalidf("bad step %q", part)
	}
	st := step{name: name}
	rest := part[nameEnd:]
	for rest != "" {
		if rest[0] != '[' {
			return step{}, invalidf("unexpected %q in step", rest)
		}
		end := predEnd(rest)
		if end < 0 {
			return step{}, invalidf("unterminated predicate in %q", part)
		}
		p, err := parsePred(rest[1:end])
		if err != nil {
			return step{}, err
		}
		st.preds = append(st.preds, p)
		rest = rest[end+1:]
	}
	return st, nil
}

// predEnd locates the closing ']' of a predicate that starts at index 0,
// honoring quoted values.
func predEnd(s string) int {
	var quote byte
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ']':
			return i
		}
	}
	return -1
}

func parsePred(body string) (pred, error) {
	if body == "" {
		return pred{}, invalidf("empty predicate")
	}
	p := pred{}
	if body[0] == '@' {
		p.attr = true
		body = body[1:]
	}
	eq := strings.IndexByte(body, '=')
	if eq < 0 {
		if !p.attr {
			return pred{}, invalidf("predicate %q needs a comparison", body)
		}
		if !isName(body) {
			return pred{}, invalidf("bad attribute name %q", body)
		}
		p.exists = true
		p.name = body
		return p, nil
	}
	p.name = body[:eq]
	if !isName(p.name) {
		return pred{}, invalidf("bad name %q in predicate", p.name)
	}
	lit := body[eq+1:]
	if len(lit) < 2 || (lit[0] != '"' && lit[0] != '\'') || lit[len(lit)-1] != lit[0] {
		return pred{}, invalidf("predicate value %q is not a quoted string", lit)
	}
	p.value = lit[1 : len(lit)-1]
	if strings.IndexByte(p.value, lit[0]) >= 0 {
		return pred{}, invalidf("stray quote in predicate value %q", lit)
	}
	return p, nil
}

func isNameTest(s string) bool {
	return s == "*" || isName(s)
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == ':' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r >= 0x80:
		case i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}
