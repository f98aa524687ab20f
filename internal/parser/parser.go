package parser

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Parser tokenizes a fully buffered XML document into a stream of events.
// The input must be UTF-8; callers decode other charsets before handing
// bytes over. The parser never performs I/O unless external resolution
// is explicitly enabled through Options.
type Parser struct {
	src   []byte
	pos   int
	start int
	opts  Options

	stack      []string
	queue      []Event
	dt         *doctype
	rootSeen   bool
	rootClosed bool
	ended      bool

	expansions    int
	expandedBytes int
}

// Options control entity resolution and hardening behavior.
type Options struct {
	// AllowDTD opts in to external entity resolution through Resolve.
	// When false, references to externally declared entities become
	// Unresolved text events and no I/O of any kind happens while parsing.
	AllowDTD bool

	// Resolve fetches the replacement bytes for an external entity's
	// system id. Consulted only when AllowDTD is set.
	Resolve func(systemID string) ([]byte, error)

	Limits Limits
}

// New returns a parser over src.
func New(src []byte, opts Options) *Parser {
	opts.Limits = opts.Limits.withDefaults()
	p := &Parser{src: src, opts: opts}
	if bytes.HasPrefix(p.src, []byte{0xEF, 0xBB, 0xBF}) {
		p.pos = 3
	}
	p.start = p.pos
	return p
}

// Next returns the next event. After EventEndDocument it returns io.EOF.
func (p *Parser) Next() (Event, error) {
	for {
		if len(p.queue) > 0 {
			ev := p.queue[0]
			p.queue = p.queue[1:]
			if ev.Kind == EventEndDocument {
				p.ended = true
			}
			return ev, nil
		}
		if p.ended {
			return Event{}, io.EOF
		}
		if err := p.advance(); err != nil {
			return Event{}, err
		}
	}
}

// advance consumes input until at least one event is queued, input is
// exhausted, or an error is found.
func (p *Parser) advance() error {
	if len(p.stack) == 0 {
		return p.outsideRoot()
	}
	return p.content()
}

// outsideRoot handles the prolog and the epilog, where only whitespace,
// comments, processing instructions, one doctype and one root element
// may appear.
func (p *Parser) outsideRoot() error {
	p.skipSpace()
	if p.pos >= len(p.src) {
		if !p.rootSeen {
			return p.syntaxf("missing root element")
		}
		p.queue = append(p.queue, Event{Kind: EventEndDocument})
		return nil
	}
	if p.src[p.pos] != '<' {
		return p.syntaxf("text outside root element")
	}
	switch {
	case p.hasPrefix("<?"):
		return p.procInst()
	case p.hasPrefix("<!--"):
		return p.comment()
	case p.hasPrefix("<!DOCTYPE"):
		if p.rootSeen {
			return p.syntaxf("doctype after root element")
		}
		if p.dt != nil {
			return p.syntaxf("multiple doctype declarations")
		}
		return p.parseDoctype()
	case p.hasPrefix("<!"):
		return p.syntaxf("unexpected markup declaration")
	case p.hasPrefix("</"):
		return p.syntaxf("unexpected end tag")
	default:
		if p.rootClosed {
			return p.syntaxf("multiple root elements")
		}
		return p.startTag()
	}
}

// content handles everything that can appear inside an open element.
func (p *Parser) content() error {
	if p.pos >= len(p.src) {
		return p.syntaxf("unexpected end of input inside <%s>", p.stack[len(p.stack)-1])
	}
	if p.src[p.pos] == '<' {
		switch {
		case p.hasPrefix("<!--"):
			return p.comment()
		case p.hasPrefix("<![CDATA["):
			return p.cdata()
		case p.hasPrefix("</"):
			return p.endTag()
		case p.hasPrefix("<?"):
			return p.procInst()
		case p.hasPrefix("<!"):
			return p.syntaxf("unexpected markup declaration")
		default:
			return p.startTag()
		}
	}
	return p.text()
}

func (p *Parser) startTag() error {
	p.pos++
	name, err := p.name()
	if err != nil {
		return err
	}
	if len(p.stack)+1 > p.opts.Limits.MaxDepth {
		return p.securityf("element nesting depth exceeds %d", p.opts.Limits.MaxDepth)
	}
	var attrs []Attr
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return p.syntaxf("unterminated start tag <%s", name)
		}
		switch p.src[p.pos] {
		case '>':
			p.pos++
			p.rootSeen = true
			p.stack = append(p.stack, name)
			p.queue = append(p.queue, Event{Kind: EventStart, Name: name, Attrs: attrs})
			return nil
		case '/':
			if !p.hasPrefix("/>") {
				return p.syntaxf("malformed start tag <%s", name)
			}
			p.pos += 2
			p.rootSeen = true
			if len(p.stack) == 0 {
				p.rootClosed = true
			}
			p.queue = append(p.queue,
				Event{Kind: EventStart, Name: name, Attrs: attrs, SelfClosing: true},
				Event{Kind: EventEnd, Name: name})
			return nil
		default:
			if len(attrs) >= p.opts.Limits.MaxAttrs {
				return p.securityf("attribute count exceeds %d", p.opts.Limits.MaxAttrs)
			}
			attr, err := p.attribute()
			if err != nil {
				return err
			}
			for _, a := range attrs {
				if a.Name == attr.Name {
					return p.syntaxf("duplicate attribute %q", attr.Name)
				}
			}
			attrs = append(attrs, attr)
		}
	}
}

func (p *Parser) attribute() (Attr, error) {
	name, err := p.name()
	if err != nil {
		return Attr{}, err
	}
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '=' {
		return Attr{}, p.syntaxf("attribute %q missing value", name)
	}
	p.pos++
	p.skipSpace()
	if p.pos >= len(p.src) || (p.src[p.pos] != '"' && p.src[p.pos] != '\'') {
		return Attr{}, p.syntaxf("unquoted value for attribute %q", name)
	}
	quote := p.src[p.pos]
	p.pos++
	var val strings.Builder
	for {
		if p.pos >= len(p.src) {
			return Attr{}, p.syntaxf("unterminated value for attribute %q", name)
		}
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return Attr{Name: name, Value: val.String()}, nil
		case c == '<':
			return Attr{}, p.syntaxf("literal < in value for attribute %q", name)
		case c == '&':
			// Suppressed external references collapse to the empty
			// string in attribute values.
			if _, err := p.reference(&val); err != nil {
				return Attr{}, err
			}
		case c == '\r':
			val.WriteByte(' ')
			p.pos++
			if p.pos < len(p.src) && p.src[p.pos] == '\n' {
				p.pos++
			}
		case c == '\t' || c == '\n':
			val.WriteByte(' ')
			p.pos++
		default:
			val.WriteByte(c)
			p.pos++
		}
	}
}

func (p *Parser) endTag() error {
	p.pos += 2
	name, err := p.name()
	if err != nil {
		return err
	}
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '>' {
		return p.syntaxf("malformed end tag </%s", name)
	}
	p.pos++
	open := p.stack[len(p.stack)-1]
	if name != open {
		return p.syntaxf("end tag </%s> does not match <%s>", name, open)
	}
	p.stack = p.stack[:len(p.stack)-1]
	if len(p.stack) == 0 {
		p.rootClosed = true
	}
	p.queue = append(p.queue, Event{Kind: EventEnd, Name: name})
	return nil
}

// text consumes one run of character data up to the next markup. The run
// is split around unresolved entity references so their positions survive
// as standalone events.
func (p *Parser) text() error {
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			p.queue = append(p.queue, Event{Kind: EventText, Text: run.String()})
			run.Reset()
		}
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '<' {
			break
		}
		if c == '&' {
			unresolved, err := p.reference(&run)
			if err != nil {
				return err
			}
			if unresolved {
				flush()
				p.queue = append(p.queue, Event{Kind: EventText, Unresolved: true})
			}
			continue
		}
		run.WriteByte(c)
		p.pos++
	}
	flush()
	if p.pos >= len(p.src) {
		return p.syntaxf("unexpected end of input inside <%s>", p.stack[len(p.stack)-1])
	}
	return nil
}

func (p *Parser) cdata() error {
	p.pos += len("<![CDATA[")
	end := bytes.Index(p.src[p.pos:], []byte("]]>"))
	if end < 0 {
		return p.syntaxf("unterminated CDATA section")
	}
	text := string(p.src[p.pos : p.pos+end])
	p.pos += end + 3
	p.queue = append(p.queue, Event{Kind: EventText, Text: text, CDATA: true})
	return nil
}

func (p *Parser) comment() error {
	p.pos += len("<!--")
	end := bytes.Index(p.src[p.pos:], []byte("-->"))
	if end < 0 {
		return p.syntaxf("unterminated comment")
	}
	p.pos += end + 3
	return nil
}

// procInst handles <?target data?>. The XML declaration is prolog syntax
// rather than a processing instruction and produces no event.
func (p *Parser) procInst() error {
	start := p.pos
	p.pos += 2
	target, err := p.name()
	if err != nil {
		return err
	}
	end := bytes.Index(p.src[p.pos:], []byte("?>"))
	if end < 0 {
		return p.syntaxf("unterminated processing instruction")
	}
	data := strings.TrimLeft(string(p.src[p.pos:p.pos+end]), " \t\r\n")
	p.pos += end + 2
	if strings.EqualFold(target, "xml") {
		if start != p.start {
			return p.syntaxf("xml declaration not at document start")
		}
		return nil
	}
	p.queue = append(p.queue, Event{Kind: EventProcInst, Name: target, Text: data})
	return nil
}

// reference consumes an entity or character reference at p.pos and writes
// the replacement text to out. It reports unresolved=true when the
// reference names an entity whose definition lives in a suppressed
// external subset.
func (p *Parser) reference(out *strings.Builder) (unresolved bool, err error) {
	rest := p.src[p.pos+1:]
	semi := bytes.IndexByte(rest, ';')
	if semi < 0 || semi > p.opts.Limits.MaxNameLen {
		return false, p.syntaxf("malformed reference")
	}
	ref := string(rest[:semi])
	p.pos += semi + 2
	if strings.HasPrefix(ref, "#") {
		r, ok := charRef(ref[1:])
		if !ok {
			return false, p.syntaxf("invalid character reference &%s;", ref)
		}
		out.WriteRune(r)
		return false, nil
	}
	if !isName(ref) {
		return false, p.syntaxf("malformed entity reference &%s;", ref)
	}
	if r, ok := builtinEntity(ref); ok {
		out.WriteRune(r)
		return false, nil
	}
	def, ok := p.lookupEntity(ref)
	switch {
	case ok && !def.external:
		exp, err := p.expandValue(def.value, 1)
		if err != nil {
			return false, err
		}
		out.WriteString(exp)
		return false, nil
	case ok && def.external:
		if p.opts.AllowDTD && p.opts.Resolve != nil {
			data, rerr := p.opts.Resolve(def.systemID)
			if rerr != nil {
				return false, p.syntaxf("resolve entity &%s;: %v", ref, rerr)
			}
			exp, err := p.expandValue(string(data), 1)
			if err != nil {
				return false, err
			}
			out.WriteString(exp)
			return false, nil
		}
		return true, nil
	case p.dt != nil && p.dt.external:
		// The entity may be declared in the subset we never fetched.
		return true, nil
	default:
		return false, p.syntaxf("undefined entity &%s;", ref)
	}
}

// expandValue expands replacement text recursively under the entity
// budget. Exceeding any bound is a hard security failure, never a
// truncation.
func (p *Parser) expandValue(value string, depth int) (string, error) {
	if depth > p.opts.Limits.MaxEntityDepth {
		return "", p.securityf("entity expansion depth exceeds %d", p.opts.Limits.MaxEntityDepth)
	}
	p.expansions++
	if p.expansions > p.opts.Limits.MaxEntityExpansions {
		return "", p.securityf("entity expansion count exceeds %d", p.opts.Limits.MaxEntityExpansions)
	}
	p.expandedBytes += len(value)
	if p.expandedBytes > p.opts.Limits.MaxEntityBytes {
		return "", p.securityf("entity expansion exceeds %d bytes", p.opts.Limits.MaxEntityBytes)
	}
	if !strings.ContainsRune(value, '&') {
		return value, nil
	}
	var out strings.Builder
	for i := 0; i < len(value); {
		c := value[i]
		if c != '&' {
			out.WriteByte(c)
			i++
			continue
		}
		semi := strings.IndexByte(value[i:], ';')
		if semi < 0 {
			return "", p.syntaxf("malformed reference in entity value")
		}
		ref := value[i+1 : i+semi]
		i += semi + 1
		if strings.HasPrefix(ref, "#") {
			r, ok := charRef(ref[1:])
			if !ok {
				return "", p.syntaxf("invalid character reference &%s;", ref)
			}
			out.WriteRune(r)
			continue
		}
		if r, ok := builtinEntity(ref); ok {
			out.WriteRune(r)
			continue
		}
		def, ok := p.lookupEntity(ref)
		switch {
		case ok && !def.external:
			exp, err := p.expandValue(def.value, depth+1)
			if err != nil {
				return "", err
			}
			out.WriteString(exp)
		case ok || (p.dt != nil && p.dt.external):
			// Unresolvable inside replacement text collapses to nothing.
		default:
			return "", p.syntaxf("undefined entity &%s;", ref)
		}
	}
	return out.String(), nil
}

func (p *Parser) name() (string, error) {
	start := p.pos
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRune(p.src[p.pos:])
		if p.pos == start {
			if !isNameStart(r) {
				return "", p.syntaxf("invalid name")
			}
		} else if !isNameChar(r) {
			break
		}
		p.pos += size
	}
	if p.pos == start {
		return "", p.syntaxf("invalid name")
	}
	if p.pos-start > p.opts.Limits.MaxNameLen {
		return "", p.securityf("name length exceeds %d", p.opts.Limits.MaxNameLen)
	}
	return string(p.src[start:p.pos]), nil
}

func (p *Parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// skipSpace1 requires at least one whitespace byte.
func (p *Parser) skipSpace1() bool {
	before := p.pos
	p.skipSpace()
	return p.pos > before
}

func (p *Parser) hasPrefix(s string) bool {
	return bytes.HasPrefix(p.src[p.pos:], []byte(s))
}

func (p *Parser) syntaxf(format string, args ...any) error {
	end := p.pos
	if end > len(p.src) {
		end = len(p.src)
	}
	line := bytes.Count(p.src[:end], []byte("\n")) + 1
	return &SyntaxError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) securityf(format string, args ...any) error {
	return &SecurityError{Reason: fmt.Sprintf(format, args...)}
}

func charRef(s string) (rune, bool) {
	base := 10
	if strings.HasPrefix(s, "x") || strings.HasPrefix(s, "X") {
		base = 16
		s = s[1:]
	}
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, false
	}
	r := rune(n)
	if !validChar(r) {
		return 0, false
	}
	return r, true
}

func builtinEntity(name string) (rune, bool) {
	switch name {
	case "lt":
		return '<', true
	case "gt":
		return '>', true
	case "amp":
		return '&', true
	case "apos":
		return '\'', true
	case "quot":
		return '"', true
	}
	return 0, false
}

// validChar reports whether r is allowed in XML character data.
func validChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

func isNameStart(r rune) bool {
	return r == '_' || r == ':' || unicode.IsLetter(r) || r >= 0x80
}

func isNameChar(r rune) bool {
	return isNameStart(r) || r == '-' || r == '.' || unicode.IsDigit(r)
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !isNameStart(r) {
				return false
			}
		} else if !isNameChar(r) {
			return false
		}
	}
	return true
}
