package parser

import "bytes"

// doctype records what a <!DOCTYPE> declared. The declaration is scanned
// in place; external subsets are never fetched during the scan.
type doctype struct {
	name string

	// external is set when entity declarations may exist that the scan
	// could not see: a SYSTEM/PUBLIC external subset, or a parameter
	// entity reference hiding parts of the internal one. References to
	// entities that might live there become absence sentinels instead
	// of errors.
	external bool

	entities map[string]entityDef
}

type entityDef struct {
	value    string // internal replacement text, unexpanded
	systemID string // external location
	external bool
}

func (p *Parser) lookupEntity(name string) (entityDef, bool) {
	if p.dt == nil {
		return entityDef{}, false
	}
	def, ok := p.dt.entities[name]
	return def, ok
}

func (p *Parser) parseDoctype() error {
	p.pos += len("<!DOCTYPE")
	if !p.skipSpace1() {
		return p.syntaxf("malformed doctype")
	}
	name, err := p.name()
	if err != nil {
		return err
	}
	dt := &doctype{name: name, entities: map[string]entityDef{}}
	p.skipSpace()
	if p.hasPrefix("SYSTEM") || p.hasPrefix("PUBLIC") {
		if _, err := p.externalID(); err != nil {
			return err
		}
		dt.external = true
		p.skipSpace()
	}
	if p.pos < len(p.src) && p.src[p.pos] == '[' {
		p.pos++
		if err := p.internalSubset(dt); err != nil {
			return err
		}
		p.skipSpace()
	}
	if p.pos >= len(p.src) || p.src[p.pos] != '>' {
		return p.syntaxf("unterminated doctype")
	}
	p.pos++
	p.dt = dt
	return nil
}

// externalID consumes SYSTEM "sys" or PUBLIC "pub" "sys" and returns the
// system literal.
func (p *Parser) externalID() (string, error) {
	if p.hasPrefix("SYSTEM") {
		p.pos += len("SYSTEM")
		if !p.skipSpace1() {
			return "", p.syntaxf("malformed external id")
		}
		return p.quoted()
	}
	p.pos += len("PUBLIC")
	if !p.skipSpace1() {
		return "", p.syntaxf("malformed external id")
	}
	if _, err := p.quoted(); err != nil {
		return "", err
	}
	if !p.skipSpace1() {
		return "", p.syntaxf("malformed external id")
	}
	return p.quoted()
}

func (p *Parser) internalSubset(dt *doctype) error {
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return p.syntaxf("unterminated doctype internal subset")
		}
		switch {
		case p.src[p.pos] == ']':
			p.pos++
			return nil
		case p.src[p.pos] == '%':
			// A parameter entity reference can hide declarations we
			// will never see. Skip it and treat later lookups softly.
			semi := bytes.IndexByte(p.src[p.pos:], ';')
			if semi < 0 {
				return p.syntaxf("malformed parameter entity reference")
			}
			p.pos += semi + 1
			dt.external = true
		case p.hasPrefix("<!ENTITY"):
			if err := p.entityDecl(dt); err != nil {
				return err
			}
		case p.hasPrefix("<!ELEMENT"), p.hasPrefix("<!ATTLIST"), p.hasPrefix("<!NOTATION"):
			p.pos += 2
			if err := p.skipDecl(); err != nil {
				return err
			}
		case p.hasPrefix("<!--"):
			if err := p.comment(); err != nil {
				return err
			}
		case p.hasPrefix("<?"):
			end := bytes.Index(p.src[p.pos:], []byte("?>"))
			if end < 0 {
				return p.syntaxf("unterminated processing instruction")
			}
			p.pos += end + 2
		default:
			return p.syntaxf("unexpected content in doctype internal subset")
		}
	}
}

// entityDecl parses <!ENTITY name "value"> and <!ENTITY name SYSTEM "uri">
// forms. Parameter entities are skipped whole; unparsed entity clauses
// (NDATA) are consumed by the trailing skip.
func (p *Parser) entityDecl(dt *doctype) error {
	p.pos += len("<!ENTITY")
	if !p.skipSpace1() {
		return p.syntaxf("malformed entity declaration")
	}
	if p.pos < len(p.src) && p.src[p.pos] == '%' {
		return p.skipDecl()
	}
	name, err := p.name()
	if err != nil {
		return err
	}
	if !p.skipSpace1() {
		return p.syntaxf("malformed entity declaration")
	}
	if p.pos >= len(p.src) {
		return p.syntaxf("unterminated entity declaration")
	}
	var def entityDef
	switch {
	case p.src[p.pos] == '"' || p.src[p.pos] == '\'':
		v, err := p.quoted()
		if err != nil {
			return err
		}
		def = entityDef{value: v}
	case p.hasPrefix("SYSTEM"), p.hasPrefix("PUBLIC"):
		sys, err := p.externalID()
		if err != nil {
			return err
		}
		def = entityDef{systemID: sys, external: true}
	default:
		return p.syntaxf("malformed entity declaration")
	}
	// The first declaration of a name wins.
	if _, dup := dt.entities[name]; !dup {
		dt.entities[name] = def
	}
	return p.skipDecl()
}

// skipDecl consumes the rest of a markup declaration up to its closing
// '>', honoring quoted literals.
func (p *Parser) skipDecl() error {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '>':
			p.pos++
			return nil
		case '"', '\'':
			if _, err := p.quoted(); err != nil {
				return err
			}
		default:
			p.pos++
		}
	}
	return p.syntaxf("unterminated markup declaration")
}

func (p *Parser) quoted() (string, error) {
	if p.pos >= len(p.src) || (p.src[p.pos] != '"' && p.src[p.pos] != '\'') {
		return "", p.syntaxf("expected quoted literal")
	}
	q := p.src[p.pos]
	p.pos++
	end := bytes.IndexByte(p.src[p.pos:], q)
	if end < 0 {
		return "", p.syntaxf("unterminated literal")
	}
	s := string(p.src[p.pos : p.pos+end])
	p.pos += end + 1
	return s, nil
}
