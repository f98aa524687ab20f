package parser

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDoctype_InternalEntityExpansion(t *testing.T) {
	src := `<!DOCTYPE a [<!ENTITY who "world">]><a>hello &who;</a>`
	got := collect(t, src, Options{})
	if got[1].Text != "hello world" {
		t.Errorf("expected expanded text, got %q", got[1].Text)
	}
}

func TestDoctype_NestedEntityExpansion(t *testing.T) {
	src := `<!DOCTYPE a [<!ENTITY outer "x&inner;x"><!ENTITY inner "y">]><a>&outer;</a>`
	got := collect(t, src, Options{})
	if got[1].Text != "xyx" {
		t.Errorf("expected nested expansion xyx, got %q", got[1].Text)
	}
}

func TestDoctype_EntityInAttribute(t *testing.T) {
	src := `<!DOCTYPE a [<!ENTITY who "world">]><a greet="hello &who;"/>`
	got := collect(t, src, Options{})
	if got[0].Attrs[0].Value != "hello world" {
		t.Errorf("expected expanded attribute, got %q", got[0].Attrs[0].Value)
	}
}

func TestDoctype_CharacterReferenceInEntityValue(t *testing.T) {
	src := `<!DOCTYPE a [<!ENTITY tab "a&#9;b">]><a>&tab;</a>`
	got := collect(t, src, Options{})
	if got[1].Text != "a\tb" {
		t.Errorf("expected tab decoded inside entity value, got %q", got[1].Text)
	}
}

func TestDoctype_ExpansionBombRejected(t *testing.T) {
	// Classic exponential blowup. Must die on the budget, not on memory.
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE bomb [<!ENTITY l0 "ha">`)
	for i := 1; i <= 6; i++ {
		refs := strings.Repeat(fmt.Sprintf("&l%d;", i-1), 10)
		fmt.Fprintf(&sb, `<!ENTITY l%d %q>`, i, refs)
	}
	sb.WriteString(`]><bomb>&l6;</bomb>`)

	err := parseErr(sb.String(), Options{})
	var serr *SecurityError
	if !errors.As(err, &serr) {
		t.Fatalf("expected security error, got %v", err)
	}
}

func TestDoctype_EntityDepthLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE a [`)
	for i := 0; i < 19; i++ {
		fmt.Fprintf(&sb, `<!ENTITY e%d "&e%d;">`, i, i+1)
	}
	sb.WriteString(`<!ENTITY e19 "end">]><a>&e0;</a>`)

	err := parseErr(sb.String(), Options{})
	var serr *SecurityError
	if !errors.As(err, &serr) {
		t.Fatalf("expected security error for deep entity chain, got %v", err)
	}
}

func TestDoctype_ExternalSubsetEntityUnresolved(t *testing.T) {
	// The document declares an external DTD that is never fetched, so the
	// reference position must survive as an unresolved marker and the
	// rest of the document must parse normally.
	src := `<!DOCTYPE document SYSTEM "http://example.com/missing.dtd"><document>&nbsp;<title>dtd 404</title></document>`
	got := collect(t, src, Options{})
	want := []Event{
		{Kind: EventStart, Name: "document"},
		{Kind: EventText, Unresolved: true},
		{Kind: EventStart, Name: "title"},
		{Kind: EventText, Text: "dtd 404"},
		{Kind: EventEnd, Name: "title"},
		{Kind: EventEnd, Name: "document"},
		{Kind: EventEndDocument},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i].Kind != want[i].Kind || got[i].Name != want[i].Name ||
			got[i].Text != want[i].Text || got[i].Unresolved != want[i].Unresolved {
			t.Errorf("event %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestDoctype_ExternallyDeclaredEntityUnresolved(t *testing.T) {
	src := `<!DOCTYPE d [<!ENTITY pic SYSTEM "pic.svg">]><d>&pic;</d>`
	got := collect(t, src, Options{})
	if !got[1].Unresolved {
		t.Fatalf("expected unresolved marker for external entity, got %+v", got[1])
	}
}

func TestDoctype_UnresolvedSplitsTextRuns(t *testing.T) {
	src := `<!DOCTYPE d SYSTEM "x.dtd"><d>before&gone;after</d>`
	got := collect(t, src, Options{})
	texts := got[1:4]
	if texts[0].Text != "before" || !texts[1].Unresolved || texts[2].Text != "after" {
		t.Errorf("expected before/unresolved/after runs, got %+v", texts)
	}
}

func TestDoctype_UndeclaredEntityWithoutSubsetFails(t *testing.T) {
	err := parseErr(`<a>&nope;</a>`, Options{})
	var serr *SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("expected syntax error, got %v", err)
	}
	if !strings.Contains(serr.Msg, "undefined entity") {
		t.Errorf("expected undefined entity message, got %q", serr.Msg)
	}
}

func TestDoctype_UnresolvedInAttributeIsEmpty(t *testing.T) {
	src := `<!DOCTYPE d SYSTEM "x.dtd"><d a="[&u;]"/>`
	got := collect(t, src, Options{})
	if got[0].Attrs[0].Value != "[]" {
		t.Errorf("expected suppressed reference to vanish in attribute, got %q", got[0].Attrs[0].Value)
	}
}

func TestDoctype_ResolverOptIn(t *testing.T) {
	var asked string
	opts := Options{
		AllowDTD: true,
		Resolve: func(systemID string) ([]byte, error) {
			asked = systemID
			return []byte("resolved text"), nil
		},
	}
	src := `<!DOCTYPE d [<!ENTITY ext SYSTEM "part.txt">]><d>&ext;</d>`
	got := collect(t, src, opts)
	if asked != "part.txt" {
		t.Errorf("expected resolver asked for part.txt, got %q", asked)
	}
	if got[1].Text != "resolved text" {
		t.Errorf("expected resolved replacement text, got %+v", got[1])
	}
}

func TestDoctype_ResolverErrorFails(t *testing.T) {
	opts := Options{
		AllowDTD: true,
		Resolve: func(string) ([]byte, error) {
			return nil, errors.New("404")
		},
	}
	src := `<!DOCTYPE d [<!ENTITY ext SYSTEM "part.txt">]><d>&ext;</d>`
	err := parseErr(src, opts)
	var serr *SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("expected syntax error from failed resolution, got %v", err)
	}
}

func TestDoctype_NoResolutionWithoutOptIn(t *testing.T) {
	called := false
	opts := Options{
		// AllowDTD off: the resolver must never run.
		Resolve: func(string) ([]byte, error) {
			called = true
			return []byte("boo"), nil
		},
	}
	src := `<!DOCTYPE d [<!ENTITY ext SYSTEM "part.txt">]><d>&ext;</d>`
	got := collect(t, src, opts)
	if called {
		t.Fatal("resolver ran without AllowDTD")
	}
	if !got[1].Unresolved {
		t.Errorf("expected unresolved marker, got %+v", got[1])
	}
}

func TestDoctype_ParameterEntityReferenceSoftensLookups(t *testing.T) {
	src := `<!DOCTYPE d [%ext;<!ENTITY k "v">]><d>&k;&unknown;</d>`
	got := collect(t, src, Options{})
	if got[1].Text != "v" {
		t.Errorf("expected declared entity to expand, got %+v", got[1])
	}
	if !got[2].Unresolved {
		t.Errorf("expected unknown entity to become unresolved, got %+v", got[2])
	}
}

func TestDoctype_AfterRootFails(t *testing.T) {
	err := parseErr(`<a/><!DOCTYPE a []>`, Options{})
	var serr *SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestDoctype_SkipsElementAndAttlistDecls(t *testing.T) {
	src := `<!DOCTYPE a [
		<!ELEMENT a (#PCDATA)>
		<!ATTLIST a x CDATA "d>efault">
		<!ENTITY w "ok">
	]><a>&w;</a>`
	got := collect(t, src, Options{})
	if got[1].Text != "ok" {
		t.Errorf("expected entity declared after skipped decls to work, got %+v", got[1])
	}
}
