package parser

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

// collect drains the parser, failing the test on any error.
func collect(t *testing.T, src string, opts Options) []Event {
	t.Helper()
	p := New([]byte(src), opts)
	var evs []Event
	for {
		ev, err := p.Next()
		if err == io.EOF {
			return evs
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		evs = append(evs, ev)
	}
}

// parseErr drains the parser and returns the first error.
func parseErr(src string, opts Options) error {
	p := New([]byte(src), opts)
	for {
		_, err := p.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func TestParser_BasicDocument(t *testing.T) {
	src := `<?xml version="1.0"?><catalog><book id="bk101"><title>T1</title></book></catalog>`
	got := collect(t, src, Options{})
	want := []Event{
		{Kind: EventStart, Name: "catalog"},
		{Kind: EventStart, Name: "book", Attrs: []Attr{{Name: "id", Value: "bk101"}}},
		{Kind: EventStart, Name: "title"},
		{Kind: EventText, Text: "T1"},
		{Kind: EventEnd, Name: "title"},
		{Kind: EventEnd, Name: "book"},
		{Kind: EventEnd, Name: "catalog"},
		{Kind: EventEndDocument},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestParser_AttributeOrderPreserved(t *testing.T) {
	got := collect(t, `<a c="3" a="1" b="2"/>`, Options{})
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	start := got[0]
	if !start.SelfClosing {
		t.Error("expected self-closing flag on <a/>")
	}
	want := []Attr{{"c", "3"}, {"a", "1"}, {"b", "2"}}
	if !reflect.DeepEqual(start.Attrs, want) {
		t.Errorf("expected attrs %v, got %v", want, start.Attrs)
	}
	if got[1].Kind != EventEnd || got[1].Name != "a" {
		t.Errorf("expected synthetic end event for self-closing tag, got %+v", got[1])
	}
}

func TestParser_CDATA(t *testing.T) {
	got := collect(t, `<a><![CDATA[x < y & z]]></a>`, Options{})
	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d", len(got))
	}
	text := got[1]
	if text.Kind != EventText || !text.CDATA {
		t.Fatalf("expected CDATA text event, got %+v", text)
	}
	if text.Text != "x < y & z" {
		t.Errorf("expected raw CDATA content, got %q", text.Text)
	}
}

func TestParser_ProcessingInstruction(t *testing.T) {
	src := `<?xml version="1.0"?><?xml-stylesheet href="a.css"?><root/>`
	got := collect(t, src, Options{})
	if got[0].Kind != EventProcInst {
		t.Fatalf("expected processing instruction first, got %+v", got[0])
	}
	if got[0].Name != "xml-stylesheet" {
		t.Errorf("expected target %q, got %q", "xml-stylesheet", got[0].Name)
	}
	if got[0].Text != `href="a.css"` {
		t.Errorf("expected data %q, got %q", `href="a.css"`, got[0].Text)
	}
}

func TestParser_XMLDeclarationIsNotAnEvent(t *testing.T) {
	got := collect(t, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<a/>", Options{})
	for _, ev := range got {
		if ev.Kind == EventProcInst {
			t.Fatalf("xml declaration leaked as event: %+v", ev)
		}
	}
}

func TestParser_CommentsProduceNoEvents(t *testing.T) {
	got := collect(t, `<a>x<!-- note -->y</a>`, Options{})
	var texts []string
	for _, ev := range got {
		if ev.Kind == EventText {
			texts = append(texts, ev.Text)
		}
	}
	if !reflect.DeepEqual(texts, []string{"x", "y"}) {
		t.Errorf("expected text runs [x y], got %v", texts)
	}
}

func TestParser_BuiltinEntities(t *testing.T) {
	got := collect(t, `<a>&lt;&amp;&gt;&quot;&apos;</a>`, Options{})
	if got[1].Text != `<&>"'` {
		t.Errorf("expected builtin entities expanded, got %q", got[1].Text)
	}
}

func TestParser_CharacterReferences(t *testing.T) {
	got := collect(t, `<a>&#65;&#x42;&#x1F600;</a>`, Options{})
	if got[1].Text != "AB\U0001F600" {
		t.Errorf("expected character references decoded, got %q", got[1].Text)
	}
}

func TestParser_WhitespaceRunsDelivered(t *testing.T) {
	got := collect(t, "<a>\n  <b/>\n</a>", Options{})
	if got[1].Kind != EventText || got[1].Text != "\n  " {
		t.Errorf("expected whitespace run before <b/>, got %+v", got[1])
	}
}

func TestParser_MismatchedEndTag(t *testing.T) {
	err := parseErr(`<a><b></a></b>`, Options{})
	var serr *SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("expected syntax error, got %v", err)
	}
	if !strings.Contains(serr.Msg, "does not match") {
		t.Errorf("expected mismatch message, got %q", serr.Msg)
	}
}

func TestParser_UnterminatedDocument(t *testing.T) {
	for _, src := range []string{`<a><b>`, `<a`, `<a><!-- x`, `<a><![CDATA[x`, `<?pi x`} {
		err := parseErr(src, Options{})
		var serr *SyntaxError
		if !errors.As(err, &serr) {
			t.Errorf("%q: expected syntax error, got %v", src, err)
		}
	}
}

func TestParser_TextOutsideRoot(t *testing.T) {
	if err := parseErr(`<a/>junk`, Options{}); err == nil {
		t.Fatal("expected error for text after root")
	}
	if err := parseErr(`junk<a/>`, Options{}); err == nil {
		t.Fatal("expected error for text before root")
	}
}

func TestParser_MultipleRoots(t *testing.T) {
	err := parseErr(`<a/><b/>`, Options{})
	var serr *SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestParser_EmptyInput(t *testing.T) {
	err := parseErr(``, Options{})
	if err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestParser_DepthLimitIsSecurityError(t *testing.T) {
	src := strings.Repeat("<a>", 20) + strings.Repeat("</a>", 20)
	err := parseErr(src, Options{Limits: Limits{MaxDepth: 10}})
	var serr *SecurityError
	if !errors.As(err, &serr) {
		t.Fatalf("expected security error, got %v", err)
	}
}

func TestParser_AttributeLimitIsSecurityError(t *testing.T) {
	err := parseErr(`<a p="1" q="2" r="3" s="4"/>`, Options{Limits: Limits{MaxAttrs: 3}})
	var serr *SecurityError
	if !errors.As(err, &serr) {
		t.Fatalf("expected security error, got %v", err)
	}
}

func TestParser_DuplicateAttribute(t *testing.T) {
	err := parseErr(`<a x="1" x="2"/>`, Options{})
	var serr *SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestParser_InvalidCharacterReference(t *testing.T) {
	for _, src := range []string{`<a>&#xD800;</a>`, `<a>&#;</a>`, `<a>&#x110000;</a>`} {
		err := parseErr(src, Options{})
		var serr *SyntaxError
		if !errors.As(err, &serr) {
			t.Errorf("%q: expected syntax error, got %v", src, err)
		}
	}
}

func TestParser_BareAmpersand(t *testing.T) {
	if err := parseErr(`<a>this & that</a>`, Options{}); err == nil {
		t.Fatal("expected error for unescaped ampersand")
	}
}

func TestParser_AttributeValueNormalization(t *testing.T) {
	got := collect(t, "<a t=\"one\ttwo\nthree\"/>", Options{})
	if got[0].Attrs[0].Value != "one two three" {
		t.Errorf("expected normalized value, got %q", got[0].Attrs[0].Value)
	}
}

func TestParser_ErrorReportsLine(t *testing.T) {
	err := parseErr("<a>\n<b>\n</c>\n</a>", Options{})
	var serr *SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("expected syntax error, got %v", err)
	}
	if serr.Line != 3 {
		t.Errorf("expected error on line 3, got %d", serr.Line)
	}
}

func TestParser_EOFAfterEndDocument(t *testing.T) {
	p := New([]byte(`<a/>`), Options{})
	var last Event
	for {
		ev, err := p.Next()
		if err != nil {
			if err != io.EOF {
				t.Fatalf("expected io.EOF, got %v", err)
			}
			break
		}
		last = ev
	}
	if last.Kind != EventEndDocument {
		t.Errorf("expected final event EndDocument, got %+v", last)
	}
	if _, err := p.Next(); err != io.EOF {
		t.Errorf("expected io.EOF on repeated Next, got %v", err)
	}
}
