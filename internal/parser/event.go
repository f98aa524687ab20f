package parser

// EventKind identifies the variant of a parse event.
type EventKind int

const (
	EventStart EventKind = iota
	EventEnd
	EventText
	EventProcInst
	EventEndDocument
)

// Attr is one attribute of a start tag, with its value fully expanded
// and whitespace-normalized.
type Attr struct {
	Name  string
	Value string
}

// Event is a single step of the document stream.
type Event struct {
	Kind EventKind

	// Name is the element name for EventStart and EventEnd, and the
	// target for EventProcInst.
	Name string

	// Attrs lists the attributes of a start tag in source order.
	Attrs []Attr

	// SelfClosing marks <name/> tags. A matching EventEnd still follows,
	// so consumers never need to special-case empty elements.
	SelfClosing bool

	// Text holds character data for EventText, and the instruction data
	// for EventProcInst.
	Text string

	// CDATA marks text that came from a CDATA section.
	CDATA bool

	// Unresolved marks the position of an entity reference whose
	// replacement text is unavailable because external resolution is
	// suppressed. Text is empty on such events.
	Unresolved bool
}
