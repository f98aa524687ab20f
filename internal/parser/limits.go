package parser

// Limits bound resource use while parsing untrusted documents.
// Zero fields fall back to the defaults.
type Limits struct {
	MaxDepth            int // element nesting depth
	MaxAttrs            int // attributes on a single element
	MaxNameLen          int // byte length of a single name token
	MaxEntityExpansions int // total entity expansions per document
	MaxEntityDepth      int // nesting depth of entity replacement text
	MaxEntityBytes      int // total bytes produced by entity expansion
}

const (
	defaultMaxDepth            = 256
	defaultMaxAttrs            = 256
	defaultMaxNameLen          = 4096
	defaultMaxEntityExpansions = 10000
	defaultMaxEntityDepth      = 16
	defaultMaxEntityBytes      = 1 << 20
)

// DefaultLimits returns the hardening defaults applied when a limit is unset.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:            defaultMaxDepth,
		MaxAttrs:            defaultMaxAttrs,
		MaxNameLen:          defaultMaxNameLen,
		MaxEntityExpansions: defaultMaxEntityExpansions,
		MaxEntityDepth:      defaultMaxEntityDepth,
		MaxEntityBytes:      defaultMaxEntityBytes,
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxDepth == 0 {
		l.MaxDepth = defaultMaxDepth
	}
	if l.MaxAttrs == 0 {
		l.MaxAttrs = defaultMaxAttrs
	}
	if l.MaxNameLen == 0 {
		l.MaxNameLen = defaultMaxNameLen
	}
	if l.MaxEntityExpansions == 0 {
		l.MaxEntityExpansions = defaultMaxEntityExpansions
	}
	if l.MaxEntityDepth == 0 {
		l.MaxEntityDepth = defaultMaxEntityDepth
	}
	if l.MaxEntityBytes == 0 {
		l.MaxEntityBytes = defaultMaxEntityBytes
	}
	return l
}
