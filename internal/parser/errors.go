package parser

import "fmt"

// SyntaxError reports a document that is not well-formed XML.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("xml syntax error on line %d: %s", e.Line, e.Msg)
}

// SecurityError reports input that exceeded a hardening limit. It is
// never downgraded or suppressed by any option.
type SecurityError struct {
	Reason string
}

func (e *SecurityError) Error() string {
	return "xml security violation: " + e.Reason
}
