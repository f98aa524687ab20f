package graph

import "strings"

// tokens splits one text run into the content-leaf texts for the active
// mode. first reports whether no content leaf has been created yet, which
// is when FilterLeadingWhitespace may trim.
func (o Options) tokens(text string, first bool) []string {
	if o.ConnectCharacters {
		if first && o.FilterLeadingWhitespace {
			text = strings.TrimLeft(text, " \t\r\n")
		}
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}
	return strings.Fields(text)
}

func (o Options) leafLabel() string {
	if o.ConnectCharacters {
		return LabelCharacters
	}
	return LabelWord
}

// chainRel names the content-chain relationship, or "" when the active
// mode does not link leaves.
func (o Options) chainRel() string {
	if o.ConnectCharacters {
		return RelNextEntity
	}
	if o.CreateNextWordRelationships {
		return RelNextWord
	}
	return ""
}
