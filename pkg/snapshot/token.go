package snapshot

// LineType represents the type of a snapshot line
type LineType int

const (
	// LineEOF indicates end of input
	LineEOF LineType = iota
	// LineComment is a "!" separator or comment line; it terminates a stanza
	LineComment
	// LineDecl is an unindented statement (e.g. "interface wash", "router ospf")
	LineDecl
	// LineBody is an indented statement belonging to the preceding declaration
	LineBody
)

// Line represents a single lexed snapshot line
type Line struct {
	Type   LineType
	Number int
	// Text is the line without surrounding whitespace
	Text string
	// Fields are the whitespace separated words of Text
	Fields []string
}

// String returns a string representation of the line type
func (t LineType) String() string {
	switch t {
	case LineEOF:
		return "EOF"
	case LineComment:
		return "COMMENT"
	case LineDecl:
		return "DECL"
	case LineBody:
		return "BODY"
	default:
		return "UNKNOWN"
	}
}

// Keyword returns the first field, or "" for empty lines
func (l Line) Keyword() string {
	if len(l.Fields) == 0 {
		return ""
	}
	return l.Fields[0]
}

// Is reports whether the line starts with the given words
func (l Line) Is(words ...string) bool {
	if len(l.Fields) < len(words) {
		return false
	}
	for i, w := range words {
		if l.Fields[i] != w {
			return false
		}
	}
	return true
}
