package snapshot

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"unicode"
)

// Lexer splits snapshot text into classified lines
type Lexer struct {
	scanner *bufio.Scanner
	line    int
	eof     bool
}

// NewLexer creates a new lexer from an io.Reader
func NewLexer(r io.Reader) *Lexer {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	return &Lexer{scanner: scanner}
}

// NewLexerBytes creates a lexer over an in-memory snapshot
func NewLexerBytes(data []byte) *Lexer {
	return NewLexer(bytes.NewReader(data))
}

// NextLine returns the next non-blank line from the input
func (l *Lexer) NextLine() Line {
	for !l.eof {
		if !l.scanner.Scan() {
			l.eof = true
			break
		}
		l.line++

		raw := strings.TrimRight(l.scanner.Text(), "\r")
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}

		line := Line{Number: l.line, Text: text}
		switch {
		case text[0] == '!' || text[0] == '#':
			line.Type = LineComment
		case unicode.IsSpace(rune(raw[0])):
			line.Type = LineBody
			line.Fields = strings.Fields(text)
		default:
			line.Type = LineDecl
			line.Fields = strings.Fields(text)
		}
		return line
	}

	return Line{Type: LineEOF, Number: l.line}
}

// Err returns the first non-EOF read error
func (l *Lexer) Err() error {
	return l.scanner.Err()
}
