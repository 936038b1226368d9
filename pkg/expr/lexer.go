package expr

import (
	"fmt"
	"strings"
)

// segment is one pipeline stage as written, with `$` sigils removed.
type segment struct {
	text   string
	offset int // byte offset of the stage in the original source
}

// lexer splits a formatter source on top-level `|` operators.
// Pipes inside strings, brackets or comments belong to the Starlark
// fragment around them.
type lexer struct {
	input string
	pos   int
	depth int
	out   strings.Builder
	start int
	segs  []segment
}

func splitPipeline(src string) ([]segment, error) {
	l := &lexer{input: src}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.segs, nil
}

func (l *lexer) run() error {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == '"' || c == '\'':
			if err := l.lexString(); err != nil {
				return err
			}
			continue
		case c == '#':
			l.lexComment()
			continue
		case c == '(' || c == '[' || c == '{':
			l.depth++
		case c == ')' || c == ']' || c == '}':
			if l.depth == 0 {
				return fmt.Errorf("unbalanced %q at offset %d", c, l.pos)
			}
			l.depth--
		case c == '|' && l.depth == 0:
			l.emit()
			l.pos++
			l.start = l.pos
			continue
		case c == '$':
			if l.pos+1 >= len(l.input) || !isIdentStart(l.input[l.pos+1]) {
				return fmt.Errorf("unexpected '$' at offset %d", l.pos)
			}
			if l.pos > 0 && isIdentPart(l.input[l.pos-1]) {
				return fmt.Errorf("unexpected '$' at offset %d", l.pos)
			}
			// Sigil only: $cellValue is cellValue.
			l.pos++
			continue
		}
		l.out.WriteByte(c)
		l.pos++
	}
	if l.depth != 0 {
		return fmt.Errorf("unclosed bracket")
	}
	l.emit()
	return nil
}

func (l *lexer) emit() {
	l.segs = append(l.segs, segment{text: strings.TrimSpace(l.out.String()), offset: l.start})
	l.out.Reset()
}

// lexString copies a quoted literal verbatim, including triple-quoted forms.
func (l *lexer) lexString() error {
	quote := l.input[l.pos]
	begin := l.pos
	delim := string(quote)
	if strings.HasPrefix(l.input[l.pos:], strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}
	l.pos += len(delim)
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '\\' {
			l.pos += 2
			continue
		}
		if strings.HasPrefix(l.input[l.pos:], delim) {
			l.pos += len(delim)
			l.out.WriteString(l.input[begin:l.pos])
			return nil
		}
		if c == '\n' && len(delim) == 1 {
			break
		}
		l.pos++
	}
	return fmt.Errorf("unterminated string at offset %d", begin)
}

func (l *lexer) lexComment() {
	end := strings.IndexByte(l.input[l.pos:], '\n')
	if end < 0 {
		l.pos = len(l.input)
		return
	}
	l.pos += end
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
