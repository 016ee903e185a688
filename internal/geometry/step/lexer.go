package step

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokKeyword
	tokRef
	tokString
	tokNumber
	tokEnum
	tokBinary
	tokLParen
	tokRParen
	tokComma
	tokEquals
	tokSemicolon
	tokDollar
	tokStar
)

type token struct {
	kind tokenKind
	text string
	num  float64
	ref  int
	line int
}

var punctuation = map[byte]tokenKind{
	'(': tokLParen, ')': tokRParen, ',': tokComma,
	'=': tokEquals, ';': tokSemicolon, '$': tokDollar, '*': tokStar,
}

type lexer struct {
	src  []byte
	pos  int
	line int
}

func newLexer(src []byte) *lexer {
	// Skip a UTF-8 byte order mark.
	if len(src) >= 3 && src[0] == 0xEF && src[1] == 0xBB && src[2] == 0xBF {
		src = src[3:]
	}
	return &lexer{src: src, line: 1}
}

func (l *lexer) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, l.line, fmt.Sprintf(format, args...))
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '*':
			end := bytes.Index(l.src[l.pos+2:], []byte("*/"))
			if end < 0 {
				return l.errorf("unterminated comment")
			}
			comment := l.src[l.pos : l.pos+2+end+2]
			l.line += bytes.Count(comment, []byte("\n"))
			l.pos += len(comment)
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line}, nil
	}

	start := l.pos
	c := l.src[l.pos]
	if kind, ok := punctuation[c]; ok {
		l.pos++
		return token{kind: kind, text: string(c), line: l.line}, nil
	}

	switch {
	case c == '#':
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		id, err := strconv.Atoi(string(l.src[start+1 : l.pos]))
		if err != nil {
			return token{}, l.errorf("bad entity reference %q", l.src[start:l.pos])
		}
		return token{kind: tokRef, ref: id, text: string(l.src[start:l.pos]), line: l.line}, nil

	case c == '\'':
		return l.lexString()

	case c == '"':
		l.pos++
		for l.pos < len(l.src) && l.src[l.pos] != '"' {
			l.pos++
		}
		if l.pos >= len(l.src) {
			return token{}, l.errorf("unterminated binary literal")
		}
		l.pos++
		return token{kind: tokBinary, text: string(l.src[start+1 : l.pos-1]), line: l.line}, nil

	case c == '.':
		l.pos++
		for l.pos < len(l.src) && isEnumChar(l.src[l.pos]) {
			l.pos++
		}
		if l.pos >= len(l.src) || l.src[l.pos] != '.' || l.pos == start+1 {
			return token{}, l.errorf("bad enumeration near %q", l.src[start:l.pos])
		}
		l.pos++
		return token{kind: tokEnum, text: strings.ToUpper(string(l.src[start+1 : l.pos-1])), line: l.line}, nil

	case c == '+' || c == '-' || isDigit(c):
		return l.lexNumber()

	case isLetter(c) || c == '!':
		l.pos++
		for l.pos < len(l.src) && isKeywordChar(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokKeyword, text: strings.ToUpper(string(l.src[start:l.pos])), line: l.line}, nil
	}

	return token{}, l.errorf("unexpected character %q", c)
}

func (l *lexer) lexString() (token, error) {
	var b strings.Builder
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\'' {
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '\'' {
				b.WriteByte('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return token{kind: tokString, text: b.String(), line: l.line}, nil
		}
		if c == '\n' {
			l.line++
		}
		b.WriteByte(c)
		l.pos++
	}
	return token{}, l.errorf("unterminated string")
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	if c := l.src[l.pos]; c == '+' || c == '-' {
		l.pos++
	}
	digits := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos == digits {
		return token{}, l.errorf("bad number near %q", l.src[start:l.pos])
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'E' || l.src[l.pos] == 'e') {
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}

	text := string(l.src[start:l.pos])
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, l.errorf("bad number %q", text)
	}
	return token{kind: tokNumber, num: v, text: text, line: l.line}, nil
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }

func isKeywordChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_' || c == '-'
}

func isEnumChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}
