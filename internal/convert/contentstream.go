// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

// TJ adjustments below this (in thousandths of text space) are word gaps.
const tjSpaceThreshold = -200

// TextFromContentStream returns the text shown by a decoded PDF page
// content stream. It interprets the text-showing operators (Tj, TJ, ', ")
// and starts a new line on line-positioning operators. Glyph codes are
// read as single-byte Latin-1 or, for BOM-prefixed strings, UTF-16BE;
// fonts with custom encodings come out garbled and are filtered to
// printable runes.
func TextFromContentStream(content []byte) string {
	var (
		out      strings.Builder
		line     strings.Builder
		operands []token
		arrays   [][]token
	)
	flush := func() {
		s := strings.TrimRightFunc(line.String(), unicode.IsSpace)
		line.Reset()
		if strings.TrimSpace(s) == "" {
			return
		}
		out.WriteString(s)
		out.WriteByte('\n')
	}
	show := func(t token) {
		if t.kind == tokString {
			line.WriteString(decodeGlyphs(t.text))
		}
	}

	lx := lexer{src: content}
	for {
		t, ok := lx.next()
		if !ok {
			break
		}
		switch t.kind {
		case tokArrayStart:
			arrays = append(arrays, nil)
			continue
		case tokArrayEnd:
			if len(arrays) == 0 {
				continue
			}
			arr := arrays[len(arrays)-1]
			arrays = arrays[:len(arrays)-1]
			at := token{kind: tokArray, items: arr}
			if len(arrays) > 0 {
				arrays[len(arrays)-1] = append(arrays[len(arrays)-1], at)
			} else {
				operands = append(operands, at)
			}
			continue
		case tokOperator:
		default:
			if len(arrays) > 0 {
				arrays[len(arrays)-1] = append(arrays[len(arrays)-1], t)
			} else {
				operands = append(operands, t)
			}
			continue
		}

		switch t.text {
		case "Tj":
			if n := len(operands); n > 0 {
				show(operands[n-1])
			}
		case "'", "\"":
			flush()
			if n := len(operands); n > 0 {
				show(operands[n-1])
			}
		case "TJ":
			if n := len(operands); n > 0 && operands[n-1].kind == tokArray {
				for _, item := range operands[n-1].items {
					switch item.kind {
					case tokString:
						show(item)
					case tokNumber:
						if v, err := strconv.ParseFloat(item.text, 64); err == nil && v < tjSpaceThreshold {
							line.WriteByte(' ')
						}
					}
				}
			}
		case "Td", "TD":
			if n := len(operands); n >= 2 && nonZero(operands[n-1]) {
				flush()
			} else if line.Len() > 0 {
				line.WriteByte(' ')
			}
		case "T*", "Tm", "ET":
			flush()
		case "BI":
			lx.skipInlineImage()
		}
		operands = operands[:0]
		arrays = arrays[:0]
	}
	flush()
	return strings.TrimSpace(out.String())
}

func nonZero(t token) bool {
	v, err := strconv.ParseFloat(t.text, 64)
	return err == nil && v != 0
}

// decodeGlyphs maps raw string bytes to text.
func decodeGlyphs(b string) string {
	var runes []rune
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		u := make([]uint16, 0, len(b)/2)
		for i := 2; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		runes = utf16.Decode(u)
	} else {
		runes = make([]rune, 0, len(b))
		for i := 0; i < len(b); i++ {
			runes = append(runes, rune(b[i]))
		}
	}

	var sb strings.Builder
	for _, r := range runes {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			sb.WriteByte(' ')
		case unicode.IsPrint(r):
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokNumber
	tokString
	tokName
	tokArrayStart
	tokArrayEnd
	tokArray
	tokOther
)

type token struct {
	kind  tokenKind
	text  string // operator, number, name, or decoded string bytes
	items []token
}

// lexer tokenizes a content stream. It understands just enough PDF syntax
// to find string operands and operators.
type lexer struct {
	src []byte
	pos int
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			l.pos++
			return token{kind: tokString, text: l.literal()}, true
		case c == '<':
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '<' {
				l.pos += 2
				return token{kind: tokOther, text: "<<"}, true
			}
			l.pos++
			return token{kind: tokString, text: l.hex()}, true
		case c == '>':
			l.pos++
			if l.pos < len(l.src) && l.src[l.pos] == '>' {
				l.pos++
			}
			return token{kind: tokOther, text: ">>"}, true
		case c == '[':
			l.pos++
			return token{kind: tokArrayStart}, true
		case c == ']':
			l.pos++
			return token{kind: tokArrayEnd}, true
		case c == '/':
			l.pos++
			return token{kind: tokName, text: l.regular()}, true
		case isDelimiter(c):
			l.pos++
		default:
			word := l.regular()
			if _, err := strconv.ParseFloat(word, 64); err == nil {
				return token{kind: tokNumber, text: word}, true
			}
			return token{kind: tokOperator, text: word}, true
		}
	}
	return token{}, false
}

func (l *lexer) regular() string {
	start := l.pos
	for l.pos < len(l.src) && !isSpace(l.src[l.pos]) && !isDelimiter(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

// literal reads a (...) string after the opening paren, handling nesting
// and escapes.
func (l *lexer) literal() string {
	var sb strings.Builder
	depth := 1
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			sb.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return sb.String()
			}
			sb.WriteByte(c)
		case '\\':
			if l.pos >= len(l.src) {
				return sb.String()
			}
			e := l.src[l.pos]
			l.pos++
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\r':
				if l.pos < len(l.src) && l.src[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := int(e - '0')
				for i := 0; i < 2 && l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '7'; i++ {
					v = v*8 + int(l.src[l.pos]-'0')
					l.pos++
				}
				sb.WriteByte(byte(v))
			default:
				sb.WriteByte(e)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// hex reads a <...> string after the opening bracket.
func (l *lexer) hex() string {
	var digits []byte
	for l.pos < len(l.src) && l.src[l.pos] != '>' {
		if c := l.src[l.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++ // '>'
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	var sb strings.Builder
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		sb.WriteByte(byte(v))
	}
	return sb.String()
}

// skipInlineImage advances past binary inline image data up to "EI".
func (l *lexer) skipInlineImage() {
	for l.pos+2 < len(l.src) {
		if isSpace(l.src[l.pos]) && l.src[l.pos+1] == 'E' && l.src[l.pos+2] == 'I' &&
			(l.pos+3 == len(l.src) || isSpace(l.src[l.pos+3]) || isDelimiter(l.src[l.pos+3])) {
			l.pos += 3
			return
		}
		l.pos++
	}
	l.pos = len(l.src)
}
