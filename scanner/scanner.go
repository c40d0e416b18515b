// Package scanner tokenizes PDF syntax: numbers, names, strings, hex
// strings, dictionary and array delimiters, and bare keywords. It operates
// on an in-memory buffer, which is the form documents arrive in here, and
// leaves stream payload extraction to the caller since payload length comes
// from the surrounding dictionary.
package scanner

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

type TokenType int

const (
	TokenNumber     TokenType = iota
	TokenName                 // /Name
	TokenString               // (literal) or <hex>
	TokenDictOpen             // <<
	TokenDictClose            // >>
	TokenArrayOpen            // [
	TokenArrayClose           // ]
	TokenBool                 // true / false
	TokenNull                 // null
	TokenKeyword              // obj, endobj, stream, R, xref, trailer, ...
)

type Token struct {
	Type  TokenType
	Pos   int // byte offset of the first character
	Str   string
	Bytes []byte // string payload
	Hex   bool   // string was spelled <hex>
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
}

// Scanner walks a byte buffer. The zero value is not usable; call New.
type Scanner struct {
	data []byte
	pos  int
}

func New(data []byte) *Scanner { return &Scanner{data: data} }

// Pos returns the current byte offset.
func (s *Scanner) Pos() int { return s.pos }

// Seek positions the scanner at an absolute offset.
func (s *Scanner) Seek(off int) error {
	if off < 0 || off > len(s.data) {
		return fmt.Errorf("seek out of range: %d", off)
	}
	s.pos = off
	return nil
}

// Data exposes the underlying buffer, used by callers slicing stream
// payloads at scanner positions.
func (s *Scanner) Data() []byte { return s.data }

func isWhitespace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool { return !isWhitespace(c) && !isDelimiter(c) }

func (s *Scanner) skipWhitespaceAndComments() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		return
	}
}

// Next returns the next token or io.EOF.
func (s *Scanner) Next() (Token, error) {
	s.skipWhitespaceAndComments()
	if s.pos >= len(s.data) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]

	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDictOpen, Pos: start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenDictClose, Pos: start}, nil
		}
		s.pos++
		return Token{}, fmt.Errorf("unexpected '>' at %d", start)
	case '[':
		s.pos++
		return Token{Type: TokenArrayOpen, Pos: start}, nil
	case ']':
		s.pos++
		return Token{Type: TokenArrayClose, Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	case '{', '}', ')':
		s.pos++
		return Token{}, fmt.Errorf("unexpected %q at %d", c, start)
	}

	if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
		return s.scanNumber()
	}
	return s.scanKeyword()
}

func (s *Scanner) peek(ahead int) byte {
	if s.pos+ahead >= len(s.data) {
		return 0
	}
	return s.data[s.pos+ahead]
}

func (s *Scanner) scanNumber() (Token, error) {
	start := s.pos
	if c := s.data[s.pos]; c == '+' || c == '-' {
		s.pos++
	}
	isInt := true
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if c >= '0' && c <= '9' {
			s.pos++
			continue
		}
		if c == '.' {
			isInt = false
			s.pos++
			continue
		}
		break
	}
	text := string(s.data[start:s.pos])
	if isInt {
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			// Out-of-range integers degrade to reals.
			f, ferr := strconv.ParseFloat(text, 64)
			if ferr != nil {
				return Token{}, fmt.Errorf("bad number %q at %d", text, start)
			}
			return Token{Type: TokenNumber, Pos: start, Float: f}, nil
		}
		return Token{Type: TokenNumber, Pos: start, Int: v, IsInt: true}, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Token{}, fmt.Errorf("bad number %q at %d", text, start)
	}
	return Token{Type: TokenNumber, Pos: start, Float: f}, nil
}

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	var out []byte
	for s.pos < len(s.data) && isRegular(s.data[s.pos]) {
		c := s.data[s.pos]
		if c == '#' && s.pos+2 < len(s.data) {
			hi, okHi := fromHexDigit(s.data[s.pos+1])
			lo, okLo := fromHexDigit(s.data[s.pos+2])
			if okHi && okLo {
				out = append(out, hi<<4|lo)
				s.pos += 3
				continue
			}
		}
		out = append(out, c)
		s.pos++
	}
	return Token{Type: TokenName, Pos: start, Str: string(out)}, nil
}

func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	var out []byte
	depth := 1
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.data) {
				return Token{}, errors.New("unterminated string escape")
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\r':
				if s.pos < len(s.data) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
				// line continuation: emit nothing
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data); i++ {
						d := s.data[s.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						s.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Pos: start, Bytes: out}, nil
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return Token{}, errors.New("unterminated literal string")
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var out []byte
	var hi byte
	haveHi := false
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			if haveHi {
				out = append(out, hi<<4) // odd digit count pads with 0
			}
			return Token{Type: TokenString, Pos: start, Bytes: out, Hex: true}, nil
		}
		if isWhitespace(c) {
			continue
		}
		d, ok := fromHexDigit(c)
		if !ok {
			return Token{}, fmt.Errorf("bad hex digit %q at %d", c, s.pos-1)
		}
		if haveHi {
			out = append(out, hi<<4|d)
			haveHi = false
		} else {
			hi = d
			haveHi = true
		}
	}
	return Token{}, errors.New("unterminated hex string")
}

func (s *Scanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < len(s.data) && isRegular(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		s.pos++
		return Token{}, fmt.Errorf("unexpected byte %q at %d", s.data[start], start)
	}
	word := string(s.data[start:s.pos])
	switch word {
	case "true":
		return Token{Type: TokenBool, Pos: start, Bool: true}, nil
	case "false":
		return Token{Type: TokenBool, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	}
	return Token{Type: TokenKeyword, Pos: start, Str: word}, nil
}

func fromHexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
