package scanner

import (
	"fmt"

	"github.com/pdfnight/pdfnight/ir/raw"
)

// TokenReader adds pushback on top of a Scanner, which object parsing needs
// to recognize "num num R" references and the stream keyword after a
// dictionary.
type TokenReader struct {
	s      *Scanner
	unread []Token
}

func NewTokenReader(s *Scanner) *TokenReader { return &TokenReader{s: s} }

func (tr *TokenReader) Next() (Token, error) {
	if n := len(tr.unread); n > 0 {
		tok := tr.unread[n-1]
		tr.unread = tr.unread[:n-1]
		return tok, nil
	}
	return tr.s.Next()
}

func (tr *TokenReader) Unread(tok Token) { tr.unread = append(tr.unread, tok) }

// Scanner returns the underlying scanner, positioned after the last token
// read (pushed-back tokens excluded).
func (tr *TokenReader) Scanner() *Scanner { return tr.s }

// ParseObject parses one PDF value: a primitive, an indirect reference, an
// array, or a dictionary. Stream payloads are not consumed; after a
// dictionary the caller decides whether a stream keyword follows.
func ParseObject(tr *TokenReader) (raw.Object, error) {
	tok, err := tr.Next()
	if err != nil {
		return nil, err
	}
	return parseFromToken(tr, tok)
}

func parseFromToken(tr *TokenReader, tok Token) (raw.Object, error) {
	switch tok.Type {
	case TokenNumber:
		if tok.IsInt {
			if ref, ok := tryRef(tr, tok); ok {
				return ref, nil
			}
			return raw.Int(tok.Int), nil
		}
		return raw.Float(tok.Float), nil
	case TokenName:
		return raw.Name(tok.Str), nil
	case TokenString:
		return raw.StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case TokenBool:
		return raw.Bool(tok.Bool), nil
	case TokenNull:
		return raw.NullObj{}, nil
	case TokenArrayOpen:
		return parseArray(tr)
	case TokenDictOpen:
		return parseDict(tr)
	default:
		return nil, fmt.Errorf("unexpected token %q at %d", tok.Str, tok.Pos)
	}
}

// tryRef checks whether first (an integer) starts a "num gen R" reference.
// On mismatch every consumed token is pushed back.
func tryRef(tr *TokenReader, first Token) (raw.Object, bool) {
	second, err := tr.Next()
	if err != nil {
		return nil, false
	}
	if second.Type != TokenNumber || !second.IsInt {
		tr.Unread(second)
		return nil, false
	}
	third, err := tr.Next()
	if err != nil {
		tr.Unread(second)
		return nil, false
	}
	if third.Type == TokenKeyword && third.Str == "R" {
		return raw.Ref(int(first.Int), int(second.Int)), true
	}
	tr.Unread(third)
	tr.Unread(second)
	return nil, false
}

func parseArray(tr *TokenReader) (raw.Object, error) {
	arr := raw.Array()
	for {
		tok, err := tr.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated array: %w", err)
		}
		if tok.Type == TokenArrayClose {
			return arr, nil
		}
		item, err := parseFromToken(tr, tok)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func parseDict(tr *TokenReader) (raw.Object, error) {
	dict := raw.Dict()
	for {
		tok, err := tr.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated dictionary: %w", err)
		}
		if tok.Type == TokenDictClose {
			return dict, nil
		}
		if tok.Type != TokenName {
			return nil, fmt.Errorf("dictionary key must be a name at %d", tok.Pos)
		}
		val, err := ParseObject(tr)
		if err != nil {
			return nil, err
		}
		dict.Set(tok.Str, val)
	}
}
