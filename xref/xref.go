// Package xref locates every indirect object in a PDF by resolving its
// cross-reference information: classic tables, cross-reference streams,
// hybrid files carrying both, and, when all of that is broken, a repair
// scan over the raw bytes.
package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/pdfnight/pdfnight/filters"
	"github.com/pdfnight/pdfnight/ir/raw"
	"github.com/pdfnight/pdfnight/scanner"
)

// EntryKind distinguishes where an object lives.
type EntryKind int

const (
	EntryFree     EntryKind = iota
	EntryInFile             // at a byte offset in the file
	EntryInStream           // inside an object stream
)

// Entry is one cross-reference record.
type Entry struct {
	Kind      EntryKind
	Offset    int64 // EntryInFile
	Gen       int
	StreamNum int // EntryInStream: object stream number
	StreamIdx int // EntryInStream: index within the stream
}

// Table maps object numbers to entries, newest revision first: during
// resolution an object already present is never overwritten by an older
// section.
type Table struct {
	entries map[int]Entry
	trailer *raw.DictObj
}

func (t *Table) Lookup(num int) (Entry, bool) {
	e, ok := t.entries[num]
	return e, ok
}

// Objects returns the known in-use object numbers in ascending order.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for num, e := range t.entries {
		if e.Kind != EntryFree {
			out = append(out, num)
		}
	}
	sort.Ints(out)
	return out
}

// Trailer returns the merged trailer dictionary (newest values win).
func (t *Table) Trailer() *raw.DictObj { return t.trailer }

func (t *Table) add(num int, e Entry) {
	if _, exists := t.entries[num]; !exists {
		t.entries[num] = e
	}
}

func (t *Table) mergeTrailer(d *raw.DictObj) {
	if d == nil {
		return
	}
	if t.trailer == nil {
		t.trailer = raw.Dict()
	}
	for k, v := range d.KV {
		if !t.trailer.Has(k) {
			t.trailer.Set(k, v)
		}
	}
}

// Resolve builds the cross-reference table for a whole file. When the
// startxref chain is missing or damaged it falls back to scanning the file
// for object headers.
func Resolve(ctx context.Context, data []byte) (*Table, error) {
	table := &Table{entries: make(map[int]Entry)}
	if err := resolveChain(ctx, data, table); err != nil {
		repaired, rerr := Repair(ctx, data)
		if rerr != nil {
			return nil, fmt.Errorf("resolve xref: %w (repair: %v)", err, rerr)
		}
		return repaired, nil
	}
	return table, nil
}

func resolveChain(ctx context.Context, data []byte, table *Table) error {
	offset, err := findStartXRef(data)
	if err != nil {
		return err
	}
	seen := make(map[int64]bool)
	for offset >= 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if seen[offset] {
			return errors.New("circular xref chain")
		}
		seen[offset] = true
		if offset >= int64(len(data)) {
			return fmt.Errorf("xref offset %d out of range", offset)
		}

		section, err := parseSection(ctx, data, offset, table)
		if err != nil {
			return err
		}
		// Hybrid files point at a supplementary xref stream.
		if stm, ok := section.Int("XRefStm"); ok && !seen[stm] {
			seen[stm] = true
			if _, err := parseSection(ctx, data, stm, table); err != nil {
				return err
			}
		}
		prev, ok := section.Int("Prev")
		if !ok {
			break
		}
		offset = prev
	}
	if table.trailer == nil || !table.trailer.Has("Root") {
		return errors.New("no document root in trailer")
	}
	return nil
}

// parseSection parses the xref section at offset, classic or stream form,
// and returns its trailer-equivalent dictionary.
func parseSection(ctx context.Context, data []byte, offset int64, table *Table) (*raw.DictObj, error) {
	s := scanner.New(data)
	if err := s.Seek(int(offset)); err != nil {
		return nil, err
	}
	tr := scanner.NewTokenReader(s)
	tok, err := tr.Next()
	if err != nil {
		return nil, err
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		return parseClassic(tr, table)
	}
	// Otherwise this must be "N G obj" introducing an xref stream.
	tr.Unread(tok)
	return parseStreamSection(ctx, data, tr, table)
}

func parseClassic(tr *scanner.TokenReader, table *Table) (*raw.DictObj, error) {
	for {
		tok, err := tr.Next()
		if err != nil {
			return nil, fmt.Errorf("xref table: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			obj, err := scanner.ParseObject(tr)
			if err != nil {
				return nil, fmt.Errorf("trailer: %w", err)
			}
			dict, ok := obj.(*raw.DictObj)
			if !ok {
				return nil, errors.New("trailer is not a dictionary")
			}
			table.mergeTrailer(dict)
			return dict, nil
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, fmt.Errorf("bad xref subsection header at %d", tok.Pos)
		}
		start := int(tok.Int)
		countTok, err := tr.Next()
		if err != nil || countTok.Type != scanner.TokenNumber || !countTok.IsInt {
			return nil, errors.New("bad xref subsection count")
		}
		count := int(countTok.Int)

		for i := 0; i < count; i++ {
			offTok, err := tr.Next()
			if err != nil || offTok.Type != scanner.TokenNumber {
				return nil, errors.New("bad xref entry offset")
			}
			genTok, err := tr.Next()
			if err != nil || genTok.Type != scanner.TokenNumber {
				return nil, errors.New("bad xref entry generation")
			}
			kindTok, err := tr.Next()
			if err != nil || kindTok.Type != scanner.TokenKeyword {
				return nil, errors.New("bad xref entry type")
			}
			switch kindTok.Str {
			case "n":
				table.add(start+i, Entry{
					Kind:   EntryInFile,
					Offset: offTok.Int,
					Gen:    int(genTok.Int),
				})
			case "f":
				table.add(start+i, Entry{Kind: EntryFree, Gen: int(genTok.Int)})
			default:
				return nil, fmt.Errorf("bad xref entry flag %q", kindTok.Str)
			}
		}
	}
}

func parseStreamSection(ctx context.Context, data []byte, tr *scanner.TokenReader, table *Table) (*raw.DictObj, error) {
	dict, payload, err := readStreamObject(data, tr)
	if err != nil {
		return nil, fmt.Errorf("xref stream: %w", err)
	}
	if typ, _ := dict.Name("Type"); typ != "XRef" {
		return nil, fmt.Errorf("expected XRef stream, got /Type /%s", typ)
	}

	names, parms := filters.Chain(dict)
	decoded, err := filters.Standard().Decode(ctx, payload, names, parms)
	if err != nil {
		return nil, fmt.Errorf("xref stream decode: %w", err)
	}

	w, ok := dict.Array("W")
	if !ok || w.Len() < 3 {
		return nil, errors.New("xref stream missing W")
	}
	var widths [3]int
	for i := 0; i < 3; i++ {
		v, ok := raw.FloatAt(w, i)
		if !ok {
			return nil, errors.New("bad W entry")
		}
		widths[i] = int(v)
	}

	size, _ := dict.Int("Size")
	index := []int64{0, size}
	if idx, ok := dict.Array("Index"); ok {
		index = index[:0]
		for i := 0; i < idx.Len(); i++ {
			v, ok := raw.FloatAt(idx, i)
			if !ok {
				return nil, errors.New("bad Index entry")
			}
			index = append(index, int64(v))
		}
	}
	if len(index)%2 != 0 {
		return nil, errors.New("odd Index length")
	}

	rowLen := widths[0] + widths[1] + widths[2]
	if rowLen == 0 {
		return nil, errors.New("zero-width xref rows")
	}
	pos := 0
	for pair := 0; pair < len(index); pair += 2 {
		start, count := int(index[pair]), int(index[pair+1])
		for i := 0; i < count; i++ {
			if pos+rowLen > len(decoded) {
				return nil, errors.New("xref stream truncated")
			}
			f1 := readField(decoded[pos:], widths[0], 1) // type defaults to 1
			f2 := readField(decoded[pos+widths[0]:], widths[1], 0)
			f3 := readField(decoded[pos+widths[0]+widths[1]:], widths[2], 0)
			pos += rowLen

			num := start + i
			switch f1 {
			case 0:
				table.add(num, Entry{Kind: EntryFree, Gen: int(f3)})
			case 1:
				table.add(num, Entry{Kind: EntryInFile, Offset: f2, Gen: int(f3)})
			case 2:
				table.add(num, Entry{Kind: EntryInStream, StreamNum: int(f2), StreamIdx: int(f3)})
			}
		}
	}
	table.mergeTrailer(dict)
	return dict, nil
}

func readField(b []byte, width int, def int64) int64 {
	if width == 0 {
		return def
	}
	var v int64
	for i := 0; i < width; i++ {
		v = v<<8 | int64(b[i])
	}
	return v
}

// readStreamObject consumes "num gen obj << dict >> stream ... endstream"
// and returns the dictionary plus the undecoded payload. The /Length entry
// must be a direct integer (always the case for xref streams).
func readStreamObject(data []byte, tr *scanner.TokenReader) (*raw.DictObj, []byte, error) {
	for i := 0; i < 3; i++ { // num, gen, obj
		if _, err := tr.Next(); err != nil {
			return nil, nil, err
		}
	}
	obj, err := scanner.ParseObject(tr)
	if err != nil {
		return nil, nil, err
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, nil, errors.New("not a stream dictionary")
	}
	tok, err := tr.Next()
	if err != nil || tok.Type != scanner.TokenKeyword || tok.Str != "stream" {
		return nil, nil, errors.New("missing stream keyword")
	}
	length, ok := dict.Int("Length")
	if !ok {
		return nil, nil, errors.New("stream without direct Length")
	}
	start := payloadStart(data, tr.Scanner().Pos())
	end := start + int(length)
	if end > len(data) {
		return nil, nil, errors.New("stream payload out of range")
	}
	return dict, data[start:end], nil
}

// payloadStart skips the single EOL that follows the stream keyword.
func payloadStart(data []byte, pos int) int {
	if pos < len(data) && data[pos] == '\r' {
		pos++
	}
	if pos < len(data) && data[pos] == '\n' {
		pos++
	}
	return pos
}

func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := data[idx+len("startxref"):]
	fields := bytes.Fields(rest)
	if len(fields) == 0 {
		return 0, errors.New("startxref value missing")
	}
	v, err := strconv.ParseInt(string(fields[0]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	return v, nil
}
