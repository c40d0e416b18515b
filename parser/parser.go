// Package parser turns raw PDF bytes into an object graph. It resolves the
// cross-reference information, loads every reachable object (including
// objects packed into object streams) and hands back a raw.Document.
package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdfnight/pdfnight/filters"
	"github.com/pdfnight/pdfnight/ir/raw"
	"github.com/pdfnight/pdfnight/scanner"
	"github.com/pdfnight/pdfnight/xref"
)

// ErrEncrypted is returned for files whose trailer carries an /Encrypt
// entry. Encrypted documents are not supported.
var ErrEncrypted = errors.New("document is encrypted")

type Parser struct {
	data    []byte
	table   *xref.Table
	filters *filters.Pipeline

	objStreams      map[int][]objStreamEntry // per-stream object index
	objStreamBodies map[int][]byte           // decompressed stream bodies
}

type objStreamEntry struct {
	num    int
	offset int
}

// Parse loads a complete document from data.
func Parse(ctx context.Context, data []byte) (*raw.Document, error) {
	table, err := xref.Resolve(ctx, data)
	if err != nil {
		return nil, err
	}
	if table.Trailer().Has("Encrypt") {
		return nil, ErrEncrypted
	}
	p := &Parser{
		data:            data,
		table:           table,
		filters:         filters.Standard(),
		objStreams:      make(map[int][]objStreamEntry),
		objStreamBodies: make(map[int][]byte),
	}

	doc := &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object),
		Trailer: table.Trailer(),
		Version: version(data),
	}
	for _, num := range table.Objects() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, _ := table.Lookup(num)
		obj, err := p.load(ctx, num, entry)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", num, err)
		}
		doc.Objects[raw.ObjectRef{Num: num, Gen: entry.Gen}] = obj
	}
	return doc, nil
}

func (p *Parser) load(ctx context.Context, num int, entry xref.Entry) (raw.Object, error) {
	switch entry.Kind {
	case xref.EntryInFile:
		return p.loadAt(ctx, num, entry.Offset)
	case xref.EntryInStream:
		return p.loadFromObjectStream(ctx, entry.StreamNum, num)
	default:
		return raw.NullObj{}, nil
	}
}

// loadAt parses the "num gen obj ... endobj" record at offset.
func (p *Parser) loadAt(ctx context.Context, num int, offset int64) (raw.Object, error) {
	s := scanner.New(p.data)
	if err := s.Seek(int(offset)); err != nil {
		return nil, err
	}
	tr := scanner.NewTokenReader(s)

	numTok, err := tr.Next()
	if err != nil {
		return nil, err
	}
	if numTok.Type != scanner.TokenNumber || !numTok.IsInt || int(numTok.Int) != num {
		return nil, fmt.Errorf("object header mismatch at %d: expected %d", offset, num)
	}
	if _, err := tr.Next(); err != nil { // generation
		return nil, err
	}
	objTok, err := tr.Next()
	if err != nil {
		return nil, err
	}
	if objTok.Type != scanner.TokenKeyword || objTok.Str != "obj" {
		return nil, fmt.Errorf("missing obj keyword at %d", offset)
	}

	value, err := scanner.ParseObject(tr)
	if err != nil {
		return nil, err
	}
	dict, ok := value.(*raw.DictObj)
	if !ok {
		return value, nil
	}
	next, err := tr.Next()
	if err != nil || next.Type != scanner.TokenKeyword || next.Str != "stream" {
		return dict, nil
	}
	payload, err := p.streamPayload(ctx, dict, tr.Scanner().Pos())
	if err != nil {
		return nil, err
	}
	return &raw.StreamObj{Dict: dict, Data: payload}, nil
}

// streamPayload slices the stream body starting right after the stream
// keyword at pos. The /Length entry may be an indirect reference; when it
// is missing or wrong the payload is recovered by scanning for endstream.
func (p *Parser) streamPayload(ctx context.Context, dict *raw.DictObj, pos int) ([]byte, error) {
	start := pos
	if start < len(p.data) && p.data[start] == '\r' {
		start++
	}
	if start < len(p.data) && p.data[start] == '\n' {
		start++
	}

	if length, ok := p.streamLength(ctx, dict); ok {
		end := start + int(length)
		if end <= len(p.data) && endstreamFollows(p.data, end) {
			return p.data[start:end], nil
		}
	}
	// Length unusable: take everything up to the endstream keyword,
	// trimming the EOL that precedes it.
	end := indexKeyword(p.data, start, "endstream")
	if end < 0 {
		return nil, errors.New("unterminated stream")
	}
	for end > start && (p.data[end-1] == '\n' || p.data[end-1] == '\r') {
		end--
	}
	return p.data[start:end], nil
}

func (p *Parser) streamLength(ctx context.Context, dict *raw.DictObj) (int64, bool) {
	v, ok := dict.Get("Length")
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case raw.NumberObj:
		return n.Int(), true
	case raw.RefObj:
		entry, ok := p.table.Lookup(n.R.Num)
		if !ok || entry.Kind != xref.EntryInFile {
			return 0, false
		}
		obj, err := p.loadAt(ctx, n.R.Num, entry.Offset)
		if err != nil {
			return 0, false
		}
		if num, ok := obj.(raw.NumberObj); ok {
			return num.Int(), true
		}
	}
	return 0, false
}

// loadFromObjectStream returns object num out of object stream streamNum,
// decoding and indexing the stream on first use.
func (p *Parser) loadFromObjectStream(ctx context.Context, streamNum, num int) (raw.Object, error) {
	entries, ok := p.objStreams[streamNum]
	if !ok {
		var err error
		entries, err = p.indexObjectStream(ctx, streamNum)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", streamNum, err)
		}
		p.objStreams[streamNum] = entries
	}
	for _, e := range entries {
		if e.num == num {
			return p.objStreamValue(streamNum, e)
		}
	}
	return nil, fmt.Errorf("object %d not found in object stream %d", num, streamNum)
}

func (p *Parser) indexObjectStream(ctx context.Context, streamNum int) ([]objStreamEntry, error) {
	body, first, n, err := p.objectStreamBody(ctx, streamNum)
	if err != nil {
		return nil, err
	}
	s := scanner.New(body)
	tr := scanner.NewTokenReader(s)
	entries := make([]objStreamEntry, 0, n)
	for i := 0; i < n; i++ {
		numTok, err := tr.Next()
		if err != nil || numTok.Type != scanner.TokenNumber {
			return nil, errors.New("bad object stream header")
		}
		offTok, err := tr.Next()
		if err != nil || offTok.Type != scanner.TokenNumber {
			return nil, errors.New("bad object stream header")
		}
		entries = append(entries, objStreamEntry{
			num:    int(numTok.Int),
			offset: first + int(offTok.Int),
		})
	}
	return entries, nil
}

func (p *Parser) objStreamValue(streamNum int, e objStreamEntry) (raw.Object, error) {
	body, ok := p.objStreamBodies[streamNum]
	if !ok {
		return nil, fmt.Errorf("object stream %d body not cached", streamNum)
	}
	s := scanner.New(body)
	if err := s.Seek(e.offset); err != nil {
		return nil, err
	}
	return scanner.ParseObject(scanner.NewTokenReader(s))
}

func (p *Parser) objectStreamBody(ctx context.Context, streamNum int) ([]byte, int, int, error) {
	entry, ok := p.table.Lookup(streamNum)
	if !ok || entry.Kind != xref.EntryInFile {
		return nil, 0, 0, errors.New("container not in file")
	}
	obj, err := p.loadAt(ctx, streamNum, entry.Offset)
	if err != nil {
		return nil, 0, 0, err
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, 0, 0, errors.New("container is not a stream")
	}
	if typ, _ := stm.Dict.Name("Type"); typ != "ObjStm" {
		return nil, 0, 0, fmt.Errorf("container has /Type /%s", typ)
	}
	n, ok := stm.Dict.Int("N")
	if !ok {
		return nil, 0, 0, errors.New("missing N")
	}
	first, ok := stm.Dict.Int("First")
	if !ok {
		return nil, 0, 0, errors.New("missing First")
	}
	names, parms := filters.Chain(stm.Dict)
	body, err := p.filters.Decode(ctx, stm.Data, names, parms)
	if err != nil {
		return nil, 0, 0, err
	}
	p.objStreamBodies[streamNum] = body
	return body, int(first), int(n), nil
}

func endstreamFollows(data []byte, pos int) bool {
	for pos < len(data) && (data[pos] == '\r' || data[pos] == '\n' || data[pos] == ' ') {
		pos++
	}
	return pos+len("endstream") <= len(data) &&
		string(data[pos:pos+len("endstream")]) == "endstream"
}

func indexKeyword(data []byte, start int, kw string) int {
	if start >= len(data) {
		return -1
	}
	for i := start; i+len(kw) <= len(data); i++ {
		if string(data[i:i+len(kw)]) == kw {
			return i
		}
	}
	return -1
}

// version extracts the header version, defaulting to 1.7.
func version(data []byte) string {
	if len(data) >= len("%PDF-1.x") && string(data[:5]) == "%PDF-" {
		return string(data[5:8])
	}
	return "1.7"
}
