package xref

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strconv"

	"github.com/pdfnight/pdfnight/ir/raw"
	"github.com/pdfnight/pdfnight/scanner"
)

var objHeader = regexp.MustCompile(`(?m)^[ \t]*(\d+)[ \t]+(\d+)[ \t]+obj\b`)

// Repair rebuilds a cross-reference table by scanning the file for object
// headers. When the same object number appears more than once the later
// occurrence wins, matching incremental-update semantics. The trailer is
// recovered from the last trailer keyword, or synthesized by locating the
// document catalog.
func Repair(ctx context.Context, data []byte) (*Table, error) {
	table := &Table{entries: make(map[int]Entry)}

	matches := objHeader.FindAllSubmatchIndex(data, -1)
	if len(matches) == 0 {
		return nil, errors.New("repair: no objects found")
	}
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		num, err := strconv.Atoi(string(data[m[2]:m[3]]))
		if err != nil {
			continue
		}
		gen, err := strconv.Atoi(string(data[m[4]:m[5]]))
		if err != nil {
			continue
		}
		// Later definitions shadow earlier ones.
		table.entries[num] = Entry{
			Kind:   EntryInFile,
			Offset: int64(m[0] + leadingSpace(data[m[0]:m[1]])),
			Gen:    gen,
		}
	}

	if trailer := lastTrailer(data); trailer != nil {
		table.trailer = trailer
	}
	if table.trailer == nil || !table.trailer.Has("Root") {
		root, ok := findCatalog(ctx, data, table)
		if !ok {
			return nil, errors.New("repair: no trailer and no catalog")
		}
		if table.trailer == nil {
			table.trailer = raw.Dict()
		}
		table.trailer.Set("Root", root)
	}
	return table, nil
}

func leadingSpace(b []byte) int {
	n := 0
	for n < len(b) && (b[n] == ' ' || b[n] == '\t') {
		n++
	}
	return n
}

func lastTrailer(data []byte) *raw.DictObj {
	var found *raw.DictObj
	s := scanner.New(data)
	for {
		idx := indexFrom(data, s.Pos(), "trailer")
		if idx < 0 {
			return found
		}
		if err := s.Seek(idx + len("trailer")); err != nil {
			return found
		}
		tr := scanner.NewTokenReader(s)
		obj, err := scanner.ParseObject(tr)
		if err != nil {
			continue
		}
		if d, ok := obj.(*raw.DictObj); ok {
			found = d
		}
	}
}

func indexFrom(data []byte, start int, sub string) int {
	if start >= len(data) {
		return -1
	}
	if i := bytes.Index(data[start:], []byte(sub)); i >= 0 {
		return start + i
	}
	return -1
}

// findCatalog locates an object whose dictionary carries /Type /Catalog and
// returns a reference to it.
func findCatalog(ctx context.Context, data []byte, table *Table) (raw.Object, bool) {
	for _, num := range table.Objects() {
		if err := ctx.Err(); err != nil {
			return nil, false
		}
		e := table.entries[num]
		if e.Kind != EntryInFile {
			continue
		}
		s := scanner.New(data)
		if err := s.Seek(int(e.Offset)); err != nil {
			continue
		}
		tr := scanner.NewTokenReader(s)
		for i := 0; i < 3; i++ { // num, gen, obj
			if _, err := tr.Next(); err != nil {
				break
			}
		}
		obj, err := scanner.ParseObject(tr)
		if err != nil {
			continue
		}
		if d, ok := obj.(*raw.DictObj); ok {
			if typ, _ := d.Name("Type"); typ == "Catalog" {
				return raw.Ref(num, e.Gen), true
			}
		}
	}
	return nil, false
}
