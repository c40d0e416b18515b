package document

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/pdfnight/pdfnight/ir/raw"
)

// Save serializes the whole document as a fresh file: header, every object
// in number order, a classic cross-reference table, and the trailer.
// Incremental updates are deliberately not produced; a full rewrite keeps
// the output self-contained no matter how damaged the input was.
func (d *Document) Save() ([]byte, error) {
	ordered := make([]raw.ObjectRef, 0, len(d.raw.Objects))
	for ref := range d.raw.Objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Num < ordered[j].Num })

	var buf bytes.Buffer
	buf.WriteString("%PDF-" + d.raw.Version + "\n%\xE2\xE3\xCF\xD3\n")

	offsets := make(map[int]int64, len(ordered))
	gens := make(map[int]int, len(ordered))
	for _, ref := range ordered {
		offsets[ref.Num] = int64(buf.Len())
		gens[ref.Num] = ref.Gen
		fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
		serializeObject(&buf, d.raw.Objects[ref])
		buf.WriteString("\nendobj\n")
	}

	xrefOffset := buf.Len()
	maxNum := 0
	if n := len(ordered); n > 0 {
		maxNum = ordered[n-1].Num
	}
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxNum; i++ {
		if off, ok := offsets[i]; ok {
			fmt.Fprintf(&buf, "%010d %05d n \n", off, gens[i])
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	trailer := raw.Dict()
	for _, key := range []string{"Root", "Info"} {
		if v, ok := d.raw.Trailer.Get(key); ok {
			trailer.Set(key, v)
		}
	}
	trailer.Set("Size", raw.Int(int64(maxNum+1)))
	buf.WriteString("trailer\n")
	serializeObject(&buf, trailer)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}

func serializeObject(buf *bytes.Buffer, obj raw.Object) {
	switch v := obj.(type) {
	case raw.NameObj:
		serializeName(buf, v.Val)
	case raw.NumberObj:
		if v.IsInt {
			buf.WriteString(strconv.FormatInt(v.I, 10))
		} else {
			buf.WriteString(strconv.FormatFloat(v.F, 'f', -1, 64))
		}
	case raw.BoolObj:
		buf.WriteString(strconv.FormatBool(v.V))
	case raw.NullObj:
		buf.WriteString("null")
	case raw.StringObj:
		serializeString(buf, v)
	case raw.RefObj:
		fmt.Fprintf(buf, "%d %d R", v.R.Num, v.R.Gen)
	case *raw.ArrayObj:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			serializeObject(buf, item)
		}
		buf.WriteByte(']')
	case *raw.DictObj:
		serializeDict(buf, v)
	case *raw.StreamObj:
		v.Dict.Set("Length", raw.Int(int64(len(v.Data))))
		serializeDict(buf, v.Dict)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	default:
		buf.WriteString("null")
	}
}

func serializeDict(buf *bytes.Buffer, d *raw.DictObj) {
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteString("<< ")
	for _, k := range keys {
		serializeName(buf, k)
		buf.WriteByte(' ')
		serializeObject(buf, d.KV[k])
		buf.WriteByte(' ')
	}
	buf.WriteString(">>")
}

// serializeName writes a name token, #xx-escaping every byte the reader
// would not treat as part of the name: whitespace, delimiters, the escape
// character itself, and anything outside printable ASCII.
func serializeName(buf *bytes.Buffer, name string) {
	const digits = "0123456789ABCDEF"
	buf.WriteByte('/')
	for i := 0; i < len(name); i++ {
		b := name[i]
		if regularNameByte(b) {
			buf.WriteByte(b)
			continue
		}
		buf.WriteByte('#')
		buf.WriteByte(digits[b>>4])
		buf.WriteByte(digits[b&0x0F])
	}
}

func regularNameByte(b byte) bool {
	if b < 0x21 || b > 0x7E || b == '#' {
		return false
	}
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return false
	}
	return true
}

// serializeString writes literal strings with the delimiter bytes escaped.
// Strings read as hex stay hex.
func serializeString(buf *bytes.Buffer, s raw.StringObj) {
	if s.Hex {
		buf.WriteByte('<')
		const digits = "0123456789ABCDEF"
		for _, b := range s.Bytes {
			buf.WriteByte(digits[b>>4])
			buf.WriteByte(digits[b&0x0F])
		}
		buf.WriteByte('>')
		return
	}
	buf.WriteByte('(')
	for _, b := range s.Bytes {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(')')
}
