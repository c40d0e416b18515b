// Package raw holds the low-level PDF object model shared by the reader and
// writer: names, numbers, strings, arrays, dictionaries, streams, and
// indirect references, with no document-level semantics attached.
package raw

import "fmt"

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

// NameObj is a PDF name (/Name).
type NameObj struct{ Val string }

func (NameObj) Type() string { return "name" }

// NumberObj is a PDF numeric value, integer or real.
type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func (NumberObj) Type() string { return "number" }

func (n NumberObj) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}

func (n NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

// BoolObj is a PDF boolean.
type BoolObj struct{ V bool }

func (BoolObj) Type() string { return "boolean" }

// NullObj is the PDF null object.
type NullObj struct{}

func (NullObj) Type() string { return "null" }

// StringObj is a PDF string. Hex preserves the original spelling so written
// output stays close to the input.
type StringObj struct {
	Bytes []byte
	Hex   bool
}

func (StringObj) Type() string { return "string" }

// ArrayObj is a PDF array.
type ArrayObj struct{ Items []Object }

func (*ArrayObj) Type() string { return "array" }

func (a *ArrayObj) Len() int { return len(a.Items) }

func (a *ArrayObj) Get(i int) (Object, bool) {
	if i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}

func (a *ArrayObj) Append(o Object) { a.Items = append(a.Items, o) }

// DictObj is a PDF dictionary keyed by name.
type DictObj struct{ KV map[string]Object }

func (*DictObj) Type() string { return "dict" }

func (d *DictObj) Get(key string) (Object, bool) {
	o, ok := d.KV[key]
	return o, ok
}

func (d *DictObj) Set(key string, value Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key] = value
}

func (d *DictObj) Delete(key string) { delete(d.KV, key) }

func (d *DictObj) Has(key string) bool {
	_, ok := d.KV[key]
	return ok
}

func (d *DictObj) Len() int { return len(d.KV) }

// Name returns the string value of a name entry.
func (d *DictObj) Name(key string) (string, bool) {
	if v, ok := d.KV[key]; ok {
		if n, ok := v.(NameObj); ok {
			return n.Val, true
		}
	}
	return "", false
}

// Int returns the integer value of a numeric entry.
func (d *DictObj) Int(key string) (int64, bool) {
	if v, ok := d.KV[key]; ok {
		if n, ok := v.(NumberObj); ok {
			return n.Int(), true
		}
	}
	return 0, false
}

// Array returns an array-valued entry.
func (d *DictObj) Array(key string) (*ArrayObj, bool) {
	if v, ok := d.KV[key]; ok {
		if a, ok := v.(*ArrayObj); ok {
			return a, true
		}
	}
	return nil, false
}

// Dict returns a dictionary-valued entry.
func (d *DictObj) Dict(key string) (*DictObj, bool) {
	if v, ok := d.KV[key]; ok {
		if sub, ok := v.(*DictObj); ok {
			return sub, true
		}
	}
	return nil, false
}

// StreamObj is a stream: a dictionary plus its (still encoded) payload.
type StreamObj struct {
	Dict *DictObj
	Data []byte
}

func (*StreamObj) Type() string { return "stream" }

// RefObj is an indirect object reference.
type RefObj struct{ R ObjectRef }

func (RefObj) Type() string { return "ref" }

// Document is the parsed form of a PDF file: every indirect object plus the
// trailer dictionary.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer *DictObj
	Version string
}

// Constructors.

func Name(v string) NameObj           { return NameObj{Val: v} }
func Int(i int64) NumberObj           { return NumberObj{I: i, IsInt: true} }
func Float(f float64) NumberObj       { return NumberObj{F: f} }
func Bool(v bool) BoolObj             { return BoolObj{V: v} }
func Str(b []byte) StringObj          { return StringObj{Bytes: b} }
func Ref(num, gen int) RefObj         { return RefObj{R: ObjectRef{Num: num, Gen: gen}} }
func Dict() *DictObj                  { return &DictObj{KV: make(map[string]Object)} }
func Array(items ...Object) *ArrayObj { return &ArrayObj{Items: items} }

func Stream(dict *DictObj, data []byte) *StreamObj {
	if dict == nil {
		dict = Dict()
	}
	dict.Set("Length", Int(int64(len(data))))
	return &StreamObj{Dict: dict, Data: data}
}

// Rect builds the [llx lly urx ury] array used for media boxes and bounding
// boxes.
func Rect(llx, lly, urx, ury float64) *ArrayObj {
	return Array(Float(llx), Float(lly), Float(urx), Float(ury))
}

// FloatAt reads a numeric array element.
func FloatAt(a *ArrayObj, i int) (float64, bool) {
	o, ok := a.Get(i)
	if !ok {
		return 0, false
	}
	n, ok := o.(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}
