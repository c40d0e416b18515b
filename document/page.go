package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdfnight/pdfnight/filters"
	"github.com/pdfnight/pdfnight/ir/raw"
)

// Size returns the page width and height from the effective MediaBox,
// defaulting to US Letter when the box is missing or malformed.
func (p *Page) Size() (w, h float64) {
	w, h = 612, 792
	if p.mediaBox == nil || p.mediaBox.Len() < 4 {
		return w, h
	}
	llx, ok1 := raw.FloatAt(p.mediaBox, 0)
	lly, ok2 := raw.FloatAt(p.mediaBox, 1)
	urx, ok3 := raw.FloatAt(p.mediaBox, 2)
	ury, ok4 := raw.FloatAt(p.mediaBox, 3)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return w, h
	}
	return urx - llx, ury - lly
}

// ContentText returns the page's decoded content streams joined with
// newlines. Go strings carry arbitrary bytes, so the round trip through
// ContentText and SetContentText is byte-exact for untouched regions.
func (p *Page) ContentText(ctx context.Context) (string, error) {
	var parts []string
	for _, stm := range p.contentStreams() {
		data, err := p.decodeStream(ctx, stm)
		if err != nil {
			return "", fmt.Errorf("content stream: %w", err)
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n"), nil
}

// SetContentText replaces the page's contents with a single new flate
// compressed stream object.
func (p *Page) SetContentText(text string) {
	data := filters.FlateEncode([]byte(text))
	dict := raw.Dict()
	dict.Set("Filter", raw.Name("FlateDecode"))
	ref := p.doc.addObject(raw.Stream(dict, data))
	p.dict.Set("Contents", ref)
}

// InsertUnderlay paints an opaque rectangle of the given color behind the
// existing page content. The rectangle lives in its own form XObject, so
// later edits to the page content never touch its color operators.
func (p *Page) InsertUnderlay(r, g, b float64) {
	w, h := p.Size()
	content := fmt.Sprintf("q %.4f %.4f %.4f rg 0 0 %.2f %.2f re f Q", r, g, b, w, h)

	formDict := raw.Dict()
	formDict.Set("Type", raw.Name("XObject"))
	formDict.Set("Subtype", raw.Name("Form"))
	formDict.Set("BBox", raw.Rect(0, 0, w, h))
	formRef := p.doc.addObject(raw.Stream(formDict, []byte(content)))

	name := p.registerXObject(formRef)
	invoke := fmt.Sprintf("q /%s Do Q\n", name)

	invokeDict := raw.Dict()
	invokeRef := p.doc.addObject(raw.Stream(invokeDict, []byte(invoke)))
	p.prependContent(invokeRef)
}

// registerXObject adds the form to the page's XObject resources under a
// name no existing resource uses, cloning inherited resources first so the
// edit stays local to this page.
func (p *Page) registerXObject(form raw.RefObj) string {
	res := p.ownedResources()
	xobj, ok := res.Dict("XObject")
	if !ok {
		if existing, found := res.Get("XObject"); found {
			if d, isDict := p.doc.resolveDict(existing); isDict {
				d = cloneDict(d)
				res.Set("XObject", d)
				xobj = d
			}
		}
		if xobj == nil {
			xobj = raw.Dict()
			res.Set("XObject", xobj)
		}
	}
	name := "Bg0"
	for i := 0; xobj.Has(name); i++ {
		name = fmt.Sprintf("Bg%d", i+1)
	}
	xobj.Set(name, form)
	return name
}

// ownedResources returns a resources dictionary set directly on the page,
// cloning an inherited or indirect one when needed.
func (p *Page) ownedResources() *raw.DictObj {
	if res, ok := p.dict.Dict("Resources"); ok {
		return res
	}
	src, _ := p.doc.resolveDict(p.resources)
	var res *raw.DictObj
	if src != nil {
		res = cloneDict(src)
	} else {
		res = raw.Dict()
	}
	p.dict.Set("Resources", res)
	p.resources = res
	return res
}

// prependContent puts ref first in the page's contents array.
func (p *Page) prependContent(ref raw.RefObj) {
	existing, ok := p.dict.Get("Contents")
	if !ok {
		p.dict.Set("Contents", ref)
		return
	}
	arr := raw.Array(ref)
	switch c := existing.(type) {
	case *raw.ArrayObj:
		arr.Items = append(arr.Items, c.Items...)
	default:
		arr.Append(existing)
	}
	p.dict.Set("Contents", arr)
}

// contentStreams resolves /Contents into the ordered stream objects.
func (p *Page) contentStreams() []*raw.StreamObj {
	contents, ok := p.dict.Get("Contents")
	if !ok {
		return nil
	}
	var out []*raw.StreamObj
	appendStream := func(o raw.Object) {
		if stm, ok := p.doc.resolve(o).(*raw.StreamObj); ok {
			out = append(out, stm)
		}
	}
	if arr, ok := p.doc.resolve(contents).(*raw.ArrayObj); ok {
		for _, item := range arr.Items {
			appendStream(item)
		}
		return out
	}
	appendStream(contents)
	return out
}

func (p *Page) decodeStream(ctx context.Context, stm *raw.StreamObj) ([]byte, error) {
	names, parms := filters.Chain(stm.Dict)
	return p.doc.filters.Decode(ctx, stm.Data, names, parms)
}

func cloneDict(src *raw.DictObj) *raw.DictObj {
	out := raw.Dict()
	for k, v := range src.KV {
		out.Set(k, v)
	}
	return out
}
