// Package document gives structured access to a parsed PDF: the page tree,
// page content streams, background underlays, and serialization back to
// bytes. It is the mutable layer the conversion engine works against.
package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdfnight/pdfnight/filters"
	"github.com/pdfnight/pdfnight/ir/raw"
	"github.com/pdfnight/pdfnight/parser"
)

const maxPageTreeDepth = 64

// Document wraps the raw object graph with page-level operations. New
// objects created while editing get numbers above every existing one.
type Document struct {
	raw     *raw.Document
	filters *filters.Pipeline
	pages   []*Page
	nextNum int
}

// Page is one leaf of the page tree. MediaBox and Resources honor
// inheritance from ancestor Pages nodes.
type Page struct {
	doc       *Document
	ref       raw.ObjectRef
	dict      *raw.DictObj
	mediaBox  *raw.ArrayObj
	resources raw.Object // dict or ref, possibly inherited
}

// Open parses data and walks the page tree.
func Open(ctx context.Context, data []byte) (*Document, error) {
	rawDoc, err := parser.Parse(ctx, data)
	if err != nil {
		return nil, err
	}
	d := &Document{raw: rawDoc, filters: filters.Standard()}
	for ref := range rawDoc.Objects {
		if ref.Num >= d.nextNum {
			d.nextNum = ref.Num + 1
		}
	}
	if d.nextNum == 0 {
		d.nextNum = 1
	}
	if err := d.collectPages(); err != nil {
		return nil, err
	}
	return d, nil
}

// Pages returns the document's pages in tree order.
func (d *Document) Pages() []*Page { return d.pages }

func (d *Document) collectPages() error {
	root, ok := d.resolveDict(d.trailerValue("Root"))
	if !ok {
		return errors.New("no document catalog")
	}
	pagesObj, ok := root.Get("Pages")
	if !ok {
		return errors.New("catalog has no page tree")
	}
	return d.walkPages(pagesObj, nil, nil, 0)
}

func (d *Document) walkPages(node raw.Object, mediaBox *raw.ArrayObj, resources raw.Object, depth int) error {
	if depth > maxPageTreeDepth {
		return errors.New("page tree too deep")
	}
	ref, _ := node.(raw.RefObj)
	dict, ok := d.resolveDict(node)
	if !ok {
		return fmt.Errorf("page tree node is not a dictionary")
	}
	if mb, ok := dict.Array("MediaBox"); ok {
		mediaBox = mb
	}
	if res, ok := dict.Get("Resources"); ok {
		resources = res
	}

	typ, _ := dict.Name("Type")
	switch typ {
	case "Pages":
		kids, ok := dict.Array("Kids")
		if !ok {
			return errors.New("pages node without kids")
		}
		for _, kid := range kids.Items {
			if err := d.walkPages(kid, mediaBox, resources, depth+1); err != nil {
				return err
			}
		}
		return nil
	case "Page":
		d.pages = append(d.pages, &Page{
			doc:       d,
			ref:       ref.R,
			dict:      dict,
			mediaBox:  mediaBox,
			resources: resources,
		})
		return nil
	default:
		return fmt.Errorf("unexpected page tree node type %q", typ)
	}
}

// resolve follows indirect references to the underlying object.
func (d *Document) resolve(obj raw.Object) raw.Object {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(raw.RefObj)
		if !ok {
			return obj
		}
		target, ok := d.raw.Objects[ref.R]
		if !ok {
			// Generation mismatches are common in repaired files.
			target, ok = d.raw.Objects[raw.ObjectRef{Num: ref.R.Num}]
			if !ok {
				return raw.NullObj{}
			}
		}
		obj = target
	}
	return raw.NullObj{}
}

func (d *Document) resolveDict(obj raw.Object) (*raw.DictObj, bool) {
	dict, ok := d.resolve(obj).(*raw.DictObj)
	return dict, ok
}

func (d *Document) trailerValue(key string) raw.Object {
	if d.raw.Trailer == nil {
		return raw.NullObj{}
	}
	v, _ := d.raw.Trailer.Get(key)
	return v
}

// addObject stores obj under a fresh number and returns a reference to it.
func (d *Document) addObject(obj raw.Object) raw.RefObj {
	ref := raw.ObjectRef{Num: d.nextNum}
	d.nextNum++
	d.raw.Objects[ref] = obj
	return raw.RefObj{R: ref}
}
