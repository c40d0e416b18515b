// Package filters decodes and encodes PDF stream filters. FlateDecode is
// the only filter that matters for content streams in practice; the ASCII
// and run-length filters are carried for the occasional document that
// layers them on top.
package filters

import (
	"bytes"
	"context"
	stdascii85 "encoding/ascii85"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"

	"github.com/pdfnight/pdfnight/ir/raw"
)

// Decoder decodes one filter layer.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params *raw.DictObj) ([]byte, error)
}

// Limits bounds decode work on hostile input.
type Limits struct {
	MaxDecompressedSize int64
}

// DefaultLimits allows 256 MiB per decoded stream.
func DefaultLimits() Limits {
	return Limits{MaxDecompressedSize: 256 << 20}
}

// Chain extracts the filter names and matching decode parameters from a
// stream dictionary. Both /Filter and /DecodeParms may be single values or
// arrays.
func Chain(dict *raw.DictObj) ([]string, []*raw.DictObj) {
	var names []string
	if f, ok := dict.Get("Filter"); ok {
		switch f := f.(type) {
		case raw.NameObj:
			names = []string{f.Val}
		case *raw.ArrayObj:
			for _, item := range f.Items {
				if n, ok := item.(raw.NameObj); ok {
					names = append(names, n.Val)
				}
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	parms := make([]*raw.DictObj, len(names))
	if p, ok := dict.Get("DecodeParms"); ok {
		switch p := p.(type) {
		case *raw.DictObj:
			parms[0] = p
		case *raw.ArrayObj:
			for i := 0; i < len(p.Items) && i < len(parms); i++ {
				if d, ok := p.Items[i].(*raw.DictObj); ok {
					parms[i] = d
				}
			}
		}
	}
	return names, parms
}

// Pipeline applies a filter chain in order.
type Pipeline struct {
	decoders map[string]Decoder
	limits   Limits
}

// NewPipeline constructs a pipeline over the given decoders.
func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	m := make(map[string]Decoder, len(decoders))
	for _, d := range decoders {
		m[d.Name()] = d
	}
	return &Pipeline{decoders: m, limits: limits}
}

// Standard returns a pipeline with every supported decoder registered.
func Standard() *Pipeline {
	return NewPipeline([]Decoder{
		NewFlateDecoder(),
		NewASCIIHexDecoder(),
		NewASCII85Decoder(),
		NewRunLengthDecoder(),
	}, DefaultLimits())
}

// Decode runs the named filters left to right, as listed in the stream's
// /Filter entry, with the matching /DecodeParms dictionary for each.
func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string, params []*raw.DictObj) ([]byte, error) {
	data := input
	for i, name := range filterNames {
		dec, ok := p.decoders[name]
		if !ok {
			return nil, fmt.Errorf("unsupported filter %q", name)
		}
		var parm *raw.DictObj
		if i < len(params) {
			parm = params[i]
		}
		out, err := dec.Decode(ctx, data, parm)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, fmt.Errorf("%s: decoded size exceeds limit", name)
		}
		data = out
	}
	return data, nil
}

type flateDecoder struct{}

func NewFlateDecoder() Decoder    { return flateDecoder{} }
func (flateDecoder) Name() string { return "FlateDecode" }

// Decode inflates a FlateDecode stream. PDF Flate payloads are zlib-wrapped;
// some producers emit raw deflate, so that is tried second. A /Predictor in
// the parameters is applied after inflation.
func (flateDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	data, err := inflateZlib(in)
	if err != nil {
		data, err = inflateRaw(in)
	}
	if err != nil {
		return nil, err
	}
	return applyPredictor(data, params)
}

func inflateZlib(in []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var out bytes.Buffer
	if _, err := io.Copy(&out, r); err != nil {
		// Tolerate a truncated final block when output was produced; broken
		// Length entries in the wild commonly clip the last few bytes.
		if out.Len() > 0 && errors.Is(err, io.ErrUnexpectedEOF) {
			return out.Bytes(), nil
		}
		return nil, err
	}
	return out.Bytes(), nil
}

func inflateRaw(in []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(in))
	defer r.Close()
	var out bytes.Buffer
	if _, err := io.Copy(&out, r); err != nil {
		if out.Len() > 0 && errors.Is(err, io.ErrUnexpectedEOF) {
			return out.Bytes(), nil
		}
		return nil, err
	}
	return out.Bytes(), nil
}

// FlateEncode compresses data as a zlib-wrapped FlateDecode payload, used
// when writing replacement content streams.
func FlateEncode(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

type asciiHexDecoder struct{}

func NewASCIIHexDecoder() Decoder    { return asciiHexDecoder{} }
func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	var out []byte
	var hi byte
	haveHi := false
	for _, c := range in {
		if c == '>' {
			break
		}
		switch {
		case c >= '0' && c <= '9':
			c -= '0'
		case c >= 'a' && c <= 'f':
			c -= 'a' - 10
		case c >= 'A' && c <= 'F':
			c -= 'A' - 10
		default:
			if c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0 {
				continue
			}
			return nil, fmt.Errorf("bad hex digit %q", c)
		}
		if haveHi {
			out = append(out, hi<<4|c)
			haveHi = false
		} else {
			hi = c
			haveHi = true
		}
	}
	if haveHi {
		out = append(out, hi<<4)
	}
	return out, nil
}

type ascii85Decoder struct{}

func NewASCII85Decoder() Decoder    { return ascii85Decoder{} }
func (ascii85Decoder) Name() string { return "ASCII85Decode" }

func (ascii85Decoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	trimmed = bytes.TrimPrefix(trimmed, []byte("<~"))
	trimmed = bytes.TrimSuffix(trimmed, []byte("~>"))
	out := make([]byte, len(trimmed)*4/5+4)
	n, _, err := stdascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type runLengthDecoder struct{}

func NewRunLengthDecoder() Decoder    { return runLengthDecoder{} }
func (runLengthDecoder) Name() string { return "RunLengthDecode" }

func (runLengthDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	var out []byte
	for i := 0; i < len(in); {
		n := in[i]
		i++
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			end := i + int(n) + 1
			if end > len(in) {
				return nil, errors.New("truncated literal run")
			}
			out = append(out, in[i:end]...)
			i = end
		default:
			if i >= len(in) {
				return nil, errors.New("truncated repeat run")
			}
			count := 257 - int(n)
			for j := 0; j < count; j++ {
				out = append(out, in[i])
			}
			i++
		}
	}
	return out, nil
}
