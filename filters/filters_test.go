package filters

import (
	"bytes"
	"context"
	"testing"

	"github.com/pdfnight/pdfnight/ir/raw"
)

func TestFlateRoundTrip(t *testing.T) {
	payload := []byte("q 1 1 1 rg 0 0 612 792 re f Q BT (hello) Tj ET")
	encoded := FlateEncode(payload)

	got, err := Standard().Decode(context.Background(), encoded, []string{"FlateDecode"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestFlateRawDeflateFallback(t *testing.T) {
	// Strip the 2-byte zlib header and 4-byte Adler checksum to simulate a
	// producer that emitted raw deflate.
	payload := []byte("raw deflate payload for fallback testing")
	z := FlateEncode(payload)
	rawDeflate := z[2 : len(z)-4]

	got, err := NewFlateDecoder().Decode(context.Background(), rawDeflate, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("fallback mismatch: %q", got)
	}
}

func TestASCIIHexDecode(t *testing.T) {
	got, err := NewASCIIHexDecoder().Decode(context.Background(), []byte("48 65 6C6C 6F>"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "Hello" {
		t.Fatalf("got %q", got)
	}
	// Odd digit count pads with zero.
	got, err = NewASCIIHexDecoder().Decode(context.Background(), []byte("7>"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 0x70 {
		t.Fatalf("got % x", got)
	}
}

func TestRunLengthDecode(t *testing.T) {
	// 2 -> 3 literal bytes "abc"; 254 -> repeat next byte 3 times; 128 -> EOD
	in := []byte{2, 'a', 'b', 'c', 254, 'x', 128}
	got, err := NewRunLengthDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "abcxxx" {
		t.Fatalf("got %q", got)
	}
}

func TestPipelineChainsFilters(t *testing.T) {
	payload := []byte("two layer stream")
	encoded := FlateEncode(payload)
	hexed := make([]byte, 0, len(encoded)*2+1)
	const digits = "0123456789ABCDEF"
	for _, b := range encoded {
		hexed = append(hexed, digits[b>>4], digits[b&0xf])
	}
	hexed = append(hexed, '>')

	got, err := Standard().Decode(context.Background(), hexed,
		[]string{"ASCIIHexDecode", "FlateDecode"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q", got)
	}
}

func TestPipelineUnknownFilter(t *testing.T) {
	_, err := Standard().Decode(context.Background(), nil, []string{"DCTDecode"}, nil)
	if err == nil {
		t.Fatal("expected error for unsupported filter")
	}
}

func TestPNGUpPredictor(t *testing.T) {
	// Two rows of 4 columns, filter type 2 (Up) on the second row.
	rows := []byte{
		0, 1, 2, 3, 4, // row 0: None
		2, 1, 1, 1, 1, // row 1: Up -> 2 3 4 5
	}
	params := raw.Dict()
	params.Set("Predictor", raw.Int(12))
	params.Set("Columns", raw.Int(4))

	got, err := applyPredictor(rows, params)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 4, 2, 3, 4, 5}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % d, want % d", got, want)
	}
}

func TestTIFFPredictor(t *testing.T) {
	params := raw.Dict()
	params.Set("Predictor", raw.Int(2))
	params.Set("Columns", raw.Int(4))

	got, err := applyPredictor([]byte{1, 1, 1, 1}, params)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 4}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % d, want % d", got, want)
	}
}

func TestNoPredictorPassthrough(t *testing.T) {
	data := []byte{9, 9, 9}
	got, err := applyPredictor(data, nil)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("got % d err %v", got, err)
	}
}
