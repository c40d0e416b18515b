package filters

import (
	"errors"

	"github.com/pdfnight/pdfnight/ir/raw"
)

// applyPredictor undoes the /Predictor transformation declared in a Flate
// stream's decode parameters. Predictor 2 is the TIFF horizontal differencing
// scheme; 10-15 are the PNG per-row filters used by cross-reference streams.
func applyPredictor(data []byte, params *raw.DictObj) ([]byte, error) {
	if params == nil {
		return data, nil
	}
	predictor, ok := params.Int("Predictor")
	if !ok || predictor <= 1 {
		return data, nil
	}

	colors := int64(1)
	if v, ok := params.Int("Colors"); ok {
		colors = v
	}
	bpc := int64(8)
	if v, ok := params.Int("BitsPerComponent"); ok {
		bpc = v
	}
	columns := int64(1)
	if v, ok := params.Int("Columns"); ok {
		columns = v
	}
	if bpc != 8 {
		return nil, errors.New("predictor: only 8 bits per component supported")
	}
	bpp := int(colors)              // bytes per pixel
	rowLen := int(colors * columns) // bytes per row, before the filter tag

	if predictor == 2 {
		return undoTIFF(data, bpp, rowLen)
	}
	if predictor >= 10 && predictor <= 15 {
		return undoPNG(data, bpp, rowLen)
	}
	return nil, errors.New("predictor: unsupported predictor value")
}

func undoTIFF(data []byte, bpp, rowLen int) ([]byte, error) {
	if rowLen == 0 || len(data)%rowLen != 0 {
		return nil, errors.New("predictor: data not a whole number of rows")
	}
	out := make([]byte, len(data))
	copy(out, data)
	for row := 0; row < len(out); row += rowLen {
		for i := bpp; i < rowLen; i++ {
			out[row+i] += out[row+i-bpp]
		}
	}
	return out, nil
}

func undoPNG(data []byte, bpp, rowLen int) ([]byte, error) {
	stride := rowLen + 1 // leading filter-type byte per row
	if stride == 1 || len(data)%stride != 0 {
		return nil, errors.New("predictor: data not a whole number of rows")
	}
	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)

	for r := 0; r < rows; r++ {
		ft := data[r*stride]
		row := make([]byte, rowLen)
		copy(row, data[r*stride+1:(r+1)*stride])
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = row[i-bpp]
				}
				row[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = row[i-bpp]
					upLeft = prev[i-bpp]
				}
				row[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, errors.New("predictor: bad PNG filter type")
		}
		out = append(out, row...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
