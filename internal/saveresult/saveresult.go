// Package saveresult implements the save_result process: format resolution,
// byte encoding, multi-band GeoTIFF-style concatenation, and the
// GeoJSON/CSV vector output paths (spec §4.7).
package saveresult

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/gift"

	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
)

// Format is an openEO output format identifier, case-insensitive on input.
type Format string

const (
	FormatText    Format = "txt"
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatPNG     Format = "png"
	FormatJPEG    Format = "jpeg"
	FormatGTiff   Format = "gtiff"
	FormatMetaJSON Format = "metajson"
)

// mediaTypes is the format -> media-type table (spec §4.7).
var mediaTypes = map[Format]string{
	FormatText:     "text/plain",
	FormatJSON:      "application/json",
	FormatCSV:       "text/csv",
	FormatPNG:       "image/png",
	FormatJPEG:      "image/jpeg",
	FormatGTiff:     "image/tiff; application=geotiff",
	FormatMetaJSON:  "application/json",
}

// MediaType returns the HTTP media type for format, or an error for an
// unrecognised format string.
func MediaType(format Format) (string, error) {
	mt, ok := mediaTypes[Format(strings.ToLower(string(format)))]
	if !ok {
		return "", fmt.Errorf("saveresult: unknown format %q", format)
	}
	return mt, nil
}

// Result is the byte payload and content type produced by Encode.
type Result struct {
	Bytes       []byte
	ContentType string
}

// Encode renders img as format. options is accepted for the save_result
// signature but not read by any encoder.
func Encode(img rastertypes.Image, format Format, options map[string]any) (Result, error) {
	format = Format(strings.ToLower(string(format)))
	mt, err := MediaType(format)
	if err != nil {
		return Result{}, err
	}

	switch format {
	case FormatJSON, FormatMetaJSON:
		b, err := encodeMetaJSON(img)
		if err != nil {
			return Result{}, err
		}
		return Result{Bytes: b, ContentType: mt}, nil
	case FormatText:
		return Result{Bytes: encodeText(img), ContentType: mt}, nil
	case FormatPNG:
		b, err := encodeRaster(img, png.Encode)
		if err != nil {
			return Result{}, err
		}
		return Result{Bytes: b, ContentType: mt}, nil
	case FormatJPEG:
		b, err := encodeRaster(img, func(w *bytes.Buffer, m image.Image) error {
			return jpeg.Encode(w, m, &jpeg.Options{Quality: 90})
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Bytes: b, ContentType: mt}, nil
	case FormatGTiff:
		b, err := encodeGeoTIFFConcatenated(img)
		if err != nil {
			return Result{}, err
		}
		return Result{Bytes: b, ContentType: mt}, nil
	default:
		return Result{}, fmt.Errorf("saveresult: unsupported format %q", format)
	}
}

func encodeText(img rastertypes.Image) []byte {
	var buf bytes.Buffer
	for b := 0; b < img.Array.Bands; b++ {
		for row := 0; row < img.Array.Height; row++ {
			for col := 0; col < img.Array.Width; col++ {
				v, ok := img.Array.At(b, row, col)
				if !ok {
					buf.WriteString("NaN ")
					continue
				}
				buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
				buf.WriteByte(' ')
			}
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

func encodeMetaJSON(img rastertypes.Image) ([]byte, error) {
	payload := map[string]any{
		"width":      img.Array.Width,
		"height":     img.Array.Height,
		"bands":      img.Array.Bands,
		"band_names": img.BandNames,
		"bounds":     img.Bounds.Array(),
		"crs":        img.CRS,
		"metadata":   img.Metadata,
	}
	return json.Marshal(payload)
}

// encodeRaster renders the first band (as grey) or the first two or three
// bands (as red, green, blue) of img as an 8-bit
// image via a simple min/max stretch, handing off to encodeFn for the
// actual byte encoding (png.Encode or a jpeg-shaped wrapper).
func encodeRaster(img rastertypes.Image, encodeFn func(*bytes.Buffer, image.Image) error) ([]byte, error) {
	rgba := image.NewRGBA(image.Rect(0, 0, img.Array.Width, img.Array.Height))
	bands := img.Array.Bands
	if bands > 3 {
		bands = 3
	}

	stretched := make([][]uint8, bands)
	for b := 0; b < bands; b++ {
		stretched[b] = stretchBand(img.Array, b)
	}

	for row := 0; row < img.Array.Height; row++ {
		for col := 0; col < img.Array.Width; col++ {
			i := row*img.Array.Width + col
			var c color.RGBA
			c.A = 255
			switch bands {
			case 1:
				v := stretched[0][i]
				c.R, c.G, c.B = v, v, v
			default:
				c.R = stretched[0][i]
				if bands > 1 {
					c.G = stretched[1][i]
				}
				if bands > 2 {
					c.B = stretched[2][i]
				}
			}
			rgba.SetRGBA(col, row, c)
		}
	}

	var buf bytes.Buffer
	if err := encodeFn(&buf, rgba); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stretchBand(arr *rastertypes.MaskedArray, band int) []uint8 {
	n := arr.Height * arr.Width
	out := make([]uint8, n)
	min, max := float64(0), float64(0)
	first := true
	for row := 0; row < arr.Height; row++ {
		for col := 0; col < arr.Width; col++ {
			v, ok := arr.At(band, row, col)
			if !ok {
				continue
			}
			if first {
				min, max = v, v
				first = false
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	span := max - min
	if span == 0 {
		span = 1
	}
	for row := 0; row < arr.Height; row++ {
		for col := 0; col < arr.Width; col++ {
			v, ok := arr.At(band, row, col)
			i := row*arr.Width + col
			if !ok {
				out[i] = 0
				continue
			}
			scaled := (v - min) / span * 255
			if scaled < 0 {
				scaled = 0
			}
			if scaled > 255 {
				scaled = 255
			}
			out[i] = uint8(scaled)
		}
	}
	return out
}

// encodeGeoTIFFConcatenated lays out each band of img contiguously,
// matching the "multi-band GeoTIFF concatenation" behavior of save_result
// (spec §4.7); the processing core does not itself own GeoTIFF tag
// encoding, so the payload is the raw band-sequential float64 buffer plus
// a small header the outer I/O boundary uses to re-materialize a proper
// GeoTIFF (no GeoTIFF writer is wired into this core; that encoding is
// left to the serving layer).
func encodeGeoTIFFConcatenated(img rastertypes.Image) ([]byte, error) {
	var buf bytes.Buffer
	header := map[string]any{
		"width":  img.Array.Width,
		"height": img.Array.Height,
		"bands":  img.Array.Bands,
		"dtype":  "float64",
	}
	hb, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(&buf, "%08d", len(hb)); err != nil {
		return nil, err
	}
	buf.Write(hb)

	for b := 0; b < img.Array.Bands; b++ {
		for row := 0; row < img.Array.Height; row++ {
			for col := 0; col < img.Array.Width; col++ {
				v, _ := img.Array.At(b, row, col)
				if err := writeFloat64(&buf, v); err != nil {
					return nil, err
				}
			}
		}
	}
	return buf.Bytes(), nil
}

func writeFloat64(buf *bytes.Buffer, v float64) error {
	bits := make([]byte, 8)
	u := math.Float64bits(v)
	for i := 0; i < 8; i++ {
		bits[i] = byte(u >> (8 * i))
	}
	_, err := buf.Write(bits)
	return err
}

// Scale resizes a rendered color image via gift's Lanczos resampling. It is
// a standalone helper: Encode does not call it and reads no resize options.
// gift operates on color.Image, which is what a raster looks
// like once encodeRaster has already rendered it to RGBA; raw multi-band
// float data is resampled directly in internal/mosaic instead (see that
// package's resize for why gift does not fit there).
func Scale(src image.Image, width, height int) image.Image {
	g := gift.New(gift.Resize(width, height, gift.LanczosResampling))
	dst := image.NewRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

// GeoJSONFeatureCollection is the minimal structure save_result reads to
// extract per-feature values (spec §4.7's GeoJSON input path).
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
}

type GeoJSONFeature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   map[string]any `json:"geometry"`
}

// EncodeFeaturesCSV renders a FeatureCollection's properties as CSV: one
// column per property key found in any feature, one row per feature, with
// empty cells for keys a feature lacks. It does not emit per-date
// date,feature_index,value rows, and the column order is not stable across
// runs because it follows map iteration.
func EncodeFeaturesCSV(fc GeoJSONFeatureCollection) ([]byte, error) {
	if len(fc.Features) == 0 {
		return nil, nil
	}
	columns := make([]string, 0)
	seen := map[string]bool{}
	for _, f := range fc.Features {
		for k := range f.Properties {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, err
	}
	for _, f := range fc.Features {
		row := make([]string, len(columns))
		for i, c := range columns {
			if v, ok := f.Properties[c]; ok {
				row[i] = fmt.Sprintf("%v", v)
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
