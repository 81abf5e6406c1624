package saveresult

import (
	"bytes"
	"encoding/json"
	"image/png"
	"testing"

	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
)

func sampleImage(t *testing.T) rastertypes.Image {
	t.Helper()
	arr := rastertypes.NewMaskedArray(1, 2, 2)
	arr.Set(0, 0, 0, 1)
	arr.Set(0, 0, 1, 2)
	arr.Set(0, 1, 0, 3)
	arr.Set(0, 1, 1, 4)
	img, err := rastertypes.NewImage(arr, rastertypes.BoundingBox{West: 0, South: 0, East: 1, North: 1}, "EPSG:4326", []string{"b1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestMediaTypeUnknownFormat(t *testing.T) {
	if _, err := MediaType(Format("bogus")); err == nil {
		t.Fatal("expected an error for an unrecognised format")
	}
}

func TestEncodeJSONRoundTrips(t *testing.T) {
	img := sampleImage(t)
	res, err := Encode(img, FormatJSON, nil)
	if err != nil {
		t.Fatal(err)
	}
	var payload map[string]any
	if err := json.Unmarshal(res.Bytes, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["width"].(float64) != 2 || payload["height"].(float64) != 2 {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if res.ContentType != "application/json" {
		t.Fatalf("got content type %q", res.ContentType)
	}
}

func TestEncodePNGProducesDecodableImage(t *testing.T) {
	img := sampleImage(t)
	res, err := Encode(img, FormatPNG, nil)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := png.Decode(bytes.NewReader(res.Bytes))
	if err != nil {
		t.Fatalf("decoding produced PNG: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("got dims %dx%d, want 2x2", b.Dx(), b.Dy())
	}
}

func TestEncodeGTiffHeaderDescribesShape(t *testing.T) {
	img := sampleImage(t)
	res, err := Encode(img, FormatGTiff, nil)
	if err != nil {
		t.Fatal(err)
	}
	headerLen := 0
	for _, c := range res.Bytes[:8] {
		headerLen = headerLen*10 + int(c-'0')
	}
	var header map[string]any
	if err := json.Unmarshal(res.Bytes[8:8+headerLen], &header); err != nil {
		t.Fatal(err)
	}
	if header["width"].(float64) != 2 || header["bands"].(float64) != 1 {
		t.Fatalf("unexpected header: %v", header)
	}
}

func TestEncodeFeaturesCSVUnionsColumns(t *testing.T) {
	fc := GeoJSONFeatureCollection{
		Type: "FeatureCollection",
		Features: []GeoJSONFeature{
			{Properties: map[string]any{"a": 1, "b": 2}},
			{Properties: map[string]any{"a": 3}},
		},
	}
	b, err := EncodeFeaturesCSV(fc)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) == 0 {
		t.Fatal("expected non-empty CSV output")
	}
}

func TestEncodeFeaturesCSVEmptyCollection(t *testing.T) {
	b, err := EncodeFeaturesCSV(GeoJSONFeatureCollection{})
	if err != nil {
		t.Fatal(err)
	}
	if b != nil {
		t.Fatalf("expected nil output for an empty collection, got %v", b)
	}
}
