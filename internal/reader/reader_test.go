package reader

import (
	"context"
	"testing"

	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
	"github.com/MeKo-Tech/openeocore/internal/stac"
)

type fakeSource struct {
	items []stac.Item
	err   error
}

func (f *fakeSource) Search(ctx context.Context, q stac.SearchQuery) ([]stac.Item, error) {
	return f.items, f.err
}

type fakeAssetReader struct{ value float64 }

func (f *fakeAssetReader) ReadWindow(ctx context.Context, assetURL string, bounds rastertypes.BoundingBox, width, height int) (*rastertypes.MaskedArray, error) {
	arr := rastertypes.NewMaskedArray(1, height, width)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			arr.Set(0, row, col, f.value)
		}
	}
	return arr, nil
}

func sampleItem(id, datetime string, value float64) stac.Item {
	return stac.Item{
		ID:          id,
		Bounds:      rastertypes.BoundingBox{West: 0, South: 0, East: 1, North: 1},
		DatetimeISO: datetime,
		Assets: map[string]stac.Asset{
			"red": {Name: "red", Href: "https://example.test/" + id + "/red.tif"},
		},
	}
}

func TestSearchItemsRejectsEmptyTemporalExtent(t *testing.T) {
	r := New(&fakeSource{}, &fakeAssetReader{}, Limits{})
	_, err := r.SearchItems(context.Background(), stac.SearchQuery{})
	if err == nil {
		t.Fatal("expected TemporalExtentEmpty error")
	}
}

func TestSearchItemsRejectsNoDataAvailable(t *testing.T) {
	r := New(&fakeSource{items: nil}, &fakeAssetReader{}, Limits{})
	q := stac.SearchQuery{Temporal: rastertypes.TemporalInterval{Start: rastertypes.NewTime(0)}}
	_, err := r.SearchItems(context.Background(), q)
	if err == nil {
		t.Fatal("expected NoDataAvailable error")
	}
}

func TestSearchItemsEnforcesItemsLimit(t *testing.T) {
	items := []stac.Item{sampleItem("a", "2024-01-01T00:00:00Z", 1), sampleItem("b", "2024-01-02T00:00:00Z", 2)}
	r := New(&fakeSource{items: items}, &fakeAssetReader{}, Limits{MaxItems: 1})
	q := stac.SearchQuery{Temporal: rastertypes.TemporalInterval{Start: rastertypes.NewTime(0)}}
	_, err := r.SearchItems(context.Background(), q)
	if err == nil {
		t.Fatal("expected ItemsLimitExceeded error")
	}
}

func TestReadWindowNamesSingleBandAssetWithAssetAsBand(t *testing.T) {
	item := sampleItem("a", "2024-01-01T00:00:00Z", 5)
	r := New(&fakeSource{}, &fakeAssetReader{value: 5}, Limits{})
	img, err := r.ReadWindow(context.Background(), WindowRequest{
		Item: item, Assets: []string{"red"}, AssetAsBand: true, Width: 2, Height: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(img.BandNames) != 1 || img.BandNames[0] != "red" {
		t.Fatalf("got band names %v", img.BandNames)
	}
	v, ok := img.Array.At(0, 0, 0)
	if !ok || v != 5 {
		t.Fatalf("got (%v,%v), want (5,true)", v, ok)
	}
}

func TestLoadCollectionGroupsByDatetime(t *testing.T) {
	items := []stac.Item{
		sampleItem("a", "2024-01-01T00:00:00Z", 1),
		sampleItem("b", "2024-01-02T00:00:00Z", 2),
	}
	r := New(&fakeSource{items: items}, &fakeAssetReader{value: 1}, Limits{})
	q := stac.SearchQuery{
		Bounds:   rastertypes.BoundingBox{West: 0, South: 0, East: 1, North: 1},
		Temporal: rastertypes.TemporalInterval{Start: rastertypes.NewTime(0)},
	}
	stack, err := r.LoadCollection(context.Background(), q, []string{"red"}, true, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if stack.Len() != 2 {
		t.Fatalf("got %d keys, want 2", stack.Len())
	}
	keys := stack.Keys()
	if keys[0] != "2024-01-01T00:00:00Z" || keys[1] != "2024-01-02T00:00:00Z" {
		t.Fatalf("expected chronological order, got %v", keys)
	}
}

func TestLoadCollectionAndReduceMosaicsAllItems(t *testing.T) {
	items := []stac.Item{
		sampleItem("a", "2024-01-01T00:00:00Z", 9),
		sampleItem("b", "2024-01-02T00:00:00Z", 9),
	}
	r := New(&fakeSource{items: items}, &fakeAssetReader{value: 9}, Limits{})
	q := stac.SearchQuery{
		Bounds:   rastertypes.BoundingBox{West: 0, South: 0, East: 1, North: 1},
		Temporal: rastertypes.TemporalInterval{Start: rastertypes.NewTime(0)},
	}
	img, err := r.LoadCollectionAndReduce(context.Background(), q, []string{"red"}, true, 2, 2, "")
	if err != nil {
		t.Fatal(err)
	}
	v, ok := img.Array.At(0, 0, 0)
	if !ok || v != 9 {
		t.Fatalf("got (%v,%v), want (9,true)", v, ok)
	}
}
