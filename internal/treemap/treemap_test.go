package treemap

import "testing"

type fakeItem struct {
	size  float64
	rect  Rect
	setAt int
}

func (f *fakeItem) Size() float64     { return f.size }
func (f *fakeItem) SetBounds(r Rect) { f.rect = r }

func TestLayoutItemsCoversBoundsExactly(t *testing.T) {
	items := []Mappable{
		&fakeItem{size: 6},
		&fakeItem{size: 6},
		&fakeItem{size: 4},
		&fakeItem{size: 3},
		&fakeItem{size: 2},
		&fakeItem{size: 2},
	}
	bounds := Rect{X: 0, Y: 0, W: 600, H: 400}
	NewLayout().LayoutItems(items, bounds)

	total := 0.0
	for _, it := range items {
		r := it.(*fakeItem).rect
		if r.W < 0 || r.H < 0 {
			t.Fatalf("negative dimension in rect %+v", r)
		}
		total += r.Area()
	}
	want := bounds.Area()
	if diff := total - want; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("total area = %f, want %f", total, want)
	}
}

func TestLayoutItemsProportionalToSize(t *testing.T) {
	big := &fakeItem{size: 9}
	small := &fakeItem{size: 1}
	items := []Mappable{big, small}
	NewLayout().LayoutItems(items, Rect{X: 0, Y: 0, W: 100, H: 100})

	if big.rect.Area() <= small.rect.Area() {
		t.Fatalf("expected big item's area (%f) to exceed small's (%f)", big.rect.Area(), small.rect.Area())
	}
	ratio := big.rect.Area() / small.rect.Area()
	if ratio < 8 || ratio > 10 {
		t.Fatalf("area ratio = %f, want close to 9", ratio)
	}
}

func TestLayoutItemsEmptyBoundsZeroesRects(t *testing.T) {
	items := []Mappable{&fakeItem{size: 5}, &fakeItem{size: 3}}
	NewLayout().LayoutItems(items, Rect{})
	for _, it := range items {
		r := it.(*fakeItem).rect
		if r.Area() != 0 {
			t.Fatalf("expected zero-area rect for zero bounds, got %+v", r)
		}
	}
}

func TestLayoutItemsZeroSizeItemGetsZeroArea(t *testing.T) {
	zero := &fakeItem{size: 0}
	items := []Mappable{&fakeItem{size: 10}, zero}
	NewLayout().LayoutItems(items, Rect{X: 0, Y: 0, W: 50, H: 20})
	if zero.rect.Area() != 0 {
		t.Fatalf("zero-size item should get a zero-area rect, got %+v", zero.rect)
	}
}
