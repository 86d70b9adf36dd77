// Package treemap is the Treemap Layout component (C8): a squarified
// treemap layout, after Bruls, Huizing and van Wijk's "Squarified
// Treemaps" algorithm. No library in the example corpus offers this
// (it is a narrow geometry routine, not a transport/storage/config
// concern), so it is implemented directly against the standard library —
// see DESIGN.md.
package treemap

import "sort"

// Rect is an axis-aligned rectangle in layout space.
type Rect struct {
	X, Y, W, H float64
}

// Area returns the rectangle's area.
func (r Rect) Area() float64 { return r.W * r.H }

// Mappable is anything that can be placed into a treemap: it reports a
// relative size and accepts the Rect the layout assigns it.
type Mappable interface {
	Size() float64
	SetBounds(Rect)
}

// Layout lays Mappable items out into bounds via the squarified
// algorithm: items are sorted largest-first, then placed row by row,
// each row sized to keep its items' aspect ratios as close to square as
// the remaining space allows.
type Layout struct{}

// NewLayout returns a Layout. It carries no state; the type exists so the
// call site reads like the library this was modeled on.
func NewLayout() Layout { return Layout{} }

// LayoutItems assigns a Rect to every item in items, covering bounds
// exactly. Items with zero or negative size receive a zero-area Rect at
// the layout cursor instead of being skipped, so index correspondence
// between items and their later lookups is preserved.
func (Layout) LayoutItems(items []Mappable, bounds Rect) {
	if len(items) == 0 || bounds.W <= 0 || bounds.H <= 0 {
		for _, it := range items {
			it.SetBounds(Rect{X: bounds.X, Y: bounds.Y})
		}
		return
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return items[order[a]].Size() > items[order[b]].Size()
	})

	total := 0.0
	for _, it := range items {
		if s := it.Size(); s > 0 {
			total += s
		}
	}
	if total <= 0 {
		for _, it := range items {
			it.SetBounds(Rect{X: bounds.X, Y: bounds.Y})
		}
		return
	}

	// Scale sizes so they sum to the bounds' area; the classic squarified
	// algorithm operates in area units, not raw counts.
	scale := bounds.Area() / total
	sizes := make([]float64, len(items))
	for i, idx := range order {
		sizes[i] = items[idx].Size() * scale
	}

	rects := squarify(sizes, bounds)
	for i, idx := range order {
		items[idx].SetBounds(rects[i])
	}
}

// squarify recursively lays out areas (already scaled to bounds' units)
// into bounds, returning one Rect per area in the same order.
func squarify(areas []float64, bounds Rect) []Rect {
	out := make([]Rect, len(areas))
	if len(areas) == 0 {
		return out
	}

	row := []int{0}
	rowWidth := shortestSide(bounds)
	for i := 1; i < len(areas); i++ {
		candidate := append(append([]int{}, row...), i)
		if worstRatio(areas, candidate, rowWidth) <= worstRatio(areas, row, rowWidth) {
			row = candidate
			continue
		}
		layoutRow(areas, row, bounds, out)
		bounds = remainder(areas, row, bounds)
		rowWidth = shortestSide(bounds)
		row = []int{i}
	}
	layoutRow(areas, row, bounds, out)
	return out
}

func shortestSide(r Rect) float64 {
	if r.W < r.H {
		return r.W
	}
	return r.H
}

func rowArea(areas []float64, row []int) float64 {
	sum := 0.0
	for _, i := range row {
		sum += areas[i]
	}
	return sum
}

// worstRatio returns the worst (largest) width:height ratio any rect in
// row would have if laid out along a strip of the given width.
func worstRatio(areas []float64, row []int, width float64) float64 {
	if width <= 0 {
		return maxFloat
	}
	sum := rowArea(areas, row)
	if sum <= 0 {
		return maxFloat
	}
	worst := 0.0
	for _, i := range row {
		a := areas[i]
		sideA := (sum / width) // row thickness
		sideB := 0.0
		if sideA > 0 {
			sideB = a / sideA
		}
		ratio := ratioOf(sideA, sideB)
		if ratio > worst {
			worst = ratio
		}
	}
	return worst
}

func ratioOf(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return maxFloat
	}
	if a > b {
		return a / b
	}
	return b / a
}

const maxFloat = 1.7976931348623157e+308

// layoutRow places row's items into out, filling bounds' shorter side
// with a strip of thickness proportional to the row's total area.
func layoutRow(areas []float64, row []int, bounds Rect, out []Rect) {
	sum := rowArea(areas, row)
	if sum <= 0 {
		for _, i := range row {
			out[i] = Rect{X: bounds.X, Y: bounds.Y}
		}
		return
	}
	if bounds.W >= bounds.H {
		// Vertical strip on the left, row items stacked top to bottom.
		thickness := sum / bounds.H
		if thickness > bounds.W {
			thickness = bounds.W
		}
		y := bounds.Y
		for _, i := range row {
			h := 0.0
			if thickness > 0 {
				h = areas[i] / thickness
			}
			out[i] = Rect{X: bounds.X, Y: y, W: thickness, H: h}
			y += h
		}
	} else {
		// Horizontal strip on top, row items placed left to right.
		thickness := sum / bounds.W
		if thickness > bounds.H {
			thickness = bounds.H
		}
		x := bounds.X
		for _, i := range row {
			w := 0.0
			if thickness > 0 {
				w = areas[i] / thickness
			}
			out[i] = Rect{X: x, Y: bounds.Y, W: w, H: thickness}
			x += w
		}
	}
}

// remainder returns the bounds left over after row has consumed its
// strip, mirroring the geometry layoutRow used.
func remainder(areas []float64, row []int, bounds Rect) Rect {
	sum := rowArea(areas, row)
	if sum <= 0 {
		return bounds
	}
	if bounds.W >= bounds.H {
		thickness := sum / bounds.H
		if thickness > bounds.W {
			thickness = bounds.W
		}
		return Rect{X: bounds.X + thickness, Y: bounds.Y, W: bounds.W - thickness, H: bounds.H}
	}
	thickness := sum / bounds.W
	if thickness > bounds.H {
		thickness = bounds.H
	}
	return Rect{X: bounds.X, Y: bounds.Y + thickness, W: bounds.W, H: bounds.H - thickness}
}
