package engine

import "github.com/Napageneral/postsack/internal/treemap"

// Range is a view onto a Segmentation's items: Items surfaces the last
// End of them; Start only matters for validating a proposed range, since
// SegmentsRange always reports the visible range's lower bound as 0 —
// see DESIGN.md's Open Question Decisions.
type Range struct {
	Start int
	End   int
}

// Segmentation is one aggregated view: the Segments it was built from,
// which one (if any) the user has drilled into, and an optional visible
// Range limiting how many of the Segments (kept in the order the Grouped
// query returned them) are surfaced to the UI.
//
// Grounded on original_source/src/model/types/segmentation.rs.
type Segmentation struct {
	items    []*Segment
	Selected *Segment
	visible  *Range
}

func newSegmentation(items []*Segment) *Segmentation {
	return &Segmentation{items: items}
}

// Len returns the total number of Segments, ignoring any visible Range.
func (s *Segmentation) Len() int { return len(s.items) }

// ElementCount sums every Segment's Count, i.e. the total number of
// emails this Segmentation was built from.
func (s *Segmentation) ElementCount() int {
	total := 0
	for _, it := range s.items {
		total += it.Count
	}
	return total
}

// LayoutedSegments lays the visible Segments (Items()) out to fit within
// bounds via the squarified Treemap Layout, then returns that same slice
// with each Segment's Rect populated. Only the visible slice is laid out,
// not the full (possibly range-narrowed) item set, matching
// original_source/src/cluster_engine/types.rs's layout-over-visible-items
// behavior.
func (s *Segmentation) LayoutedSegments(bounds treemap.Rect) []*Segment {
	visible := s.Items()
	mappables := make([]treemap.Mappable, len(visible))
	for i, it := range visible {
		mappables[i] = it
	}
	treemap.NewLayout().LayoutItems(mappables, bounds)
	return visible
}

// Items returns the Segments currently visible: all of them if no Range
// has been set, or the last Range.End items otherwise.
//
// The slicing here intentionally mirrors
// original_source/src/model/types/segmentation.rs's `items()`: a visible
// Range narrows down to the *last* End items of the full slice, in query
// order, not the first. This reads as surprising but is replicated
// deliberately; see DESIGN.md.
func (s *Segmentation) Items() []*Segment {
	if s.visible == nil {
		return s.items
	}
	length := len(s.items)
	start := length - s.visible.End
	if start < 0 {
		start = 0
	}
	return s.items[start:length]
}

// SegmentsRange returns the full range a UI slider should offer ([0,
// Len()]) and the currently visible count: Len() if no Range has been
// set, or the stored Range's End otherwise.
//
// The first return value is always anchored at 0 regardless of the
// stored Range's Start — replicated from segments_range() in
// original_source/src/model/segmentations.rs, see DESIGN.md.
func (s *Segmentation) SegmentsRange() (full Range, visible int) {
	length := s.Len()
	if s.visible != nil {
		return Range{Start: 0, End: length}, s.visible.End
	}
	return Range{Start: 0, End: length}, length
}

// SetSegmentsRange sets the visible Range, or clears it if r is nil. A
// proposed Range is only applied if it is strictly inside [0, Len()); an
// out-of-bounds Range is silently ignored rather than clamped, matching
// set_segments_range's validation.
func (s *Segmentation) SetSegmentsRange(r *Range) {
	if r == nil {
		s.visible = nil
		return
	}
	length := s.Len()
	if length > r.Start && r.End < length {
		visible := *r
		s.visible = &visible
	}
}
