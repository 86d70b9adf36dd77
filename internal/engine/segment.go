package engine

import (
	"github.com/Napageneral/postsack/internal/field"
	"github.com/Napageneral/postsack/internal/treemap"
)

// Segment is one row of an aggregated Segmentation: a distinct value of
// the grouped field plus the count of emails sharing it, and the Rect the
// Treemap Layout assigned it the last time the Segmentation was laid out.
//
// Grounded on original_source/src/model/types/segment.rs.
type Segment struct {
	Value field.ValueField
	Count int
	rect  treemap.Rect
}

// Size implements treemap.Mappable.
func (s *Segment) Size() float64 { return float64(s.Count) }

// SetBounds implements treemap.Mappable.
func (s *Segment) SetBounds(r treemap.Rect) { s.rect = r }

// Rect returns the Segment's last-laid-out rectangle.
func (s *Segment) Rect() treemap.Rect { return s.rect }

func segmentFromResult(r field.QueryResult) (*Segment, error) {
	if r.Kind != field.ResultGrouped {
		return nil, errInvalidResultKind
	}
	return &Segment{Value: r.Value, Count: r.Count}, nil
}
