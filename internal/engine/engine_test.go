package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Napageneral/postsack/internal/config"
	"github.com/Napageneral/postsack/internal/email"
	"github.com/Napageneral/postsack/internal/field"
	"github.com/Napageneral/postsack/internal/store"
	"github.com/Napageneral/postsack/internal/treemap"
)

func openSeeded(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	in, out := s.Import(context.Background(), config.Config{Format: config.FormatMbox})
	rows := []email.Row{
		{Path: "a", SenderDomain: "gmail.com", SenderLocalPart: "alice", Year: 2020, Month: 1, Day: 1, Timestamp: 1, Subject: "hi"},
		{Path: "b", SenderDomain: "gmail.com", SenderLocalPart: "bob", Year: 2020, Month: 2, Day: 1, Timestamp: 2, Subject: "hey"},
		{Path: "c", SenderDomain: "yahoo.com", SenderLocalPart: "carol", Year: 2021, Month: 1, Day: 1, Timestamp: 3, Subject: "yo"},
	}
	for _, r := range rows {
		in <- store.DBMessage{Kind: store.DBMail, Row: r}
	}
	in <- store.DBMessage{Kind: store.DBDone}
	close(in)
	if res := <-out; res.Err != nil {
		t.Fatalf("seed import: %v", res.Err)
	}
	return s
}

func waitUntilIdle(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for e.IsBusy() {
		select {
		case <-deadline:
			t.Fatalf("engine never became idle")
		default:
		}
		if err := e.Process(); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
}

func newStarted(t *testing.T) *Engine {
	t.Helper()
	s := openSeeded(t)
	e, err := New(s)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitUntilIdle(t, e)
	return e
}

func TestStartProducesInitialSegmentation(t *testing.T) {
	e := newStarted(t)
	segs := e.Segmentations()
	if len(segs) != 1 {
		t.Fatalf("len(Segmentations()) = %d, want 1", len(segs))
	}
	if segs[0].ElementCount() != 3 {
		t.Fatalf("ElementCount = %d, want 3", segs[0].ElementCount())
	}
}

func TestPushDrillsDownAndPopReverses(t *testing.T) {
	e := newStarted(t)

	top := e.Segmentations()[0]
	var year2020 *Segment
	for _, seg := range top.Items() {
		if seg.Value.AsString() == "2020" {
			year2020 = seg
		}
	}
	if year2020 == nil {
		t.Fatalf("expected a 2020 segment in %+v", top.Items())
	}

	if err := e.Push(year2020); err != nil {
		t.Fatalf("Push: %v", err)
	}
	waitUntilIdle(t, e)

	if len(e.Segmentations()) != 2 {
		t.Fatalf("len(Segmentations()) after push = %d, want 2", len(e.Segmentations()))
	}
	drilled := e.Segmentations()[1]
	if drilled.ElementCount() != 2 {
		t.Fatalf("drilled ElementCount = %d, want 2 (only 2020 rows)", drilled.ElementCount())
	}

	e.Pop()
	if len(e.Segmentations()) != 1 {
		t.Fatalf("len(Segmentations()) after pop = %d, want 1", len(e.Segmentations()))
	}
	if e.Segmentations()[0].Selected != nil {
		t.Fatalf("expected selection cleared after pop")
	}
}

// TestSegmentsRangeLowerBoundAlwaysZero replicates
// original_source/src/model/segmentations.rs's segments_range: the full
// range it reports is always anchored at 0 regardless of what Start a
// caller previously set via SetSegmentsRange.
func TestSegmentsRangeLowerBoundAlwaysZero(t *testing.T) {
	e := newStarted(t)
	seg := e.Segmentations()[0]

	seg.SetSegmentsRange(&Range{Start: 1, End: 1})
	full, visible := seg.SegmentsRange()
	if full.Start != 0 {
		t.Fatalf("full.Start = %d, want 0 even though SetSegmentsRange used Start=1", full.Start)
	}
	if full.End != seg.Len() {
		t.Fatalf("full.End = %d, want %d", full.End, seg.Len())
	}
	if visible != 1 {
		t.Fatalf("visible = %d, want 1", visible)
	}
}

func TestSetSegmentsRangeRejectsOutOfBounds(t *testing.T) {
	e := newStarted(t)
	seg := e.Segmentations()[0]
	length := seg.Len()

	seg.SetSegmentsRange(&Range{Start: 0, End: length})
	if _, visible := seg.SegmentsRange(); visible != length {
		t.Fatalf("out-of-bounds range should have been rejected, visible = %d", visible)
	}
}

func TestItemsReturnsNilForUnloadedRowsThenFillsAfterProcess(t *testing.T) {
	e := newStarted(t)

	rows, err := e.Items(Range{Start: 0, End: 3})
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	allNil := true
	for _, r := range rows {
		if r != nil {
			allNil = false
		}
	}
	if !allNil {
		t.Fatalf("expected all rows nil before the load request is answered")
	}

	waitUntilIdle(t, e)

	rows, err = e.Items(Range{Start: 0, End: 3})
	if err != nil {
		t.Fatalf("Items (second call): %v", err)
	}
	for i, r := range rows {
		if r == nil {
			t.Fatalf("row %d still nil after Process drained the load response", i)
		}
	}
}

func TestAggregationFieldsExcludesUsedStackFields(t *testing.T) {
	e := newStarted(t)
	aggs := e.AggregatedBy()
	if len(aggs) != 1 || aggs[0].Field != field.Year {
		t.Fatalf("AggregatedBy() = %+v, want single Year aggregation", aggs)
	}
	fields := e.AggregationFields(aggs[0])
	found := false
	foundDomain := false
	for _, f := range fields {
		if f == field.Year {
			found = true
		}
		if f == field.SenderDomain {
			foundDomain = true
		}
	}
	if !found {
		t.Fatalf("current aggregation field Year should remain in the available list")
	}
	if !foundDomain {
		t.Fatalf("SenderDomain should not yet be excluded (not in group_by_stack)")
	}

	top := e.Segmentations()[0]
	if err := e.Push(top.Items()[0]); err != nil {
		t.Fatalf("Push: %v", err)
	}
	waitUntilIdle(t, e)
	for _, f := range e.AggregationFields(e.AggregatedBy()[0]) {
		if f == field.SenderDomain {
			t.Fatalf("SenderDomain is in group_by_stack after Push and should be excluded at level 0")
		}
	}
}

// TestPushPurgesItemCache is testable property #6: the item LRU must be
// empty immediately after a push, not merely once its response arrives.
func TestPushPurgesItemCache(t *testing.T) {
	e := newStarted(t)

	if _, err := e.Items(Range{Start: 0, End: 3}); err != nil {
		t.Fatalf("Items: %v", err)
	}
	if e.itemCache.Len() == 0 {
		t.Fatalf("expected the item cache to hold pending entries before push")
	}

	top := e.Segmentations()[0]
	if err := e.Push(top.Items()[0]); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if e.itemCache.Len() != 0 {
		t.Fatalf("item cache len = %d immediately after Push, want 0", e.itemCache.Len())
	}
	waitUntilIdle(t, e)
}

func TestLayoutedSegmentsLaysOutVisibleSlice(t *testing.T) {
	e := newStarted(t)
	seg := e.Segmentations()[0]
	seg.SetSegmentsRange(&Range{Start: 0, End: 1})

	bounds := treemap.Rect{X: 0, Y: 0, W: 300, H: 200}
	laidOut := e.LayoutedSegments(bounds)

	if len(laidOut) != 1 {
		t.Fatalf("len(LayoutedSegments()) = %d, want 1 (the visible slice)", len(laidOut))
	}
	total := 0.0
	for _, s := range laidOut {
		r := s.Rect()
		if r.W <= 0 || r.H <= 0 {
			t.Fatalf("segment rect not laid out: %+v", r)
		}
		total += r.Area()
	}
	if got, want := total, bounds.Area(); got < want-0.01 || got > want+0.01 {
		t.Fatalf("laid-out area sum = %v, want %v", got, want)
	}
}

func TestPushBeyondMaxDepthFailsCleanly(t *testing.T) {
	e := newStarted(t)
	for i := 0; i < maxGroupByDepth; i++ {
		segs := e.Segmentations()
		top := segs[len(segs)-1]
		items := top.Items()
		if len(items) == 0 {
			t.Fatalf("expected at least one segment to drill into at depth %d", i)
		}
		if err := e.Push(items[0]); err != nil {
			if i < maxGroupByDepth-1 {
				t.Fatalf("unexpected error at depth %d: %v", i, err)
			}
			return
		}
		waitUntilIdle(t, e)
	}
}
