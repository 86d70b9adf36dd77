// Package engine is the Analytics Engine (C7): it owns the stack of
// Segmentations the UI drills through, compiles the queries that
// recompute them, and applies the Query Link's (C6) asynchronous
// responses back onto that stack without ever blocking its caller.
//
// Grounded on original_source/src/model/engine.rs and
// original_source/ps-core/src/model/segmentations.rs and items.rs.
package engine

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Napageneral/postsack/internal/field"
	"github.com/Napageneral/postsack/internal/link"
	"github.com/Napageneral/postsack/internal/store"
	"github.com/Napageneral/postsack/internal/treemap"
)

// itemCacheSize matches original_source/src/model/engine.rs's
// `LruCache::new(10000)`.
const itemCacheSize = 10000

// maxGroupByDepth is the number of entries defaultGroupByStack can
// produce; pushing past it is an error rather than a panic.
const maxGroupByDepth = 5

var (
	errInvalidResultKind  = errors.New("engine: query returned an unexpected result kind")
	errInvalidSegState    = errors.New("engine: invalid segmentation state")
	errGroupByStackDepth  = errors.New("engine: no default aggregation field beyond this depth")
	errQueryResponseMatch = errors.New("engine: invalid query/response combination")
)

// action tags a pending Request so Process can tell responses apart once
// they come back off the Link; it is the Go analogue of
// original_source/src/model/engine.rs's `Action` enum.
type action int

const (
	actionPushSegmentation action = iota
	actionRecalculateSegmentation
	actionLoadItems
	actionAllTags
)

// loadingState is the cached state of one row index: either still being
// fetched, or loaded with its materialized fields.
type loadingState struct {
	loaded bool
	row    map[field.Field]field.ValueField
}

// Aggregation describes one level of the group-by stack: which Field it
// aggregates by, the value selected at that level (if the user has
// drilled into a Segment there), and its index in the stack.
type Aggregation struct {
	Value *field.ValueField
	Field field.Field
	Index int
}

// Engine is the entry point to the data that should be displayed in
// Segmentations. It is not safe for concurrent use from multiple
// goroutines: like the UI event loop it was modeled on, it expects a
// single owner that calls Process on every tick.
type Engine struct {
	link          *link.Link[action]
	searchStack   []field.ValueField
	groupByStack  []field.Field
	segmentations []*Segmentation
	filters       []field.Filter
	itemCache     *lru.Cache[int, loadingState]
	knownTags     []string
}

// New creates an Engine bound to s. Call Start to kick off the initial
// Segmentation query.
func New(s *store.Store) (*Engine, error) {
	cache, err := lru.New[int, loadingState](itemCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create item cache: %w", err)
	}
	first, _ := defaultGroupByStack(0)
	return &Engine{
		link:         link.New[action](s),
		groupByStack: []field.Field{first},
		itemCache:    cache,
	}, nil
}

// Close stops the Engine's underlying Link.
func (e *Engine) Close() { e.link.Close() }

// Start issues the initial Segmentation query plus a query enumerating
// every known meta_tags value, matching
// original_source/src/model/engine.rs's Engine::start.
func (e *Engine) Start() error {
	q, err := e.makeSegmentationQuery()
	if err != nil {
		return err
	}
	e.link.Request(q, actionPushSegmentation)
	e.link.Request(field.NewOtherAll(field.MetaTags), actionAllTags)
	return nil
}

// FormatHasTags reports whether the archive carries any meta tags at
// all, the same "known_tags non-empty" heuristic the original uses.
func (e *Engine) FormatHasTags() bool { return len(e.knownTags) > 0 }

// FormatHasSeen uses the same heuristic as FormatHasTags: the original
// implementation has no independent signal for is_seen support and
// assumes one implies the other.
func (e *Engine) FormatHasSeen() bool { return len(e.knownTags) > 0 }

// KnownTags returns every distinct meta tag observed across the archive.
func (e *Engine) KnownTags() []string { return e.knownTags }

// Segmentations returns the current drill-down stack, outermost first.
func (e *Engine) Segmentations() []*Segmentation { return e.segmentations }

// Push drills into segment: it becomes the current Segmentation's
// selection, a new aggregation level is appended to the group-by stack,
// and a query for the next Segmentation is submitted.
func (e *Engine) Push(segment *Segment) error {
	if len(e.segmentations) == 0 {
		return nil
	}
	current := e.segmentations[len(e.segmentations)-1]
	current.Selected = segment

	e.searchStack = e.searchStack[:0]
	for _, seg := range e.segmentations {
		if seg.Selected != nil {
			e.searchStack = append(e.searchStack, seg.Selected.Value)
		}
	}

	next, ok := defaultGroupByStack(len(e.groupByStack))
	if !ok {
		return errGroupByStackDepth
	}
	e.groupByStack = append(e.groupByStack, next)
	e.itemCache.Purge()

	q, err := e.makeSegmentationQuery()
	if err != nil {
		return err
	}
	e.link.Request(q, actionPushSegmentation)
	return nil
}

// Pop undoes the most recent Push, discarding its aggregation level,
// Segmentation, and search-stack entry.
func (e *Engine) Pop() {
	if len(e.groupByStack) == 0 || len(e.segmentations) == 0 || len(e.searchStack) == 0 {
		return
	}
	e.groupByStack = e.groupByStack[:len(e.groupByStack)-1]
	e.segmentations = e.segmentations[:len(e.segmentations)-1]
	e.searchStack = e.searchStack[:len(e.searchStack)-1]
	if len(e.segmentations) > 0 {
		e.segmentations[len(e.segmentations)-1].Selected = nil
	}
	e.itemCache.Purge()
}

// SetAggregation changes the Field the Segmentation at agg.Index
// aggregates by, then recalculates it.
func (e *Engine) SetAggregation(agg Aggregation, f field.Field) error {
	if agg.Index < 0 || agg.Index >= len(e.groupByStack) {
		return errInvalidSegState
	}
	e.groupByStack[agg.Index] = f
	e.itemCache.Purge()
	q, err := e.makeSegmentationQuery()
	if err != nil {
		return err
	}
	e.link.Request(q, actionRecalculateSegmentation)
	return nil
}

// SetFilters replaces the engine's additional filters (evaluated
// alongside the drill-down search stack) and recalculates the current
// Segmentation.
func (e *Engine) SetFilters(filters []field.Filter) error {
	e.filters = append([]field.Filter(nil), filters...)
	e.itemCache.Purge()
	q, err := e.makeSegmentationQuery()
	if err != nil {
		return err
	}
	e.link.Request(q, actionRecalculateSegmentation)
	return nil
}

// AggregationFields returns the Fields still available to aggregate by
// at agg's level: every Field except ones already used elsewhere in the
// group-by stack (agg's own current Field is always included).
func (e *Engine) AggregationFields(agg Aggregation) []field.Field {
	var out []field.Field
	for _, f := range field.AllCases() {
		if f == agg.Field {
			out = append(out, f)
			continue
		}
		used := false
		for _, g := range e.groupByStack {
			if g == f {
				used = true
				break
			}
		}
		if !used {
			out = append(out, f)
		}
	}
	return out
}

// AggregatedBy returns one Aggregation per level of the current group-by
// stack, each carrying the Field it aggregates by and, for every level
// whose Segmentation has a selection, the value selected at that level.
func (e *Engine) AggregatedBy() []Aggregation {
	out := make([]Aggregation, 0, len(e.groupByStack))
	total := len(e.groupByStack)
	for i, f := range e.groupByStack {
		var value *field.ValueField
		if total == len(e.groupByStack) && i < len(e.segmentations) && e.segmentations[i].Selected != nil {
			v := e.segmentations[i].Selected.Value
			value = &v
		}
		out = append(out, Aggregation{Value: value, Field: f, Index: i})
	}
	return out
}

// Items returns one entry per row index in [rng.Start, rng.End), in a
// newly allocated slice. A nil entry means that row is
// still being fetched from the store; Process will fill it in on a later
// tick once the Link answers.
func (e *Engine) Items(rng Range) ([]map[field.Field]field.ValueField, error) {
	rows := make([]map[field.Field]field.ValueField, 0, rng.End-rng.Start)
	missing := false
	for i := rng.Start; i < rng.End; i++ {
		if entry, ok := e.itemCache.Get(i); ok {
			if entry.loaded {
				rows = append(rows, entry.row)
			} else {
				rows = append(rows, nil)
			}
			continue
		}
		missing = true
		e.itemCache.Add(i, loadingState{loaded: false})
		rows = append(rows, nil)
	}
	if missing && rng.End > rng.Start {
		e.link.Request(e.makeItemsQuery(rng), actionLoadItems)
	}
	return rows, nil
}

// LayoutedSegments lays out the current (innermost) Segmentation's visible
// Segments within bounds and returns them, ready for the UI to paint.
func (e *Engine) LayoutedSegments(bounds treemap.Rect) []*Segment {
	if len(e.segmentations) == 0 {
		return nil
	}
	return e.segmentations[len(e.segmentations)-1].LayoutedSegments(bounds)
}

// ItemCount is the total number of emails in the current Segmentation.
func (e *Engine) ItemCount() int {
	if len(e.segmentations) == 0 {
		return 0
	}
	return e.segmentations[len(e.segmentations)-1].ElementCount()
}

// Process drains at most one Response from the Link and applies it to
// the Engine's state. It never blocks: call it on every UI tick and use
// IsBusy to decide whether another repaint is needed.
func (e *Engine) Process() error {
	resp, ok := e.link.Receive()
	if !ok {
		return nil
	}
	if resp.Err != nil {
		return resp.Err
	}

	switch resp.Action {
	case actionPushSegmentation:
		seg, err := segmentationFromResults(resp.Results)
		if err != nil {
			return err
		}
		e.segmentations = append(e.segmentations, seg)
		e.itemCache.Purge()
	case actionRecalculateSegmentation:
		seg, err := segmentationFromResults(resp.Results)
		if err != nil {
			return err
		}
		if len(e.segmentations) == 0 {
			return errInvalidSegState
		}
		e.segmentations[len(e.segmentations)-1] = seg
		e.itemCache.Purge()
	case actionLoadItems:
		if resp.Query.Kind != field.QueryNormal {
			return errQueryResponseMatch
		}
		start := resp.Query.Range.Start
		for i, r := range resp.Results {
			if r.Kind != field.ResultNormal {
				return errInvalidResultKind
			}
			e.itemCache.Add(start+i, loadingState{loaded: true, row: r.Row})
		}
	case actionAllTags:
		tags := make([]string, 0, len(resp.Results))
		seen := make(map[string]bool)
		for _, r := range resp.Results {
			if r.Kind != field.ResultOther {
				return errInvalidResultKind
			}
			for _, tag := range r.Other.Value().StringArray {
				if tag != "" && !seen[tag] {
					seen[tag] = true
					tags = append(tags, tag)
				}
			}
		}
		e.knownTags = tags
	default:
		return errQueryResponseMatch
	}
	return nil
}

// IsBusy reports whether Process still has work to apply, or no
// Segmentation has arrived yet.
func (e *Engine) IsBusy() bool {
	return e.link.IsProcessing() || len(e.segmentations) == 0
}

// Wait blocks, repeatedly calling Process, until the Link has no
// outstanding request. Intended for CLI and test usage, never for a UI
// event loop.
func (e *Engine) Wait() error {
	for {
		if err := e.Process(); err != nil {
			return err
		}
		if !e.link.IsProcessing() {
			return nil
		}
	}
}

func segmentationFromResults(results []field.QueryResult) (*Segmentation, error) {
	items := make([]*Segment, 0, len(results))
	for _, r := range results {
		seg, err := segmentFromResult(r)
		if err != nil {
			return nil, err
		}
		items = append(items, seg)
	}
	return newSegmentation(items), nil
}

func (e *Engine) makeSegmentationQuery() (field.Query, error) {
	if len(e.groupByStack) == 0 {
		return field.Query{}, errInvalidSegState
	}
	filters := make([]field.Filter, 0, len(e.searchStack)+len(e.filters))
	for _, v := range e.searchStack {
		filters = append(filters, field.Like(v))
	}
	filters = append(filters, e.filters...)
	last := e.groupByStack[len(e.groupByStack)-1]
	return field.NewGrouped(filters, last), nil
}

// itemFields are the columns Items requests for each visible row,
// matching original_source/ps-core/src/model/items.rs's make_query.
var itemFields = []field.Field{
	field.SenderDomain,
	field.SenderLocalPart,
	field.Subject,
	field.Path,
	field.Timestamp,
}

func (e *Engine) makeItemsQuery(rng Range) field.Query {
	filters := make([]field.Filter, 0, len(e.searchStack))
	for _, v := range e.searchStack {
		filters = append(filters, field.Like(v))
	}
	return field.NewNormal(itemFields, filters, field.Range{Start: rng.Start, End: rng.End})
}

// defaultGroupByStack returns the default aggregation field for each
// Segmentation stack level: Year, SenderDomain, SenderLocalPart, Month,
// Day. Pushing past maxGroupByDepth has no default and returns false.
func defaultGroupByStack(index int) (field.Field, bool) {
	switch index {
	case 0:
		return field.Year, true
	case 1:
		return field.SenderDomain, true
	case 2:
		return field.SenderLocalPart, true
	case 3:
		return field.Month, true
	case 4:
		return field.Day, true
	default:
		return 0, false
	}
}
