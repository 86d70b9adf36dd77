// Package link is the Query Link (C6): a background goroutine owning one
// reader handle onto the archive, serving queries strictly in the order
// they were submitted while letting the UI thread poll for a result
// without ever blocking on the database.
package link

import (
	"sync/atomic"

	"github.com/Napageneral/postsack/internal/field"
	"github.com/Napageneral/postsack/internal/logging"
	"github.com/Napageneral/postsack/internal/metrics"
	"github.com/Napageneral/postsack/internal/store"
)

var log = logging.Default().Component("link")

// Response is one completed query's outcome. Action is whatever tag the
// caller attached to the originating Request, letting a caller that
// issues several distinct kinds of query (as the Analytics Engine does)
// tell them apart once the answer comes back.
type Response[Action any] struct {
	Query   field.Query
	Action  Action
	Results []field.QueryResult
	Err     error
}

type pendingRequest[Action any] struct {
	query  field.Query
	action Action
}

// Link owns a single reader *store.Store and a single goroutine serving
// queries off a buffered channel, which gives FIFO ordering for free: a
// query is never started out of submission order, and its Response lands
// on the output channel only once the query before it has been answered.
//
// Grounded on original_source/ps-core/src/model/link.rs: an atomic
// in-flight counter backs IsProcessing so a poller can distinguish "no
// answer yet because still running" from "nothing was ever asked", and
// the Action type parameter mirrors the original's Link<Action>.
type Link[Action any] struct {
	store    *store.Store
	reqCh    chan pendingRequest[Action]
	respCh   chan Response[Action]
	closeCh  chan struct{}
	inFlight int32
}

// New starts a Link's serving goroutine against s.
func New[Action any](s *store.Store) *Link[Action] {
	l := &Link[Action]{
		store:   s,
		reqCh:   make(chan pendingRequest[Action], 256),
		respCh:  make(chan Response[Action], 256),
		closeCh: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Link[Action]) run() {
	for {
		select {
		case req, ok := <-l.reqCh:
			if !ok {
				return
			}
			results, err := l.store.Query(req.query)
			metrics.RecordQuery(req.query.Kind.String())
			if err != nil {
				log.Error().Err(err).Msg("query failed")
			}
			l.respCh <- Response[Action]{Query: req.query, Action: req.action, Results: results, Err: err}
		case <-l.closeCh:
			return
		}
	}
}

// Request enqueues q, tagged with action, for processing. It never blocks
// the caller on the database itself, only on the request channel filling
// up, which in practice means a caller that submits faster than the store
// can answer.
func (l *Link[Action]) Request(q field.Query, action Action) {
	atomic.AddInt32(&l.inFlight, 1)
	l.reqCh <- pendingRequest[Action]{query: q, action: action}
}

// Receive is a non-blocking try-receive: it returns the next completed
// Response if one is ready, or ok == false if the serving goroutine has
// not produced one yet. Callers are expected to poll this from a UI loop
// that must never stall waiting on the database.
//
// The in-flight counter is decremented here, on a successful dequeue, not
// in run() when the query finishes executing: IsProcessing must stay true
// until the caller has actually consumed the Response sitting in respCh,
// or a poller could observe "idle" while a completed answer is still
// waiting to be applied.
func (l *Link[Action]) Receive() (resp Response[Action], ok bool) {
	select {
	case resp = <-l.respCh:
		atomic.AddInt32(&l.inFlight, -1)
		return resp, true
	default:
		return Response[Action]{}, false
	}
}

// IsProcessing reports whether at least one Request has been submitted
// whose Response has not yet been dequeued by Receive.
func (l *Link[Action]) IsProcessing() bool {
	return atomic.LoadInt32(&l.inFlight) > 0
}

// Close stops the serving goroutine. Any Request already enqueued but not
// yet served is dropped; Postsack never cancels an in-flight query, so
// Close is only meant for shutdown, not for aborting work.
func (l *Link[Action]) Close() {
	close(l.closeCh)
}
