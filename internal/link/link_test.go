package link

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Napageneral/postsack/internal/config"
	"github.com/Napageneral/postsack/internal/email"
	"github.com/Napageneral/postsack/internal/field"
	"github.com/Napageneral/postsack/internal/store"
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
		{Path: "a", SenderDomain: "gmail.com", SenderLocalPart: "alice", Year: 2020, Month: 1, Day: 1, Timestamp: 1},
		{Path: "b", SenderDomain: "yahoo.com", SenderLocalPart: "bob", Year: 2021, Month: 1, Day: 1, Timestamp: 2},
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

type testAction int

const (
	actionA testAction = iota
	actionB
	actionC
)

func TestRequestReceiveRoundTrip(t *testing.T) {
	s := openSeeded(t)
	l := New[testAction](s)
	defer l.Close()

	if l.IsProcessing() {
		t.Fatalf("IsProcessing should be false before any Request")
	}

	q := field.NewGrouped(nil, field.SenderDomain)
	l.Request(q, actionA)

	var resp Response[testAction]
	var ok bool
	deadline := time.After(time.Second)
	for !ok {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for response")
		default:
		}
		resp, ok = l.Receive()
	}

	if resp.Err != nil {
		t.Fatalf("query error: %v", resp.Err)
	}
	if resp.Action != actionA {
		t.Fatalf("action = %v, want %v", resp.Action, actionA)
	}
	sum := 0
	for _, r := range resp.Results {
		sum += r.Count
	}
	if sum != 2 {
		t.Fatalf("sum = %d, want 2", sum)
	}

	if l.IsProcessing() {
		t.Fatalf("IsProcessing should be false once the response was received")
	}
}

// TestIsProcessingStaysTrueUntilReceiveDequeues guards against decrementing
// the in-flight counter when the worker goroutine finishes a query instead
// of when the caller actually drains it off respCh: a poller must never see
// IsProcessing go false while a completed Response is still sitting unread.
func TestIsProcessingStaysTrueUntilReceiveDequeues(t *testing.T) {
	s := openSeeded(t)
	l := New[testAction](s)
	defer l.Close()

	l.Request(field.NewGrouped(nil, field.SenderDomain), actionA)

	deadline := time.After(time.Second)
	for len(l.respCh) == 0 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for the worker to finish the query")
		default:
		}
	}

	if !l.IsProcessing() {
		t.Fatalf("IsProcessing should still be true: a Response is queued but not yet Received")
	}

	if _, ok := l.Receive(); !ok {
		t.Fatalf("expected a Response to be ready")
	}
	if l.IsProcessing() {
		t.Fatalf("IsProcessing should be false once the Response was dequeued")
	}
}

func TestReceiveNonBlockingWhenEmpty(t *testing.T) {
	s := openSeeded(t)
	l := New[testAction](s)
	defer l.Close()

	_, ok := l.Receive()
	if ok {
		t.Fatalf("Receive should report nothing ready on an idle link")
	}
}

func TestRequestsServedInOrder(t *testing.T) {
	s := openSeeded(t)
	l := New[testAction](s)
	defer l.Close()

	type submission struct {
		query  field.Query
		action testAction
	}
	submissions := []submission{
		{field.NewOtherAll(field.SenderDomain), actionA},
		{field.NewGrouped(nil, field.SenderDomain), actionB},
		{field.NewNormal([]field.Field{field.Path}, nil, field.Range{Start: 0, End: 10}), actionC},
	}
	for _, s := range submissions {
		l.Request(s.query, s.action)
	}

	for i, want := range submissions {
		var resp Response[testAction]
		var ok bool
		deadline := time.After(time.Second)
		for !ok {
			select {
			case <-deadline:
				t.Fatalf("timed out waiting for response %d", i)
			default:
			}
			resp, ok = l.Receive()
		}
		if resp.Action != want.action {
			t.Fatalf("response %d action = %v, want %v (FIFO order violated)", i, resp.Action, want.action)
		}
	}
}
