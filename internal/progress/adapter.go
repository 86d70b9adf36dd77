package progress

import "sync"

// Snapshot is the thread-safe state an Adapter exposes to a polling UI.
type Snapshot struct {
	TotalRead          int
	Read               int
	TotalWrite         int
	Write              int
	Finishing          bool
	Done               bool
	Err                error
	MissingPermissions bool
}

// Progress is a (count, total) pair for one phase (read or write).
type Progress struct {
	Total int
	Count int
}

// Adapter drains a Message channel on its own goroutine and maintains a
// Snapshot behind a single RWMutex, so the UI thread can poll it without
// ever blocking on the import pipeline.
//
// Grounded on original_source/ps-importer/src/message_adapter.rs: the
// same "total_read = max(total_read, read+1)" quirk is replicated so that
// read/total_read never exceeds 1 even when ReadOne arrives before the
// first ReadTotal.
type Adapter struct {
	mu   sync.RWMutex
	data Snapshot
}

// New creates an empty Adapter.
func New() *Adapter {
	return &Adapter{}
}

// Run drains ch until it is closed or a Done message arrives, applying
// each message to the snapshot under the adapter's write lock. It is
// intended to be run on its own goroutine.
func (a *Adapter) Run(ch <-chan Message) {
	for msg := range ch {
		a.apply(msg)
		if msg.Kind == Done {
			return
		}
	}
}

func (a *Adapter) apply(msg Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch msg.Kind {
	case ReadTotal:
		a.data.TotalRead = msg.N
	case ReadOne:
		a.data.Read++
		if a.data.TotalRead <= a.data.Read {
			a.data.TotalRead = a.data.Read + 1
		}
	case WriteTotal:
		a.data.TotalWrite = msg.N
	case WriteOne:
		a.data.Write++
	case FinishingUp:
		a.data.Finishing = true
	case Done:
		a.data.Done = true
	case Error:
		a.data.Err = msg.Error
	case MissingPermissions:
		a.data.MissingPermissions = true
	}
}

// ReadCount returns the current read-phase progress.
func (a *Adapter) ReadCount() Progress {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Progress{Total: a.data.TotalRead, Count: a.data.Read}
}

// WriteCount returns the current write-phase progress.
func (a *Adapter) WriteCount() Progress {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Progress{Total: a.data.TotalWrite, Count: a.data.Write}
}

// State mirrors the finishing/done/written/missing-permissions portion of
// the snapshot.
type State struct {
	Finishing          bool
	Done               bool
	Written            int
	MissingPermissions bool
}

// Finished returns the current completion state.
func (a *Adapter) Finished() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return State{
		Finishing:          a.data.Finishing,
		Done:               a.data.Done,
		Written:            a.data.Write,
		MissingPermissions: a.data.MissingPermissions,
	}
}

// TakeError returns and clears the most recently recorded error, if any;
// each Error message replaces the one recorded before it.
func (a *Adapter) TakeError() error {
	a.mu.RLock()
	has := a.data.Err != nil
	a.mu.RUnlock()
	if !has {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.data.Err
	a.data.Err = nil
	return err
}
