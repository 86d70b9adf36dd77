// Package importer is the Import Coordinator (C4): it owns an import
// run end to end, wiring a Format Reader (C1) through the Message Parser
// (C2) into the Storage Engine's writer (C3), fanning parse work out over
// a bounded worker pool and narrating progress on the channel the
// Progress Adapter (C5) consumes.
package importer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Napageneral/postsack/internal/bus"
	"github.com/Napageneral/postsack/internal/config"
	"github.com/Napageneral/postsack/internal/email"
	"github.com/Napageneral/postsack/internal/format"
	"github.com/Napageneral/postsack/internal/logging"
	"github.com/Napageneral/postsack/internal/metrics"
	"github.com/Napageneral/postsack/internal/progress"
	"github.com/Napageneral/postsack/internal/store"
)

var log = logging.Default().Component("importer")

// DefaultWorkers is the parse-stage parallelism used when a caller does
// not override it: the number of CPUs the Go runtime may use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// Run drives one import: enumerate cfg's folder under cfg.Format,
// parse each message concurrently (bounded by workers), and hand rows to
// s's writer. It returns immediately with a progress channel the caller
// should drain (typically via progress.Adapter.Run on its own goroutine)
// and a result channel that receives exactly one store.ImportResult.
//
// Grounded on original_source/ps-importer/src/importer.rs: after
// enumeration, parsing runs on a worker pool feeding a single writer. On
// macOS a permission-denied archive root is surfaced as its own
// MissingPermissions progress kind rather than a generic Error event; the
// import result still carries the error.
func Run(ctx context.Context, s *store.Store, cfg config.Config, workers int) (<-chan progress.Message, <-chan store.ImportResult) {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	events := make(chan progress.Message, 256)
	results := make(chan store.ImportResult, 1)

	go func() {
		defer close(events)
		reader, err := format.ForFormat(cfg.Format)
		if err != nil {
			events <- progress.Message{Kind: progress.Error, Error: err}
			results <- store.ImportResult{Err: err}
			close(results)
			return
		}
		result := run(ctx, s, cfg, workers, reader, events)
		results <- result
		close(results)
	}()

	return events, results
}

// RunWithReader is Run with the Format Reader supplied directly instead
// of resolved from cfg.Format, so callers (tests included) can exercise
// the coordinator against a Reader that does not touch the filesystem.
func RunWithReader(ctx context.Context, s *store.Store, cfg config.Config, workers int, reader format.Reader) (<-chan progress.Message, <-chan store.ImportResult) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	events := make(chan progress.Message, 256)
	results := make(chan store.ImportResult, 1)
	go func() {
		defer close(events)
		result := run(ctx, s, cfg, workers, reader, events)
		results <- result
		close(results)
	}()
	return events, results
}

func run(ctx context.Context, s *store.Store, cfg config.Config, workers int, reader format.Reader, events chan<- progress.Message) store.ImportResult {
	started := time.Now()
	log.Info().Str("folder", cfg.EmailsFolderPath).Str("format", cfg.Format.String()).Int("workers", workers).Msg("import started")
	_ = bus.Emit(s.DB(), "import_started", "", "", map[string]any{
		"emails_folder_path": cfg.EmailsFolderPath,
		"format":             cfg.Format.String(),
	})

	root := cfg.EmailsFolderPath
	if root == "" {
		if def, ok := reader.DefaultPath(); ok {
			root = def
		}
	}

	senders := email.NewSenderSet(cfg.SenderEmails)

	if err := s.SaveConfig(cfg); err != nil {
		err = fmt.Errorf("save config: %w", err)
		events <- progress.Message{Kind: progress.Error, Error: err}
		return store.ImportResult{Err: err}
	}

	emails, err := reader.Enumerate(ctx, root, events)
	if err != nil {
		var missingPerms *format.MissingPermissionsError
		if errors.As(err, &missingPerms) && runtime.GOOS == "darwin" {
			events <- progress.Message{Kind: progress.MissingPermissions}
		} else {
			events <- progress.Message{Kind: progress.Error, Error: err}
		}
		_ = bus.Emit(s.DB(), "import_failed", "", "", map[string]any{"error": err.Error()})
		return store.ImportResult{Err: err}
	}

	// Enumerate streams messages lazily, so the total write count is only
	// known once every message has arrived; buffer them here to surface
	// WriteTotal before the parse fan-out begins.
	items := make([]format.ParseableEmail, 0, 256)
	for item := range emails {
		items = append(items, item)
	}
	events <- progress.Message{Kind: progress.WriteTotal, N: len(items)}

	writerIn, writerOut := s.Import(ctx, cfg)

	group, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(workers))

	for _, item := range items {
		item := item
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		group.Go(func() error {
			defer sem.Release(1)
			row, perr := parseOne(item, senders)
			if perr != nil {
				if events != nil {
					events <- progress.Message{Kind: progress.Error, Error: perr}
				}
				select {
				case writerIn <- store.DBMessage{Kind: store.DBParseError, Err: perr, Path: item.Path()}:
				case <-gctx.Done():
					return gctx.Err()
				}
				if events != nil {
					events <- progress.Message{Kind: progress.WriteOne}
				}
				return nil
			}
			select {
			case writerIn <- store.DBMessage{Kind: store.DBMail, Row: row}:
			case <-gctx.Done():
				return gctx.Err()
			}
			if events != nil {
				events <- progress.Message{Kind: progress.WriteOne}
			}
			return nil
		})
	}

	groupErr := group.Wait()

	events <- progress.Message{Kind: progress.FinishingUp}
	writerIn <- store.DBMessage{Kind: store.DBDone}
	close(writerIn)

	result := <-writerOut
	if groupErr != nil && result.Err == nil {
		result.Err = groupErr
	}

	metrics.RecordImport(result.Inserted, result.Errors, time.Since(started).Seconds())

	if result.Err != nil {
		log.Error().Err(result.Err).Msg("import failed")
		events <- progress.Message{Kind: progress.Error, Error: result.Err}
		_ = bus.Emit(s.DB(), "import_failed", "", "", map[string]any{"error": result.Err.Error()})
	} else {
		log.Info().Int("inserted", result.Inserted).Int("errors", result.Errors).Msg("import finished")
		events <- progress.Message{Kind: progress.Done}
		_ = bus.Emit(s.DB(), "import_finished", "", "", map[string]any{
			"inserted": result.Inserted,
			"errors":   result.Errors,
		})
	}
	return result
}

// parseOne prepares item and parses its bytes, wrapping any failure in a
// path-carrying error suitable for the errors table.
func parseOne(item format.ParseableEmail, senders email.SenderSet) (email.Row, error) {
	if err := item.Prepare(); err != nil {
		return email.Row{}, fmt.Errorf("prepare %s: %w", item.Path(), err)
	}
	raw, err := item.Bytes()
	if err != nil {
		return email.Row{}, fmt.Errorf("read %s: %w", item.Path(), err)
	}
	meta, err := item.Meta()
	if err != nil {
		return email.Row{}, fmt.Errorf("meta %s: %w", item.Path(), err)
	}
	return email.Parse(raw, item.Path(), meta, senders)
}
