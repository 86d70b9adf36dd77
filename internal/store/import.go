package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Napageneral/postsack/internal/config"
	"github.com/Napageneral/postsack/internal/email"
	"github.com/Napageneral/postsack/internal/logging"
)

var log = logging.Default().Component("store")

// DBMessageKind distinguishes the three messages the import writer
// accepts.
type DBMessageKind int

const (
	DBMail DBMessageKind = iota
	DBParseError
	DBDone
)

// DBMessage is one item on the writer's input channel.
type DBMessage struct {
	Kind DBMessageKind
	Row  email.Row
	Err  error
	Path string
}

// ImportResult is the final tally the writer's result channel delivers.
type ImportResult struct {
	Inserted int
	Errors   int
	Err      error
}

// Import opens a transaction, prepares the email/error insert statements,
// and returns a channel the caller feeds DBMessages into plus a channel
// that receives exactly one ImportResult once a Done message has been
// processed and the transaction committed.
//
// Grounded on original_source/ps-database/src/db.rs's `import()`: a
// single writer goroutine owns the transaction for the whole run,
// counting successful inserts, and Napageneral-mnemonic/internal/importer
// /mbox.go's prepared-statement batch for the statement shapes themselves.
func (s *Store) Import(ctx context.Context, cfg config.Config) (chan<- DBMessage, <-chan ImportResult) {
	in := make(chan DBMessage, 256)
	out := make(chan ImportResult, 1)

	go func() {
		result := s.runWriter(ctx, cfg, in)
		out <- result
		close(out)
	}()

	return in, out
}

func (s *Store) runWriter(ctx context.Context, cfg config.Config, in <-chan DBMessage) ImportResult {
	if err := s.SaveConfig(cfg); err != nil {
		return ImportResult{Err: fmt.Errorf("save config: %w", err)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{Err: fmt.Errorf("begin import tx: %w", err)}
	}

	insEmail, err := tx.Prepare(insertEmailSQL)
	if err != nil {
		tx.Rollback()
		return ImportResult{Err: fmt.Errorf("prepare email insert: %w", err)}
	}
	insError, err := tx.Prepare(`INSERT INTO errors (message, path) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return ImportResult{Err: fmt.Errorf("prepare error insert: %w", err)}
	}

	var inserted, errCount int
	for msg := range in {
		switch msg.Kind {
		case DBMail:
			if _, err := execInsertEmail(insEmail, msg.Row); err != nil {
				tx.Rollback()
				return ImportResult{Err: fmt.Errorf("insert email: %w", err)}
			}
			inserted++
		case DBParseError:
			text := ""
			if msg.Err != nil {
				text = msg.Err.Error()
			}
			if _, err := insError.Exec(text, msg.Path); err != nil {
				tx.Rollback()
				return ImportResult{Err: fmt.Errorf("insert error: %w", err)}
			}
			errCount++
		case DBDone:
			if err := tx.Commit(); err != nil {
				return ImportResult{Err: fmt.Errorf("commit import: %w", err)}
			}
			log.Debug().Int("inserted", inserted).Int("errors", errCount).Msg("writer committed")
			return ImportResult{Inserted: inserted, Errors: errCount}
		}
	}

	// Channel closed without a Done message: commit what we have so a
	// caller that forgets Done does not lose an otherwise-successful run.
	if err := tx.Commit(); err != nil {
		return ImportResult{Inserted: inserted, Errors: errCount, Err: fmt.Errorf("commit import: %w", err)}
	}
	return ImportResult{Inserted: inserted, Errors: errCount}
}

const insertEmailSQL = `
	INSERT INTO emails (
		path, sender_domain, sender_local_part, sender_name,
		year, month, day, timestamp, subject,
		to_count, to_group, to_name, to_address,
		is_reply, is_send, meta_tags, meta_is_seen
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func execInsertEmail(stmt *sql.Stmt, r email.Row) (sql.Result, error) {
	return stmt.Exec(
		r.Path, r.SenderDomain, r.SenderLocalPart, r.SenderName,
		r.Year, r.Month, r.Day, r.Timestamp, r.Subject,
		r.ToCount, nullableString(r.ToGroup), nullableString(r.ToName), nullableString(r.ToAddress),
		r.IsReply, r.IsSend, nullableString(r.MetaTags), nullableBool(r.MetaIsSeen),
	)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

// SaveConfig persists cfg into the meta table, replacing any prior rows
// for the same keys (SPEC_FULL.md §3.1).
func (s *Store) SaveConfig(cfg config.Config) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin meta tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM meta WHERE key IN (
		'database_path','emails_folder_path','sender_emails','format','persistent')`); err != nil {
		return fmt.Errorf("clear meta: %w", err)
	}
	for _, kv := range cfg.Fields() {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, kv.Key, kv.Value); err != nil {
			return fmt.Errorf("insert meta %s: %w", kv.Key, err)
		}
	}
	return tx.Commit()
}

// LoadConfig reconstructs a Config from the meta table, e.g. after
// reopening an existing archive without a fresh import.
func (s *Store) LoadConfig() (config.Config, error) {
	rows, err := s.db.Query(`SELECT key, value FROM meta WHERE key IN (
		'database_path','emails_folder_path','sender_emails','format','persistent')`)
	if err != nil {
		return config.Config{}, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	var kvs []config.KeyValue
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return config.Config{}, fmt.Errorf("scan meta: %w", err)
		}
		kvs = append(kvs, config.KeyValue{Key: k, Value: v})
	}
	if err := rows.Err(); err != nil {
		return config.Config{}, fmt.Errorf("iterate meta: %w", err)
	}
	return config.FromFields(kvs)
}
