// Package store is the Storage Engine (C3): schema, query compilation,
// and row materialization against a SQLite-compatible file. One writer
// goroutine owns inserts during an import; any number of reader handles
// may be opened against the same file afterwards.
//
// Grounded on Napageneral-mnemonic/internal/db/db.go for the
// database/sql + modernc.org/sqlite wiring, and on
// original_source/ps-database/src/db.rs for the non-durable pragma choice
// and the retried close in Close (at most ten attempts). The import
// writer commits its transaction and leaves the connection open.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Napageneral/postsack/internal/email"
	"github.com/Napageneral/postsack/internal/field"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps a single *sql.DB connection to a Postsack archive file. The
// store is a rebuildable derived artifact (it can always be regenerated
// by re-running the import), so unlike a durable application database it
// opens with non-durable pragmas that favor import throughput:
// journal_mode=MEMORY and synchronous=OFF. This deliberately differs from
// the teacher's own WAL+NORMAL choice for its long-lived comms database —
// see DESIGN.md.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the archive file at path and applies
// schema + pragmas.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// A single writer connection avoids SQLITE_BUSY storms; reader
	// handles are separate *Store values over their own connection, one
	// per original_source's "clone reopens the file" semantics.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = MEMORY",
		"PRAGMA synchronous = OFF",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Reopen opens a fresh connection to the same file this Store points at.
// This is "clone" in the original source's terminology: it is a new
// connection, not a cheap handle copy, and callers should treat it
// accordingly (SPEC_FULL.md Design Notes).
func (s *Store) Reopen() (*Store, error) {
	return Open(s.path)
}

// Path returns the filesystem path backing this store.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying connection for callers that need to share it
// with a package that operates directly on *sql.DB, such as bus.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying connection, retrying on failure the way
// original_source/ps-database/src/db.rs's import() shutdown loop does:
// a busy SQLite connection may need a couple of attempts before it lets
// go of the file.
func (s *Store) Close() error {
	var err error
	for attempt := 0; attempt < 10; attempt++ {
		if err = s.db.Close(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("close store after retries: %w", err)
}

// TotalMails returns the number of rows in the emails table.
func (s *Store) TotalMails() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT count(*) FROM emails").Scan(&n); err != nil {
		return 0, fmt.Errorf("count emails: %w", err)
	}
	return n, nil
}

// Query compiles and executes q, materializing rows by Field kind.
func (s *Store) Query(q field.Query) ([]field.QueryResult, error) {
	sqlText, args := q.ToSQL()
	rows, err := s.db.Query(sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []field.QueryResult
	switch q.Kind {
	case field.QueryGrouped:
		for rows.Next() {
			var count int
			var raw any
			if err := rows.Scan(&count, &raw); err != nil {
				return nil, fmt.Errorf("scan grouped row: %w", err)
			}
			vf := scanValueField(q.GroupBy, raw)
			out = append(out, field.QueryResult{Kind: field.ResultGrouped, Count: count, Value: vf})
		}
	case field.QueryNormal:
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("columns: %w", err)
		}
		for rows.Next() {
			raw := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range raw {
				ptrs[i] = &raw[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return nil, fmt.Errorf("scan normal row: %w", err)
			}
			row := make(map[field.Field]field.ValueField, len(cols))
			for i, f := range q.Fields {
				row[f] = scanValueField(f, raw[i])
			}
			out = append(out, field.QueryResult{Kind: field.ResultNormal, Row: row})
		}
	case field.QueryOther:
		for rows.Next() {
			var raw any
			if err := rows.Scan(&raw); err != nil {
				return nil, fmt.Errorf("scan other row: %w", err)
			}
			out = append(out, field.QueryResult{Kind: field.ResultOther, Other: scanValueField(q.OtherField, raw)})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// scanValueField decodes a raw driver value according to f's declared
// Kind (SPEC_FULL.md §4.3 "row materialization").
func scanValueField(f field.Field, raw any) field.ValueField {
	switch field.KindOf(f) {
	case field.KindInt:
		return field.Int(f, toInt64(raw))
	case field.KindBool:
		return field.Bool(f, toInt64(raw) != 0)
	case field.KindStringArray:
		return field.StringArray(f, email.TagsFromString(toString(raw)))
	default:
		return field.String(f, toString(raw))
	}
}

func toInt64(raw any) int64 {
	switch v := raw.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case nil:
		return 0
	default:
		return 0
	}
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
