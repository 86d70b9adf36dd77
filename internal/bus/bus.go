// Package bus is a small append-only event log recording an archive's
// import lifecycle (import_started, import_finished, import_failed) into
// the bus_events table, so a caller can audit what happened to a database
// file without re-running an import.
//
// Adapted from Napageneral-mnemonic/internal/bus's generic event log: the
// adapter/comms_event_id columns that log belonged to a different domain
// (per-adapter sync bookkeeping) and have been dropped here, since
// Postsack has neither adapters nor a comms event id to attach.
package bus

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one row of the bus_events table.
type Event struct {
	Seq       int64   `json:"seq"`
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	CreatedAt int64   `json:"created_at"`
	Payload   *string `json:"payload_json,omitempty"`
}

// Emit appends one event of typ, JSON-marshaling payload into payload_json
// if non-nil. The adapter and commsEventID parameters are accepted for
// call-site symmetry with Napageneral-mnemonic's bus but are otherwise
// unused; Postsack always passes them empty.
func Emit(db *sql.DB, typ string, adapter string, commsEventID string, payload any) error {
	if typ == "" {
		return fmt.Errorf("event type is required")
	}
	now := time.Now().Unix()
	id := uuid.New().String()

	var payloadVal any
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal bus payload: %w", err)
		}
		payloadVal = string(b)
	}

	_, err := db.Exec(`
		INSERT INTO bus_events (id, type, created_at, payload_json)
		VALUES (?, ?, ?, ?)
	`, id, typ, now, payloadVal)
	if err != nil {
		return fmt.Errorf("insert bus event: %w", err)
	}
	return nil
}

// List returns events with seq > afterSeq, oldest first, capped at limit
// (default 100).
func List(db *sql.DB, afterSeq int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT seq, id, type, created_at, payload_json
		FROM bus_events
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query bus events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var payload sql.NullString
		if err := rows.Scan(&e.Seq, &e.ID, &e.Type, &e.CreatedAt, &payload); err != nil {
			return nil, fmt.Errorf("scan bus event: %w", err)
		}
		if payload.Valid {
			e.Payload = &payload.String
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bus events: %w", err)
	}
	return out, nil
}
