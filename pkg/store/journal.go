package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// JournalEntry is one append-only document (spec.md §4.H).
type JournalEntry struct {
	StackID   string
	Type      string
	Timestamp time.Time
	Details   json.RawMessage
	Location  json.RawMessage // best-effort, may be nil
}

// InsertJournalEntry appends entry. Callers are responsible for swallowing
// and logging any returned error — the pipeline never blocks on journal
// writes (spec.md §4.H).
func (s *Store) InsertJournalEntry(ctx context.Context, entry JournalEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO journal_entries (log_stackid, log_type, log_timestamp, log_details, log_location)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.StackID, entry.Type, entry.Timestamp, entry.Details, entry.Location,
	)
	if err != nil {
		return fmt.Errorf("store: inserting journal entry: %w", err)
	}
	return nil
}
