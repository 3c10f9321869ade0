// Package state persists the run counter and the processed-recording ledger
// between runs. Two backends exist: local JSON files (the default, matching
// the layout the archiver has always used) and Firestore for deployments
// without durable local disk.
package state

import (
	"context"
	"errors"
	"time"
)

// ErrStateCorrupt is returned when persisted state exists but cannot be
// decoded. Callers must treat this as fatal for the run: silently resetting
// the ledger would re-archive everything and reset retention history.
var ErrStateCorrupt = errors.New("state: persisted state is corrupt")

// LedgerEntry records when a recording finished archival.
type LedgerEntry struct {
	ProcessedAt time.Time `json:"processed_at" firestore:"processedAt"`
}

// Ledger maps recording UUIDs to their archival completion time. Membership
// is terminal: once a UUID is present, its files are durably archived and
// must never be fetched again.
type Ledger map[string]LedgerEntry

// Contains reports whether the recording has already been archived.
func (l Ledger) Contains(id string) bool {
	_, ok := l[id]
	return ok
}

// MarkProcessed records the recording as archived at the given instant.
func (l Ledger) MarkProcessed(id string, at time.Time) {
	l[id] = LedgerEntry{ProcessedAt: at}
}

// Store is the persistence contract shared by both backends. Reads and
// writes are whole-value load/replace; long-running callers reload before
// mutating. A missing record is not an error and yields the zero value.
type Store interface {
	LoadRunCount(ctx context.Context) (int, error)
	SaveRunCount(ctx context.Context, count int) error
	LoadLedger(ctx context.Context) (Ledger, error)
	SaveLedger(ctx context.Context, ledger Ledger) error
}
