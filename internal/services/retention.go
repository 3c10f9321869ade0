package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/state"
	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/zoom"
)

// RetentionConfig carries the deletion policy for one retention run.
type RetentionConfig struct {
	// FloorDate bounds the scan window on the far end.
	FloorDate time.Time
	// Period is the retention window; recordings strictly older than
	// now-Period are deleted from Zoom.
	Period time.Duration
	// RequireArchived restricts deletion to recordings already present in
	// the ledger. When off, deletion is unconditional: a recording that was
	// never synced is lost. That ordering hazard belongs to the scheduler,
	// not this engine.
	RequireArchived bool
}

// RetentionService deletes provider-side recordings past the retention
// window. It scans Zoom's own record, not the ledger, so archival state
// never hides a deletable recording.
type RetentionService struct {
	source RecordingSource
	store  state.Store
	config RetentionConfig

	now func() time.Time
}

// NewRetention wires a retention engine. store may be nil when
// RequireArchived is off.
func NewRetention(source RecordingSource, store state.Store, config RetentionConfig) *RetentionService {
	return &RetentionService{
		source: source,
		store:  store,
		config: config,
		now:    time.Now,
	}
}

// Run executes one retention pass. Per-meeting delete failures are logged
// and do not abort the batch; only token or listing failures do.
func (r *RetentionService) Run(ctx context.Context) error {
	cutoff := r.now().Add(-r.config.Period)
	slog.Info("Retention run starting.", "cutoff", cutoff.Format("2006-01-02"))

	var ledger state.Ledger
	if r.config.RequireArchived {
		var err error
		ledger, err = r.store.LoadLedger(ctx)
		if err != nil {
			return fmt.Errorf("failed to load ledger: %w", err)
		}
	}

	token, err := r.source.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}

	recordings, err := r.source.FetchChunked(ctx, token, r.config.FloorDate, cutoff)
	if err != nil {
		return fmt.Errorf("failed to fetch recordings for retention: %w", err)
	}
	if len(recordings) == 0 {
		slog.Info("No recordings past retention window.")
		return nil
	}

	deleted := 0
	for _, rec := range recordings {
		logCtx := slog.With("meetingUuid", rec.UUID, "topic", rec.Topic)

		startsAt, err := rec.StartsAt()
		if err != nil {
			logCtx.Warn("Unparseable start time. Not deleting.", "error", err)
			continue
		}
		// The provider's date-filtered query may be boundary-inclusive;
		// deletion is irreversible, so re-validate strictly-older here.
		if !startsAt.Before(cutoff) {
			logCtx.Debug("Recording not strictly older than cutoff. Keeping.")
			continue
		}
		if r.config.RequireArchived && !ledger.Contains(rec.UUID) {
			logCtx.Warn("Recording not archived yet. Keeping.", "startTime", rec.StartTime)
			continue
		}

		if err := r.delete(ctx, &token, rec.UUID); err != nil {
			logCtx.Error("Failed to delete recording from provider.", "error", err)
			continue
		}
		deleted++
		logCtx.Info("Deleted recording from provider.", "startTime", rec.StartTime)
	}

	slog.Info("Retention run complete.", "deleted", deleted, "scanned", len(recordings))
	return nil
}

// delete removes one meeting's recordings, refreshing the token at most once.
func (r *RetentionService) delete(ctx context.Context, token *string, meetingUUID string) error {
	err := r.source.DeleteRecordings(ctx, *token, meetingUUID)
	if !errors.Is(err, zoom.ErrUnauthorized) {
		return err
	}

	fresh, tokenErr := r.source.AccessToken(ctx)
	if tokenErr != nil {
		return fmt.Errorf("failed to refresh token: %w", tokenErr)
	}
	*token = fresh
	return r.source.DeleteRecordings(ctx, *token, meetingUUID)
}
