// Package services contains the two batch engines: incremental sync of Zoom
// cloud recordings into the archive destination, and retention deletion of
// provider-side recordings past the retention window.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/models"
	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/sanitize"
	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/state"
	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/zoom"
)

// RecordingSource is the slice of the Zoom client the engines need.
type RecordingSource interface {
	AccessToken(ctx context.Context) (string, error)
	FetchChunked(ctx context.Context, token string, start, end time.Time) ([]models.Recording, error)
	DownloadFile(ctx context.Context, token, downloadURL, destPath string) error
	DeleteRecordings(ctx context.Context, token, meetingUUID string) error
}

// ArchiveDestination is implemented by both the Drive and the GCS backends.
type ArchiveDestination interface {
	ResolveDestinationPath(ctx context.Context, year int, month time.Month, meetingFolder string) (string, error)
	UploadFile(ctx context.Context, localPath, name, folderID string) (string, error)
}

// SyncConfig carries the window constants for one sync run.
type SyncConfig struct {
	// FloorDate is the window start for the very first run.
	FloorDate time.Time
	// Lookback is how far back incremental runs reach.
	Lookback time.Duration
	// StagingDir holds in-flight downloads between download and upload.
	StagingDir string
}

// SyncService archives unseen recordings. One instance performs one run;
// nothing is shared across runs except the persisted state.
type SyncService struct {
	source RecordingSource
	dest   ArchiveDestination
	store  state.Store
	config SyncConfig

	// now is replaced in tests.
	now func() time.Time
}

// NewSync wires a sync engine from its collaborators.
func NewSync(source RecordingSource, dest ArchiveDestination, store state.Store, config SyncConfig) *SyncService {
	return &SyncService{
		source: source,
		dest:   dest,
		store:  store,
		config: config,
		now:    time.Now,
	}
}

// Run executes one sync pass: determine the fetch window, list recordings,
// archive every recording not yet in the ledger. Item-level failures are
// logged and skipped; only window-level failures (state, token, listing)
// abort the run.
func (s *SyncService) Run(ctx context.Context) error {
	ledger, err := s.store.LoadLedger(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	runCount, err := s.store.LoadRunCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to load run count: %w", err)
	}
	runCount++
	if err := s.store.SaveRunCount(ctx, runCount); err != nil {
		return fmt.Errorf("failed to save run count: %w", err)
	}

	end := s.now()
	var start time.Time
	if runCount == 1 {
		// Zoom's own lookback cap may silently truncate this window; that is
		// a provider limitation, not something this run can detect.
		start = s.config.FloorDate
		slog.Info("First run detected: processing all available recordings.", "floorDate", start.Format("2006-01-02"))
	} else {
		start = end.Add(-s.config.Lookback)
		slog.Info("Incremental run: processing recent recordings.", "runCount", runCount, "windowStart", start.Format("2006-01-02"))
	}

	token, err := s.source.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}

	recordings, err := s.source.FetchChunked(ctx, token, start, end)
	if err != nil {
		return fmt.Errorf("failed to fetch recordings: %w", err)
	}
	if len(recordings) == 0 {
		slog.Info("No recordings found.")
		return nil
	}
	slog.Info("Fetched recordings.", "count", len(recordings))

	if err := os.MkdirAll(s.config.StagingDir, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory %s: %w", s.config.StagingDir, err)
	}

	for _, rec := range recordings {
		logCtx := slog.With("meetingUuid", rec.UUID, "topic", rec.Topic)

		if ledger.Contains(rec.UUID) {
			logCtx.Info("Skipping already processed recording.")
			continue
		}

		if err := s.archiveRecording(ctx, logCtx, &token, rec); err != nil {
			// Unparseable metadata: the recording is abandoned for this run
			// and stays out of the ledger, so a later run sees it again.
			logCtx.Warn("Abandoning recording for this run.", "error", err)
			continue
		}

		// One persist per recording bounds crash loss to the recording in
		// flight. The entry is written only after every file was attempted.
		ledger.MarkProcessed(rec.UUID, s.now())
		if err := s.store.SaveLedger(ctx, ledger); err != nil {
			return fmt.Errorf("failed to persist ledger: %w", err)
		}
	}

	slog.Info("Sync run complete.")
	return nil
}

// archiveRecording downloads and uploads every file of one recording. File
// level failures are logged and swallowed so one bad asset never blocks the
// rest of the meeting.
func (s *SyncService) archiveRecording(ctx context.Context, logCtx *slog.Logger, token *string, rec models.Recording) error {
	startsAt, err := rec.StartsAt()
	if err != nil {
		return err
	}

	folderName := sanitize.Name(fmt.Sprintf("%s_%s_%s", rec.Topic, rec.HostEmail, rec.StartDate()))

	for _, file := range rec.RecordingFiles {
		if file.DownloadURL == "" {
			logCtx.Warn("Recording file has no download URL. Skipping file.", "fileId", file.ID)
			continue
		}
		if err := s.archiveFile(ctx, logCtx, token, startsAt, folderName, file); err != nil {
			logCtx.Error("Failed to archive file.", "fileId", file.ID, "error", err)
		}
	}
	return nil
}

// archiveFile moves a single asset through staging into the destination.
func (s *SyncService) archiveFile(ctx context.Context, logCtx *slog.Logger, token *string, startsAt time.Time, folderName string, file models.RecordingFile) error {
	ext := ".bin"
	if file.FileType != "" {
		ext = "." + strings.ToLower(file.FileType)
	}
	fileName := sanitize.Name(fmt.Sprintf("%s_%s%s", folderName, file.ID, ext))
	stagingPath := filepath.Join(s.config.StagingDir, fileName)

	if err := s.download(ctx, logCtx, token, file.DownloadURL, stagingPath); err != nil {
		return err
	}
	// The staged copy is removed whatever the upload outcome; a re-run can
	// always download again, but a full staging disk stops every run.
	defer func() {
		if err := os.Remove(stagingPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logCtx.Warn("Failed to remove staged file.", "path", stagingPath, "error", err)
		}
	}()

	folderID, err := s.dest.ResolveDestinationPath(ctx, startsAt.Year(), startsAt.Month(), folderName)
	if err != nil {
		return fmt.Errorf("failed to resolve destination folder: %w", err)
	}
	remoteID, err := s.dest.UploadFile(ctx, stagingPath, fileName, folderID)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", fileName, err)
	}
	logCtx.Info("File archived.", "file", fileName, "remoteId", remoteID)
	return nil
}

// download fetches the asset, refreshing the bearer token at most once when
// the provider reports it expired. The refreshed token is written back so
// later files in the same run reuse it.
func (s *SyncService) download(ctx context.Context, logCtx *slog.Logger, token *string, downloadURL, stagingPath string) error {
	err := s.source.DownloadFile(ctx, *token, downloadURL, stagingPath)
	if !errors.Is(err, zoom.ErrUnauthorized) {
		return err
	}

	logCtx.Warn("Unauthorized during download. Refreshing token and retrying once.")
	fresh, tokenErr := s.source.AccessToken(ctx)
	if tokenErr != nil {
		return fmt.Errorf("failed to refresh token: %w", tokenErr)
	}
	*token = fresh
	return s.source.DownloadFile(ctx, *token, downloadURL, stagingPath)
}
