package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/models"
	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/state"
	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/zoom"
)

// fakeSource scripts the Zoom client. Download failures are scripted per
// URL and consumed in order.
type fakeSource struct {
	recordings []models.Recording
	fetchErr   error

	tokenCalls   int
	tokenErr     error
	fetchWindows [][2]time.Time
	downloads    []string
	downloadErrs map[string][]error
	deleted      []string
	deleteErrs   map[string][]error
}

func (f *fakeSource) AccessToken(ctx context.Context) (string, error) {
	f.tokenCalls++
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "tok", nil
}

func (f *fakeSource) FetchChunked(ctx context.Context, token string, start, end time.Time) ([]models.Recording, error) {
	f.fetchWindows = append(f.fetchWindows, [2]time.Time{start, end})
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.recordings, nil
}

func (f *fakeSource) DownloadFile(ctx context.Context, token, downloadURL, destPath string) error {
	f.downloads = append(f.downloads, downloadURL)
	if errs := f.downloadErrs[downloadURL]; len(errs) > 0 {
		err := errs[0]
		f.downloadErrs[downloadURL] = errs[1:]
		if err != nil {
			return err
		}
	}
	return os.WriteFile(destPath, []byte("media"), 0o644)
}

func (f *fakeSource) DeleteRecordings(ctx context.Context, token, meetingUUID string) error {
	if errs := f.deleteErrs[meetingUUID]; len(errs) > 0 {
		err := errs[0]
		f.deleteErrs[meetingUUID] = errs[1:]
		if err != nil {
			return err
		}
	}
	f.deleted = append(f.deleted, meetingUUID)
	return nil
}

type uploadCall struct {
	name     string
	folderID string
	staged   bool // staged file existed when the upload ran
}

// fakeDest records folder resolutions and uploads.
type fakeDest struct {
	resolved  []string
	uploads   []uploadCall
	uploadErr error
}

func (f *fakeDest) ResolveDestinationPath(ctx context.Context, year int, month time.Month, meetingFolder string) (string, error) {
	path := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006/01") + "/" + meetingFolder
	f.resolved = append(f.resolved, path)
	return path, nil
}

func (f *fakeDest) UploadFile(ctx context.Context, localPath, name, folderID string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	_, statErr := os.Stat(localPath)
	f.uploads = append(f.uploads, uploadCall{name: name, folderID: folderID, staged: statErr == nil})
	return "remote-" + name, nil
}

// memStore is an in-memory state.Store.
type memStore struct {
	runCount      int
	ledger        state.Ledger
	ledgerSaves   int
	loadLedgerErr error
}

func newMemStore() *memStore {
	return &memStore{ledger: state.Ledger{}}
}

func (m *memStore) LoadRunCount(ctx context.Context) (int, error) { return m.runCount, nil }
func (m *memStore) SaveRunCount(ctx context.Context, count int) error {
	m.runCount = count
	return nil
}
func (m *memStore) LoadLedger(ctx context.Context) (state.Ledger, error) {
	if m.loadLedgerErr != nil {
		return nil, m.loadLedgerErr
	}
	return m.ledger, nil
}
func (m *memStore) SaveLedger(ctx context.Context, ledger state.Ledger) error {
	m.ledger = ledger
	m.ledgerSaves++
	return nil
}

var testNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func newTestSync(t *testing.T, source *fakeSource, dest *fakeDest, store *memStore) *SyncService {
	t.Helper()
	svc := NewSync(source, dest, store, SyncConfig{
		FloorDate:  time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC),
		Lookback:   60 * 24 * time.Hour,
		StagingDir: t.TempDir(),
	})
	svc.now = func() time.Time { return testNow }
	return svc
}

func recordingFixture(uuid, topic string, files ...models.RecordingFile) models.Recording {
	return models.Recording{
		UUID:           uuid,
		Topic:          topic,
		HostEmail:      "host@example.com",
		StartTime:      "2025-01-15T13:34:06Z",
		RecordingFiles: files,
	}
}

func TestSync_FirstRunArchivesEverything(t *testing.T) {
	source := &fakeSource{recordings: []models.Recording{
		recordingFixture("uuid-1", "Team Sync", models.RecordingFile{ID: "f1", FileType: "MP4", DownloadURL: "https://zoom/f1"}),
		recordingFixture("uuid-2", "Board & Plan", models.RecordingFile{ID: "f2", FileType: "M4A", DownloadURL: "https://zoom/f2"}),
	}}
	dest := &fakeDest{}
	store := newMemStore()
	svc := newTestSync(t, source, dest, store)

	require.NoError(t, svc.Run(context.Background()))

	// First run reaches back to the floor date.
	require.Len(t, source.fetchWindows, 1)
	assert.Equal(t, svc.config.FloorDate, source.fetchWindows[0][0])
	assert.Equal(t, testNow, source.fetchWindows[0][1])
	assert.Equal(t, 1, store.runCount)

	// Both recordings archived and persisted one at a time.
	require.Len(t, dest.uploads, 2)
	assert.Equal(t, "Team_Sync_host@example.com_2025-01-15_f1.mp4", dest.uploads[0].name)
	assert.Equal(t, "2025/01/Team_Sync_host@example.com_2025-01-15", dest.uploads[0].folderID)
	assert.True(t, dest.uploads[0].staged, "upload must run before staging cleanup")
	assert.Equal(t, "Board_and_Plan_host@example.com_2025-01-15_f2.m4a", dest.uploads[1].name)

	assert.True(t, store.ledger.Contains("uuid-1"))
	assert.True(t, store.ledger.Contains("uuid-2"))
	assert.Equal(t, testNow, store.ledger["uuid-1"].ProcessedAt)
	assert.Equal(t, 2, store.ledgerSaves)

	// Staging directory ends empty.
	entries, err := os.ReadDir(svc.config.StagingDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSync_IncrementalRunUsesLookbackWindow(t *testing.T) {
	source := &fakeSource{}
	store := newMemStore()
	store.runCount = 4
	svc := newTestSync(t, source, &fakeDest{}, store)

	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, 5, store.runCount)
	require.Len(t, source.fetchWindows, 1)
	assert.Equal(t, testNow.Add(-60*24*time.Hour), source.fetchWindows[0][0])
	assert.Equal(t, testNow, source.fetchWindows[0][1])
}

func TestSync_LedgerMembershipSkipsAllFileAccess(t *testing.T) {
	source := &fakeSource{recordings: []models.Recording{
		recordingFixture("seen", "Old", models.RecordingFile{ID: "f1", FileType: "MP4", DownloadURL: "https://zoom/f1"}),
	}}
	dest := &fakeDest{}
	store := newMemStore()
	store.ledger.MarkProcessed("seen", testNow.Add(-time.Hour))
	svc := newTestSync(t, source, dest, store)

	require.NoError(t, svc.Run(context.Background()))

	assert.Empty(t, source.downloads)
	assert.Empty(t, dest.resolved)
	assert.Empty(t, dest.uploads)
	assert.Equal(t, 0, store.ledgerSaves)
}

func TestSync_RerunPerformsNoFurtherCallsForProcessed(t *testing.T) {
	rec := recordingFixture("uuid-1", "Team Sync", models.RecordingFile{ID: "f1", FileType: "MP4", DownloadURL: "https://zoom/f1"})
	source := &fakeSource{recordings: []models.Recording{rec}}
	dest := &fakeDest{}
	store := newMemStore()
	svc := newTestSync(t, source, dest, store)

	require.NoError(t, svc.Run(context.Background()))
	require.Len(t, source.downloads, 1)

	// Second run with the same persisted ledger: zero additional calls for
	// that recording's files.
	require.NoError(t, svc.Run(context.Background()))
	assert.Len(t, source.downloads, 1)
	assert.Len(t, dest.uploads, 1)
}

func TestSync_TokenRefreshedOnceOnExpiry(t *testing.T) {
	source := &fakeSource{
		recordings: []models.Recording{
			recordingFixture("uuid-1", "Sync", models.RecordingFile{ID: "f1", FileType: "MP4", DownloadURL: "https://zoom/f1"}),
		},
		downloadErrs: map[string][]error{
			"https://zoom/f1": {zoom.ErrUnauthorized, nil},
		},
	}
	dest := &fakeDest{}
	store := newMemStore()
	svc := newTestSync(t, source, dest, store)

	require.NoError(t, svc.Run(context.Background()))

	// One call at run start plus exactly one refresh for the expired file.
	assert.Equal(t, 2, source.tokenCalls)
	assert.Len(t, source.downloads, 2)
	require.Len(t, dest.uploads, 1)
	assert.True(t, store.ledger.Contains("uuid-1"))
}

func TestSync_AbandonedFileStillMarksRecordingProcessed(t *testing.T) {
	source := &fakeSource{
		recordings: []models.Recording{
			recordingFixture("uuid-1", "Sync",
				models.RecordingFile{ID: "bad", FileType: "MP4", DownloadURL: "https://zoom/bad"},
				models.RecordingFile{ID: "good", FileType: "M4A", DownloadURL: "https://zoom/good"},
			),
		},
		downloadErrs: map[string][]error{
			// Still unauthorized after the one refresh: the file is abandoned.
			"https://zoom/bad": {zoom.ErrUnauthorized, zoom.ErrUnauthorized},
		},
	}
	dest := &fakeDest{}
	store := newMemStore()
	svc := newTestSync(t, source, dest, store)

	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, 2, source.tokenCalls)
	// Only the good file was uploaded, but the recording is marked processed.
	require.Len(t, dest.uploads, 1)
	assert.Equal(t, "Sync_host@example.com_2025-01-15_good.m4a", dest.uploads[0].name)
	assert.True(t, store.ledger.Contains("uuid-1"))
}

func TestSync_MalformedTimestampAbandonsRecordingOnly(t *testing.T) {
	bad := recordingFixture("bad-time", "Broken", models.RecordingFile{ID: "f1", FileType: "MP4", DownloadURL: "https://zoom/f1"})
	bad.StartTime = "not a timestamp"
	good := recordingFixture("good", "Fine", models.RecordingFile{ID: "f2", FileType: "MP4", DownloadURL: "https://zoom/f2"})

	source := &fakeSource{recordings: []models.Recording{bad, good}}
	dest := &fakeDest{}
	store := newMemStore()
	svc := newTestSync(t, source, dest, store)

	require.NoError(t, svc.Run(context.Background()))

	assert.False(t, store.ledger.Contains("bad-time"), "unparseable recording must stay out of the ledger")
	assert.True(t, store.ledger.Contains("good"))
	require.Len(t, dest.uploads, 1)
}

func TestSync_MissingDownloadURLSkipsFileOnly(t *testing.T) {
	source := &fakeSource{recordings: []models.Recording{
		recordingFixture("uuid-1", "Sync",
			models.RecordingFile{ID: "pending", FileType: "MP4"},
			models.RecordingFile{ID: "ready", FileType: "MP4", DownloadURL: "https://zoom/ready"},
		),
	}}
	dest := &fakeDest{}
	store := newMemStore()
	svc := newTestSync(t, source, dest, store)

	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, []string{"https://zoom/ready"}, source.downloads)
	require.Len(t, dest.uploads, 1)
	assert.True(t, store.ledger.Contains("uuid-1"))
}

func TestSync_UploadFailureCleansStagingAndMarksProcessed(t *testing.T) {
	source := &fakeSource{recordings: []models.Recording{
		recordingFixture("uuid-1", "Sync", models.RecordingFile{ID: "f1", FileType: "MP4", DownloadURL: "https://zoom/f1"}),
	}}
	dest := &fakeDest{uploadErr: errors.New("destination store unavailable")}
	store := newMemStore()
	svc := newTestSync(t, source, dest, store)

	require.NoError(t, svc.Run(context.Background()))

	assert.Empty(t, dest.uploads)
	assert.True(t, store.ledger.Contains("uuid-1"))
	entries, err := os.ReadDir(svc.config.StagingDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged file must be removed even when the upload fails")
}

func TestSync_EmptyListingEndsRun(t *testing.T) {
	source := &fakeSource{}
	store := newMemStore()
	svc := newTestSync(t, source, &fakeDest{}, store)

	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, 1, store.runCount)
	assert.Equal(t, 0, store.ledgerSaves)
}

func TestSync_StateErrorAbortsBeforeAnyFetch(t *testing.T) {
	source := &fakeSource{}
	store := newMemStore()
	store.loadLedgerErr = state.ErrStateCorrupt
	svc := newTestSync(t, source, &fakeDest{}, store)

	err := svc.Run(context.Background())
	assert.ErrorIs(t, err, state.ErrStateCorrupt)
	assert.Empty(t, source.fetchWindows)
	assert.Equal(t, 0, source.tokenCalls)
}

func TestSync_ListingFailureAbortsRun(t *testing.T) {
	source := &fakeSource{fetchErr: errors.New("internal server error")}
	store := newMemStore()
	svc := newTestSync(t, source, &fakeDest{}, store)

	err := svc.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, store.ledgerSaves)
}
