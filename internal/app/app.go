// Package app wires configuration into the sync and retention engines. Both
// the CLI and the Cloud Functions entrypoint build the same App.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/config"
	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/gcp"
	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/services"
	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/state"
	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/zoom"
)

// App is one fully wired archiver process.
type App struct {
	Sync      *services.SyncService
	Retention *services.RetentionService

	closers []func() error
}

// New builds all clients and engines from the validated configuration.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	source, err := zoom.NewClient(zoom.Config{
		ClientID:     cfg.Zoom.ClientID,
		ClientSecret: cfg.Zoom.ClientSecret,
		AccountID:    cfg.Zoom.AccountID,
		BaseURL:      cfg.Zoom.BaseURL,
		TokenURL:     cfg.Zoom.TokenURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create zoom client: %w", err)
	}

	dest, err := a.newDestination(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := a.newStateStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	floor, err := cfg.Sync.Floor()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Sync = services.NewSync(source, dest, store, services.SyncConfig{
		FloorDate:  floor,
		Lookback:   cfg.Sync.Lookback(),
		StagingDir: cfg.Sync.StagingDir,
	})
	a.Retention = services.NewRetention(source, store, services.RetentionConfig{
		FloorDate:       floor,
		Period:          cfg.Retention.Period(),
		RequireArchived: cfg.Retention.RequireArchived,
	})
	return a, nil
}

func (a *App) newDestination(ctx context.Context, cfg *config.Config) (services.ArchiveDestination, error) {
	switch cfg.Destination.Backend {
	case config.BackendDrive:
		dest, err := gcp.NewDriveDestination(ctx, cfg.Destination.Drive.CredentialsFile, cfg.Destination.Drive.RootFolderID)
		if err != nil {
			return nil, fmt.Errorf("failed to create drive destination: %w", err)
		}
		return dest, nil
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return gcp.NewStorageDestination(client, cfg.Destination.GCS.Bucket)
	default:
		return nil, fmt.Errorf("unknown destination backend %q", cfg.Destination.Backend)
	}
}

func (a *App) newStateStore(ctx context.Context, cfg *config.Config) (state.Store, error) {
	switch cfg.State.Backend {
	case config.BackendFile:
		return state.NewFileStore(cfg.State.Dir)
	case config.BackendFirestore:
		client, err := gcp.NewFirestoreClient(ctx, cfg.State.Firestore.ProjectID)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return state.NewFirestoreStore(client, cfg.State.Firestore.Collection), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}

// Run executes sync (unless retentionOnly) followed by retention. A sync
// failure is a top-level failure and skips retention.
func (a *App) Run(ctx context.Context, retentionOnly bool) error {
	if !retentionOnly {
		if err := a.Sync.Run(ctx); err != nil {
			return fmt.Errorf("sync run failed: %w", err)
		}
	}
	if err := a.Retention.Run(ctx); err != nil {
		return fmt.Errorf("retention run failed: %w", err)
	}
	return nil
}

// Close releases any clients that hold connections.
func (a *App) Close() error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
