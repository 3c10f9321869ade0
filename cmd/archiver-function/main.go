package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/app"
	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/config"
)

var (
	appInstance *app.App
	once        sync.Once
	initErr     error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function. Cloud Scheduler publishes to a
	// Pub/Sub topic and the framework routes the event here.
	functions.CloudEvent("ArchiveRecordings", archiveRecordings)
}

// main is required by the Go Functions Framework.
func main() {}

// pubSubEvent is the CloudEvent payload shape for Pub/Sub triggers.
type pubSubEvent struct {
	Message struct {
		Data []byte `json:"data"`
	} `json:"message"`
}

// runRequest is the optional scheduler payload carried in the Pub/Sub
// message body.
type runRequest struct {
	Mode string `json:"mode"` // "" (sync then retention) or "retention-only"
}

// archiveRecordings is the Cloud Function entry point.
func archiveRecordings(ctx context.Context, e cloudevents.Event) error {
	// One-time initialization of clients; the instance is reused across
	// invocations of a warm function.
	once.Do(func() {
		var cfg *config.Config
		cfg, initErr = config.Load("")
		if initErr != nil {
			return
		}
		appInstance, initErr = app.New(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var req runRequest
	var psEvent pubSubEvent
	if err := json.Unmarshal(e.Data(), &psEvent); err == nil && len(psEvent.Message.Data) > 0 {
		// json already base64-decoded Data; tolerate raw JSON bodies too.
		if err := json.Unmarshal(psEvent.Message.Data, &req); err != nil {
			if decoded, decErr := base64.StdEncoding.DecodeString(string(psEvent.Message.Data)); decErr == nil {
				_ = json.Unmarshal(decoded, &req)
			}
		}
	}

	retentionOnly := req.Mode == "retention-only"
	slog.Info("Scheduled archival run triggered.", "retentionOnly", retentionOnly)

	if err := appInstance.Run(ctx, retentionOnly); err != nil {
		// Returning the error marks the invocation as failed so the
		// scheduler's retry policy applies.
		return fmt.Errorf("archival run failed: %w", err)
	}
	return nil
}
