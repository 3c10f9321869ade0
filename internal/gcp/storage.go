package gcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// StorageDestination archives files as GCS objects keyed
// year/month/meeting/filename. It is the alternative to Drive for accounts
// that archive into a bucket instead of a shared drive. GCS has no real
// folders, so path resolution is pure string composition.
type StorageDestination struct {
	client *storage.Client
	bucket string
}

// NewStorageDestination wraps an existing storage client for one bucket.
func NewStorageDestination(client *storage.Client, bucket string) (*StorageDestination, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket must be set")
	}
	return &StorageDestination{client: client, bucket: bucket}, nil
}

// ResolveDestinationPath returns the object key prefix for the meeting. No
// remote calls are needed; the "folder" exists once an object uses it.
func (s *StorageDestination) ResolveDestinationPath(ctx context.Context, year int, month time.Month, meetingFolder string) (string, error) {
	return fmt.Sprintf("%d/%02d/%s", year, int(month), meetingFolder), nil
}

// UploadFile writes the staged file to <prefix>/<name>, but only if the
// object does not already exist. A precondition failure means an earlier run
// already archived this exact object, which is success for an idempotent
// archiver.
func (s *StorageDestination) UploadFile(ctx context.Context, localPath, name, prefix string) (string, error) {
	objectName := prefix + "/" + name

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open staged file %s: %w", localPath, err)
	}
	defer f.Close()

	writer := s.client.Bucket(s.bucket).Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if _, err := io.Copy(writer, f); err != nil {
		_ = writer.Close()
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 412 {
			slog.Info("SKIPPING: Object already exists.", "object", objectName)
			return objectName, nil
		}
		return "", fmt.Errorf("failed to write to GCS object %s: %w", objectName, err)
	}
	if err := writer.Close(); err != nil {
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 412 {
			slog.Info("SKIPPING: Object already exists.", "object", objectName)
			return objectName, nil
		}
		return "", fmt.Errorf("failed to finalize GCS write for %s: %w", objectName, err)
	}
	return objectName, nil
}
