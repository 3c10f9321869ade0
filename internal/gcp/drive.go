package gcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveDestination archives files into a Google Drive folder tree rooted at
// a configured parent folder, laid out as year/month/meeting.
type DriveDestination struct {
	svc          *drive.Service
	rootFolderID string
}

// NewDriveDestination builds a Drive client from a service account key file.
func NewDriveDestination(ctx context.Context, credentialsFile, rootFolderID string) (*DriveDestination, error) {
	if rootFolderID == "" {
		return nil, fmt.Errorf("drive root folder id must be set")
	}
	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveFileScope))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive client: %w", err)
	}
	return &DriveDestination{svc: svc, rootFolderID: rootFolderID}, nil
}

// escapeQuery escapes a name for use inside a Drive query string literal.
func escapeQuery(name string) string {
	name = strings.ReplaceAll(name, `\`, `\\`)
	return strings.ReplaceAll(name, `'`, `\'`)
}

// ResolveOrCreateFolder returns the ID of the folder called name under
// parentID, creating it if no live (non-trashed) folder with that name
// exists. Lookup-before-create keeps the tree free of duplicate
// (name, parent) pairs across runs; the race window between the two calls is
// acceptable because only one archiver instance runs at a time.
func (d *DriveDestination) ResolveOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false and '%s' in parents",
		escapeQuery(name), folderMimeType, parentID)

	list, err := d.svc.Files.List().
		Q(query).
		Spaces("drive").
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up folder %q under %s: %w", name, parentID, err)
	}
	if len(list.Files) > 0 {
		slog.Debug("Reusing existing Drive folder.", "name", name, "folderId", list.Files[0].Id)
		return list.Files[0].Id, nil
	}

	created, err := d.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %q under %s: %w", name, parentID, err)
	}
	slog.Debug("Created Drive folder.", "name", name, "folderId", created.Id)
	return created.Id, nil
}

// ResolveDestinationPath resolves (creating as needed) the year/month/meeting
// folder chain and returns the innermost folder ID. Every level is
// create-or-reuse, so repeated runs converge on the same tree.
func (d *DriveDestination) ResolveDestinationPath(ctx context.Context, year int, month time.Month, meetingFolder string) (string, error) {
	yearID, err := d.ResolveOrCreateFolder(ctx, fmt.Sprintf("%d", year), d.rootFolderID)
	if err != nil {
		return "", err
	}
	monthID, err := d.ResolveOrCreateFolder(ctx, fmt.Sprintf("%02d", int(month)), yearID)
	if err != nil {
		return "", err
	}
	return d.ResolveOrCreateFolder(ctx, meetingFolder, monthID)
}

// UploadFile streams the staged file into the given folder using a resumable
// upload and returns the created file ID. Drive only references the object
// once the final chunk lands, so an interrupted upload leaves nothing behind.
func (d *DriveDestination) UploadFile(ctx context.Context, localPath, name, folderID string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open staged file %s: %w", localPath, err)
	}
	defer f.Close()

	created, err := d.svc.Files.Create(&drive.File{
		Name:    name,
		Parents: []string{folderID},
	}).Media(f).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to Drive: %w", name, err)
	}
	return created.Id, nil
}
