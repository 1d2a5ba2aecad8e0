package google

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/resilience"
)

const folderMIMEType = "application/vnd.google-apps.folder"

// DriveStore uploads archived files into branch folders.
type DriveStore struct {
	svc      *drive.Service
	executor *resilience.Executor
}

func NewDriveStore(ctx context.Context, executor *resilience.Executor, opts ...option.ClientOption) (*DriveStore, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &DriveStore{svc: svc, executor: executor}, nil
}

func (d *DriveStore) FindOrCreateSubfolder(ctx context.Context, parentID, name string) (string, error) {
	query := fmt.Sprintf("'%s' in parents and name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(parentID), escapeQuery(name), folderMIMEType)

	var folderID string
	err := run(ctx, d.executor, "drive_find_folder", func(ctx context.Context) error {
		list, err := d.svc.Files.List().
			Q(query).
			Spaces("drive").
			Fields("files(id, name)").
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx).
			Do()
		if err != nil {
			return classifyAPIError("drive list folders", err)
		}
		if len(list.Files) > 0 {
			folderID = list.Files[0].Id
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if folderID != "" {
		return folderID, nil
	}

	// creation is not retried to avoid duplicate folders
	folder, err := d.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMIMEType,
		Parents:  []string{parentID},
	}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", classifyAPIError("drive create folder", err)
	}
	slog.Info("drive_folder_created", "parent_id", parentID, "name", name, "folder_id", folder.Id)
	return folder.Id, nil
}

func (d *DriveStore) UploadFile(ctx context.Context, folderID, name string, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	var fileID string
	err := runOnce(ctx, d.executor, "drive_upload", func(ctx context.Context) error {
		file, err := d.svc.Files.Create(&drive.File{Name: name, Parents: []string{folderID}}).
			Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
			Fields("id").
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		if err != nil {
			return classifyAPIError("drive upload", err)
		}
		fileID = file.Id
		return nil
	})
	if err != nil {
		return "", err
	}
	return fileID, nil
}

func escapeQuery(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}
