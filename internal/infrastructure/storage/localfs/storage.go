package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage is a FileStore on the local disk. Folder ids are paths relative
// to the base directory.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) FindOrCreateSubfolder(_ context.Context, parentID, name string) (string, error) {
	id := filepath.ToSlash(filepath.Join(parentID, name))
	path, err := s.resolve(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	return id, nil
}

func (s *Storage) UploadFile(_ context.Context, folderID, name string, data []byte, _ string) (string, error) {
	id := filepath.ToSlash(filepath.Join(folderID, name))
	path, err := s.resolve(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return id, nil
}

func (s *Storage) resolve(id string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", id)
	}
	return filepath.Join(s.basePath, clean), nil
}
