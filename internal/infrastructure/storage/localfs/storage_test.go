package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStorageUploadIntoSubfolder(t *testing.T) {
	base := t.TempDir()
	store, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	folderID, err := store.FindOrCreateSubfolder(context.Background(), "BJ", "Sudah diinput")
	if err != nil {
		t.Fatalf("FindOrCreateSubfolder() error = %v", err)
	}
	if folderID != "BJ/Sudah diinput" {
		t.Fatalf("unexpected folder id %q", folderID)
	}

	again, err := store.FindOrCreateSubfolder(context.Background(), "BJ", "Sudah diinput")
	if err != nil || again != folderID {
		t.Fatalf("FindOrCreateSubfolder() second call = %q, %v", again, err)
	}

	fileID, err := store.UploadFile(context.Background(), folderID, "Budi - KTP.jpg", []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(base, "BJ", "Sudah diinput", "Budi - KTP.jpg"))
	if err != nil {
		t.Fatalf("read uploaded file: %v", err)
	}
	if string(raw) != "img" || fileID != "BJ/Sudah diinput/Budi - KTP.jpg" {
		t.Fatalf("unexpected upload id=%q content=%q", fileID, raw)
	}
}

func TestStorageRejectsEscapingPaths(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := store.FindOrCreateSubfolder(context.Background(), "..", "outside"); err == nil {
		t.Fatalf("expected error for parent traversal")
	}
	if _, err := store.UploadFile(context.Background(), "BJ", "../../x.jpg", []byte("x"), ""); err == nil {
		t.Fatalf("expected error for traversal in file name")
	}
}
