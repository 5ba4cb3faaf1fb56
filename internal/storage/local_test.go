package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	ormerrors "github.com/arkilian/arkorm/pkg/errors"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	return storage
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.bin")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestLocalStorage_UploadDownload(t *testing.T) {
	storage := newLocal(t)
	srcPath := writeSource(t, "hello world")
	ctx := context.Background()

	objectPath := "snapshots/object.sqlite.sz"
	if err := storage.Upload(ctx, srcPath, objectPath); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	exists, err := storage.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	dstPath := filepath.Join(t.TempDir(), "nested", "downloaded.bin")
	if err := storage.Download(ctx, objectPath, dstPath); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	downloaded, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(downloaded) != "hello world" {
		t.Errorf("content mismatch: got %q", downloaded)
	}

	if err := storage.Delete(ctx, objectPath); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err = storage.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists after delete failed: %v", err)
	}
	if exists {
		t.Error("expected object to not exist after delete")
	}

	// Deleting again is not an error.
	if err := storage.Delete(ctx, objectPath); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestLocalStorage_DownloadNotFound(t *testing.T) {
	storage := newLocal(t)
	dstPath := filepath.Join(t.TempDir(), "downloaded.bin")

	err := storage.Download(context.Background(), "nonexistent/object.bin", dstPath)
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
	if ormerrors.GetCategory(err) != ormerrors.ErrCategoryStorage {
		t.Errorf("category = %q", ormerrors.GetCategory(err))
	}
	if _, statErr := os.Stat(dstPath); !os.IsNotExist(statErr) {
		t.Error("a failed download should not create the destination")
	}
}

func TestLocalStorage_UploadMissingSource(t *testing.T) {
	storage := newLocal(t)
	err := storage.Upload(context.Background(), filepath.Join(t.TempDir(), "missing"), "a/b")
	if ormerrors.GetCode(err) != ormerrors.CodeUploadFailed {
		t.Errorf("expected upload failure, got %v", err)
	}
	if !ormerrors.IsRetryable(err) {
		t.Error("upload failures should be retryable")
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	storage := newLocal(t)
	ctx := context.Background()
	srcPath := writeSource(t, "abc")

	for _, p := range []string{"snapshots/b", "snapshots/a", "other/c"} {
		if err := storage.Upload(ctx, srcPath, p); err != nil {
			t.Fatalf("Upload %s failed: %v", p, err)
		}
	}

	objects, err := storage.ListObjects(ctx, "snapshots")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("got %d objects, want 2: %v", len(objects), objects)
	}
	if objects[0].Path != "snapshots/a" || objects[1].Path != "snapshots/b" {
		t.Errorf("paths = %q, %q", objects[0].Path, objects[1].Path)
	}
	if objects[0].Size != 3 {
		t.Errorf("size = %d", objects[0].Size)
	}

	empty, err := storage.ListObjects(ctx, "missing")
	if err != nil || len(empty) != 0 {
		t.Errorf("missing prefix = %v, %v", empty, err)
	}
}

func TestLocalStorage_CanceledContext(t *testing.T) {
	storage := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := storage.Upload(ctx, writeSource(t, "x"), "obj"); !errors.Is(err, context.Canceled) {
		t.Errorf("Upload = %v", err)
	}
	if _, err := storage.ListObjects(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("ListObjects = %v", err)
	}
}
