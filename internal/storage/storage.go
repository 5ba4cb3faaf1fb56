// Package storage provides object storage for database snapshots.
package storage

import (
	"context"
	"time"

	ormerrors "github.com/arkilian/arkorm/pkg/errors"
)

// ErrObjectNotFound matches, via errors.Is, any lookup of a missing object.
var ErrObjectNotFound = ormerrors.New(ormerrors.ErrCategoryStorage, ormerrors.CodeObjectNotFound, "object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ObjectStorage abstracts object storage operations.
// Implementations are S3 and the local filesystem.
type ObjectStorage interface {
	// Upload copies the local file at localPath to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download copies objectPath to localPath, creating parent directories.
	// A missing object fails with ErrObjectNotFound.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns every object under prefix.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

func uploadFailed(objectPath string, err error) error {
	return ormerrors.NewStorageError(ormerrors.CodeUploadFailed, "upload "+objectPath, err)
}

func downloadFailed(objectPath string, err error) error {
	return ormerrors.NewStorageError(ormerrors.CodeDownloadFailed, "download "+objectPath, err)
}

func notFound(objectPath string) error {
	return ErrObjectNotFound.WithDetails(map[string]any{"object": objectPath})
}
