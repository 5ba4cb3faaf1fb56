// Package backup snapshots the database file into object storage and
// restores it from there.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/arkilian/arkorm/internal/storage"
	"github.com/arkilian/arkorm/pkg/db"
	ormerrors "github.com/arkilian/arkorm/pkg/errors"
	"github.com/golang/snappy"
	"github.com/google/uuid"
)

const (
	plainExt      = ".sqlite"
	compressedExt = ".sqlite.sz"
)

// sqliteHeader starts every SQLite database file.
var sqliteHeader = []byte("SQLite format 3\x00")

// Config holds snapshot settings.
type Config struct {
	// Prefix is the object key prefix snapshots are stored under.
	Prefix string
	// Compress encodes snapshots with snappy framing.
	Compress bool
}

// DefaultConfig returns the default snapshot configuration.
func DefaultConfig() Config {
	return Config{Prefix: "snapshots", Compress: true}
}

// Snapshot describes one stored snapshot.
type Snapshot struct {
	ID         string
	ObjectPath string
	Size       int64
	CreatedAt  time.Time
	Compressed bool
}

// Manager takes and restores snapshots of one database.
type Manager struct {
	db      *db.DB
	storage storage.ObjectStorage
	config  Config
}

// NewManager creates a snapshot manager.
func NewManager(d *db.DB, store storage.ObjectStorage, config Config) *Manager {
	if config.Prefix == "" {
		config.Prefix = DefaultConfig().Prefix
	}
	config.Prefix = strings.Trim(config.Prefix, "/")
	return &Manager{db: d, storage: store, config: config}
}

// Snapshot copies the database with VACUUM INTO, optionally compresses the
// copy, and uploads it. Snapshot IDs are time ordered.
func (m *Manager) Snapshot(ctx context.Context) (*Snapshot, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, ormerrors.NewInternalError("failed to generate snapshot id", err)
	}

	workDir, err := os.MkdirTemp(filepath.Dir(m.db.Path()), ".arkorm-snapshot-*")
	if err != nil {
		return nil, ormerrors.NewStorageError(ormerrors.CodeUploadFailed, "failed to create work directory", err)
	}
	defer func() {
		if cleanErr := os.RemoveAll(workDir); cleanErr != nil {
			log.Printf("backup: cleanup warning: %v", cleanErr)
		}
	}()

	copyPath := filepath.Join(workDir, id.String()+plainExt)
	if err := m.db.Exec(ctx, "VACUUM INTO ?", copyPath); err != nil {
		return nil, err
	}

	uploadPath, ext := copyPath, plainExt
	if m.config.Compress {
		uploadPath, ext = copyPath+".sz", compressedExt
		if err := compressFile(copyPath, uploadPath); err != nil {
			return nil, ormerrors.NewStorageError(ormerrors.CodeUploadFailed, "failed to compress snapshot", err)
		}
	}

	info, err := os.Stat(uploadPath)
	if err != nil {
		return nil, ormerrors.NewStorageError(ormerrors.CodeUploadFailed, "failed to stat snapshot", err)
	}

	objectPath := path.Join(m.config.Prefix, id.String()+ext)
	if err := m.storage.Upload(ctx, uploadPath, objectPath); err != nil {
		return nil, err
	}

	log.Printf("backup: uploaded snapshot %s (%d bytes)", objectPath, info.Size())
	return &Snapshot{
		ID:         id.String(),
		ObjectPath: objectPath,
		Size:       info.Size(),
		CreatedAt:  time.Unix(id.Time().UnixTime()),
		Compressed: m.config.Compress,
	}, nil
}

// Restore replaces the database file with the snapshot at objectPath. The
// snapshot is downloaded and checked before the live file is touched.
func (m *Manager) Restore(ctx context.Context, objectPath string) error {
	workDir, err := os.MkdirTemp(filepath.Dir(m.db.Path()), ".arkorm-restore-*")
	if err != nil {
		return ormerrors.NewStorageError(ormerrors.CodeDownloadFailed, "failed to create work directory", err)
	}
	defer func() {
		if cleanErr := os.RemoveAll(workDir); cleanErr != nil {
			log.Printf("backup: cleanup warning: %v", cleanErr)
		}
	}()

	downloaded := filepath.Join(workDir, "download")
	if err := m.storage.Download(ctx, objectPath, downloaded); err != nil {
		return err
	}

	restored := downloaded
	if strings.HasSuffix(objectPath, ".sz") {
		restored = filepath.Join(workDir, "restored"+plainExt)
		if err := decompressFile(downloaded, restored); err != nil {
			return ormerrors.NewStorageError(ormerrors.CodeDownloadFailed, "failed to decompress "+objectPath, err)
		}
	}
	if err := checkHeader(restored); err != nil {
		return ormerrors.NewStorageError(ormerrors.CodeDownloadFailed, objectPath+" is not a database snapshot", err)
	}

	err = m.db.Reopen(func(dbPath string) error {
		for _, p := range []string{dbPath + "-wal", dbPath + "-shm", dbPath + "-journal"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		return os.Rename(restored, dbPath)
	})
	if err != nil {
		return ormerrors.NewExecutionError(ormerrors.CodeStatementFailed, "failed to replace database file", err)
	}

	log.Printf("backup: restored %s from %s", m.db.Path(), objectPath)
	return nil
}

// List returns the stored snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]Snapshot, error) {
	objects, err := m.storage.ListObjects(ctx, m.config.Prefix)
	if err != nil {
		return nil, err
	}

	snapshots := make([]Snapshot, 0, len(objects))
	for _, obj := range objects {
		snap, ok := parseSnapshot(obj)
		if ok {
			snapshots = append(snapshots, snap)
		}
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].ID > snapshots[j].ID })
	return snapshots, nil
}

// Latest returns the newest snapshot, or nil when there is none.
func (m *Manager) Latest(ctx context.Context) (*Snapshot, error) {
	snapshots, err := m.List(ctx)
	if err != nil || len(snapshots) == 0 {
		return nil, err
	}
	return &snapshots[0], nil
}

// Prune deletes all but the newest keep snapshots and returns the deleted
// object paths. Deletion stops at the first failure.
func (m *Manager) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}
	snapshots, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(snapshots) <= keep {
		return nil, nil
	}

	var deleted []string
	for _, snap := range snapshots[keep:] {
		if err := m.storage.Delete(ctx, snap.ObjectPath); err != nil {
			return deleted, err
		}
		deleted = append(deleted, snap.ObjectPath)
	}
	log.Printf("backup: pruned %d snapshots", len(deleted))
	return deleted, nil
}

func parseSnapshot(obj storage.ObjectInfo) (Snapshot, bool) {
	name := path.Base(obj.Path)
	compressed := strings.HasSuffix(name, compressedExt)
	var idText string
	switch {
	case compressed:
		idText = strings.TrimSuffix(name, compressedExt)
	case strings.HasSuffix(name, plainExt):
		idText = strings.TrimSuffix(name, plainExt)
	default:
		return Snapshot{}, false
	}

	id, err := uuid.Parse(idText)
	if err != nil {
		return Snapshot{}, false
	}
	created := obj.ModTime
	if id.Version() == 7 {
		created = time.Unix(id.Time().UnixTime())
	}
	return Snapshot{
		ID:         id.String(),
		ObjectPath: obj.Path,
		Size:       obj.Size,
		CreatedAt:  created,
		Compressed: compressed,
	}, true
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	w := snappy.NewBufferedWriter(out)
	if _, err := io.Copy(w, in); err != nil {
		out.Close()
		return err
	}
	if err := w.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func decompressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, snappy.NewReader(in)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func checkHeader(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, head); err != nil {
		return fmt.Errorf("short file: %w", err)
	}
	if !bytes.Equal(head, sqliteHeader) {
		return fmt.Errorf("bad header %q", head)
	}
	return nil
}
