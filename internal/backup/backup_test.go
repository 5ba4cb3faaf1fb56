package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arkilian/arkorm/internal/storage"
	"github.com/arkilian/arkorm/pkg/db"
	ormerrors "github.com/arkilian/arkorm/pkg/errors"
	"github.com/arkilian/arkorm/pkg/field"
	"github.com/arkilian/arkorm/pkg/migrate"
	"github.com/arkilian/arkorm/pkg/persist"
	"github.com/arkilian/arkorm/pkg/query"
	"github.com/arkilian/arkorm/pkg/schema"
)

var notes = schema.New("Note").
	Field("body", field.Char(64)).
	MustBuild()

type fixture struct {
	db      *db.DB
	store   *storage.LocalStorage
	manager *Manager
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "live.db"), db.DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	if err := migrate.Migrate(context.Background(), d, notes); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return &fixture{db: d, store: store, manager: NewManager(d, store, cfg)}
}

func (f *fixture) save(t *testing.T, body string) {
	t.Helper()
	if err := persist.Save(context.Background(), f.db, notes.MustNew(map[string]any{"body": body})); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()
	n, err := query.From(notes).Count(context.Background(), f.db)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func TestSnapshotRestore(t *testing.T) {
	for _, compress := range []bool{true, false} {
		name := "plain"
		if compress {
			name = "snappy"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, Config{Prefix: "snaps/", Compress: compress})
			ctx := context.Background()

			f.save(t, "first")
			f.save(t, "second")

			snap, err := f.manager.Snapshot(ctx)
			if err != nil {
				t.Fatalf("Snapshot: %v", err)
			}
			wantSuffix := plainExt
			if compress {
				wantSuffix = compressedExt
			}
			if !strings.HasPrefix(snap.ObjectPath, "snaps/") || !strings.HasSuffix(snap.ObjectPath, wantSuffix) {
				t.Errorf("ObjectPath = %q", snap.ObjectPath)
			}
			if snap.Compressed != compress || snap.Size == 0 {
				t.Errorf("snapshot = %+v", snap)
			}

			f.save(t, "after snapshot")
			if got := f.count(t); got != 3 {
				t.Fatalf("count before restore = %d", got)
			}

			if err := f.manager.Restore(ctx, snap.ObjectPath); err != nil {
				t.Fatalf("Restore: %v", err)
			}
			if got := f.count(t); got != 2 {
				t.Errorf("count after restore = %d, want 2", got)
			}

			// The handle stays writable after a restore.
			f.save(t, "third")
			if got := f.count(t); got != 3 {
				t.Errorf("count after write = %d, want 3", got)
			}
		})
	}
}

func TestRestore_MissingSnapshot(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.save(t, "keep me")

	err := f.manager.Restore(context.Background(), "snapshots/missing.sqlite.sz")
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := f.count(t); got != 1 {
		t.Errorf("live database changed: count = %d", got)
	}
}

func TestRestore_RejectsNonDatabase(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.save(t, "keep me")
	ctx := context.Background()

	junk := filepath.Join(t.TempDir(), "junk.sqlite")
	if err := os.WriteFile(junk, []byte("definitely not sqlite, but long enough"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := f.store.Upload(ctx, junk, "snapshots/junk.sqlite"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	err := f.manager.Restore(ctx, "snapshots/junk.sqlite")
	if ormerrors.GetCategory(err) != ormerrors.ErrCategoryStorage {
		t.Fatalf("expected storage error, got %v", err)
	}
	if got := f.count(t); got != 1 {
		t.Errorf("live database changed: count = %d", got)
	}
}

func TestListLatestPrune(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	var taken []*Snapshot
	for i := 0; i < 3; i++ {
		f.save(t, "row")
		snap, err := f.manager.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot %d: %v", i, err)
		}
		taken = append(taken, snap)
	}

	// Objects that are not snapshots are ignored.
	stray := filepath.Join(t.TempDir(), "README")
	if err := os.WriteFile(stray, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := f.store.Upload(ctx, stray, "snapshots/README"); err != nil {
		t.Fatal(err)
	}

	list, err := f.manager.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List returned %d snapshots", len(list))
	}
	for i, snap := range list {
		if want := taken[len(taken)-1-i].ID; snap.ID != want {
			t.Errorf("list[%d] = %s, want %s", i, snap.ID, want)
		}
	}

	latest, err := f.manager.Latest(ctx)
	if err != nil || latest == nil || latest.ID != taken[2].ID {
		t.Errorf("Latest = %+v, %v", latest, err)
	}

	deleted, err := f.manager.Prune(ctx, 1)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted = %v", deleted)
	}
	list, _ = f.manager.List(ctx)
	if len(list) != 1 || list[0].ID != taken[2].ID {
		t.Errorf("after prune = %+v", list)
	}
}

func TestLatest_Empty(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	latest, err := f.manager.Latest(context.Background())
	if err != nil || latest != nil {
		t.Errorf("Latest = %+v, %v", latest, err)
	}
}
