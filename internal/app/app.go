// Package app wires configuration, the database handle, snapshot storage
// and the declared models together for the arkorm command.
package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/arkilian/arkorm/internal/backup"
	"github.com/arkilian/arkorm/internal/config"
	"github.com/arkilian/arkorm/internal/storage"
	"github.com/arkilian/arkorm/pkg/db"
	ormerrors "github.com/arkilian/arkorm/pkg/errors"
	"github.com/arkilian/arkorm/pkg/migrate"
	"github.com/arkilian/arkorm/pkg/observability"
	"github.com/arkilian/arkorm/pkg/query"
	"github.com/arkilian/arkorm/pkg/schema"
)

// App owns the resources behind one arkorm invocation.
type App struct {
	cfg *config.Config

	db      *db.DB
	stats   *observability.QueryStats
	storage storage.ObjectStorage
	backup  *backup.Manager

	schemas []*schema.Schema
	byName  map[string]*schema.Schema

	mu     sync.Mutex
	closed bool
}

// New resolves and validates cfg, builds the declared models and opens the
// database and snapshot storage.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	schemas, err := cfg.Schemas()
	if err != nil {
		return nil, fmt.Errorf("invalid models: %w", err)
	}
	if len(schemas) == 0 {
		schemas = []*schema.Schema{Person}
	}

	a := &App{
		cfg:     cfg,
		stats:   observability.NewQueryStats(time.Hour),
		schemas: schemas,
		byName:  make(map[string]*schema.Schema, len(schemas)),
	}
	for _, s := range schemas {
		a.byName[s.TypeName()] = s
	}

	if err := a.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a.db, err = db.Open(cfg.Database.Path, db.Options{
		JournalMode: cfg.Database.JournalMode,
		BusyTimeout: cfg.Database.BusyTimeout,
		Stats:       a.stats,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	log.Printf("app: database opened: %s", cfg.Database.Path)

	a.backup = backup.NewManager(a.db, a.storage, backup.Config{
		Prefix:   cfg.Backup.Prefix,
		Compress: cfg.Backup.Compression == config.CompressionSnappy,
	})
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	var err error
	switch a.cfg.Storage.Type {
	case "local":
		a.storage, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		a.storage, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       a.cfg.Storage.S3.Region,
			Endpoint:     a.cfg.Storage.S3.Endpoint,
			UsePathStyle: a.cfg.Storage.S3.Endpoint != "",
		})
	default:
		err = ormerrors.NewConfigError("unsupported storage type: " + a.cfg.Storage.Type)
	}
	if err != nil {
		return err
	}

	log.Printf("app: storage initialized: type=%s", a.cfg.Storage.Type)
	if a.cfg.Storage.Type == "s3" {
		log.Printf("app: s3 bucket=%s region=%s endpoint=%s",
			a.cfg.Storage.S3.Bucket, a.cfg.Storage.S3.Region, a.cfg.Storage.S3.Endpoint)
	}
	return nil
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Config { return a.cfg }

// DB returns the database handle.
func (a *App) DB() *db.DB { return a.db }

// Stats returns the statement and predicate statistics of this run.
func (a *App) Stats() *observability.QueryStats { return a.stats }

// Backup returns the snapshot manager.
func (a *App) Backup() *backup.Manager { return a.backup }

// Schemas returns the models in declaration order.
func (a *App) Schemas() []*schema.Schema {
	out := make([]*schema.Schema, len(a.schemas))
	copy(out, a.schemas)
	return out
}

// Schema looks up a model by type name.
func (a *App) Schema(name string) (*schema.Schema, error) {
	s, ok := a.byName[name]
	if !ok {
		names := make([]string, 0, len(a.byName))
		for n := range a.byName {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, ormerrors.NewConfigError(fmt.Sprintf("unknown model %q (declared: %v)", name, names))
	}
	return s, nil
}

// Migrate creates the table of every model.
func (a *App) Migrate(ctx context.Context) error {
	return migrate.Migrate(ctx, a.db, a.schemas...)
}

// Counts returns the row count of every model's table, keyed by type name.
func (a *App) Counts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(a.schemas))
	for _, s := range a.schemas {
		n, err := query.From(s).Count(ctx, a.db)
		if err != nil {
			return nil, err
		}
		out[s.TypeName()] = n
	}
	return out, nil
}

// Clean deletes the database file and reopens an empty one.
func (a *App) Clean() error {
	return a.db.Clean()
}

// Close releases the database.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	return a.db.Close()
}
