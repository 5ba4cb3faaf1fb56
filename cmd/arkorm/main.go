// Package main implements the arkorm command, which migrates, queries and
// snapshots a SQLite database through the declared models.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/arkilian/arkorm/internal/app"
	"github.com/arkilian/arkorm/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

// listFlag collects a flag given several times.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, " ") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var (
		configFile  string
		dataDir     string
		dbPath      string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for the database and local snapshots")
	flag.StringVar(&dbPath, "db", "", "Path to the SQLite database file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "arkorm - declare models, query and snapshot a SQLite database\n\n")
		fmt.Fprintf(os.Stderr, "Usage: arkorm [options] <command> [command options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  migrate   Create the tables of every declared model\n")
		fmt.Fprintf(os.Stderr, "  demo      Rebuild the database with sample people and query them\n")
		fmt.Fprintf(os.Stderr, "  query     Run a query: -model M [-filter k=v]... [-exclude k=v]... [-only a,b]\n")
		fmt.Fprintf(os.Stderr, "  backup    Upload a snapshot: [-list] [-prune N]\n")
		fmt.Fprintf(os.Stderr, "  restore   Restore a snapshot: [object path, default latest]\n")
		fmt.Fprintf(os.Stderr, "  stats     Print row counts per model\n")
		fmt.Fprintf(os.Stderr, "  clean     Delete the database file\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  ARKORM_DATA_DIR         Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  ARKORM_DB_PATH          Database file\n")
		fmt.Fprintf(os.Stderr, "  ARKORM_STORAGE_TYPE     Snapshot storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  ARKORM_S3_BUCKET        Snapshot bucket for s3 storage\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("arkorm version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, dbPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	printBanner(cfg)

	err = run(ctx, application, flag.Arg(0), flag.Args()[1:])
	if cerr := application.Close(); cerr != nil {
		log.Printf("Close error: %v", cerr)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", flag.Arg(0), err)
	}
}

func run(ctx context.Context, a *app.App, command string, args []string) error {
	switch command {
	case "migrate":
		return a.Migrate(ctx)
	case "demo":
		return a.Demo(ctx, os.Stdout)
	case "query":
		return runQuery(ctx, a, args)
	case "backup":
		return runBackup(ctx, a, args)
	case "restore":
		return runRestore(ctx, a, args)
	case "stats":
		return runStats(ctx, a)
	case "clean":
		return a.Clean()
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runQuery(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	var filter, exclude listFlag
	model := fs.String("model", "", "Model type name")
	only := fs.String("only", "", "Comma separated fields to select")
	count := fs.Bool("count", false, "Print the number of matching rows only")
	showStats := fs.Bool("stats", false, "Print statement and predicate statistics of this query")
	fs.Var(&filter, "filter", "Lookup key=value to match (repeatable)")
	fs.Var(&exclude, "exclude", "Lookup key=value to exclude (repeatable)")
	fs.Parse(args)

	if *model == "" {
		schemas := a.Schemas()
		if len(schemas) != 1 {
			return fmt.Errorf("-model is required when %d models are declared", len(schemas))
		}
		*model = schemas[0].TypeName()
	}

	var fields []string
	if *only != "" {
		fields = strings.Split(*only, ",")
	}
	q, err := a.BuildQuery(*model, filter, exclude, fields)
	if err != nil {
		return err
	}

	if *count {
		n, err := q.Count(ctx, a.DB())
		if err != nil {
			return err
		}
		fmt.Println(n)
	} else if err := a.PrintQuery(ctx, os.Stdout, q); err != nil {
		return err
	}

	if *showStats {
		fmt.Println()
		printStats(a)
	}
	return nil
}

func runBackup(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	list := fs.Bool("list", false, "List snapshots instead of taking one")
	prune := fs.Int("prune", -1, "After the snapshot, keep only the newest N")
	fs.Parse(args)

	if *list {
		snapshots, err := a.Backup().List(ctx)
		if err != nil {
			return err
		}
		for _, s := range snapshots {
			fmt.Printf("%s  %s  %d bytes\n", s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), s.ObjectPath, s.Size)
		}
		return nil
	}

	snap, err := a.Backup().Snapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Println(snap.ObjectPath)

	if *prune >= 0 {
		if _, err := a.Backup().Prune(ctx, *prune); err != nil {
			return err
		}
	}
	return nil
}

func runRestore(ctx context.Context, a *app.App, args []string) error {
	if len(args) > 0 {
		return a.Backup().Restore(ctx, args[0])
	}
	latest, err := a.Backup().Latest(ctx)
	if err != nil {
		return err
	}
	if latest == nil {
		return fmt.Errorf("no snapshots under %s", a.Config().Backup.Prefix)
	}
	return a.Backup().Restore(ctx, latest.ObjectPath)
}

func runStats(ctx context.Context, a *app.App) error {
	counts, err := a.Counts(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Printf("%-20s %d rows\n", n, counts[n])
	}
	return nil
}

func printStats(a *app.App) {
	for _, s := range a.Stats().GetTopStatements(10) {
		fmt.Printf("%016x  %4d runs  %4d errors  %v  %s\n", s.Fingerprint, s.Count, s.Errors, s.TotalTime, s.SQL)
	}
	for _, c := range a.Stats().GetTopPredicates(10) {
		fmt.Printf("%-30s %d uses %v\n", c.Column, c.Frequency, c.Operators)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, dbPath string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables, including any .env file
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	return cfg, nil
}

// printBanner logs a configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("arkorm %s", version)
	log.Printf("  Database: %s (journal=%s)", cfg.Database.Path, cfg.Database.JournalMode)
	log.Printf("  Storage:  %s", cfg.Storage.Type)
	log.Printf("  Models:   %d declared", len(cfg.Models))
}
