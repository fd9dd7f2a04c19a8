package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ccollicutt/slalog/internal/logging"
	"github.com/ccollicutt/slalog/internal/store"
	"github.com/ccollicutt/slalog/pkg/analyzer"
	"github.com/ccollicutt/slalog/pkg/catalog"
	"github.com/ccollicutt/slalog/pkg/config"
	"github.com/ccollicutt/slalog/pkg/source"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// Exit codes.
const (
	ExitOK           = 0
	ExitNonCompliant = 1
	ExitError        = 2
)

// loadConfig loads the configuration and installs the application logger.
// The returned function closes the log file.
func loadConfig(ctx context.Context, path string) (*config.Config, func(), error) {
	cfg, err := config.Load(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	closeLog, err := logging.Init(logging.Options{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return nil, nil, err
	}

	return cfg, func() { _ = closeLog() }, nil
}

// SourceOptions selects where incidents are read from. Files win over the
// database.
type SourceOptions struct {
	Incidents []string
	DSN       string
	Driver    string
}

// incidentSource is an opened incident source together with the catalog
// it should be evaluated against.
type incidentSource struct {
	analyzer.IncidentSource

	catalog *catalog.Catalog
	store   *store.Store // nil for file sources
	label   string
}

func (s *incidentSource) Close() error {
	err := s.IncidentSource.Close()
	if s.store != nil {
		err = errors.Join(err, s.store.Close())
	}
	return err
}

// openStore opens and migrates the configured database, with flag
// overrides.
func openStore(ctx context.Context, cfg *config.Config, opts SourceOptions) (*store.Store, error) {
	driver := cfg.Storage.Driver
	if opts.Driver != "" {
		driver = opts.Driver
	}
	dsn := cfg.Storage.DSN
	if opts.DSN != "" {
		dsn = opts.DSN
	}
	if dsn == "" {
		return nil, errors.New("no incident source: pass --incidents or set storage.dsn")
	}

	st, err := store.Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// openSource opens incident files or the database. Database catalog rows
// overlay the configured catalog.
func openSource(ctx context.Context, cfg *config.Config, opts SourceOptions, q store.IncidentQuery) (*incidentSource, error) {
	if len(opts.Incidents) > 0 {
		fs, err := source.Open(opts.Incidents)
		if err != nil {
			return nil, fmt.Errorf("opening incident files: %w", err)
		}
		return &incidentSource{
			IncidentSource: fs,
			catalog:        cfg.Catalog(),
			label:          strings.Join(fs.Paths(), ","),
		}, nil
	}

	st, err := openStore(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	dbCat, err := st.LoadCatalog(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}

	rows, err := st.Incidents(ctx, q)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &incidentSource{
		IncidentSource: rows,
		catalog:        catalog.Merge(cfg.Catalog(), dbCat),
		store:          st,
		label:          st.Driver() + " database",
	}, nil
}

// readRefsFile reads one incident ref per line. Blank lines and lines
// starting with # are skipped.
func readRefsFile(path string) ([]string, error) {
	f, err := os.Open(path) // #nosec G304 -- user-supplied refs file
	if err != nil {
		return nil, fmt.Errorf("opening refs file: %w", err)
	}
	defer f.Close()

	var refs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		refs = append(refs, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading refs file: %w", err)
	}
	return refs, nil
}

// lastInstant is used as the open end of a resolution range.
var lastInstant = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// parseDateRange parses inclusive YYYY-MM-DD bounds in loc. The end covers
// the whole day. Both empty means no range.
func parseDateRange(from, to string, loc *time.Location) (start, end time.Time, ok bool, err error) {
	if from == "" && to == "" {
		return time.Time{}, time.Time{}, false, nil
	}

	end = lastInstant
	if from != "" {
		start, err = time.ParseInLocation(time.DateOnly, from, loc)
		if err != nil {
			return start, end, false, fmt.Errorf("invalid --from %q (want YYYY-MM-DD)", from)
		}
	}
	if to != "" {
		day, err := time.ParseInLocation(time.DateOnly, to, loc)
		if err != nil {
			return start, end, false, fmt.Errorf("invalid --to %q (want YYYY-MM-DD)", to)
		}
		end = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	if end.Before(start) {
		return start, end, false, fmt.Errorf("--from %s is after --to %s", from, to)
	}
	return start, end, true, nil
}
