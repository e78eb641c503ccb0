package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"

	"github.com/wadjakorntonsri/go-qr-shortener/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/config"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/core/domain"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/logger"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/ports"
)

const usage = "expected 'export', 'import' or 'stats' subcommands"

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "JSON file to import")
	statsCmd := flag.NewFlagSet("stats", flag.ExitOnError)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, "")
	slog.SetDefault(log)

	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to db", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	ctx := context.Background()
	switch os.Args[1] {
	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		err = doExport(ctx, repo, os.Stdout)
	case "import":
		_ = importCmd.Parse(os.Args[2:])
		if *importFile == "" {
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		var imported, skipped int
		imported, skipped, err = doImport(ctx, repo, *importFile)
		if err == nil {
			log.Info("import finished", "imported", imported, "skipped", skipped)
		}
	case "stats":
		_ = statsCmd.Parse(os.Args[2:])
		err = doStats(ctx, repo, os.Stdout)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		log.Error(os.Args[1]+" failed", "error", err)
		repo.Close()
		os.Exit(1)
	}
}

// archive is the export format: every link with its scan log and locations.
type archive struct {
	Links     []domain.Link     `json:"links"`
	Scans     []domain.Scan     `json:"scans"`
	Locations []domain.Location `json:"locations"`
}

// allRows is the list limit used to read a link's complete history.
const allRows = math.MaxInt32

func doExport(ctx context.Context, repo ports.LinkRepository, w io.Writer) error {
	links, err := repo.Dump(ctx)
	if err != nil {
		return err
	}

	dump := archive{Links: links, Scans: []domain.Scan{}, Locations: []domain.Location{}}
	for _, l := range links {
		scans, err := repo.ListScans(ctx, l.ID, allRows)
		if err != nil {
			return err
		}
		slices.Reverse(scans) // oldest first
		dump.Scans = append(dump.Scans, scans...)

		locations, err := repo.ListLocations(ctx, l.ID)
		if err != nil {
			return err
		}
		dump.Locations = append(dump.Locations, locations...)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(dump)
}

// doImport inserts every link of filename whose id is still free, keeping
// its id and creation time. The scan counter is rebuilt by replaying the
// archived scans rather than copied.
func doImport(ctx context.Context, repo ports.LinkRepository, filename string) (imported, skipped int, err error) {
	file, err := os.Open(filename)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	var dump archive
	if err := json.NewDecoder(file).Decode(&dump); err != nil {
		return 0, 0, fmt.Errorf("decode %s: %w", filename, err)
	}

	fresh := make(map[string]bool, len(dump.Links))
	for i := range dump.Links {
		l := dump.Links[i]
		if l.ID == "" || l.OriginalURL == "" {
			slog.Warn("skipping incomplete link", "index", i)
			skipped++
			continue
		}

		l.Scans = 0
		created, err := repo.CreateLink(ctx, &l)
		if err != nil {
			return imported, skipped, fmt.Errorf("import %s: %w", l.ID, err)
		}
		if !created {
			slog.Info("skipping existing link", "id", l.ID)
			skipped++
			continue
		}
		fresh[l.ID] = true
		imported++
	}

	for _, s := range dump.Scans {
		if !fresh[s.LinkID] {
			continue
		}
		s.ID = 0
		if err := repo.RecordScan(ctx, &s); err != nil {
			return imported, skipped, fmt.Errorf("import scan of %s: %w", s.LinkID, err)
		}
	}

	for _, loc := range dump.Locations {
		if !fresh[loc.LinkID] {
			continue
		}
		loc.ID = 0
		if err := repo.CreateLocation(ctx, &loc); err != nil {
			return imported, skipped, fmt.Errorf("import location of %s: %w", loc.LinkID, err)
		}
	}

	return imported, skipped, nil
}

func doStats(ctx context.Context, repo ports.LinkRepository, w io.Writer) error {
	totals, err := repo.Totals(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "links: %d\nscans: %d\nlocations: %d\n", totals.Links, totals.Scans, totals.Locations)
	return err
}
