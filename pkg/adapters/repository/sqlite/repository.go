package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/core/domain"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/ports"
	_ "modernc.org/sqlite" // Local SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// topBuckets caps each grouped breakdown of the link stats.
const topBuckets = 10

type SQLiteRepository struct {
	db *sqlx.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName, dsn := resolveDriver(dbURL)

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite" {
		// One connection serializes writers and keeps shared in-memory databases alive.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// resolveDriver picks the sql driver for dbURL and returns the DSN to open.
// The "sqlite:" prefix of the original deployment URLs is accepted.
func resolveDriver(dbURL string) (driverName, dsn string) {
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		return "libsql", dbURL
	}

	dsn = strings.TrimPrefix(dbURL, "sqlite://")
	dsn = strings.TrimPrefix(dsn, "sqlite:")
	if strings.Contains(dsn, "_pragma=") {
		return "sqlite", dsn
	}

	pragmas := []string{"_pragma=busy_timeout(5000)", "_pragma=foreign_keys(1)"}
	if !strings.Contains(dsn, "mode=memory") && dsn != ":memory:" {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return "sqlite", dsn + sep + strings.Join(pragmas, "&")
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}

	// m is not closed: closing it would close db as well.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	slog.Debug("database migrations applied")
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}

// Timestamps are stored as RFC 3339 text so the zone offset survives every driver.
// Queries order by julianday() of the column, which normalizes the offset to UTC.
func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type linkRow struct {
	ID          string `db:"id"`
	OriginalURL string `db:"original_url"`
	Scans       int64  `db:"scans"`
	CreatedAt   string `db:"created_at"`
}

func (l linkRow) toDomain() domain.Link {
	return domain.Link{
		ID:          l.ID,
		OriginalURL: l.OriginalURL,
		Scans:       l.Scans,
		CreatedAt:   parseTime(l.CreatedAt),
	}
}

type scanRow struct {
	ID        int64  `db:"id"`
	LinkID    string `db:"link_id"`
	IPAddress string `db:"ip_address"`
	UserAgent string `db:"user_agent"`
	Country   string `db:"country"`
	City      string `db:"city"`
	ScannedAt string `db:"scanned_at"`
}

type locationRow struct {
	ID          int64   `db:"id"`
	LinkID      string  `db:"link_id"`
	Lat         float64 `db:"lat"`
	Lon         float64 `db:"lon"`
	Description string  `db:"description"`
	CreatedAt   string  `db:"created_at"`
}

func (r *SQLiteRepository) CreateLink(ctx context.Context, link *domain.Link) (bool, error) {
	query := `INSERT INTO links (id, original_url, scans, created_at) VALUES (?, ?, ?, ?)
			  ON CONFLICT(id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, link.ID, link.OriginalURL, link.Scans, formatTime(link.CreatedAt))
	if err != nil {
		return false, storageErr("insert link", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("insert link", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) GetLink(ctx context.Context, id string) (*domain.Link, error) {
	query := `SELECT id, original_url, scans, created_at FROM links WHERE id = ?`

	var row linkRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get link", err)
	}

	link := row.toDomain()
	return &link, nil
}

func (r *SQLiteRepository) LinkExists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM links WHERE id = ?`, id); err != nil {
		return false, storageErr("count links", err)
	}
	return count > 0, nil
}

func (r *SQLiteRepository) ListLinks(ctx context.Context, limit, offset int) ([]domain.Link, error) {
	query := `SELECT id, original_url, scans, created_at FROM links
			  ORDER BY julianday(created_at) DESC, id ASC LIMIT ? OFFSET ?`

	var rows []linkRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, storageErr("list links", err)
	}

	links := make([]domain.Link, 0, len(rows))
	for _, row := range rows {
		links = append(links, row.toDomain())
	}
	return links, nil
}

func (r *SQLiteRepository) CountLinks(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM links`); err != nil {
		return 0, storageErr("count links", err)
	}
	return count, nil
}

func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	var rows []linkRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, original_url, scans, created_at FROM links ORDER BY julianday(created_at) ASC, id ASC`); err != nil {
		return nil, storageErr("dump links", err)
	}

	links := make([]domain.Link, 0, len(rows))
	for _, row := range rows {
		links = append(links, row.toDomain())
	}
	return links, nil
}

func (r *SQLiteRepository) RecordScan(ctx context.Context, scan *domain.Scan) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("begin scan", err)
	}
	defer tx.Rollback()

	// 1. Insert Scan Record
	queryScan := `INSERT INTO scans (link_id, ip_address, user_agent, country, city, scanned_at) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, queryScan, scan.LinkID, scan.IPAddress, scan.UserAgent, scan.Country, scan.City, formatTime(scan.ScannedAt))
	if err != nil {
		return storageErr("insert scan", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("insert scan", err)
	}

	// 2. Increment Link Scans Counter in the same transaction
	res, err = tx.ExecContext(ctx, `UPDATE links SET scans = scans + 1 WHERE id = ?`, scan.LinkID)
	if err != nil {
		return storageErr("increment scans", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit scan", err)
	}
	scan.ID = id
	return nil
}

func (r *SQLiteRepository) ListScans(ctx context.Context, linkID string, limit int) ([]domain.Scan, error) {
	query := `SELECT id, link_id, ip_address, user_agent, country, city, scanned_at
			  FROM scans WHERE link_id = ? ORDER BY id DESC LIMIT ?`

	var rows []scanRow
	if err := r.db.SelectContext(ctx, &rows, query, linkID, limit); err != nil {
		return nil, storageErr("list scans", err)
	}

	scans := make([]domain.Scan, 0, len(rows))
	for _, s := range rows {
		scans = append(scans, domain.Scan{
			ID:        s.ID,
			LinkID:    s.LinkID,
			IPAddress: s.IPAddress,
			UserAgent: s.UserAgent,
			Country:   s.Country,
			City:      s.City,
			ScannedAt: parseTime(s.ScannedAt),
		})
	}
	return scans, nil
}

func (r *SQLiteRepository) CreateLocation(ctx context.Context, location *domain.Location) error {
	query := `INSERT INTO locations (link_id, lat, lon, description, created_at) VALUES (?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query, location.LinkID, location.Lat, location.Lon, location.Description, formatTime(location.CreatedAt))
	if err != nil {
		return storageErr("insert location", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("insert location", err)
	}
	location.ID = id
	return nil
}

func (r *SQLiteRepository) ListLocations(ctx context.Context, linkID string) ([]domain.Location, error) {
	query := `SELECT id, link_id, lat, lon, description, created_at
			  FROM locations WHERE link_id = ? ORDER BY id ASC`

	var rows []locationRow
	if err := r.db.SelectContext(ctx, &rows, query, linkID); err != nil {
		return nil, storageErr("list locations", err)
	}

	locations := make([]domain.Location, 0, len(rows))
	for _, l := range rows {
		locations = append(locations, domain.Location{
			ID:          l.ID,
			LinkID:      l.LinkID,
			Lat:         l.Lat,
			Lon:         l.Lon,
			Description: l.Description,
			CreatedAt:   parseTime(l.CreatedAt),
		})
	}
	return locations, nil
}

func (r *SQLiteRepository) GetLinkStats(ctx context.Context, linkID string) (*domain.LinkStats, error) {
	stats := &domain.LinkStats{
		DailyScans:    []domain.DailyScan{},
		TopCountries:  []domain.Bucket{},
		TopUserAgents: []domain.Bucket{},
	}

	// Total Scans
	if err := r.db.GetContext(ctx, &stats.TotalScans, `SELECT COUNT(*) FROM scans WHERE link_id = ?`, linkID); err != nil {
		return nil, storageErr("count scans", err)
	}

	// Daily Scans (last 30 days with traffic). The date prefix of the stored
	// text is the calendar day in the zone the scan was recorded in.
	daily := `SELECT substr(scanned_at, 1, 10) AS date, COUNT(*) AS count
			  FROM scans
			  WHERE link_id = ?
			  GROUP BY date
			  ORDER BY date DESC
			  LIMIT 30`
	if err := r.db.SelectContext(ctx, &stats.DailyScans, daily, linkID); err != nil {
		return nil, storageErr("daily scans", err)
	}

	countries := `SELECT CASE WHEN country = '' THEN 'Unknown' ELSE country END AS value, COUNT(*) AS count
				  FROM scans
				  WHERE link_id = ?
				  GROUP BY value
				  ORDER BY count DESC, value ASC
				  LIMIT ?`
	if err := r.db.SelectContext(ctx, &stats.TopCountries, countries, linkID, topBuckets); err != nil {
		return nil, storageErr("top countries", err)
	}

	agents := `SELECT user_agent AS value, COUNT(*) AS count
			   FROM scans
			   WHERE link_id = ?
			   GROUP BY value
			   ORDER BY count DESC, value ASC
			   LIMIT ?`
	if err := r.db.SelectContext(ctx, &stats.TopUserAgents, agents, linkID, topBuckets); err != nil {
		return nil, storageErr("top user agents", err)
	}

	return stats, nil
}

// TopLinks returns the most scanned links, read from the maintained counter.
func (r *SQLiteRepository) TopLinks(ctx context.Context, limit int) ([]domain.Link, error) {
	query := `SELECT id, original_url, scans, created_at FROM links
			  ORDER BY scans DESC, julianday(created_at) DESC, id ASC LIMIT ?`

	var rows []linkRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, storageErr("top links", err)
	}

	links := make([]domain.Link, 0, len(rows))
	for _, row := range rows {
		links = append(links, row.toDomain())
	}
	return links, nil
}

func (r *SQLiteRepository) Totals(ctx context.Context) (*domain.Totals, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM links) AS links,
		(SELECT COUNT(*) FROM scans) AS scans,
		(SELECT COUNT(*) FROM locations) AS locations`

	var totals domain.Totals
	err := r.db.QueryRowxContext(ctx, query).Scan(&totals.Links, &totals.Scans, &totals.Locations)
	if err != nil {
		return nil, storageErr("totals", err)
	}
	return &totals, nil
}

// Ensure interface compliance
var _ ports.LinkRepository = (*SQLiteRepository)(nil)
