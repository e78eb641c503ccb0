package services

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/wadjakorntonsri/go-qr-shortener/pkg/core/domain"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/ports"
)

const (
	idLength      = 8
	maxIDAttempts = 5

	defaultScanLimit = 50
	maxScanLimit     = 500
	defaultPageLimit = 10
	maxPageLimit     = 100

	unknownUserAgent = "Unknown"
)

type LinkService struct {
	repo    ports.LinkRepository
	geo     ports.GeoResolver
	qr      *QRRenderer
	baseURL string
	loc     *time.Location
	now     func() time.Time
	newID   func() (string, error)
}

type Option func(*LinkService)

// WithBaseURL sets the public origin short links are built from.
func WithBaseURL(baseURL string) Option {
	return func(s *LinkService) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithLocation sets the timezone creation and scan timestamps are recorded in.
func WithLocation(loc *time.Location) Option {
	return func(s *LinkService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithGeoResolver(geo ports.GeoResolver) Option {
	return func(s *LinkService) { s.geo = geo }
}

func WithClock(now func() time.Time) Option {
	return func(s *LinkService) { s.now = now }
}

func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *LinkService) { s.newID = gen }
}

func NewLinkService(repo ports.LinkRepository, opts ...Option) *LinkService {
	s := &LinkService{
		repo:    repo,
		qr:      NewQRRenderer(),
		baseURL: "http://localhost:3000",
		loc:     time.UTC,
		now:     time.Now,
		newID:   func() (string, error) { return generateID(idLength) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LinkService) ShortURL(id string) string {
	return s.baseURL + "/r/" + id
}

func (s *LinkService) timestamp() time.Time {
	return s.now().In(s.loc).Truncate(time.Second)
}

// Shorten validates rawURL, stores it under a fresh id and returns the link
// with the QR code SVG of its short URL.
func (s *LinkService) Shorten(ctx context.Context, rawURL string) (*domain.Link, string, error) {
	normalized, err := ValidateURL(rawURL)
	if err != nil {
		return nil, "", err
	}

	link := &domain.Link{
		OriginalURL: normalized,
		CreatedAt:   s.timestamp(),
	}

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, "", err
		}
		link.ID = id

		created, err := s.repo.CreateLink(ctx, link)
		if err != nil {
			return nil, "", err
		}
		if !created {
			slog.WarnContext(ctx, "link id collision", "id", id, "attempt", attempt)
			continue
		}

		svg, err := s.QRCodeSVG(id)
		if err != nil {
			return nil, "", err
		}
		return link, svg, nil
	}

	return nil, "", domain.ErrIDCollision
}

// Resolve logs a scan of id and returns the URL to redirect to.
func (s *LinkService) Resolve(ctx context.Context, id, ip, userAgent string) (string, error) {
	link, err := s.GetLink(ctx, id)
	if err != nil {
		return "", err
	}

	if userAgent == "" {
		userAgent = unknownUserAgent
	}

	scan := &domain.Scan{
		LinkID:    link.ID,
		IPAddress: ip,
		UserAgent: userAgent,
		ScannedAt: s.timestamp(),
	}

	if s.geo != nil && ip != "" {
		country, city, err := s.geo.Lookup(ip)
		if err != nil {
			slog.DebugContext(ctx, "geoip lookup failed", "ip", ip, "error", err)
		} else {
			scan.Country, scan.City = country, city
		}
	}

	if err := s.repo.RecordScan(ctx, scan); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "scan recorded", "id", id, "scan_id", scan.ID, "ip", ip)
	return link.OriginalURL, nil
}

func (s *LinkService) GetLink(ctx context.Context, id string) (*domain.Link, error) {
	link, err := s.repo.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrNotFound
	}
	return link, nil
}

func (s *LinkService) QRCodeSVG(id string) (string, error) {
	return s.qr.SVG(s.ShortURL(id))
}

func (s *LinkService) QRCodePNG(id string, size int) ([]byte, error) {
	return s.qr.PNG(s.ShortURL(id), size)
}

func (s *LinkService) RegisterLocation(ctx context.Context, id string, lat, lon float64, description string) (*domain.Location, error) {
	if err := s.ensureLink(ctx, id); err != nil {
		return nil, err
	}

	location := &domain.Location{
		LinkID:      id,
		Lat:         lat,
		Lon:         lon,
		Description: description,
		CreatedAt:   s.timestamp(),
	}
	if err := s.repo.CreateLocation(ctx, location); err != nil {
		return nil, err
	}
	return location, nil
}

func (s *LinkService) ensureLink(ctx context.Context, id string) error {
	exists, err := s.repo.LinkExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

// ListLinks returns one page of links. Page and limit are clamped and the
// values actually applied are echoed in the result.
func (s *LinkService) ListLinks(ctx context.Context, page, limit int) (*domain.LinkPage, error) {
	page, limit = clampPage(page, limit)
	offset := (page - 1) * limit

	links, err := s.repo.ListLinks(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountLinks(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.LinkPage{Data: links, Total: count, Page: page, Limit: limit}, nil
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	return page, min(limit, maxPageLimit)
}

func (s *LinkService) ListScans(ctx context.Context, id string, limit int) ([]domain.Scan, error) {
	if err := s.ensureLink(ctx, id); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = defaultScanLimit
	}
	if limit > maxScanLimit {
		limit = maxScanLimit
	}
	return s.repo.ListScans(ctx, id, limit)
}

func (s *LinkService) ListLocations(ctx context.Context, id string) ([]domain.Location, error) {
	if err := s.ensureLink(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListLocations(ctx, id)
}

func (s *LinkService) GetLinkStats(ctx context.Context, id string) (*domain.LinkStats, error) {
	if err := s.ensureLink(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetLinkStats(ctx, id)
}

// Dashboard returns table totals and the limit most scanned links.
func (s *LinkService) Dashboard(ctx context.Context, limit int) (*domain.Dashboard, error) {
	_, limit = clampPage(1, limit)

	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, err
	}

	top, err := s.repo.TopLinks(ctx, limit)
	if err != nil {
		return nil, err
	}

	return &domain.Dashboard{Totals: *totals, TopLinks: top}, nil
}

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateID(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}

var _ ports.LinkService = (*LinkService)(nil)
