package ports

import (
	"context"

	"github.com/wadjakorntonsri/go-qr-shortener/pkg/core/domain"
)

// LinkRepository defines storage operations for links, scans and locations
type LinkRepository interface {
	// CreateLink inserts link unless its id is taken. It reports false on an id collision.
	CreateLink(ctx context.Context, link *domain.Link) (bool, error)
	GetLink(ctx context.Context, id string) (*domain.Link, error)
	LinkExists(ctx context.Context, id string) (bool, error)
	ListLinks(ctx context.Context, limit, offset int) ([]domain.Link, error)
	CountLinks(ctx context.Context) (int64, error)
	Dump(ctx context.Context) ([]domain.Link, error) // For migration

	// RecordScan appends scan and bumps the link counter atomically.
	RecordScan(ctx context.Context, scan *domain.Scan) error
	ListScans(ctx context.Context, linkID string, limit int) ([]domain.Scan, error)

	CreateLocation(ctx context.Context, location *domain.Location) error
	ListLocations(ctx context.Context, linkID string) ([]domain.Location, error)

	// Stats
	GetLinkStats(ctx context.Context, linkID string) (*domain.LinkStats, error)
	TopLinks(ctx context.Context, limit int) ([]domain.Link, error)
	Totals(ctx context.Context) (*domain.Totals, error)
	Ping(ctx context.Context) error
}

// GeoResolver maps a caller IP to a country and city.
type GeoResolver interface {
	Lookup(ip string) (country, city string, err error)
}

// LinkService defines the business logic operations
type LinkService interface {
	Shorten(ctx context.Context, rawURL string) (*domain.Link, string, error)
	Resolve(ctx context.Context, id, ip, userAgent string) (string, error)
	GetLink(ctx context.Context, id string) (*domain.Link, error)
	ShortURL(id string) string
	QRCodeSVG(id string) (string, error)
	QRCodePNG(id string, size int) ([]byte, error)

	RegisterLocation(ctx context.Context, id string, lat, lon float64, description string) (*domain.Location, error)

	// Admin
	ListLinks(ctx context.Context, page, limit int) (*domain.LinkPage, error)
	ListScans(ctx context.Context, id string, limit int) ([]domain.Scan, error)
	ListLocations(ctx context.Context, id string) ([]domain.Location, error)
	GetLinkStats(ctx context.Context, id string) (*domain.LinkStats, error)
	Dashboard(ctx context.Context, limit int) (*domain.Dashboard, error)
}
