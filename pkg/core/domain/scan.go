package domain

import "time"

// Scan is one resolution of a short link
type Scan struct {
	ID        int64     `json:"id"`
	LinkID    string    `json:"link_id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Country   string    `json:"country,omitempty"` // GeoIP enrichment, empty when disabled
	City      string    `json:"city,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
}

// Location is a client-reported position tied to a link.
type Location struct {
	ID          int64     `json:"id"`
	LinkID      string    `json:"link_id"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
