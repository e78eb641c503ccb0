package domain

import "time"

// Link maps a short identifier to the URL it redirects to.
type Link struct {
	ID          string    `json:"id"`
	OriginalURL string    `json:"original_url"`
	Scans       int64     `json:"scans"`
	CreatedAt   time.Time `json:"created_at"`
}

// Totals is the system-wide row count of every table
type Totals struct {
	Links     int64 `json:"links"`
	Scans     int64 `json:"scans"`
	Locations int64 `json:"locations"`
}
