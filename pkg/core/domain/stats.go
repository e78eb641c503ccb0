package domain

// LinkStats represents aggregated statistics for a link
type LinkStats struct {
	TotalScans    int64       `json:"total_scans"`
	DailyScans    []DailyScan `json:"daily_scans"` // newest first, at most 30 days
	TopCountries  []Bucket    `json:"top_countries"`
	TopUserAgents []Bucket    `json:"top_user_agents"`
}

type DailyScan struct {
	Date  string `json:"date"` // YYYY-MM-DD in the zone the scan was recorded in
	Count int64  `json:"count"`
}

// Bucket is one grouped value with its scan count.
type Bucket struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Dashboard is the system-wide overview shown to admins.
type Dashboard struct {
	Totals
	TopLinks []Link `json:"top_links"`
}

// LinkPage is one page of links with the paging actually applied.
type LinkPage struct {
	Data  []Link `json:"data"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}
