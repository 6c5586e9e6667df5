package models

// DailyStats is a per-day count used by admin dashboards.
type DailyStats struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
