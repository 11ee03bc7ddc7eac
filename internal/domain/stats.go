package domain

import "time"

type StatsFilter string

const (
	StatsToday StatsFilter = "today"
	StatsWeek  StatsFilter = "week"
	StatsMonth StatsFilter = "month"
	StatsAll   StatsFilter = "all"
)

// StatsWindow restricts statistics to flights departing in a period.
// Day restricts to a single UTC calendar day; Since to departures at or
// after the instant. Both nil means all time.
type StatsWindow struct {
	Day   *time.Time
	Since *time.Time
}

// Window resolves the filter against now. Unknown filters mean all time.
func (f StatsFilter) Window(now time.Time) StatsWindow {
	now = now.UTC()
	switch f {
	case StatsToday:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return StatsWindow{Day: &day}
	case StatsWeek:
		since := now.Add(-7 * 24 * time.Hour)
		return StatsWindow{Since: &since}
	case StatsMonth:
		since := now.Add(-30 * 24 * time.Hour)
		return StatsWindow{Since: &since}
	}
	return StatsWindow{}
}

type FlightStats struct {
	TotalFlights     int   `json:"total_flights"`
	ActiveFlights    int   `json:"active_flights"`
	CompletedFlights int   `json:"completed_flights"`
	TotalPassengers  int   `json:"total_passengers"`
	RevenueCents     int64 `json:"revenue_cents"`
}

type AdminStats struct {
	FlightStats
	TotalUsers          int   `json:"total_users"`
	ActiveUsers         int   `json:"active_users"`
	TotalCompanies      int   `json:"total_companies"`
	ActiveCompanies     int   `json:"active_companies"`
	AllTimeFlights      int   `json:"all_time_flights"`
	AllTimeRevenueCents int64 `json:"all_time_revenue_cents"`
}

type PublicStats struct {
	TotalFlights  int `json:"total_flights"`
	ActiveFlights int `json:"active_flights"`
	TotalAirlines int `json:"total_airlines"`
}
