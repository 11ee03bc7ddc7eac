package domain

import "time"

type Flight struct {
	ID             int64     `json:"id"`
	Number         string    `json:"flight_number"`
	CompanyID      int64     `json:"company_id"`
	CompanyName    string    `json:"airline,omitempty"`
	CompanyCode    string    `json:"airline_code,omitempty"`
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	DepartTime     time.Time `json:"depart_time"`
	ArriveTime     time.Time `json:"arrive_time"`
	PriceCents     int64     `json:"price_cents"`
	SeatsTotal     int       `json:"seats_total"`
	SeatsAvailable int       `json:"seats_available"`
	Stops          int       `json:"stops"`
	Aircraft       string    `json:"aircraft,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (f *Flight) Duration() time.Duration {
	return f.ArriveTime.Sub(f.DepartTime)
}

func (f *Flight) IsUpcoming(now time.Time) bool {
	return f.DepartTime.After(now)
}

// IsBookable reports whether a ticket for the given number of passengers can
// still be sold on this flight.
func (f *Flight) IsBookable(now time.Time, passengers int) bool {
	return f.IsUpcoming(now) && f.SeatsAvailable >= passengers && passengers > 0
}

type SortOrder string

const (
	SortPriceAsc   SortOrder = "price_asc"
	SortPriceDesc  SortOrder = "price_desc"
	SortDepartTime SortOrder = "depart_time"
	SortDuration   SortOrder = "duration"
)

func (s SortOrder) Valid() bool {
	switch s {
	case SortPriceAsc, SortPriceDesc, SortDepartTime, SortDuration:
		return true
	}
	return false
}

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 100
)

// SearchCriteria is a validated search request. Nil pointers mean the
// filter is not applied.
type SearchCriteria struct {
	Origin        string
	Destination   string
	DepartDate    *time.Time
	Passengers    int
	MinPriceCents *int64
	MaxPriceCents *int64
	CompanyID     *int64
	MaxStops      *int
	SortBy        SortOrder
	Limit         int
}

type SearchResult struct {
	Flights []Flight `json:"flights"`
	Total   int      `json:"total"`
}

// FlightDraft carries the editable attributes of a flight.
type FlightDraft struct {
	Number      string
	Origin      string
	Destination string
	DepartTime  time.Time
	ArriveTime  time.Time
	PriceCents  int64
	SeatsTotal  int
	Stops       int
	Aircraft    string
}

type SuggestionField string

const (
	SuggestOrigin      SuggestionField = "origin"
	SuggestDestination SuggestionField = "destination"
	SuggestAll         SuggestionField = "all"
)
