package flights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/skybooking/internal/authz"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/Domenick1991/skybooking/internal/validation"
	"github.com/go-playground/validator/v10"
)

type FlightUseCase interface {
	Search(ctx context.Context, query SearchQuery) (*domain.SearchResult, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Suggestions(ctx context.Context, query, kind string) ([]string, error)
	Upcoming(ctx context.Context, limit int) ([]domain.Flight, error)
	PublicStats(ctx context.Context) (domain.PublicStats, error)

	ListForManager(ctx context.Context, actor authz.Actor) ([]domain.Flight, error)
	Create(ctx context.Context, actor authz.Actor, input FlightInput) (*domain.Flight, error)
	Update(ctx context.Context, actor authz.Actor, id int64, input FlightInput) (*domain.Flight, error)
	Delete(ctx context.Context, actor authz.Actor, id int64) error
	Passengers(ctx context.Context, actor authz.Actor, id int64) ([]domain.Passenger, error)
}

type FlightStore interface {
	Search(ctx context.Context, criteria domain.SearchCriteria, now time.Time) ([]domain.Flight, int, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	GetForCompany(ctx context.Context, id, companyID int64) (*domain.Flight, error)
	ListByCompany(ctx context.Context, companyID int64) ([]domain.Flight, error)
	ListUpcoming(ctx context.Context, now time.Time, limit int) ([]domain.Flight, error)
	Create(ctx context.Context, companyID int64, draft domain.FlightDraft) (*domain.Flight, error)
	Update(ctx context.Context, id, companyID int64, draft domain.FlightDraft) (*domain.Flight, error)
	Delete(ctx context.Context, id, companyID int64) error
	Suggestions(ctx context.Context, field domain.SuggestionField, query string, limit int) ([]string, error)
	PublicStats(ctx context.Context, now time.Time) (domain.PublicStats, error)
}

type CompanyLookup interface {
	GetByManager(ctx context.Context, managerID int64) (*domain.Company, error)
}

type PassengerLister interface {
	ListPassengers(ctx context.Context, flightID int64) ([]domain.Passenger, error)
}

type SearchCache interface {
	GetSearch(ctx context.Context, criteria domain.SearchCriteria) (*domain.SearchResult, string, error)
	SetSearch(ctx context.Context, key string, result *domain.SearchResult) error
	InvalidateFlights(ctx context.Context) error
}

type Metrics interface {
	Search(cacheHit bool)
}

const (
	minSuggestionQuery = 2
	maxSuggestions     = 10
	maxUpcoming        = 20
)

type FlightService struct {
	repo       FlightStore
	companies  CompanyLookup
	passengers PassengerLister
	cache      SearchCache
	metrics    Metrics
	now        func() time.Time
	validate   *validator.Validate
	logger     *slog.Logger
}

type FlightServiceOption func(*FlightService)

func WithCache(cache SearchCache) FlightServiceOption {
	return func(s *FlightService) {
		s.cache = cache
	}
}

func WithMetrics(m Metrics) FlightServiceOption {
	return func(s *FlightService) {
		s.metrics = m
	}
}

func WithLogger(l *slog.Logger) FlightServiceOption {
	return func(s *FlightService) {
		s.logger = l
	}
}

func WithClock(now func() time.Time) FlightServiceOption {
	return func(s *FlightService) {
		s.now = now
	}
}

func NewFlightService(repo FlightStore, companies CompanyLookup, passengers PassengerLister, opts ...FlightServiceOption) *FlightService {
	s := &FlightService{
		repo:       repo,
		companies:  companies,
		passengers: passengers,
		metrics:    noopMetrics{},
		now:        time.Now,
		validate:   validation.New(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "flights")
	return s
}

func (s *FlightService) clock() time.Time {
	return s.now().UTC()
}

// SearchQuery is the raw search request as it arrives in the query string.
type SearchQuery struct {
	Origin      string `form:"origin"`
	Destination string `form:"destination"`
	DepartDate  string `form:"depart_date"`
	Passengers  string `form:"passengers"`
	MinPrice    string `form:"min_price"`
	MaxPrice    string `form:"max_price"`
	AirlineID   string `form:"airline_id"`
	MaxStops    string `form:"max_stops"`
	SortBy      string `form:"sort_by"`
	Limit       string `form:"limit"`
}

// ParseSearch validates q and fills in defaults. Prices are given in whole
// currency units and converted to cents.
func ParseSearch(q SearchQuery) (domain.SearchCriteria, error) {
	verr := &domain.ValidationError{}
	c := domain.SearchCriteria{
		Origin:      strings.TrimSpace(q.Origin),
		Destination: strings.TrimSpace(q.Destination),
		Passengers:  1,
		SortBy:      domain.SortPriceAsc,
		Limit:       domain.DefaultSearchLimit,
	}

	if v := strings.TrimSpace(q.DepartDate); v != "" {
		day, err := time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			verr.Add("depart_date", "must be a date in YYYY-MM-DD format")
		} else {
			c.DepartDate = &day
		}
	}

	if v := strings.TrimSpace(q.Passengers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			verr.Add("passengers", "must be a whole number of at least 1")
		} else {
			c.Passengers = n
		}
	}

	c.MinPriceCents = parsePrice(verr, "min_price", q.MinPrice)
	c.MaxPriceCents = parsePrice(verr, "max_price", q.MaxPrice)

	if v := strings.TrimSpace(q.AirlineID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			verr.Add("airline_id", "must be a positive id")
		} else {
			c.CompanyID = &id
		}
	}

	if v := strings.TrimSpace(q.MaxStops); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			verr.Add("max_stops", "must be a non-negative whole number")
		} else {
			c.MaxStops = &n
		}
	}

	if v := strings.TrimSpace(q.SortBy); v != "" {
		sort := domain.SortOrder(v)
		if !sort.Valid() {
			verr.Add("sort_by", "must be one of price_asc, price_desc, depart_time, duration")
		} else {
			c.SortBy = sort
		}
	}

	if v := strings.TrimSpace(q.Limit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			verr.Add("limit", "must be a positive whole number")
		} else {
			c.Limit = min(n, domain.MaxSearchLimit)
		}
	}

	return c, verr.OrNil()
}

func parsePrice(verr *domain.ValidationError, field, raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		verr.Add(field, "must be a non-negative number")
		return nil
	}
	cents := int64(math.Round(v * 100))
	return &cents
}

// Search returns bookable flights matching the query. Results may be served
// from the cache; purchases always re-check availability in the database.
func (s *FlightService) Search(ctx context.Context, query SearchQuery) (*domain.SearchResult, error) {
	criteria, err := ParseSearch(query)
	if err != nil {
		return nil, err
	}

	var cacheKey string
	if s.cache != nil {
		cached, key, err := s.cache.GetSearch(ctx, criteria)
		if err != nil {
			s.logger.Warn("search cache read failed", "error", err)
		} else if cached != nil {
			s.metrics.Search(true)
			return dropUnbookable(cached, s.clock(), criteria.Passengers), nil
		}
		cacheKey = key
	}

	flights, total, err := s.repo.Search(ctx, criteria, s.clock())
	if err != nil {
		return nil, fmt.Errorf("search flights: %w", err)
	}
	result := &domain.SearchResult{Flights: flights, Total: total}
	s.metrics.Search(false)

	if cacheKey != "" {
		if err := s.cache.SetSearch(ctx, cacheKey, result); err != nil {
			s.logger.Warn("search cache write failed", "error", err)
		}
	}
	return result, nil
}

// dropUnbookable removes flights a cached page still lists but that can no
// longer be booked at now, such as ones that departed since it was cached.
func dropUnbookable(cached *domain.SearchResult, now time.Time, passengers int) *domain.SearchResult {
	flights := make([]domain.Flight, 0, len(cached.Flights))
	for _, f := range cached.Flights {
		if f.IsBookable(now, passengers) {
			flights = append(flights, f)
		}
	}
	dropped := len(cached.Flights) - len(flights)
	if dropped == 0 {
		return cached
	}
	return &domain.SearchResult{Flights: flights, Total: max(cached.Total-dropped, 0)}
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

// Suggestions returns up to 10 distinct city names containing query. Queries
// shorter than two characters yield an empty list.
func (s *FlightService) Suggestions(ctx context.Context, query, kind string) ([]string, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minSuggestionQuery {
		return []string{}, nil
	}

	field := domain.SuggestAll
	switch domain.SuggestionField(kind) {
	case "", domain.SuggestAll:
	case domain.SuggestOrigin, domain.SuggestDestination:
		field = domain.SuggestionField(kind)
	default:
		return nil, domain.NewValidationError("type", "must be origin, destination or all")
	}
	return s.repo.Suggestions(ctx, field, query, maxSuggestions)
}

// Upcoming lists flights with free seats, earliest departure first.
func (s *FlightService) Upcoming(ctx context.Context, limit int) ([]domain.Flight, error) {
	if limit < 1 || limit > maxUpcoming {
		limit = maxUpcoming
	}
	return s.repo.ListUpcoming(ctx, s.clock(), limit)
}

func (s *FlightService) PublicStats(ctx context.Context) (domain.PublicStats, error) {
	return s.repo.PublicStats(ctx, s.clock())
}

// FlightInput is the body of a flight create or update request.
type FlightInput struct {
	Number      string    `json:"flight_number" validate:"required,min=2,max=20"`
	Origin      string    `json:"origin" validate:"required,max=80"`
	Destination string    `json:"destination" validate:"required,max=80"`
	DepartTime  time.Time `json:"depart_time" validate:"required"`
	ArriveTime  time.Time `json:"arrive_time" validate:"required"`
	PriceCents  int64     `json:"price_cents" validate:"gte=0"`
	SeatsTotal  int       `json:"seats_total" validate:"required,min=1,max=1000"`
	Stops       int       `json:"stops" validate:"min=0,max=5"`
	Aircraft    string    `json:"aircraft" validate:"max=50"`
}

func (s *FlightService) draft(input FlightInput) (domain.FlightDraft, error) {
	input.Number = strings.ToUpper(strings.TrimSpace(input.Number))
	input.Origin = strings.TrimSpace(input.Origin)
	input.Destination = strings.TrimSpace(input.Destination)
	input.Aircraft = strings.TrimSpace(input.Aircraft)

	verr := &domain.ValidationError{}
	var fieldErr *domain.ValidationError
	if err := validation.Struct(s.validate, input); err != nil {
		if !errors.As(err, &fieldErr) {
			return domain.FlightDraft{}, err
		}
		verr = fieldErr
	}
	if !input.DepartTime.IsZero() && !input.DepartTime.After(s.clock()) {
		verr.Add("depart_time", "must be in the future")
	}
	if !input.DepartTime.IsZero() && !input.ArriveTime.IsZero() && !input.ArriveTime.After(input.DepartTime) {
		verr.Add("arrive_time", "must be after depart_time")
	}
	if err := verr.OrNil(); err != nil {
		return domain.FlightDraft{}, err
	}

	return domain.FlightDraft{
		Number:      input.Number,
		Origin:      input.Origin,
		Destination: input.Destination,
		DepartTime:  input.DepartTime.UTC(),
		ArriveTime:  input.ArriveTime.UTC(),
		PriceCents:  input.PriceCents,
		SeatsTotal:  input.SeatsTotal,
		Stops:       input.Stops,
		Aircraft:    input.Aircraft,
	}, nil
}

// managedCompany returns the company the actor manages.
func (s *FlightService) managedCompany(ctx context.Context, actor authz.Actor) (*domain.Company, error) {
	if err := authz.Require(actor, authz.ManageFlights); err != nil {
		return nil, err
	}
	company, err := s.companies.GetByManager(ctx, actor.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: no company is assigned to this manager", domain.ErrAccessDenied)
	}
	if err != nil {
		return nil, err
	}
	return company, nil
}

// ListForManager returns the flights of the actor's company, latest
// departure first.
func (s *FlightService) ListForManager(ctx context.Context, actor authz.Actor) ([]domain.Flight, error) {
	company, err := s.managedCompany(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByCompany(ctx, company.ID)
}

func (s *FlightService) Create(ctx context.Context, actor authz.Actor, input FlightInput) (*domain.Flight, error) {
	company, err := s.managedCompany(ctx, actor)
	if err != nil {
		return nil, err
	}
	d, err := s.draft(input)
	if err != nil {
		return nil, err
	}

	flight, err := s.repo.Create(ctx, company.ID, d)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.logger.Info("flight created", "flight_id", flight.ID, "company_id", company.ID)
	return flight, nil
}

// Update changes a flight of the actor's company. Existing tickets keep the
// price they were sold at.
func (s *FlightService) Update(ctx context.Context, actor authz.Actor, id int64, input FlightInput) (*domain.Flight, error) {
	company, err := s.managedCompany(ctx, actor)
	if err != nil {
		return nil, err
	}
	d, err := s.draft(input)
	if err != nil {
		return nil, err
	}

	flight, err := s.repo.Update(ctx, id, company.ID, d)
	if errors.Is(err, repository.ErrSeatsBelowSold) {
		return nil, domain.NewValidationError("seats_total", "cannot be lower than the number of seats already sold")
	}
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.logger.Info("flight updated", "flight_id", id, "company_id", company.ID)
	return flight, nil
}

// Delete removes a flight without tickets.
func (s *FlightService) Delete(ctx context.Context, actor authz.Actor, id int64) error {
	company, err := s.managedCompany(ctx, actor)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, company.ID); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.logger.Info("flight deleted", "flight_id", id, "company_id", company.ID)
	return nil
}

// Passengers lists the paid tickets of a flight of the actor's company.
func (s *FlightService) Passengers(ctx context.Context, actor authz.Actor, id int64) ([]domain.Passenger, error) {
	company, err := s.managedCompany(ctx, actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetForCompany(ctx, id, company.ID); err != nil {
		return nil, err
	}
	return s.passengers.ListPassengers(ctx, id)
}

func (s *FlightService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.logger.Warn("failed to invalidate flight cache", "error", err)
	}
}

type noopMetrics struct{}

func (noopMetrics) Search(bool) {}

var _ FlightUseCase = (*FlightService)(nil)
