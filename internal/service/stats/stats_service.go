package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/skybooking/internal/authz"
	"github.com/Domenick1991/skybooking/internal/domain"
)

type StatsUseCase interface {
	CompanyOverview(ctx context.Context, actor authz.Actor, filter string) (*CompanyOverview, error)
	AdminDashboard(ctx context.Context, actor authz.Actor, filter string) (*domain.AdminStats, error)
}

type StatsStore interface {
	FlightStats(ctx context.Context, companyID *int64, window domain.StatsWindow, now time.Time) (domain.FlightStats, error)
	AccountCounts(ctx context.Context) (users, activeUsers, companies, activeCompanies int, err error)
}

type CompanyLookup interface {
	GetByManager(ctx context.Context, managerID int64) (*domain.Company, error)
}

type CompanyFlights interface {
	ListByCompany(ctx context.Context, companyID int64) ([]domain.Flight, error)
}

type StatsService struct {
	repo      StatsStore
	companies CompanyLookup
	flights   CompanyFlights
	now       func() time.Time
	logger    *slog.Logger
}

type StatsServiceOption func(*StatsService)

func WithClock(now func() time.Time) StatsServiceOption {
	return func(s *StatsService) {
		s.now = now
	}
}

func WithLogger(l *slog.Logger) StatsServiceOption {
	return func(s *StatsService) {
		s.logger = l
	}
}

func NewStatsService(repo StatsStore, companies CompanyLookup, flights CompanyFlights, opts ...StatsServiceOption) *StatsService {
	s := &StatsService{
		repo:      repo,
		companies: companies,
		flights:   flights,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "stats")
	return s
}

// ParseFilter accepts today, week, month or all. An empty filter means all.
func ParseFilter(raw string) (domain.StatsFilter, error) {
	switch f := domain.StatsFilter(raw); f {
	case "":
		return domain.StatsAll, nil
	case domain.StatsToday, domain.StatsWeek, domain.StatsMonth, domain.StatsAll:
		return f, nil
	}
	return "", domain.NewValidationError("filter", "must be one of today, week, month, all")
}

type CompanyOverview struct {
	Company *domain.Company    `json:"company"`
	Flights []domain.Flight    `json:"flights"`
	Stats   domain.FlightStats `json:"stats"`
	Filter  domain.StatsFilter `json:"filter"`
}

// CompanyOverview returns the manager's company with its flights and the
// statistics of the flights departing in the filter window.
func (s *StatsService) CompanyOverview(ctx context.Context, actor authz.Actor, raw string) (*CompanyOverview, error) {
	if err := authz.Require(actor, authz.ManageFlights); err != nil {
		return nil, err
	}
	filter, err := ParseFilter(raw)
	if err != nil {
		return nil, err
	}

	company, err := s.companies.GetByManager(ctx, actor.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("manager without company", "user_id", actor.UserID)
		return nil, fmt.Errorf("%w: no company is assigned to this manager", domain.ErrAccessDenied)
	}
	if err != nil {
		return nil, err
	}

	flights, err := s.flights.ListByCompany(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	stats, err := s.repo.FlightStats(ctx, &company.ID, filter.Window(now), now)
	if err != nil {
		return nil, err
	}
	return &CompanyOverview{Company: company, Flights: flights, Stats: stats, Filter: filter}, nil
}

func (s *StatsService) AdminDashboard(ctx context.Context, actor authz.Actor, raw string) (*domain.AdminStats, error) {
	if err := authz.Require(actor, authz.ViewAdminStats); err != nil {
		return nil, err
	}
	filter, err := ParseFilter(raw)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	windowed, err := s.repo.FlightStats(ctx, nil, filter.Window(now), now)
	if err != nil {
		return nil, err
	}
	allTime, err := s.repo.FlightStats(ctx, nil, domain.StatsWindow{}, now)
	if err != nil {
		return nil, err
	}

	out := &domain.AdminStats{
		FlightStats:         windowed,
		AllTimeFlights:      allTime.TotalFlights,
		AllTimeRevenueCents: allTime.RevenueCents,
	}
	out.TotalUsers, out.ActiveUsers, out.TotalCompanies, out.ActiveCompanies, err = s.repo.AccountCounts(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ StatsUseCase = (*StatsService)(nil)
