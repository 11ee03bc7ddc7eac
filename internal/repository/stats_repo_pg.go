package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsRepository interface {
	// FlightStats aggregates flights departing in window. A nil companyID
	// covers every company.
	FlightStats(ctx context.Context, companyID *int64, window domain.StatsWindow, now time.Time) (domain.FlightStats, error)
	AccountCounts(ctx context.Context) (users, activeUsers, companies, activeCompanies int, err error)
}

type PGStatsRepository struct {
	db *pgxpool.Pool
}

func NewStatsRepository(db *pgxpool.Pool) StatsRepository {
	return &PGStatsRepository{db: db}
}

// statsFilter appends the window and company conditions to args and returns
// the WHERE body together with the extended argument list.
func statsFilter(companyID *int64, w domain.StatsWindow, args []any) (string, []any) {
	conds := []string{"TRUE"}

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if companyID != nil {
		add("f.company_id = $%d", *companyID)
	}
	if w.Day != nil {
		add("f.depart_time >= $%d", *w.Day)
		add("f.depart_time < $%d", w.Day.AddDate(0, 0, 1))
	}
	if w.Since != nil {
		add("f.depart_time >= $%d", *w.Since)
	}
	return strings.Join(conds, " AND "), args
}

func (r *PGStatsRepository) FlightStats(ctx context.Context, companyID *int64, w domain.StatsWindow, now time.Time) (domain.FlightStats, error) {
	var s domain.FlightStats
	db := conn(ctx, r.db)

	where, args := statsFilter(companyID, w, []any{now})
	err := db.QueryRow(ctx, `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE f.depart_time > $1),
			COUNT(*) FILTER (WHERE f.depart_time <= $1)
		FROM flights f WHERE `+where, args...).
		Scan(&s.TotalFlights, &s.ActiveFlights, &s.CompletedFlights)
	if err != nil {
		return s, fmt.Errorf("flight counts: %w", err)
	}

	where, args = statsFilter(companyID, w, []any{domain.TicketStatusPaid})
	err = db.QueryRow(ctx, `SELECT COUNT(t.id), COALESCE(SUM(t.price_cents), 0)
		FROM tickets t JOIN flights f ON f.id = t.flight_id
		WHERE t.status = $1 AND `+where, args...).
		Scan(&s.TotalPassengers, &s.RevenueCents)
	if err != nil {
		return s, fmt.Errorf("ticket aggregates: %w", err)
	}
	return s, nil
}

func (r *PGStatsRepository) AccountCounts(ctx context.Context) (users, activeUsers, companies, activeCompanies int, err error) {
	err = conn(ctx, r.db).QueryRow(ctx, `SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE is_active),
			(SELECT COUNT(*) FROM companies),
			(SELECT COUNT(*) FROM companies WHERE is_active)`).
		Scan(&users, &activeUsers, &companies, &activeCompanies)
	return
}

var _ StatsRepository = (*PGStatsRepository)(nil)
