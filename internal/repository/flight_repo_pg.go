package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FlightRepository interface {
	Search(ctx context.Context, criteria domain.SearchCriteria, now time.Time) ([]domain.Flight, int, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	GetForCompany(ctx context.Context, id, companyID int64) (*domain.Flight, error)
	ListByCompany(ctx context.Context, companyID int64) ([]domain.Flight, error)
	ListUpcoming(ctx context.Context, now time.Time, limit int) ([]domain.Flight, error)
	Create(ctx context.Context, companyID int64, draft domain.FlightDraft) (*domain.Flight, error)
	Update(ctx context.Context, id, companyID int64, draft domain.FlightDraft) (*domain.Flight, error)
	Delete(ctx context.Context, id, companyID int64) error
	ReserveSeat(ctx context.Context, flightID int64, now time.Time) (priceCents int64, ok bool, err error)
	ReleaseSeat(ctx context.Context, flightID int64) error
	Suggestions(ctx context.Context, field domain.SuggestionField, query string, limit int) ([]string, error)
	PublicStats(ctx context.Context, now time.Time) (domain.PublicStats, error)
}

var ErrSeatsBelowSold = errors.New("seats_total is lower than the number of sold seats")

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

const flightColumns = `f.id, f.flight_number, f.company_id, c.name, c.code, f.origin, f.destination,
	f.depart_time, f.arrive_time, f.price_cents, f.seats_total, f.seats_available, f.stops, f.aircraft,
	f.created_at, f.updated_at`

const flightFrom = ` FROM flights f JOIN companies c ON c.id = f.company_id`

func scanFlight(row pgx.Row, f *domain.Flight) error {
	return row.Scan(&f.ID, &f.Number, &f.CompanyID, &f.CompanyName, &f.CompanyCode, &f.Origin, &f.Destination,
		&f.DepartTime, &f.ArriveTime, &f.PriceCents, &f.SeatsTotal, &f.SeatsAvailable, &f.Stops, &f.Aircraft,
		&f.CreatedAt, &f.UpdatedAt)
}

func collectFlights(rows pgx.Rows) ([]domain.Flight, error) {
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		var f domain.Flight
		if err := scanFlight(rows, &f); err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) Search(ctx context.Context, criteria domain.SearchCriteria, now time.Time) ([]domain.Flight, int, error) {
	where, args := buildSearchFilter(criteria, now)
	db := conn(ctx, r.db)

	var total int
	if err := db.QueryRow(ctx, `SELECT COUNT(*)`+flightFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count flights: %w", err)
	}
	if total == 0 {
		return []domain.Flight{}, 0, nil
	}

	args = append(args, criteria.Limit)
	query := `SELECT ` + flightColumns + flightFrom + where + searchOrder(criteria.SortBy) + fmt.Sprintf(` LIMIT $%d`, len(args))
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search flights: %w", err)
	}
	flights, err := collectFlights(rows)
	if err != nil {
		return nil, 0, err
	}
	return flights, total, nil
}

// buildSearchFilter turns criteria into a WHERE clause and its positional
// arguments. Only upcoming flights with enough seats ever match.
func buildSearchFilter(c domain.SearchCriteria, now time.Time) (string, []any) {
	passengers := c.Passengers
	if passengers < 1 {
		passengers = 1
	}
	args := []any{now, passengers}
	conds := []string{"f.depart_time > $1", "f.seats_available >= $2"}

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if c.Origin != "" {
		add("f.origin ILIKE $%d", "%"+escapeLike(c.Origin)+"%")
	}
	if c.Destination != "" {
		add("f.destination ILIKE $%d", "%"+escapeLike(c.Destination)+"%")
	}
	if c.DepartDate != nil {
		day := c.DepartDate.UTC()
		add("f.depart_time >= $%d", day)
		add("f.depart_time < $%d", day.AddDate(0, 0, 1))
	}
	if c.MinPriceCents != nil {
		add("f.price_cents >= $%d", *c.MinPriceCents)
	}
	if c.MaxPriceCents != nil {
		add("f.price_cents <= $%d", *c.MaxPriceCents)
	}
	if c.CompanyID != nil {
		add("f.company_id = $%d", *c.CompanyID)
	}
	if c.MaxStops != nil {
		add("f.stops <= $%d", *c.MaxStops)
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

func searchOrder(sort domain.SortOrder) string {
	switch sort {
	case domain.SortPriceDesc:
		return " ORDER BY f.price_cents DESC, f.id ASC"
	case domain.SortDepartTime:
		return " ORDER BY f.depart_time ASC, f.id ASC"
	case domain.SortDuration:
		return " ORDER BY (f.arrive_time - f.depart_time) ASC, f.id ASC"
	default:
		return " ORDER BY f.price_cents ASC, f.id ASC"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	var f domain.Flight
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+flightColumns+flightFrom+` WHERE f.id = $1`, id)
	if err := scanFlight(row, &f); err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (r *PGFlightRepository) GetForCompany(ctx context.Context, id, companyID int64) (*domain.Flight, error) {
	var f domain.Flight
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+flightColumns+flightFrom+` WHERE f.id = $1 AND f.company_id = $2`, id, companyID)
	if err := scanFlight(row, &f); err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (r *PGFlightRepository) ListByCompany(ctx context.Context, companyID int64) ([]domain.Flight, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+flightColumns+flightFrom+` WHERE f.company_id = $1 ORDER BY f.depart_time DESC, f.id DESC`, companyID)
	if err != nil {
		return nil, err
	}
	return collectFlights(rows)
}

func (r *PGFlightRepository) ListUpcoming(ctx context.Context, now time.Time, limit int) ([]domain.Flight, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+flightColumns+flightFrom+`
		WHERE f.depart_time > $1 AND f.seats_available > 0
		ORDER BY f.depart_time ASC, f.id ASC LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	return collectFlights(rows)
}

func (r *PGFlightRepository) Create(ctx context.Context, companyID int64, d domain.FlightDraft) (*domain.Flight, error) {
	var id int64
	err := conn(ctx, r.db).QueryRow(ctx, `INSERT INTO flights
		(flight_number, company_id, origin, destination, depart_time, arrive_time, price_cents, seats_total, seats_available, stops, aircraft)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9, $10)
		RETURNING id`,
		d.Number, companyID, d.Origin, d.Destination, d.DepartTime, d.ArriveTime, d.PriceCents, d.SeatsTotal, d.Stops, d.Aircraft).
		Scan(&id)
	if err != nil {
		return nil, translate(err)
	}
	return r.GetByID(ctx, id)
}

// Update changes the flight and shifts seats_available by the same delta as
// seats_total, refusing changes that would leave sold seats without a place.
func (r *PGFlightRepository) Update(ctx context.Context, id, companyID int64, d domain.FlightDraft) (*domain.Flight, error) {
	db := conn(ctx, r.db)
	var updated int64
	err := db.QueryRow(ctx, `UPDATE flights SET
			flight_number = $3, origin = $4, destination = $5, depart_time = $6, arrive_time = $7,
			price_cents = $8,
			seats_available = seats_available + ($9::integer - seats_total),
			seats_total = $9::integer,
			stops = $10, aircraft = $11, updated_at = now()
		WHERE id = $1 AND company_id = $2 AND seats_available + ($9::integer - seats_total) >= 0
		RETURNING id`,
		id, companyID, d.Number, d.Origin, d.Destination, d.DepartTime, d.ArriveTime, d.PriceCents, d.SeatsTotal, d.Stops, d.Aircraft).
		Scan(&updated)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetForCompany(ctx, id, companyID); gerr != nil {
			return nil, gerr
		}
		return nil, ErrSeatsBelowSold
	}
	if err != nil {
		return nil, translate(err)
	}
	return r.GetByID(ctx, updated)
}

// Delete removes a flight that has never had a ticket sold.
func (r *PGFlightRepository) Delete(ctx context.Context, id, companyID int64) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM flights f
		WHERE f.id = $1 AND f.company_id = $2
		AND NOT EXISTS (SELECT 1 FROM tickets t WHERE t.flight_id = f.id)`, id, companyID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetForCompany(ctx, id, companyID); err != nil {
		return err
	}
	return fmt.Errorf("%w: flight has tickets", domain.ErrConflict)
}

// ReserveSeat takes one seat if the flight is upcoming and not sold out.
// ok is false when the conditional update matched nothing.
func (r *PGFlightRepository) ReserveSeat(ctx context.Context, flightID int64, now time.Time) (int64, bool, error) {
	var price int64
	err := conn(ctx, r.db).QueryRow(ctx, `UPDATE flights
		SET seats_available = seats_available - 1, updated_at = now()
		WHERE id = $1 AND seats_available > 0 AND depart_time > $2
		RETURNING price_cents`, flightID, now).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return price, true, nil
}

func (r *PGFlightRepository) ReleaseSeat(ctx context.Context, flightID int64) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `UPDATE flights
		SET seats_available = seats_available + 1, updated_at = now()
		WHERE id = $1 AND seats_available < seats_total`, flightID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("release seat on flight %d: no sold seat to return", flightID)
	}
	return nil
}

func (r *PGFlightRepository) Suggestions(ctx context.Context, field domain.SuggestionField, query string, limit int) ([]string, error) {
	pattern := "%" + escapeLike(query) + "%"

	var sql string
	switch field {
	case domain.SuggestOrigin:
		sql = `SELECT DISTINCT origin FROM flights WHERE origin ILIKE $1 ORDER BY origin LIMIT $2`
	case domain.SuggestDestination:
		sql = `SELECT DISTINCT destination FROM flights WHERE destination ILIKE $1 ORDER BY destination LIMIT $2`
	default:
		sql = `SELECT v FROM (
			SELECT origin AS v FROM flights WHERE origin ILIKE $1
			UNION
			SELECT destination FROM flights WHERE destination ILIKE $1
		) s ORDER BY v LIMIT $2`
	}

	rows, err := conn(ctx, r.db).Query(ctx, sql, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, limit)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PGFlightRepository) PublicStats(ctx context.Context, now time.Time) (domain.PublicStats, error) {
	var s domain.PublicStats
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT
			(SELECT COUNT(*) FROM flights),
			(SELECT COUNT(*) FROM flights WHERE depart_time > $1),
			(SELECT COUNT(*) FROM companies WHERE is_active)`, now).
		Scan(&s.TotalFlights, &s.ActiveFlights, &s.TotalAirlines)
	return s, err
}

var _ FlightRepository = (*PGFlightRepository)(nil)
