package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// GetByIDForUpdate locks the ticket row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByConfirmation(ctx context.Context, code string) (*domain.TicketWithFlight, error)
	ConfirmationExists(ctx context.Context, code string) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.TicketWithFlight, error)
	ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.TicketWithFlight, error)
	ListPassengers(ctx context.Context, flightID int64) ([]domain.Passenger, error)
	UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus, canceledAt *time.Time) (*domain.Ticket, error)
	CountByUser(ctx context.Context, userID int64) (domain.TicketCounts, error)
}

type PGTicketRepository struct {
	db *pgxpool.Pool
}

func NewTicketRepository(db *pgxpool.Pool) TicketRepository {
	return &PGTicketRepository{db: db}
}

const ticketColumns = `t.id, t.user_id, t.flight_id, t.status, t.confirmation_code, t.price_cents,
	t.passenger_name, t.seat, t.created_at, t.canceled_at`

func scanTicket(row pgx.Row, t *domain.Ticket) error {
	return row.Scan(&t.ID, &t.UserID, &t.FlightID, &t.Status, &t.ConfirmationCode, &t.PriceCents,
		&t.PassengerName, &t.Seat, &t.CreatedAt, &t.CanceledAt)
}

func scanTicketWithFlight(row pgx.Row, tf *domain.TicketWithFlight) error {
	t, f := &tf.Ticket, &tf.Flight
	return row.Scan(&t.ID, &t.UserID, &t.FlightID, &t.Status, &t.ConfirmationCode, &t.PriceCents,
		&t.PassengerName, &t.Seat, &t.CreatedAt, &t.CanceledAt,
		&f.ID, &f.Number, &f.CompanyID, &f.CompanyName, &f.CompanyCode, &f.Origin, &f.Destination,
		&f.DepartTime, &f.ArriveTime, &f.PriceCents, &f.SeatsTotal, &f.SeatsAvailable, &f.Stops, &f.Aircraft,
		&f.CreatedAt, &f.UpdatedAt)
}

const ticketWithFlightQuery = `SELECT ` + ticketColumns + `, ` + flightColumns + `
	FROM tickets t
	JOIN flights f ON f.id = t.flight_id
	JOIN companies c ON c.id = f.company_id`

func (r *PGTicketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	err := conn(ctx, r.db).QueryRow(ctx, `INSERT INTO tickets
		(user_id, flight_id, status, confirmation_code, price_cents, passenger_name, seat)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		t.UserID, t.FlightID, t.Status, t.ConfirmationCode, t.PriceCents, t.PassengerName, t.Seat).
		Scan(&t.ID, &t.CreatedAt)
	return translate(err)
}

func (r *PGTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := scanTicket(conn(ctx, r.db).QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets t WHERE t.id = $1`, id), &t); err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *PGTicketRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := scanTicket(conn(ctx, r.db).QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets t WHERE t.id = $1 FOR UPDATE`, id), &t); err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *PGTicketRepository) GetByConfirmation(ctx context.Context, code string) (*domain.TicketWithFlight, error) {
	var tf domain.TicketWithFlight
	if err := scanTicketWithFlight(conn(ctx, r.db).QueryRow(ctx, ticketWithFlightQuery+` WHERE t.confirmation_code = $1`, code), &tf); err != nil {
		return nil, translate(err)
	}
	return &tf, nil
}

func (r *PGTicketRepository) ConfirmationExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE confirmation_code = $1)`, code).Scan(&exists)
	return exists, err
}

func (r *PGTicketRepository) listWithFlight(ctx context.Context, query string, args ...any) ([]domain.TicketWithFlight, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]domain.TicketWithFlight, 0)
	for rows.Next() {
		var tf domain.TicketWithFlight
		if err := scanTicketWithFlight(rows, &tf); err != nil {
			return nil, err
		}
		tickets = append(tickets, tf)
	}
	return tickets, rows.Err()
}

func (r *PGTicketRepository) ListByUser(ctx context.Context, userID int64) ([]domain.TicketWithFlight, error) {
	return r.listWithFlight(ctx, ticketWithFlightQuery+` WHERE t.user_id = $1 ORDER BY t.created_at DESC, t.id DESC`, userID)
}

func (r *PGTicketRepository) ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.TicketWithFlight, error) {
	return r.listWithFlight(ctx, ticketWithFlightQuery+` WHERE t.status = $1 ORDER BY t.created_at ASC, t.id ASC`, status)
}

func (r *PGTicketRepository) ListPassengers(ctx context.Context, flightID int64) ([]domain.Passenger, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT t.id, t.confirmation_code, t.passenger_name, t.seat, u.email, t.price_cents, t.created_at
		FROM tickets t JOIN users u ON u.id = t.user_id
		WHERE t.flight_id = $1 AND t.status = $2
		ORDER BY t.created_at ASC, t.id ASC`, flightID, domain.TicketStatusPaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	passengers := make([]domain.Passenger, 0)
	for rows.Next() {
		var p domain.Passenger
		if err := rows.Scan(&p.TicketID, &p.ConfirmationCode, &p.PassengerName, &p.Seat, &p.UserEmail, &p.PriceCents, &p.CreatedAt); err != nil {
			return nil, err
		}
		passengers = append(passengers, p)
	}
	return passengers, rows.Err()
}

func (r *PGTicketRepository) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus, canceledAt *time.Time) (*domain.Ticket, error) {
	var t domain.Ticket
	row := conn(ctx, r.db).QueryRow(ctx, `UPDATE tickets AS t
		SET status = $2, canceled_at = COALESCE($3, t.canceled_at)
		WHERE t.id = $1
		RETURNING `+ticketColumns, id, status, canceledAt)
	if err := scanTicket(row, &t); err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *PGTicketRepository) CountByUser(ctx context.Context, userID int64) (domain.TicketCounts, error) {
	var counts domain.TicketCounts
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT status, COUNT(*) FROM tickets WHERE user_id = $1 GROUP BY status`, userID)
	if err != nil {
		return counts, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status domain.TicketStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return counts, err
		}
		counts.Total += n
		switch status {
		case domain.TicketStatusPendingPayment:
			counts.PendingPayment = n
		case domain.TicketStatusPaid:
			counts.Paid = n
		case domain.TicketStatusRefunded:
			counts.Refunded = n
		case domain.TicketStatusCanceled:
			counts.Canceled = n
		}
	}
	return counts, rows.Err()
}

var _ TicketRepository = (*PGTicketRepository)(nil)
