package domain

import "time"

type TicketStatus string

const (
	TicketStatusPendingPayment TicketStatus = "pending_payment"
	TicketStatusPaid           TicketStatus = "paid"
	TicketStatusRefunded       TicketStatus = "refunded"
	TicketStatusCanceled       TicketStatus = "canceled"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPendingPayment, TicketStatusPaid, TicketStatusRefunded, TicketStatusCanceled:
		return true
	}
	return false
}

func (s TicketStatus) Terminal() bool {
	return s == TicketStatusRefunded || s == TicketStatusCanceled
}

// RefundWindow is how long before departure a paid ticket stops being refundable.
const RefundWindow = 24 * time.Hour

type Ticket struct {
	ID               int64        `json:"id"`
	UserID           int64        `json:"user_id"`
	FlightID         int64        `json:"flight_id"`
	Status           TicketStatus `json:"status"`
	ConfirmationCode string       `json:"confirmation_code"`
	PriceCents       int64        `json:"price_cents"`
	PassengerName    string       `json:"passenger_name"`
	Seat             string       `json:"seat,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	CanceledAt       *time.Time   `json:"canceled_at,omitempty"`
}

// Refundable reports whether cancelling the ticket at now returns money and
// the seat. The boundary is strict: exactly RefundWindow before departure is
// no longer refundable.
func (t *Ticket) Refundable(departTime, now time.Time) bool {
	return t.Status == TicketStatusPaid && departTime.Sub(now) > RefundWindow
}

// TicketWithFlight is a ticket joined with the flight it was sold on.
type TicketWithFlight struct {
	Ticket
	Flight Flight `json:"flight"`
}

// Passenger is a paid ticket with its holder, listed for airline managers.
type Passenger struct {
	TicketID         int64     `json:"ticket_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	PassengerName    string    `json:"passenger_name"`
	Seat             string    `json:"seat,omitempty"`
	UserEmail        string    `json:"user_email"`
	PriceCents       int64     `json:"price_cents"`
	CreatedAt        time.Time `json:"created_at"`
}

// TicketCounts holds the number of tickets per status for one user.
type TicketCounts struct {
	Total          int `json:"total"`
	PendingPayment int `json:"pending_payment"`
	Paid           int `json:"paid"`
	Refunded       int `json:"refunded"`
	Canceled       int `json:"canceled"`
}

// CancelOutcome is the result of a cancellation request.
type CancelOutcome struct {
	Ticket      *Ticket `json:"ticket"`
	RefundCents int64   `json:"refund_cents"`
	SeatFreed   bool    `json:"seat_freed"`
}
