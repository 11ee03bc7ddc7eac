package tickets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/skybooking/internal/authz"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/Domenick1991/skybooking/internal/validation"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

type TicketUseCase interface {
	Purchase(ctx context.Context, actor authz.Actor, input PurchaseInput) (*domain.Ticket, error)
	ConfirmPayment(ctx context.Context, actor authz.Actor, ticketID int64) (*domain.Ticket, error)
	Cancel(ctx context.Context, actor authz.Actor, ticketID int64) (*domain.CancelOutcome, error)
	Get(ctx context.Context, actor authz.Actor, ticketID int64) (*domain.Ticket, error)
	GetByConfirmation(ctx context.Context, code string) (*domain.TicketWithFlight, error)
	ListForUser(ctx context.Context, actor authz.Actor) ([]domain.TicketWithFlight, error)
	ListByStatus(ctx context.Context, actor authz.Actor, status domain.TicketStatus) ([]domain.TicketWithFlight, error)
	QRCode(ctx context.Context, code string) ([]byte, error)
}

type TicketStore interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByConfirmation(ctx context.Context, code string) (*domain.TicketWithFlight, error)
	ConfirmationExists(ctx context.Context, code string) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.TicketWithFlight, error)
	ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.TicketWithFlight, error)
	UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus, canceledAt *time.Time) (*domain.Ticket, error)
}

type SeatInventory interface {
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	ReserveSeat(ctx context.Context, flightID int64, now time.Time) (int64, bool, error)
	ReleaseSeat(ctx context.Context, flightID int64) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type Cache interface {
	InvalidateFlights(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Metrics interface {
	TicketTransition(status string)
	SeatSold()
	SeatReturned()
}

const maxCodeAttempts = 10

type TicketService struct {
	tickets            TicketStore
	flights            SeatInventory
	users              UserLookup
	tx                 repository.Transactor
	cache              Cache
	producer           Producer
	metrics            Metrics
	ticketsTopic       string
	notificationsTopic string
	now                func() time.Time
	newCode            func() string
	validate           *validator.Validate
	logger             *slog.Logger
}

type PurchaseInput struct {
	FlightID      int64  `json:"flight_id" validate:"required,gt=0"`
	PassengerName string `json:"passenger_name" validate:"omitempty,min=2,max=120"`
	Seat          string `json:"seat" validate:"omitempty,max=10,alphanum"`
}

type TicketServiceOption func(*TicketService)

func WithNotificationsTopic(topic string) TicketServiceOption {
	return func(s *TicketService) {
		s.notificationsTopic = topic
	}
}

func WithCache(cache Cache) TicketServiceOption {
	return func(s *TicketService) {
		s.cache = cache
	}
}

func WithMetrics(m Metrics) TicketServiceOption {
	return func(s *TicketService) {
		s.metrics = m
	}
}

func WithLogger(l *slog.Logger) TicketServiceOption {
	return func(s *TicketService) {
		s.logger = l
	}
}

// WithClock replaces the time source. All comparisons are made in UTC.
func WithClock(now func() time.Time) TicketServiceOption {
	return func(s *TicketService) {
		s.now = now
	}
}

func WithCodeGenerator(gen func() string) TicketServiceOption {
	return func(s *TicketService) {
		s.newCode = gen
	}
}

func NewTicketService(
	tickets TicketStore,
	flights SeatInventory,
	users UserLookup,
	tx repository.Transactor,
	producer Producer,
	ticketsTopic string,
	opts ...TicketServiceOption,
) *TicketService {
	service := &TicketService{
		tickets:      tickets,
		flights:      flights,
		users:        users,
		tx:           tx,
		producer:     producer,
		ticketsTopic: ticketsTopic,
		metrics:      noopMetrics{},
		now:          time.Now,
		newCode:      NewConfirmationCode,
		validate:     validation.New(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}
	service.logger = service.logger.With("component", "tickets")
	return service
}

// NewConfirmationCode returns 8 uppercase hex characters.
func NewConfirmationCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

func (s *TicketService) clock() time.Time {
	return s.now().UTC()
}

// Purchase sells one seat on a flight. The seat is taken with a conditional
// decrement and the ticket is inserted in the same transaction, so concurrent
// buyers of the last seat cannot both succeed.
func (s *TicketService) Purchase(ctx context.Context, actor authz.Actor, input PurchaseInput) (*domain.Ticket, error) {
	if err := authz.Require(actor, authz.PurchaseTickets); err != nil {
		return nil, err
	}
	input.PassengerName = strings.TrimSpace(input.PassengerName)
	input.Seat = strings.ToUpper(strings.TrimSpace(input.Seat))
	if err := validation.Struct(s.validate, input); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("load purchaser: %w", err)
	}
	if input.PassengerName == "" {
		input.PassengerName = user.Name
	}

	now := s.clock()
	var ticket *domain.Ticket
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		price, ok, err := s.flights.ReserveSeat(ctx, input.FlightID, now)
		if err != nil {
			return fmt.Errorf("reserve seat: %w", err)
		}
		if !ok {
			return s.unbookableReason(ctx, input.FlightID, now)
		}

		code, err := s.confirmationCode(ctx)
		if err != nil {
			return err
		}

		ticket = &domain.Ticket{
			UserID:           actor.UserID,
			FlightID:         input.FlightID,
			Status:           domain.TicketStatusPendingPayment,
			ConfirmationCode: code,
			PriceCents:       price,
			PassengerName:    input.PassengerName,
			Seat:             input.Seat,
		}
		return s.tickets.Create(ctx, ticket)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SeatSold()
	s.metrics.TicketTransition(string(ticket.Status))
	s.invalidateFlights(ctx)
	s.publish(ctx, kafka.EventTicketPurchased, ticket, user, 0)
	s.logger.Info("ticket purchased", "ticket_id", ticket.ID, "flight_id", ticket.FlightID, "user_id", actor.UserID)
	return ticket, nil
}

// unbookableReason explains why the conditional seat update matched nothing.
func (s *TicketService) unbookableReason(ctx context.Context, flightID int64, now time.Time) error {
	flight, err := s.flights.GetByID(ctx, flightID)
	if err != nil {
		return err
	}
	if !flight.IsUpcoming(now) {
		return domain.ErrFlightNotBookable
	}
	return domain.ErrCapacityExceeded
}

func (s *TicketService) confirmationCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := s.newCode()
		exists, err := s.tickets.ConfirmationExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check confirmation code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no unique confirmation code after %d attempts", maxCodeAttempts)
}

// ConfirmPayment moves a pending ticket to paid. Confirming an already paid
// ticket returns it unchanged.
func (s *TicketService) ConfirmPayment(ctx context.Context, actor authz.Actor, ticketID int64) (*domain.Ticket, error) {
	var (
		ticket  *domain.Ticket
		changed bool
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if !authz.CanAccessTicket(actor, current.UserID) {
			return domain.ErrAccessDenied
		}

		switch current.Status {
		case domain.TicketStatusPaid:
			ticket = current
			return nil
		case domain.TicketStatusPendingPayment:
		default:
			return fmt.Errorf("%w: cannot pay a %s ticket", domain.ErrInvalidTransition, current.Status)
		}

		ticket, err = s.tickets.UpdateStatus(ctx, ticketID, domain.TicketStatusPaid, nil)
		changed = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.TicketTransition(string(ticket.Status))
		s.publish(ctx, kafka.EventTicketPaid, ticket, nil, 0)
		s.logger.Info("ticket paid", "ticket_id", ticket.ID, "by", actor.UserID)
	}
	return ticket, nil
}

// Cancel ends a paid ticket. More than RefundWindow before departure the
// price is refunded and the seat goes back on sale; otherwise the ticket is
// cancelled without refund and the seat stays taken.
func (s *TicketService) Cancel(ctx context.Context, actor authz.Actor, ticketID int64) (*domain.CancelOutcome, error) {
	now := s.clock()
	var outcome *domain.CancelOutcome

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.tickets.GetByIDForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if !authz.CanAccessTicket(actor, current.UserID) {
			return domain.ErrAccessDenied
		}
		if current.Status != domain.TicketStatusPaid {
			return fmt.Errorf("%w: cannot cancel a %s ticket", domain.ErrInvalidTransition, current.Status)
		}

		flight, err := s.flights.GetByID(ctx, current.FlightID)
		if err != nil {
			return fmt.Errorf("load flight: %w", err)
		}

		outcome = &domain.CancelOutcome{}
		status := domain.TicketStatusCanceled
		if current.Refundable(flight.DepartTime, now) {
			status = domain.TicketStatusRefunded
			outcome.RefundCents = current.PriceCents
			outcome.SeatFreed = true
			if err := s.flights.ReleaseSeat(ctx, flight.ID); err != nil {
				return err
			}
		}

		outcome.Ticket, err = s.tickets.UpdateStatus(ctx, ticketID, status, &now)
		return err
	})
	if err != nil {
		return nil, err
	}

	eventType := kafka.EventTicketCanceled
	if outcome.SeatFreed {
		eventType = kafka.EventTicketRefunded
		s.metrics.SeatReturned()
		s.invalidateFlights(ctx)
	}
	s.metrics.TicketTransition(string(outcome.Ticket.Status))
	s.publish(ctx, eventType, outcome.Ticket, nil, outcome.RefundCents)
	s.logger.Info("ticket cancelled", "ticket_id", ticketID, "status", outcome.Ticket.Status, "refund_cents", outcome.RefundCents)
	return outcome, nil
}

func (s *TicketService) Get(ctx context.Context, actor authz.Actor, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessTicket(actor, ticket.UserID) {
		return nil, domain.ErrAccessDenied
	}
	return ticket, nil
}

// GetByConfirmation is a public lookup; codes are matched case-insensitively.
func (s *TicketService) GetByConfirmation(ctx context.Context, code string) (*domain.TicketWithFlight, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.NewValidationError("code", "is required")
	}
	return s.tickets.GetByConfirmation(ctx, code)
}

func (s *TicketService) ListForUser(ctx context.Context, actor authz.Actor) ([]domain.TicketWithFlight, error) {
	if err := authz.Require(actor, authz.PurchaseTickets); err != nil {
		return nil, err
	}
	return s.tickets.ListByUser(ctx, actor.UserID)
}

func (s *TicketService) ListByStatus(ctx context.Context, actor authz.Actor, status domain.TicketStatus) ([]domain.TicketWithFlight, error) {
	if err := authz.Require(actor, authz.ConfirmPayments); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, domain.NewValidationError("status", "unknown ticket status")
	}
	return s.tickets.ListByStatus(ctx, status)
}

// QRCode renders the boarding payload of a ticket as a PNG.
func (s *TicketService) QRCode(ctx context.Context, code string) ([]byte, error) {
	tf, err := s.GetByConfirmation(ctx, code)
	if err != nil {
		return nil, err
	}
	payload := fmt.Sprintf("SKYBOOKING|%s|%s|%s|%s",
		tf.ConfirmationCode, tf.Flight.Number, tf.Flight.DepartTime.UTC().Format(time.RFC3339), tf.PassengerName)
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

func (s *TicketService) invalidateFlights(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.logger.Warn("failed to invalidate flight cache", "error", err)
	}
}

// publish emits the event after commit. Delivery failures are logged and do
// not undo the state change.
func (s *TicketService) publish(ctx context.Context, eventType string, ticket *domain.Ticket, user *domain.User, refund int64) {
	if s.producer == nil || s.ticketsTopic == "" {
		return
	}

	event := kafka.TicketEvent{
		Type:             eventType,
		TicketID:         ticket.ID,
		ConfirmationCode: ticket.ConfirmationCode,
		FlightID:         ticket.FlightID,
		UserID:           ticket.UserID,
		PassengerName:    ticket.PassengerName,
		Status:           string(ticket.Status),
		PriceCents:       ticket.PriceCents,
		RefundCents:      refund,
		OccurredAt:       s.clock(),
	}
	if flight, err := s.flights.GetByID(ctx, ticket.FlightID); err == nil {
		event.FlightNumber = flight.Number
		event.Origin = flight.Origin
		event.Destination = flight.Destination
		event.DepartTime = flight.DepartTime
	}
	if user == nil {
		user, _ = s.users.GetByID(ctx, ticket.UserID)
	}
	if user != nil {
		event.Email = user.Email
	}

	key := ticket.ConfirmationCode
	if err := s.producer.Publish(ctx, s.ticketsTopic, key, event); err != nil {
		s.logger.Warn("failed to publish ticket event", "type", eventType, "ticket_id", ticket.ID, "error", err)
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, key, event); err != nil {
			s.logger.Warn("failed to publish notification", "type", eventType, "ticket_id", ticket.ID, "error", err)
		}
	}
}

type noopMetrics struct{}

func (noopMetrics) TicketTransition(string) {}
func (noopMetrics) SeatSold()               {}
func (noopMetrics) SeatReturned()           {}

var _ TicketUseCase = (*TicketService)(nil)
