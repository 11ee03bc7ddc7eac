package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"gopkg.in/gomail.v2"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Sender struct {
	from   string
	dialer dialer
	logger *slog.Logger
}

// NewSender returns a sender that delivers over SMTP. With no SMTP host
// configured messages are only logged.
func NewSender(cfg config.SMTPConfig, logger *slog.Logger) *Sender {
	s := &Sender{from: cfg.From, logger: logger.With("component", "email")}
	if cfg.Host != "" {
		s.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return s
}

func (s *Sender) Send(ctx context.Context, event kafka.TicketEvent) error {
	if event.Email == "" {
		s.logger.Warn("event without recipient", "type", event.Type, "ticket_id", event.TicketID)
		return nil
	}

	subject, body := render(event)
	if s.dialer == nil {
		s.logger.Info("email", "to", event.Email, "subject", subject)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", event.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Info("email sent", "to", event.Email, "type", event.Type, "ticket_id", event.TicketID)
	return nil
}

func render(e kafka.TicketEvent) (subject, body string) {
	route := fmt.Sprintf("%s %s → %s, departs %s UTC", e.FlightNumber, e.Origin, e.Destination, e.DepartTime.UTC().Format("2006-01-02 15:04"))

	switch e.Type {
	case kafka.EventTicketPurchased:
		subject = fmt.Sprintf("Booking %s awaits payment", e.ConfirmationCode)
		body = fmt.Sprintf("Hello %s,\n\nyour ticket %s for %s is reserved.\nAmount due: %s.\n",
			e.PassengerName, e.ConfirmationCode, route, formatCents(e.PriceCents))
	case kafka.EventTicketPaid:
		subject = fmt.Sprintf("Booking %s confirmed", e.ConfirmationCode)
		body = fmt.Sprintf("Hello %s,\n\npayment for ticket %s is confirmed.\n%s\n",
			e.PassengerName, e.ConfirmationCode, route)
	case kafka.EventTicketRefunded:
		subject = fmt.Sprintf("Booking %s refunded", e.ConfirmationCode)
		body = fmt.Sprintf("Hello %s,\n\nticket %s was cancelled and %s will be refunded.\n%s\n",
			e.PassengerName, e.ConfirmationCode, formatCents(e.RefundCents), route)
	case kafka.EventTicketCanceled:
		subject = fmt.Sprintf("Booking %s cancelled", e.ConfirmationCode)
		body = fmt.Sprintf("Hello %s,\n\nticket %s was cancelled less than 24 hours before departure and is not refundable.\n%s\n",
			e.PassengerName, e.ConfirmationCode, route)
	default:
		subject = fmt.Sprintf("Booking %s updated", e.ConfirmationCode)
		body = fmt.Sprintf("Ticket %s is now %s.\n%s\n", e.ConfirmationCode, e.Status, route)
	}
	return subject, body
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
