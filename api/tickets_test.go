package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/internal/authz"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/tickets"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTicketUseCase is a mock implementation of tickets.TicketUseCase
type MockTicketUseCase struct {
	mock.Mock
}

func (m *MockTicketUseCase) Purchase(ctx context.Context, actor authz.Actor, input tickets.PurchaseInput) (*domain.Ticket, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketUseCase) ConfirmPayment(ctx context.Context, actor authz.Actor, ticketID int64) (*domain.Ticket, error) {
	args := m.Called(ctx, actor, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketUseCase) Cancel(ctx context.Context, actor authz.Actor, ticketID int64) (*domain.CancelOutcome, error) {
	args := m.Called(ctx, actor, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CancelOutcome), args.Error(1)
}

func (m *MockTicketUseCase) Get(ctx context.Context, actor authz.Actor, ticketID int64) (*domain.Ticket, error) {
	args := m.Called(ctx, actor, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketUseCase) GetByConfirmation(ctx context.Context, code string) (*domain.TicketWithFlight, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TicketWithFlight), args.Error(1)
}

func (m *MockTicketUseCase) ListForUser(ctx context.Context, actor authz.Actor) ([]domain.TicketWithFlight, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).([]domain.TicketWithFlight), args.Error(1)
}

func (m *MockTicketUseCase) ListByStatus(ctx context.Context, actor authz.Actor, status domain.TicketStatus) ([]domain.TicketWithFlight, error) {
	args := m.Called(ctx, actor, status)
	return args.Get(0).([]domain.TicketWithFlight), args.Error(1)
}

func (m *MockTicketUseCase) QRCode(ctx context.Context, code string) ([]byte, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func TestTicketHandler_purchase(t *testing.T) {
	mockService := &MockTicketUseCase{}
	handler := NewTicketHandler(mockService, nil)

	body := []byte(`{"passenger_name":"Ivan Petrov","seat":"12A"}`)
	c, w := newContext("POST", "/api/flights/3/tickets", body, &userActor)
	c.Params = gin.Params{{Key: "id", Value: "3"}}

	input := tickets.PurchaseInput{FlightID: 3, PassengerName: "Ivan Petrov", Seat: "12A"}
	ticket := &domain.Ticket{
		ID:               1,
		UserID:           userActor.UserID,
		FlightID:         3,
		Status:           domain.TicketStatusPendingPayment,
		ConfirmationCode: "AB12CD34",
		PriceCents:       500000,
	}
	mockService.On("Purchase", c.Request.Context(), userActor, input).Return(ticket, nil)

	handler.purchase(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response domain.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "AB12CD34", response.ConfirmationCode)
	assert.Equal(t, domain.TicketStatusPendingPayment, response.Status)

	mockService.AssertExpectations(t)
}

func TestTicketHandler_purchase_EmptyBody(t *testing.T) {
	mockService := &MockTicketUseCase{}
	handler := NewTicketHandler(mockService, nil)

	c, w := newContext("POST", "/api/flights/3/tickets", nil, &userActor)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	mockService.On("Purchase", c.Request.Context(), userActor, tickets.PurchaseInput{FlightID: 3}).
		Return(&domain.Ticket{ID: 1}, nil)

	handler.purchase(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockService.AssertExpectations(t)
}

func TestTicketHandler_purchase_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"sold out", domain.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
		{"departed", domain.ErrFlightNotBookable, http.StatusConflict, "flight_not_bookable"},
		{"manager", domain.ErrAccessDenied, http.StatusForbidden, "access_denied"},
		{"missing flight", domain.ErrNotFound, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockTicketUseCase{}
			handler := NewTicketHandler(mockService, nil)

			c, w := newContext("POST", "/api/flights/3/tickets", []byte(`{}`), &userActor)
			c.Params = gin.Params{{Key: "id", Value: "3"}}
			mockService.On("Purchase", c.Request.Context(), userActor, mock.Anything).Return(nil, tt.err)

			handler.purchase(c)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.kind, decodeError(t, w).Error)
		})
	}
}

func TestTicketHandler_cancel(t *testing.T) {
	mockService := &MockTicketUseCase{}
	handler := NewTicketHandler(mockService, nil)

	c, w := newContext("POST", "/api/tickets/7/cancel", nil, &userActor)
	c.Params = gin.Params{{Key: "ref", Value: "7"}}

	canceledAt := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	outcome := &domain.CancelOutcome{
		Ticket:      &domain.Ticket{ID: 7, Status: domain.TicketStatusRefunded, PriceCents: 500000, CanceledAt: &canceledAt},
		RefundCents: 500000,
		SeatFreed:   true,
	}
	mockService.On("Cancel", c.Request.Context(), userActor, int64(7)).Return(outcome, nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response cancelResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ticket refunded", response.Message)
	assert.Equal(t, int64(500000), response.RefundCents)
	assert.True(t, response.SeatFreed)
	assert.Equal(t, domain.TicketStatusRefunded, response.Ticket.Status)
}

func TestTicketHandler_cancel_LateAndInvalid(t *testing.T) {
	mockService := &MockTicketUseCase{}
	handler := NewTicketHandler(mockService, nil)

	c, w := newContext("POST", "/api/tickets/8/cancel", nil, &userActor)
	c.Params = gin.Params{{Key: "ref", Value: "8"}}
	outcome := &domain.CancelOutcome{Ticket: &domain.Ticket{ID: 8, Status: domain.TicketStatusCanceled}}
	mockService.On("Cancel", c.Request.Context(), userActor, int64(8)).Return(outcome, nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "without refund")

	c, w = newContext("POST", "/api/tickets/9/cancel", nil, &userActor)
	c.Params = gin.Params{{Key: "ref", Value: "9"}}
	mockService.On("Cancel", c.Request.Context(), userActor, int64(9)).Return(nil, domain.ErrInvalidTransition)

	handler.cancel(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_transition", decodeError(t, w).Error)
}

func TestTicketHandler_pay(t *testing.T) {
	mockService := &MockTicketUseCase{}
	handler := NewTicketHandler(mockService, nil)

	c, w := newContext("POST", "/api/tickets/AB12CD34/pay", nil, &userActor)
	c.Params = gin.Params{{Key: "ref", Value: "AB12CD34"}}
	handler.pay(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything)

	c, w = newContext("POST", "/api/tickets/7/pay", nil, &userActor)
	c.Params = gin.Params{{Key: "ref", Value: "7"}}
	mockService.On("ConfirmPayment", c.Request.Context(), userActor, int64(7)).
		Return(&domain.Ticket{ID: 7, Status: domain.TicketStatusPaid}, nil)
	handler.pay(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTicketHandler_lookupAndQR(t *testing.T) {
	mockService := &MockTicketUseCase{}
	handler := NewTicketHandler(mockService, nil)

	c, w := newContext("GET", "/api/tickets/ab12cd34", nil, nil)
	c.Params = gin.Params{{Key: "ref", Value: "ab12cd34"}}
	found := &domain.TicketWithFlight{
		Ticket: domain.Ticket{ID: 7, ConfirmationCode: "AB12CD34"},
		Flight: domain.Flight{ID: 3, Number: "SU100"},
	}
	mockService.On("GetByConfirmation", c.Request.Context(), "ab12cd34").Return(found, nil)
	handler.lookup(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"flight_number":"SU100"`)

	c, w = newContext("GET", "/api/tickets/AB12CD34/qr", nil, nil)
	c.Params = gin.Params{{Key: "ref", Value: "AB12CD34"}}
	png := []byte("\x89PNG\r\n\x1a\n")
	mockService.On("QRCode", c.Request.Context(), "AB12CD34").Return(png, nil)
	handler.qr(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, png, w.Body.Bytes())
}
