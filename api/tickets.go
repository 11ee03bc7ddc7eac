package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/tickets"
	"github.com/gin-gonic/gin"
)

type TicketHandler struct {
	service     tickets.TicketUseCase
	idempotency gin.HandlerFunc
}

func NewTicketHandler(service tickets.TicketUseCase, idempotency gin.HandlerFunc) *TicketHandler {
	if idempotency == nil {
		idempotency = func(c *gin.Context) { c.Next() }
	}
	return &TicketHandler{service: service, idempotency: idempotency}
}

// Register mounts lookups on public and everything that acts on a ticket on
// authed. Every /tickets route names its parameter ref: it is the
// confirmation code on lookups and the ticket id on actions.
func (h *TicketHandler) Register(public, authed *gin.RouterGroup) {
	public.GET("/tickets/:ref", h.lookup)
	public.GET("/tickets/:ref/qr", h.qr)

	authed.POST("/flights/:id/tickets", h.idempotency, h.purchase)
	authed.GET("/tickets", h.list)
	authed.POST("/tickets/:ref/pay", h.pay)
	authed.POST("/tickets/:ref/cancel", h.cancel)
}

type purchaseRequest struct {
	PassengerName string `json:"passenger_name"`
	Seat          string `json:"seat"`
}

func (h *TicketHandler) purchase(c *gin.Context) {
	flightID, ok := pathID(c, "id")
	if !ok {
		return
	}
	// The body is optional: the passenger name defaults to the buyer's.
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	ticket, err := h.service.Purchase(c.Request.Context(), currentActor(c), tickets.PurchaseInput{
		FlightID:      flightID,
		PassengerName: req.PassengerName,
		Seat:          req.Seat,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func (h *TicketHandler) list(c *gin.Context) {
	list, err := h.service.ListForUser(c.Request.Context(), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": list})
}

func (h *TicketHandler) lookup(c *gin.Context) {
	ticket, err := h.service.GetByConfirmation(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) qr(c *gin.Context) {
	png, err := h.service.QRCode(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *TicketHandler) pay(c *gin.Context) {
	id, ok := pathID(c, "ref")
	if !ok {
		return
	}
	ticket, err := h.service.ConfirmPayment(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

type cancelResponse struct {
	Message     string         `json:"message"`
	RefundCents int64          `json:"refund_cents"`
	SeatFreed   bool           `json:"seat_freed"`
	Ticket      *domain.Ticket `json:"ticket"`
}

func (h *TicketHandler) cancel(c *gin.Context) {
	id, ok := pathID(c, "ref")
	if !ok {
		return
	}
	outcome, err := h.service.Cancel(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "ticket canceled without refund"
	if outcome.Ticket.Status == domain.TicketStatusRefunded {
		message = "ticket refunded"
	}
	c.JSON(http.StatusOK, cancelResponse{
		Message:     message,
		RefundCents: outcome.RefundCents,
		SeatFreed:   outcome.SeatFreed,
		Ticket:      outcome.Ticket,
	})
}
