package api

import (
	"net/http"
	"strconv"

	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/Domenick1991/skybooking/internal/service/stats"
	"github.com/gin-gonic/gin"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/flights", h.search)
	router.GET("/flights/upcoming", h.upcoming)
	router.GET("/flights/:id", h.get)
	router.GET("/search/suggestions", h.suggestions)
	router.GET("/stats", h.publicStats)
}

func (h *FlightHandler) search(c *gin.Context) {
	var query flights.SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "invalid query: "+err.Error())
		return
	}
	result, err := h.service.Search(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

func (h *FlightHandler) upcoming(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.service.Upcoming(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flights": list})
}

func (h *FlightHandler) suggestions(c *gin.Context) {
	list, err := h.service.Suggestions(c.Request.Context(), c.Query("q"), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": list})
}

func (h *FlightHandler) publicStats(c *gin.Context) {
	out, err := h.service.PublicStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// CompanyHandler serves the airline manager dashboard.
type CompanyHandler struct {
	flights flights.FlightUseCase
	stats   stats.StatsUseCase
}

func NewCompanyHandler(flights flights.FlightUseCase, stats stats.StatsUseCase) *CompanyHandler {
	return &CompanyHandler{flights: flights, stats: stats}
}

func (h *CompanyHandler) Register(router *gin.RouterGroup) {
	router.GET("/company", h.overview)
	router.GET("/company/flights", h.list)
	router.POST("/company/flights", h.create)
	router.PUT("/company/flights/:id", h.update)
	router.DELETE("/company/flights/:id", h.delete)
	router.GET("/company/flights/:id/passengers", h.passengers)
}

func (h *CompanyHandler) overview(c *gin.Context) {
	out, err := h.stats.CompanyOverview(c.Request.Context(), currentActor(c), c.Query("filter"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *CompanyHandler) list(c *gin.Context) {
	list, err := h.flights.ListForManager(c.Request.Context(), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flights": list})
}

func (h *CompanyHandler) create(c *gin.Context) {
	var input flights.FlightInput
	if !bindJSON(c, &input) {
		return
	}
	flight, err := h.flights.Create(c.Request.Context(), currentActor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, flight)
}

func (h *CompanyHandler) update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input flights.FlightInput
	if !bindJSON(c, &input) {
		return
	}
	flight, err := h.flights.Update(c.Request.Context(), currentActor(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

func (h *CompanyHandler) delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.flights.Delete(c.Request.Context(), currentActor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CompanyHandler) passengers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.flights.Passengers(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"passengers": list})
}
