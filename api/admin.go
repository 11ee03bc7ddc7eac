package api

import (
	"net/http"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/accounts"
	"github.com/Domenick1991/skybooking/internal/service/companies"
	"github.com/Domenick1991/skybooking/internal/service/content"
	"github.com/Domenick1991/skybooking/internal/service/stats"
	"github.com/Domenick1991/skybooking/internal/service/tickets"
	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the administration panel. Every service call checks
// the actor's capabilities, so the routes only need authentication.
type AdminHandler struct {
	stats     stats.StatsUseCase
	tickets   tickets.TicketUseCase
	accounts  accounts.AccountUseCase
	companies companies.CompanyUseCase
	content   content.ContentUseCase
}

func NewAdminHandler(
	stats stats.StatsUseCase,
	tickets tickets.TicketUseCase,
	accounts accounts.AccountUseCase,
	companies companies.CompanyUseCase,
	content content.ContentUseCase,
) *AdminHandler {
	return &AdminHandler{stats: stats, tickets: tickets, accounts: accounts, companies: companies, content: content}
}

func (h *AdminHandler) Register(router *gin.RouterGroup) {
	admin := router.Group("/admin")

	admin.GET("/stats", h.dashboard)
	admin.GET("/tickets", h.ticketsByStatus)
	admin.POST("/tickets/:id/confirm", h.confirmPayment)

	admin.GET("/users", h.listUsers)
	admin.POST("/users", h.createUser)
	admin.PUT("/users/:id", h.updateUser)
	admin.POST("/users/:id/toggle", h.toggleUser)

	admin.GET("/companies", h.listCompanies)
	admin.POST("/companies", h.createCompany)
	admin.PUT("/companies/:id", h.updateCompany)
	admin.POST("/companies/:id/toggle", h.toggleCompany)

	admin.GET("/banners", h.listBanners)
	admin.POST("/banners", h.createBanner)
	admin.PUT("/banners/:id", h.updateBanner)
	admin.POST("/banners/:id/toggle", h.toggleBanner)
	admin.POST("/banners/:id/image", h.uploadBannerImage)

	admin.GET("/offers", h.listOffers)
	admin.POST("/offers", h.createOffer)
	admin.PUT("/offers/:id", h.updateOffer)
	admin.POST("/offers/:id/toggle", h.toggleOffer)
}

func (h *AdminHandler) dashboard(c *gin.Context) {
	out, err := h.stats.AdminDashboard(c.Request.Context(), currentActor(c), c.Query("filter"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) ticketsByStatus(c *gin.Context) {
	status := domain.TicketStatus(c.DefaultQuery("status", string(domain.TicketStatusPendingPayment)))
	list, err := h.tickets.ListByStatus(c.Request.Context(), currentActor(c), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": list})
}

func (h *AdminHandler) confirmPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ticket, err := h.tickets.ConfirmPayment(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *AdminHandler) listUsers(c *gin.Context) {
	list, err := h.accounts.ListUsers(c.Request.Context(), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (h *AdminHandler) createUser(c *gin.Context) {
	var input accounts.UserInput
	if !bindJSON(c, &input) {
		return
	}
	user, err := h.accounts.CreateUser(c.Request.Context(), currentActor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *AdminHandler) updateUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input accounts.UserInput
	if !bindJSON(c, &input) {
		return
	}
	user, err := h.accounts.UpdateUser(c.Request.Context(), currentActor(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) toggleUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.accounts.ToggleUser(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) listCompanies(c *gin.Context) {
	list, err := h.companies.List(c.Request.Context(), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": list})
}

func (h *AdminHandler) createCompany(c *gin.Context) {
	var input companies.CompanyInput
	if !bindJSON(c, &input) {
		return
	}
	company, err := h.companies.Create(c.Request.Context(), currentActor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, company)
}

func (h *AdminHandler) updateCompany(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input companies.CompanyInput
	if !bindJSON(c, &input) {
		return
	}
	company, err := h.companies.Update(c.Request.Context(), currentActor(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, company)
}

func (h *AdminHandler) toggleCompany(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	company, err := h.companies.Toggle(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, company)
}

func (h *AdminHandler) listBanners(c *gin.Context) {
	list, err := h.content.ListBanners(c.Request.Context(), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"banners": list})
}

func (h *AdminHandler) createBanner(c *gin.Context) {
	var input content.BannerInput
	if !bindJSON(c, &input) {
		return
	}
	banner, err := h.content.CreateBanner(c.Request.Context(), currentActor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, banner)
}

func (h *AdminHandler) updateBanner(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input content.BannerInput
	if !bindJSON(c, &input) {
		return
	}
	banner, err := h.content.UpdateBanner(c.Request.Context(), currentActor(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, banner)
}

func (h *AdminHandler) toggleBanner(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	banner, err := h.content.ToggleBanner(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, banner)
}

func (h *AdminHandler) uploadBannerImage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart field file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, "cannot read uploaded file")
		return
	}
	defer file.Close()

	banner, err := h.content.UploadBannerImage(c.Request.Context(), currentActor(c), id, file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, banner)
}

func (h *AdminHandler) listOffers(c *gin.Context) {
	list, err := h.content.ListOffers(c.Request.Context(), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": list})
}

func (h *AdminHandler) createOffer(c *gin.Context) {
	var input content.OfferInput
	if !bindJSON(c, &input) {
		return
	}
	offer, err := h.content.CreateOffer(c.Request.Context(), currentActor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, offer)
}

func (h *AdminHandler) updateOffer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input content.OfferInput
	if !bindJSON(c, &input) {
		return
	}
	offer, err := h.content.UpdateOffer(c.Request.Context(), currentActor(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

func (h *AdminHandler) toggleOffer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	offer, err := h.content.ToggleOffer(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}
