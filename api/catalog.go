package api

import (
	"net/http"

	"github.com/Domenick1991/skybooking/internal/service/companies"
	"github.com/Domenick1991/skybooking/internal/service/content"
	"github.com/gin-gonic/gin"
)

// CatalogHandler serves the public airline list and landing page content.
type CatalogHandler struct {
	companies companies.CompanyUseCase
	content   content.ContentUseCase
}

func NewCatalogHandler(companies companies.CompanyUseCase, content content.ContentUseCase) *CatalogHandler {
	return &CatalogHandler{companies: companies, content: content}
}

func (h *CatalogHandler) Register(router *gin.RouterGroup) {
	router.GET("/airlines", h.airlines)
	router.GET("/landing", h.landing)
}

func (h *CatalogHandler) airlines(c *gin.Context) {
	list, err := h.companies.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"airlines": list})
}

func (h *CatalogHandler) landing(c *gin.Context) {
	landing, err := h.content.Landing(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, landing)
}
