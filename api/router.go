package api

import (
	"log/slog"
	"net/http"

	"github.com/Domenick1991/skybooking/internal/metrics"
	"github.com/Domenick1991/skybooking/internal/service/accounts"
	"github.com/Domenick1991/skybooking/internal/service/companies"
	"github.com/Domenick1991/skybooking/internal/service/content"
	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/Domenick1991/skybooking/internal/service/stats"
	"github.com/Domenick1991/skybooking/internal/service/tickets"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"
)

const swaggerDocument = "/swagger/skybooking.swagger.json"

type Services struct {
	Flights   flights.FlightUseCase
	Tickets   tickets.TicketUseCase
	Accounts  accounts.AccountUseCase
	Companies companies.CompanyUseCase
	Content   content.ContentUseCase
	Stats     stats.StatsUseCase
}

type RouterConfig struct {
	Mode        string
	UploadsDir  string
	UploadsPath string
	SwaggerDir  string
}

// NewRouter builds the HTTP surface: the JSON API under /api, Prometheus
// metrics, uploaded files and the API docs.
func NewRouter(cfg RouterConfig, services Services, idempotency IdempotencyStore, m *metrics.Metrics, logger *slog.Logger) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger, m))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	if cfg.UploadsDir != "" {
		router.Static(cfg.UploadsPath, cfg.UploadsDir)
	}
	if cfg.SwaggerDir != "" {
		router.Static("/swagger", cfg.SwaggerDir)
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL(swaggerDocument))))
	}

	public := router.Group("/api")
	authed := public.Group("", RequireAuth(services.Accounts))

	var idem gin.HandlerFunc
	if idempotency != nil {
		idem = Idempotency(idempotency, logger)
	}

	NewFlightHandler(services.Flights).Register(public)
	NewCatalogHandler(services.Companies, services.Content).Register(public)
	NewTicketHandler(services.Tickets, idem).Register(public, authed)
	NewAccountHandler(services.Accounts).Register(public, authed)
	NewCompanyHandler(services.Flights, services.Stats).Register(authed)
	NewAdminHandler(services.Stats, services.Tickets, services.Accounts, services.Companies, services.Content).Register(authed)

	return router
}
