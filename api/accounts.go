package api

import (
	"net/http"

	"github.com/Domenick1991/skybooking/internal/service/accounts"
	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	service accounts.AccountUseCase
}

func NewAccountHandler(service accounts.AccountUseCase) *AccountHandler {
	return &AccountHandler{service: service}
}

func (h *AccountHandler) Register(public, authed *gin.RouterGroup) {
	public.POST("/auth/register", h.register)
	public.POST("/auth/login", h.login)

	authed.GET("/profile", h.profile)
	authed.PUT("/profile", h.updateProfile)
	authed.POST("/profile/password", h.changePassword)
	authed.POST("/profile/avatar", h.uploadAvatar)
}

func (h *AccountHandler) register(c *gin.Context) {
	var input accounts.RegisterInput
	if !bindJSON(c, &input) {
		return
	}
	session, err := h.service.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *AccountHandler) login(c *gin.Context) {
	var input accounts.LoginInput
	if !bindJSON(c, &input) {
		return
	}
	session, err := h.service.Login(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *AccountHandler) profile(c *gin.Context) {
	view, err := h.service.Profile(c.Request.Context(), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AccountHandler) updateProfile(c *gin.Context) {
	var input accounts.ProfileInput
	if !bindJSON(c, &input) {
		return
	}
	user, err := h.service.UpdateProfile(c.Request.Context(), currentActor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AccountHandler) changePassword(c *gin.Context) {
	var input accounts.PasswordInput
	if !bindJSON(c, &input) {
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), currentActor(c), input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

func (h *AccountHandler) uploadAvatar(c *gin.Context) {
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

	user, err := h.service.UpdateAvatar(c.Request.Context(), currentActor(c), file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
