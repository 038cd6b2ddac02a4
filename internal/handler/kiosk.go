package handler

import (
	"net/http"
	"time"

	"cspacehr/internal/apierror"
	"cspacehr/internal/dto"
	"cspacehr/internal/middleware"
	"cspacehr/internal/service"

	"github.com/gin-gonic/gin"
)

type KioskHandler struct {
	svc     service.KioskService
	cookies CookieOptions
}

func NewKioskHandler(svc service.KioskService, cookies CookieOptions) *KioskHandler {
	return &KioskHandler{svc: svc, cookies: cookies}
}

// Login godoc
// @Summary Open a branch terminal session
// @Tags kiosk
// @Accept json
// @Produce json
// @Param body body dto.KioskLoginRequest true "Branch credentials"
// @Success 200 {object} dto.KioskSessionResponse
// @Failure 401 {object} apierror.APIError
// @Failure 429 {object} apierror.APIError
// @Router /v1/kiosk/login [post]
func (h *KioskHandler) Login(c *gin.Context) {
	var req dto.KioskLoginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Authenticate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.cookies.set(c, middleware.KioskCookie, resp.Token, "/", time.Until(resp.ExpiresAt))
	c.JSON(http.StatusOK, resp)
}

// Logout godoc
// @Summary Close the branch terminal session
// @Tags kiosk
// @Security KioskToken
// @Success 204
// @Failure 401 {object} apierror.APIError
// @Router /v1/kiosk/logout [post]
func (h *KioskHandler) Logout(c *gin.Context) {
	k, ok := middleware.GetKiosk(c)
	if !ok {
		respondError(c, apierror.Unauthenticated("terminal session required"))
		return
	}
	if err := h.svc.End(c.Request.Context(), k); err != nil {
		respondError(c, err)
		return
	}
	h.cookies.clear(c, middleware.KioskCookie, "/")
	c.Status(http.StatusNoContent)
}
