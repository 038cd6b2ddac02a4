package handler

import (
	"errors"
	"net/http"
	"time"

	"cspacehr/internal/dto"
	"cspacehr/internal/middleware"
	"cspacehr/internal/rbac"
	"cspacehr/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc     service.AuthService
	cookies CookieOptions
}

func NewAuthHandler(svc service.AuthService, cookies CookieOptions) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies}
}

func (h *AuthHandler) setSessionCookies(c *gin.Context, resp *dto.SessionResponse) {
	h.cookies.set(c, middleware.SessionCookie, resp.AccessToken, "/", time.Until(resp.ExpiresAt))
	h.cookies.set(c, middleware.RefreshCookie, resp.RefreshToken, refreshCookiePath, time.Until(resp.RefreshExpiresAt))
}

func (h *AuthHandler) clearSessionCookies(c *gin.Context) {
	h.cookies.clear(c, middleware.SessionCookie, "/")
	h.cookies.clear(c, middleware.RefreshCookie, refreshCookiePath)
}

// refreshToken prefers the body over the cookie.
func refreshToken(c *gin.Context, req dto.RefreshRequest) string {
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	v, _ := c.Cookie(middleware.RefreshCookie)
	return v
}

// Login godoc
// @Summary Personal login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.SessionResponse
// @Failure 401 {object} apierror.APIError
// @Failure 429 {object} apierror.APIError
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.setSessionCookies(c, resp)
	c.JSON(http.StatusOK, resp)
}

// Refresh godoc
// @Summary Rotate the refresh token and issue a new access token
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.RefreshRequest false "Refresh token (falls back to the refresh_token cookie)"
// @Success 200 {object} dto.SessionResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	resp, err := h.svc.Refresh(c.Request.Context(), refreshToken(c, req))
	if err != nil {
		// A consumed token may belong to a parallel refresh that already rotated the cookies.
		if errors.Is(err, service.ErrSessionEnded) {
			h.clearSessionCookies(c)
		}
		respondError(c, err)
		return
	}
	h.setSessionCookies(c, resp)
	c.JSON(http.StatusOK, resp)
}

// Logout godoc
// @Summary End the personal session
// @Tags auth
// @Accept json
// @Param body body dto.RefreshRequest false "Refresh token (falls back to the refresh_token cookie)"
// @Success 204
// @Failure 503 {object} apierror.APIError
// @Router /v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	err := h.svc.Logout(c.Request.Context(), refreshToken(c, req))
	h.clearSessionCookies(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me godoc
// @Summary Current principal with permissions and branch scope
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.MeResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	resp, err := h.svc.Me(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Permissions godoc
// @Summary Permission list of the current role
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.PermissionsResponse
// @Router /v1/auth/permissions [get]
func (h *AuthHandler) Permissions(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.PermissionsResponse{Role: string(p.Role), Permissions: rbac.PermissionNames(p.Role)})
}
