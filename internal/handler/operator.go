package handler

import (
	"net/http"
	"strconv"

	"cspacehr/internal/apierror"
	"cspacehr/internal/dto"
	"cspacehr/internal/middleware"
	"cspacehr/internal/service"

	"github.com/gin-gonic/gin"
)

type OperatorHandler struct{ svc service.OperatorService }

func NewOperatorHandler(svc service.OperatorService) *OperatorHandler {
	return &OperatorHandler{svc: svc}
}

// switchSessionKey is the terminal session for kiosks and the personal
// session otherwise; lockout is counted per (branch, session key).
func switchSessionKey(c *gin.Context) string {
	if k, ok := middleware.GetKiosk(c); ok {
		return k.SessionID
	}
	if p, ok := middleware.GetPrincipal(c); ok {
		return p.SessionID
	}
	return ""
}

// Switch godoc
// @Summary Identify the operator at a terminal by PIN
// @Tags operator
// @Accept json
// @Produce json
// @Security KioskToken
// @Security BearerAuth
// @Param branch_id path string true "Branch"
// @Param body body dto.SwitchOperatorRequest true "PIN"
// @Success 200 {object} dto.SwitchOperatorResponse
// @Failure 400 {object} apierror.APIError
// @Failure 401 {object} dto.SwitchOperatorResponse "invalid PIN"
// @Failure 429 {object} dto.SwitchOperatorResponse "locked"
// @Router /v1/branches/{branch_id}/operator/switch [post]
func (h *OperatorHandler) Switch(c *gin.Context) {
	var req dto.SwitchOperatorRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Switch(c.Request.Context(), service.SwitchInput{
		BranchID:  c.Param("branch_id"),
		SessionID: switchSessionKey(c),
		PIN:       req.PIN,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	switch resp.Status {
	case dto.SwitchStatusLocked:
		if resp.LockoutRemainingSeconds != nil {
			c.Header("Retry-After", strconv.Itoa(*resp.LockoutRemainingSeconds))
		}
		c.JSON(http.StatusTooManyRequests, resp)
	case dto.SwitchStatusInvalid:
		c.JSON(http.StatusUnauthorized, resp)
	default:
		c.JSON(http.StatusOK, resp)
	}
}

// Logs godoc
// @Summary Operator switch audit trail for a branch
// @Tags operator
// @Produce json
// @Security BearerAuth
// @Param branch_id path string true "Branch"
// @Param limit query int false "Max entries (default 100, max 500)"
// @Success 200 {array} dto.SwitchLogResponse
// @Router /v1/branches/{branch_id}/operator/logs [get]
func (h *OperatorHandler) Logs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, apierror.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	resp, err := h.svc.ListSwitchLogs(c.Request.Context(), c.Param("branch_id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AssignPINs godoc
// @Summary Generate PINs for employees without one (or all, with overwrite)
// @Tags pins
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AssignPINsRequest true "Scope"
// @Success 200 {object} dto.AssignPINsResponse
// @Failure 403 {object} apierror.APIError
// @Router /v1/pins/assign [post]
func (h *OperatorHandler) AssignPINs(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	var req dto.AssignPINsRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	resp, err := h.svc.BulkAssignPINs(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, resp)
}
