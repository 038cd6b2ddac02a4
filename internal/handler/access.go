package handler

import (
	"net/http"

	"cspacehr/internal/dto"
	"cspacehr/internal/service"

	"github.com/gin-gonic/gin"
)

type AccessHandler struct{ svc service.AccessService }

func NewAccessHandler(svc service.AccessService) *AccessHandler {
	return &AccessHandler{svc: svc}
}

// Create godoc
// @Summary Grant a user temporary access to another branch
// @Tags branch-access
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateGrantRequest true "Grant"
// @Success 201 {object} dto.GrantResponse
// @Failure 403 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/branch-access [post]
func (h *AccessHandler) Create(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	var req dto.CreateGrantRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateGrant(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List godoc
// @Summary List branch access grants
// @Tags branch-access
// @Produce json
// @Security BearerAuth
// @Param user_id query string false "User"
// @Param branch_id query string false "Branch"
// @Param include_expired query bool false "Include expired grants"
// @Success 200 {array} dto.GrantResponse
// @Router /v1/branch-access [get]
func (h *AccessHandler) List(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	var q dto.ListGrantsQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.ListGrants(c.Request.Context(), p, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete godoc
// @Summary Revoke a branch access grant
// @Tags branch-access
// @Security BearerAuth
// @Param id path string true "Grant ID"
// @Success 204
// @Failure 404 {object} apierror.APIError
// @Router /v1/branch-access/{id} [delete]
func (h *AccessHandler) Delete(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteGrant(c.Request.Context(), p, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
