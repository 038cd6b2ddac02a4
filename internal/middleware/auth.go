package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"cspacehr/internal/apierror"
	"cspacehr/internal/rbac"
	"cspacehr/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	PrincipalKey = "principal"
	KioskKey     = "kiosk"

	SessionCookie = "session"
	RefreshCookie = "refresh_token"
	KioskCookie   = "kiosk_session"
	KioskHeader   = "X-Kiosk-Token"

	// CodeTokenExpired tells clients to run a silent refresh.
	CodeTokenExpired = "token_expired"
)

type SessionVerifier interface {
	Verify(raw string) (token.Principal, error)
}

type KioskVerifier interface {
	Verify(raw string) (token.KioskPrincipal, error)
}

// BranchScope answers whether a personal principal may act in a branch.
type BranchScope interface {
	CanAccessBranch(ctx context.Context, p token.Principal, branchID string) (bool, error)
}

// Requirement declares what a route needs. An empty Requirement accepts any
// valid personal session.
type Requirement struct {
	Permission  rbac.Permission
	Permissions []rbac.Permission
	// RequireAll switches Permissions from "any of" to "all of".
	RequireAll bool
	Roles      []rbac.Role
	// AllowKiosk lets a branch terminal token through when no valid session is
	// present. Kiosk principals never satisfy the permission or role checks.
	AllowKiosk bool
}

func (r Requirement) allows(role rbac.Role) bool {
	if r.Permission != "" && !rbac.HasPermission(role, r.Permission) {
		return false
	}
	if len(r.Permissions) > 0 {
		if r.RequireAll && !rbac.HasAllPermissions(role, r.Permissions...) {
			return false
		}
		if !r.RequireAll && !rbac.HasAnyPermission(role, r.Permissions...) {
			return false
		}
	}
	if len(r.Roles) > 0 && !rbac.RoleIn(role, r.Roles...) {
		return false
	}
	return true
}

// Authenticator is the single place where session and kiosk tokens meet.
type Authenticator struct {
	sessions SessionVerifier
	kiosks   KioskVerifier
	scope    BranchScope
}

func NewAuthenticator(sessions SessionVerifier, kiosks KioskVerifier, scope BranchScope) *Authenticator {
	return &Authenticator{sessions: sessions, kiosks: kiosks, scope: scope}
}

// Require resolves the caller and enforces req. A valid session that fails the
// requirement is answered 403 without trying the kiosk path.
func (a *Authenticator) Require(req Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sessionErr error
		if raw := sessionToken(c); raw != "" {
			p, err := a.sessions.Verify(raw)
			if err == nil {
				if !req.allows(p.Role) {
					abortKind(c, apierror.KindForbidden, "insufficient permissions")
					return
				}
				c.Set(PrincipalKey, p)
				c.Next()
				return
			}
			sessionErr = err
		}

		if req.AllowKiosk {
			if raw := kioskToken(c); raw != "" {
				k, err := a.kiosks.Verify(raw)
				if err == nil {
					c.Set(KioskKey, k)
					c.Next()
					return
				}
				log.Debug().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("kiosk token rejected")
			}
		}

		if errors.Is(sessionErr, token.ErrExpired) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, &apierror.APIError{Detail: "session expired", Code: CodeTokenExpired})
			return
		}
		abortKind(c, apierror.KindUnauthenticated, "authentication required")
	}
}

// RequireKiosk accepts only a branch terminal token. A personal session sent
// alongside it is ignored.
func (a *Authenticator) RequireKiosk() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := kioskToken(c); raw != "" {
			k, err := a.kiosks.Verify(raw)
			if err == nil {
				c.Set(KioskKey, k)
				c.Next()
				return
			}
			log.Debug().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("kiosk token rejected")
		}
		abortKind(c, apierror.KindUnauthenticated, "terminal session required")
	}
}

// RequirePermission is shorthand for Require(Requirement{Permission: perm}).
func (a *Authenticator) RequirePermission(perm rbac.Permission) gin.HandlerFunc {
	return a.Require(Requirement{Permission: perm})
}

// RequireRole is shorthand for Require(Requirement{Roles: roles}).
func (a *Authenticator) RequireRole(roles ...rbac.Role) gin.HandlerFunc {
	return a.Require(Requirement{Roles: roles})
}

// RequireBranch scopes a route to the branch named by the path parameter.
// It must run after Require.
func (a *Authenticator) RequireBranch(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		branchID := c.Param(param)
		if k, ok := GetKiosk(c); ok {
			if k.BranchID != branchID {
				abortKind(c, apierror.KindForbidden, "terminal is not registered to this branch")
				return
			}
			c.Next()
			return
		}
		p, ok := GetPrincipal(c)
		if !ok {
			abortKind(c, apierror.KindUnauthenticated, "authentication required")
			return
		}
		allowed, err := a.scope.CanAccessBranch(c.Request.Context(), p, branchID)
		if err != nil {
			kind := apierror.KindOf(err)
			c.AbortWithStatusJSON(apierror.Status(kind), apierror.Envelope(err))
			return
		}
		if !allowed {
			abortKind(c, apierror.KindForbidden, "no access to this branch")
			return
		}
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) (token.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return token.Principal{}, false
	}
	p, ok := v.(token.Principal)
	return p, ok
}

func GetKiosk(c *gin.Context) (token.KioskPrincipal, bool) {
	v, ok := c.Get(KioskKey)
	if !ok {
		return token.KioskPrincipal{}, false
	}
	k, ok := v.(token.KioskPrincipal)
	return k, ok
}

func sessionToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	v, _ := c.Cookie(SessionCookie)
	return v
}

func kioskToken(c *gin.Context) string {
	if h := strings.TrimSpace(c.GetHeader(KioskHeader)); h != "" {
		return h
	}
	v, _ := c.Cookie(KioskCookie)
	return v
}

func abortKind(c *gin.Context, kind apierror.Kind, msg string) {
	c.AbortWithStatusJSON(apierror.Status(kind), apierror.WithCode(kind, msg))
}
