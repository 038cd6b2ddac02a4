package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"cspacehr/internal/apierror"
	"cspacehr/internal/middleware"
	"cspacehr/internal/rbac"
	"cspacehr/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

func init() {
	// Report fields by their JSON (or query) name.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	_ = validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return rbac.Valid(fl.Field().String())
	})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return runValidation(c, req)
	}
	return bindAndValidate(c, req)
}

func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid query: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

func runValidation(c *gin.Context, req interface{}) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondError(c, err)
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
	return false
}

// respondError renders a service error. Unclassified errors are logged and
// answered with a generic 500.
func respondError(c *gin.Context, err error) {
	kind := apierror.KindOf(err)
	switch kind {
	case apierror.KindInternal:
		log.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Str("path", c.FullPath()).Msg("request failed")
	case apierror.KindDependencyUnavailable:
		log.Warn().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Str("path", c.FullPath()).Msg("dependency unavailable")
	}
	c.JSON(apierror.Status(kind), apierror.Envelope(err))
}

func pathUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		respondError(c, apierror.Validation(param+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// mustPrincipal fetches the personal session resolved by the auth middleware
// and answers 401 when the route was reached without one.
func mustPrincipal(c *gin.Context) (token.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		respondError(c, apierror.Unauthenticated("personal session required"))
	}
	return p, ok
}

// CookieOptions controls the attributes of auth cookies.
type CookieOptions struct {
	Secure bool
	Domain string
}

func (o CookieOptions) set(c *gin.Context, name, value, path string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), path, o.Domain, o.Secure, true)
}

func (o CookieOptions) clear(c *gin.Context, name, path string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, path, o.Domain, o.Secure, true)
}

const refreshCookiePath = "/v1/auth"
