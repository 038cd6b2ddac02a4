package token

import (
	"time"

	"cspacehr/internal/rbac"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Principal is the logged-in identity carried by an access token.
type Principal struct {
	ID         string
	Name       string
	Email      string
	Role       rbac.Role
	EmployeeID *string
	BranchID   *string
	// SessionID is stable for the whole login, across refreshes.
	SessionID string
}

type sessionClaims struct {
	Use        Use     `json:"use"`
	Name       string  `json:"name,omitempty"`
	Email      string  `json:"email,omitempty"`
	Role       string  `json:"role"`
	EmployeeID *string `json:"employee_id,omitempty"`
	BranchID   *string `json:"branch_id,omitempty"`
	SessionID  string  `json:"sid"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	Use       Use    `json:"use"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// RefreshToken is a freshly issued refresh credential.
type RefreshToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// RefreshClaims is what a verified refresh token proves.
type RefreshClaims struct {
	UserID    string
	SessionID string
	TokenID   string
	ExpiresAt time.Time
}

// SessionCodec issues and verifies access and refresh tokens.
type SessionCodec struct {
	signer
}

func NewSessionCodec(secret string, opts ...Option) *SessionCodec {
	return &SessionCodec{signer: newSigner(secret, opts)}
}

// Issue signs an access token for p valid for ttl.
func (c *SessionCodec) Issue(p Principal, ttl time.Duration) (string, time.Time, error) {
	reg, err := c.registered(p.ID, uuid.NewString(), ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	claims := sessionClaims{
		Use:              UseAccess,
		Name:             p.Name,
		Email:            p.Email,
		Role:             string(p.Role),
		EmployeeID:       p.EmployeeID,
		BranchID:         p.BranchID,
		SessionID:        p.SessionID,
		RegisteredClaims: reg,
	}
	signed, err := c.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, reg.ExpiresAt.Time.UTC(), nil
}

// Verify checks an access token and returns its principal.
func (c *SessionCodec) Verify(raw string) (Principal, error) {
	var claims sessionClaims
	if err := c.parse(raw, &claims); err != nil {
		return Principal{}, err
	}
	if err := expect(claims.Use, UseAccess); err != nil {
		return Principal{}, err
	}
	if claims.Subject == "" {
		return Principal{}, ErrMalformed
	}
	return Principal{
		ID:         claims.Subject,
		Name:       claims.Name,
		Email:      claims.Email,
		Role:       rbac.Normalize(claims.Role),
		EmployeeID: claims.EmployeeID,
		BranchID:   claims.BranchID,
		SessionID:  claims.SessionID,
	}, nil
}

// IssueRefresh signs a single-use refresh token bound to p's session.
func (c *SessionCodec) IssueRefresh(p Principal, ttl time.Duration) (RefreshToken, error) {
	id := uuid.NewString()
	reg, err := c.registered(p.ID, id, ttl)
	if err != nil {
		return RefreshToken{}, err
	}
	signed, err := c.sign(refreshClaims{Use: UseRefresh, SessionID: p.SessionID, RegisteredClaims: reg})
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Token: signed, ID: id, ExpiresAt: reg.ExpiresAt.Time.UTC()}, nil
}

// VerifyRefresh checks signature, expiry and type of a refresh token. Whether
// the token was already used is decided by a RefreshStore.
func (c *SessionCodec) VerifyRefresh(raw string) (RefreshClaims, error) {
	var claims refreshClaims
	if err := c.parse(raw, &claims); err != nil {
		return RefreshClaims{}, err
	}
	if err := expect(claims.Use, UseRefresh); err != nil {
		return RefreshClaims{}, err
	}
	if claims.Subject == "" || claims.ID == "" {
		return RefreshClaims{}, ErrMalformed
	}
	return RefreshClaims{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}
