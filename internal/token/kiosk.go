package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// KioskTTL is fixed; an expired kiosk session needs the branch password again.
const KioskTTL = 12 * time.Hour

// KioskPrincipal says "this terminal is authorized for BranchID". It carries
// no individual identity.
type KioskPrincipal struct {
	BranchID        string
	SessionID       string
	AuthenticatedAt time.Time
	ExpiresAt       time.Time
}

type kioskClaims struct {
	Use       Use    `json:"use"`
	BranchID  string `json:"branch_id"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// KioskCodec issues and verifies branch terminal tokens.
type KioskCodec struct {
	signer
}

func NewKioskCodec(secret string, opts ...Option) *KioskCodec {
	return &KioskCodec{signer: newSigner(secret, opts)}
}

// Issue starts a new terminal session for branchID.
func (c *KioskCodec) Issue(branchID string) (string, KioskPrincipal, error) {
	sid := uuid.NewString()
	reg, err := c.registered(branchID, sid, KioskTTL)
	if err != nil {
		return "", KioskPrincipal{}, err
	}
	signed, err := c.sign(kioskClaims{Use: UseKiosk, BranchID: branchID, SessionID: sid, RegisteredClaims: reg})
	if err != nil {
		return "", KioskPrincipal{}, err
	}
	return signed, KioskPrincipal{
		BranchID:        branchID,
		SessionID:       sid,
		AuthenticatedAt: reg.IssuedAt.Time.UTC(),
		ExpiresAt:       reg.ExpiresAt.Time.UTC(),
	}, nil
}

func (c *KioskCodec) Verify(raw string) (KioskPrincipal, error) {
	var claims kioskClaims
	if err := c.parse(raw, &claims); err != nil {
		return KioskPrincipal{}, err
	}
	if err := expect(claims.Use, UseKiosk); err != nil {
		return KioskPrincipal{}, err
	}
	if claims.BranchID == "" || claims.SessionID == "" || claims.IssuedAt == nil {
		return KioskPrincipal{}, ErrMalformed
	}
	return KioskPrincipal{
		BranchID:        claims.BranchID,
		SessionID:       claims.SessionID,
		AuthenticatedAt: claims.IssuedAt.Time.UTC(),
		ExpiresAt:       claims.ExpiresAt.Time.UTC(),
	}, nil
}
