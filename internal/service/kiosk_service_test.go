package service

import (
	"context"
	"errors"
	"testing"

	"cspacehr/internal/apierror"
	"cspacehr/internal/dto"
	"cspacehr/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKioskAuthenticate(t *testing.T) {
	db := newFakeDB()
	db.addBranch(t, "yunusabad", "terminal-pass")
	codec := token.NewKioskCodec(testSecret)
	svc := NewKioskService(fakeBranches{db}, codec, testHasher)
	ctx := context.Background()

	resp, err := svc.Authenticate(ctx, dto.KioskLoginRequest{BranchID: "yunusabad", Password: "terminal-pass"})
	require.NoError(t, err)
	assert.Equal(t, "Yunusabad", resp.BranchName)
	assert.Equal(t, token.KioskTTL, resp.ExpiresAt.Sub(resp.AuthenticatedAt))

	k, err := codec.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "yunusabad", k.BranchID)
	assert.Equal(t, resp.SessionID, k.SessionID)
	assert.NoError(t, svc.End(ctx, k))

	again, err := svc.Authenticate(ctx, dto.KioskLoginRequest{BranchID: "yunusabad", Password: "terminal-pass"})
	require.NoError(t, err)
	assert.NotEqual(t, resp.SessionID, again.SessionID, "each terminal login is a new session")

	_, err = svc.Authenticate(ctx, dto.KioskLoginRequest{BranchID: "yunusabad", Password: "wrong"})
	wrongPass := err
	assert.True(t, apierror.Is(err, apierror.KindUnauthenticated))

	_, err = svc.Authenticate(ctx, dto.KioskLoginRequest{BranchID: "atlantis", Password: "terminal-pass"})
	assert.True(t, apierror.Is(err, apierror.KindUnauthenticated))
	assert.Equal(t, wrongPass.Error(), err.Error(), "unknown branches look like bad passwords")

	// Kiosk tokens never pass as personal sessions.
	_, err = token.NewSessionCodec(testSecret).Verify(resp.Token)
	assert.Error(t, err)
}

func TestKioskAuthenticate_BranchWithoutPassword(t *testing.T) {
	db := newFakeDB()
	db.addBranch(t, "sergeli", "")
	svc := NewKioskService(fakeBranches{db}, token.NewKioskCodec(testSecret), testHasher)

	_, err := svc.Authenticate(context.Background(), dto.KioskLoginRequest{BranchID: "sergeli", Password: ""})
	assert.True(t, apierror.Is(err, apierror.KindUnauthenticated))
}

func TestKioskAuthenticate_StoreOutage(t *testing.T) {
	db := newFakeDB()
	db.err = errors.New("connection reset")
	svc := NewKioskService(fakeBranches{db}, token.NewKioskCodec(testSecret), testHasher)

	_, err := svc.Authenticate(context.Background(), dto.KioskLoginRequest{BranchID: "sergeli", Password: "x"})
	assert.True(t, apierror.Is(err, apierror.KindDependencyUnavailable))
}
