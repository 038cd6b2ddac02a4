package service

import (
	"context"

	"cspacehr/internal/apierror"
	"cspacehr/internal/dto"
	"cspacehr/internal/repository"
	"cspacehr/internal/security"
	"cspacehr/internal/token"

	"github.com/rs/zerolog/log"
)

const msgBadKiosk = "invalid branch or password"

// KioskService opens and closes branch terminal sessions.
type KioskService interface {
	Authenticate(ctx context.Context, req dto.KioskLoginRequest) (*dto.KioskSessionResponse, error)
	End(ctx context.Context, k token.KioskPrincipal) error
}

type kioskService struct {
	branches repository.BranchRepository
	codec    *token.KioskCodec
	hasher   security.Hasher
}

func NewKioskService(branches repository.BranchRepository, codec *token.KioskCodec, hasher security.Hasher) KioskService {
	return &kioskService{branches: branches, codec: codec, hasher: hasher}
}

func (s *kioskService) Authenticate(ctx context.Context, req dto.KioskLoginRequest) (*dto.KioskSessionResponse, error) {
	branch, err := s.branches.FindByID(ctx, req.BranchID)
	if err != nil {
		if isNotFound(err) {
			return nil, apierror.Unauthenticated(msgBadKiosk)
		}
		return nil, storeErr(err)
	}
	if !s.hasher.Matches(branch.KioskPasswordHash, req.Password) {
		log.Warn().Str("branch_id", branch.ID).Msg("kiosk login rejected")
		return nil, apierror.Unauthenticated(msgBadKiosk)
	}

	raw, k, err := s.codec.Issue(branch.ID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("branch_id", branch.ID).Str("session_id", k.SessionID).Msg("kiosk session started")
	return &dto.KioskSessionResponse{
		Token:           raw,
		BranchID:        k.BranchID,
		BranchName:      branch.Name,
		SessionID:       k.SessionID,
		AuthenticatedAt: k.AuthenticatedAt,
		ExpiresAt:       k.ExpiresAt,
	}, nil
}

// End closes a terminal session. Kiosk tokens are self-contained, so ending
// one means clearing the cookie; this records the event.
func (s *kioskService) End(_ context.Context, k token.KioskPrincipal) error {
	log.Info().Str("branch_id", k.BranchID).Str("session_id", k.SessionID).Msg("kiosk session ended")
	return nil
}
