package service

import (
	"context"
	"errors"
	"time"

	"cspacehr/internal/apierror"
	"cspacehr/internal/config"
	"cspacehr/internal/dto"
	"cspacehr/internal/model"
	"cspacehr/internal/rbac"
	"cspacehr/internal/repository"
	"cspacehr/internal/security"
	"cspacehr/internal/token"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	msgBadCredentials = "invalid email or password"
	msgRefreshInvalid = "refresh token invalid or expired"
	msgUserInactive   = "user not found or inactive"
)

// ErrSessionEnded marks a refresh that can never succeed again: the token is
// forged or expired, or its user is gone. Callers drop stored credentials on it.
// A refresh token that was merely consumed already does not carry it.
var ErrSessionEnded = errors.New("session ended")

// AuthService runs the personal session lifecycle: issue on login, rotate on
// refresh, revoke on logout.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.SessionResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.SessionResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, p token.Principal) (*dto.MeResponse, error)
}

type authService struct {
	users      repository.UserRepository
	sessions   *token.SessionCodec
	refresh    token.RefreshStore
	hasher     security.Hasher
	access     AccessService
	accessTTL  time.Duration
	refreshTTL time.Duration
	// dummyHash is compared against when the email is unknown so both paths cost one bcrypt.
	dummyHash string
}

func NewAuthService(
	users repository.UserRepository,
	sessions *token.SessionCodec,
	refresh token.RefreshStore,
	hasher security.Hasher,
	access AccessService,
	cfg *config.Config,
) AuthService {
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		log.Warn().Err(err).Msg("could not prepare timing-equalization hash")
	}
	return &authService{
		users:      users,
		sessions:   sessions,
		refresh:    refresh,
		hasher:     hasher,
		access:     access,
		accessTTL:  cfg.SessionTTL(),
		refreshTTL: cfg.RefreshTTL(),
		dummyHash:  dummy,
	}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.SessionResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !isNotFound(err) {
			return nil, storeErr(err)
		}
		s.hasher.Matches(s.dummyHash, req.Password)
		return nil, apierror.Unauthenticated(msgBadCredentials)
	}
	if !s.hasher.Matches(user.PasswordHash, req.Password) || !user.Active {
		return nil, apierror.Unauthenticated(msgBadCredentials)
	}

	resp, err := s.issueSession(ctx, user, uuid.NewString())
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", user.ID.String()).Str("session_id", resp.SessionID).Msg("login")
	return resp, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.SessionResponse, error) {
	if refreshToken == "" {
		return nil, apierror.Unauthenticated("refresh token required")
	}
	claims, err := s.sessions.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apierror.Unauthenticated(msgRefreshInvalid).WithCause(ErrSessionEnded)
	}

	owner, err := s.refresh.Consume(ctx, claims.TokenID)
	if err != nil {
		if errors.Is(err, token.ErrRefreshNotFound) {
			log.Warn().
				Str("user_id", claims.UserID).
				Str("session_id", claims.SessionID).
				Msg("refresh token reused or revoked")
			return nil, apierror.Unauthenticated("refresh token already used or revoked")
		}
		return nil, apierror.Unavailable("session store unavailable", err)
	}
	if owner != claims.UserID {
		return nil, apierror.Unauthenticated(msgRefreshInvalid).WithCause(ErrSessionEnded)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, apierror.Unauthenticated(msgRefreshInvalid).WithCause(ErrSessionEnded)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, apierror.Unauthenticated(msgUserInactive).WithCause(ErrSessionEnded)
		}
		return nil, storeErr(err)
	}
	if !user.Active {
		return nil, apierror.Unauthenticated(msgUserInactive).WithCause(ErrSessionEnded)
	}
	return s.issueSession(ctx, user, claims.SessionID)
}

// Logout revokes the presented refresh token. A missing, expired or forged
// token has nothing left to revoke and is not an error.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.sessions.VerifyRefresh(refreshToken)
	if err != nil {
		return nil
	}
	if err := s.refresh.Revoke(ctx, claims.TokenID); err != nil {
		return apierror.Unavailable("session store unavailable", err)
	}
	log.Info().Str("user_id", claims.UserID).Str("session_id", claims.SessionID).Msg("logout")
	return nil
}

func (s *authService) Me(ctx context.Context, p token.Principal) (*dto.MeResponse, error) {
	scope, err := s.access.BranchScope(ctx, p)
	if err != nil {
		return nil, err
	}
	return &dto.MeResponse{
		ID:          p.ID,
		Email:       p.Email,
		Name:        p.Name,
		Role:        string(p.Role),
		EmployeeID:  p.EmployeeID,
		BranchID:    p.BranchID,
		SessionID:   p.SessionID,
		Permissions: rbac.PermissionNames(p.Role),
		AllBranches: scope.All,
		Branches:    scope.Branches,
	}, nil
}

func (s *authService) issueSession(ctx context.Context, user *model.User, sessionID string) (*dto.SessionResponse, error) {
	p := principalFor(user, sessionID)

	access, expiresAt, err := s.sessions.Issue(p, s.accessTTL)
	if err != nil {
		return nil, err
	}
	rt, err := s.sessions.IssueRefresh(p, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	if err := s.refresh.Save(ctx, rt.ID, p.ID, s.refreshTTL); err != nil {
		return nil, apierror.Unavailable("session store unavailable", err)
	}

	return &dto.SessionResponse{
		AccessToken:      access,
		RefreshToken:     rt.Token,
		TokenType:        "bearer",
		ExpiresIn:        int(s.accessTTL.Seconds()),
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: rt.ExpiresAt,
		SessionID:        sessionID,
		User:             userResponse(user),
		Permissions:      rbac.PermissionNames(p.Role),
	}, nil
}
