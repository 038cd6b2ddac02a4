package service

import (
	"context"
	"sort"
	"time"

	"cspacehr/internal/apierror"
	"cspacehr/internal/dto"
	"cspacehr/internal/model"
	"cspacehr/internal/rbac"
	"cspacehr/internal/repository"
	"cspacehr/internal/token"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Scope is the set of branches a principal may act in.
type Scope struct {
	All      bool
	Branches []string
}

func (s Scope) Contains(branchID string) bool {
	if s.All {
		return true
	}
	i := sort.SearchStrings(s.Branches, branchID)
	return i < len(s.Branches) && s.Branches[i] == branchID
}

// AccessService manages cross-branch access grants and answers branch-scope
// questions. Grants only ever add branches; the home branch is never affected.
type AccessService interface {
	CreateGrant(ctx context.Context, actor token.Principal, req dto.CreateGrantRequest) (*dto.GrantResponse, error)
	ListGrants(ctx context.Context, actor token.Principal, q dto.ListGrantsQuery) ([]dto.GrantResponse, error)
	DeleteGrant(ctx context.Context, actor token.Principal, id uuid.UUID) error
	CanAccessBranch(ctx context.Context, p token.Principal, branchID string) (bool, error)
	BranchScope(ctx context.Context, p token.Principal) (Scope, error)
}

type accessService struct {
	users    repository.UserRepository
	branches repository.BranchRepository
	grants   repository.GrantRepository
	now      func() time.Time
}

func NewAccessService(users repository.UserRepository, branches repository.BranchRepository, grants repository.GrantRepository) AccessService {
	return &accessService{users: users, branches: branches, grants: grants, now: time.Now}
}

func (s *accessService) CreateGrant(ctx context.Context, actor token.Principal, req dto.CreateGrantRequest) (*dto.GrantResponse, error) {
	if err := requirePermission(actor, rbac.PermBranchAccessManage); err != nil {
		return nil, err
	}
	actorID, err := uuid.Parse(actor.ID)
	if err != nil {
		return nil, apierror.Unauthenticated("session subject is not a user")
	}
	userID, err := parseID(req.UserID, "user_id")
	if err != nil {
		return nil, err
	}
	if req.ExpiresAt != nil && req.TTLHours != nil {
		return nil, apierror.Validation("set expires_at or ttl_hours, not both")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	branch, err := s.branches.FindByID(ctx, req.BranchID)
	if err != nil {
		return nil, notFoundOr(err, "branch not found")
	}
	if !rbac.CanManageRole(actor.Role, rbac.Normalize(user.Role)) {
		return nil, apierror.Forbidden("cannot grant access to a user of equal or higher role")
	}
	if user.BranchID != nil && *user.BranchID == branch.ID {
		return nil, apierror.Conflict("branch is already the user's home branch")
	}

	now := s.now().UTC()
	var expiresAt *time.Time
	switch {
	case req.ExpiresAt != nil:
		if !req.ExpiresAt.After(now) {
			return nil, apierror.Validation("expires_at must be in the future")
		}
		t := req.ExpiresAt.UTC()
		expiresAt = &t
	case req.TTLHours != nil:
		t := now.Add(time.Duration(*req.TTLHours) * time.Hour)
		expiresAt = &t
	}

	if _, err := s.grants.FindActive(ctx, user.ID, branch.ID, now); err == nil {
		return nil, apierror.Conflict("an active grant for this user and branch already exists")
	} else if !isNotFound(err) {
		return nil, storeErr(err)
	}

	g := &model.BranchAccessGrant{
		ID:        uuid.New(),
		UserID:    user.ID,
		BranchID:  branch.ID,
		GrantedBy: actorID,
		GrantedAt: now,
		ExpiresAt: expiresAt,
		Notes:     req.Notes,
	}
	if err := s.grants.Create(ctx, g); err != nil {
		return nil, storeErr(err)
	}

	log.Info().
		Str("grant_id", g.ID.String()).
		Str("user_id", user.ID.String()).
		Str("branch_id", branch.ID).
		Str("granted_by", actor.ID).
		Msg("branch access granted")

	resp := grantResponse(g, now)
	return &resp, nil
}

// ListGrants returns the grants the actor could also revoke: the grantee's
// role ranks below the actor's, and the branch lies in the actor's scope.
func (s *accessService) ListGrants(ctx context.Context, actor token.Principal, q dto.ListGrantsQuery) ([]dto.GrantResponse, error) {
	if err := requirePermission(actor, rbac.PermBranchAccessManage); err != nil {
		return nil, err
	}
	var f repository.GrantFilter
	if q.UserID != "" {
		id, err := parseID(q.UserID, "user_id")
		if err != nil {
			return nil, err
		}
		f.UserID = &id
	}
	if q.BranchID != "" {
		b := q.BranchID
		f.BranchID = &b
	}
	f.IncludeExpired = q.IncludeExpired

	scope, err := s.BranchScope(ctx, actor)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	grants, err := s.grants.List(ctx, f, now)
	if err != nil {
		return nil, storeErr(err)
	}
	manageable := map[uuid.UUID]bool{}
	resp := make([]dto.GrantResponse, 0, len(grants))
	for i := range grants {
		g := &grants[i]
		if !scope.Contains(g.BranchID) {
			continue
		}
		ok, seen := manageable[g.UserID]
		if !seen {
			if ok, err = s.canManageGrantee(ctx, actor, g.UserID); err != nil {
				return nil, err
			}
			manageable[g.UserID] = ok
		}
		if ok {
			resp = append(resp, grantResponse(g, now))
		}
	}
	return resp, nil
}

func (s *accessService) DeleteGrant(ctx context.Context, actor token.Principal, id uuid.UUID) error {
	if err := requirePermission(actor, rbac.PermBranchAccessManage); err != nil {
		return err
	}
	g, err := s.grants.FindByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "grant not found")
	}
	ok, err := s.canManageGrantee(ctx, actor, g.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return apierror.Forbidden("cannot revoke access of a user of equal or higher role")
	}
	if err := s.grants.Delete(ctx, id); err != nil {
		return notFoundOr(err, "grant not found")
	}
	log.Info().Str("grant_id", id.String()).Str("user_id", g.UserID.String()).Str("revoked_by", actor.ID).Msg("branch access revoked")
	return nil
}

// canManageGrantee applies the same role rule as CreateGrant. A grantee whose
// user row is gone is left to admins.
func (s *accessService) canManageGrantee(ctx context.Context, actor token.Principal, userID uuid.UUID) (bool, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return rbac.RoleIn(actor.Role, rbac.RoleAdmin), nil
		}
		return false, storeErr(err)
	}
	return rbac.CanManageRole(actor.Role, rbac.Normalize(u.Role)), nil
}

func (s *accessService) CanAccessBranch(ctx context.Context, p token.Principal, branchID string) (bool, error) {
	if rbac.HasPermission(p.Role, rbac.PermBranchesAll) {
		return true, nil
	}
	if p.BranchID != nil && *p.BranchID == branchID {
		return true, nil
	}
	userID, err := uuid.Parse(p.ID)
	if err != nil {
		return false, nil
	}
	if _, err := s.grants.FindActive(ctx, userID, branchID, s.now().UTC()); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, storeErr(err)
	}
	return true, nil
}

func (s *accessService) BranchScope(ctx context.Context, p token.Principal) (Scope, error) {
	if rbac.HasPermission(p.Role, rbac.PermBranchesAll) {
		return Scope{All: true}, nil
	}
	seen := map[string]struct{}{}
	if p.BranchID != nil {
		seen[*p.BranchID] = struct{}{}
	}
	if userID, err := uuid.Parse(p.ID); err == nil {
		ids, err := s.grants.ActiveBranchIDs(ctx, userID, s.now().UTC())
		if err != nil {
			return Scope{}, storeErr(err)
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	branches := make([]string, 0, len(seen))
	for id := range seen {
		branches = append(branches, id)
	}
	sort.Strings(branches)
	return Scope{Branches: branches}, nil
}

func grantResponse(g *model.BranchAccessGrant, now time.Time) dto.GrantResponse {
	return dto.GrantResponse{
		ID:        g.ID.String(),
		UserID:    g.UserID.String(),
		BranchID:  g.BranchID,
		GrantedBy: g.GrantedBy.String(),
		GrantedAt: g.GrantedAt,
		ExpiresAt: g.ExpiresAt,
		Notes:     g.Notes,
		Active:    g.ActiveAt(now),
	}
}
