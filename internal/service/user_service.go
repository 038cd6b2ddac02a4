package service

import (
	"context"
	"strings"

	"cspacehr/internal/apierror"
	"cspacehr/internal/dto"
	"cspacehr/internal/model"
	"cspacehr/internal/rbac"
	"cspacehr/internal/repository"
	"cspacehr/internal/security"
	"cspacehr/internal/token"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// UserService administers personal accounts. Every write requires
// users:manage and a strictly higher role than both the target's current and
// requested role.
type UserService interface {
	Create(ctx context.Context, actor token.Principal, req dto.CreateUserRequest) (*dto.UserResponse, error)
	List(ctx context.Context, actor token.Principal, includeInactive bool) ([]dto.UserResponse, error)
	Update(ctx context.Context, actor token.Principal, id uuid.UUID, req dto.UpdateUserRequest) (*dto.UserResponse, error)
	Deactivate(ctx context.Context, actor token.Principal, id uuid.UUID) error
	Reactivate(ctx context.Context, actor token.Principal, id uuid.UUID) error
}

type userService struct {
	users    repository.UserRepository
	branches repository.BranchRepository
	hasher   security.Hasher
}

func NewUserService(users repository.UserRepository, branches repository.BranchRepository, hasher security.Hasher) UserService {
	return &userService{users: users, branches: branches, hasher: hasher}
}

func canManage(actor token.Principal, target rbac.Role) error {
	if !rbac.CanManageRole(actor.Role, target) {
		return apierror.Forbidden("cannot manage a user with role " + string(target))
	}
	return nil
}

func (s *userService) checkBranch(ctx context.Context, branchID *string) error {
	if branchID == nil {
		return nil
	}
	if _, err := s.branches.FindByID(ctx, *branchID); err != nil {
		return notFoundOr(err, "branch not found")
	}
	return nil
}

func parseOptionalID(raw *string, field string) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	id, err := parseID(*raw, field)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *userService) Create(ctx context.Context, actor token.Principal, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	if err := requirePermission(actor, rbac.PermUsersManage); err != nil {
		return nil, err
	}
	if !rbac.Valid(req.Role) {
		return nil, apierror.Validation("unknown role " + req.Role)
	}
	role := rbac.Role(req.Role)
	if err := canManage(actor, role); err != nil {
		return nil, err
	}
	if err := security.ValidatePassword(req.Password); err != nil {
		return nil, apierror.Validation(err.Error())
	}
	employeeID, err := parseOptionalID(req.EmployeeID, "employee_id")
	if err != nil {
		return nil, err
	}
	if err := s.checkBranch(ctx, req.BranchID); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apierror.Conflict("email already registered")
	} else if !isNotFound(err) {
		return nil, storeErr(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         string(role),
		EmployeeID:   employeeID,
		BranchID:     req.BranchID,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeErr(err)
	}
	log.Info().Str("user_id", user.ID.String()).Str("role", user.Role).Str("created_by", actor.ID).Msg("user created")
	resp := userResponse(user)
	return &resp, nil
}

func (s *userService) List(ctx context.Context, actor token.Principal, includeInactive bool) ([]dto.UserResponse, error) {
	if err := requirePermission(actor, rbac.PermUsersManage); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, includeInactive)
	if err != nil {
		return nil, storeErr(err)
	}
	resp := make([]dto.UserResponse, len(users))
	for i := range users {
		resp[i] = userResponse(&users[i])
	}
	return resp, nil
}

func (s *userService) Update(ctx context.Context, actor token.Principal, id uuid.UUID, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	user, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Role != "" {
		if !rbac.Valid(req.Role) {
			return nil, apierror.Validation("unknown role " + req.Role)
		}
		if err := canManage(actor, rbac.Role(req.Role)); err != nil {
			return nil, err
		}
		user.Role = req.Role
	}
	if req.Name != "" {
		user.Name = req.Name
	}
	if req.EmployeeID != nil {
		employeeID, err := parseOptionalID(req.EmployeeID, "employee_id")
		if err != nil {
			return nil, err
		}
		user.EmployeeID = employeeID
	}
	if req.BranchID != nil {
		if err := s.checkBranch(ctx, req.BranchID); err != nil {
			return nil, err
		}
		user.BranchID = req.BranchID
	}
	if req.Password != "" {
		if err := security.ValidatePassword(req.Password); err != nil {
			return nil, apierror.Validation(err.Error())
		}
		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, storeErr(err)
	}
	log.Info().Str("user_id", user.ID.String()).Str("updated_by", actor.ID).Msg("user updated")
	resp := userResponse(user)
	return &resp, nil
}

func (s *userService) Deactivate(ctx context.Context, actor token.Principal, id uuid.UUID) error {
	if actor.ID == id.String() {
		return apierror.Forbidden("cannot deactivate your own account")
	}
	return s.setActive(ctx, actor, id, false)
}

func (s *userService) Reactivate(ctx context.Context, actor token.Principal, id uuid.UUID) error {
	return s.setActive(ctx, actor, id, true)
}

func (s *userService) setActive(ctx context.Context, actor token.Principal, id uuid.UUID, active bool) error {
	if _, err := s.loadManaged(ctx, actor, id); err != nil {
		return err
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return notFoundOr(err, "user not found")
	}
	log.Info().Str("user_id", id.String()).Bool("active", active).Str("changed_by", actor.ID).Msg("user activation changed")
	return nil
}

// loadManaged fetches a user the actor is allowed to modify.
func (s *userService) loadManaged(ctx context.Context, actor token.Principal, id uuid.UUID) (*model.User, error) {
	if err := requirePermission(actor, rbac.PermUsersManage); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	if err := canManage(actor, rbac.Normalize(user.Role)); err != nil {
		return nil, err
	}
	return user, nil
}
