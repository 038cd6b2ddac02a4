package service

import (
	"errors"

	"cspacehr/internal/apierror"
	"cspacehr/internal/dto"
	"cspacehr/internal/model"
	"cspacehr/internal/rbac"
	"cspacehr/internal/token"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const msgStoreUnavailable = "credential store unavailable"

func storeErr(err error) error {
	return apierror.Unavailable(msgStoreUnavailable, err)
}

// notFoundOr maps a missing row to NotFound and anything else to DependencyUnavailable.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.NotFound(msg)
	}
	return storeErr(err)
}

func isNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apierror.Validation(field + " must be a UUID")
	}
	return id, nil
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func userResponse(u *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:         u.ID.String(),
		Email:      u.Email,
		Name:       u.Name,
		Role:       string(rbac.Normalize(u.Role)),
		EmployeeID: uuidString(u.EmployeeID),
		BranchID:   u.BranchID,
		Active:     u.Active,
	}
}

func principalFor(u *model.User, sessionID string) token.Principal {
	return token.Principal{
		ID:         u.ID.String(),
		Name:       u.Name,
		Email:      u.Email,
		Role:       rbac.Normalize(u.Role),
		EmployeeID: uuidString(u.EmployeeID),
		BranchID:   u.BranchID,
		SessionID:  sessionID,
	}
}

func requirePermission(p token.Principal, perm rbac.Permission) error {
	if !rbac.HasPermission(p.Role, perm) {
		return apierror.Forbidden("missing permission " + string(perm))
	}
	return nil
}
