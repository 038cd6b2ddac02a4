package repository

import (
	"context"
	"time"

	"cspacehr/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OperatorCandidate is a roster entry eligible to operate a branch terminal.
// CrossBranch marks employees admitted through an active access grant.
type OperatorCandidate struct {
	Employee    model.Employee
	CrossBranch bool
}

type EmployeeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	// ListOperatorCandidates returns active employees holding a PIN whose home
	// branch is branchID, followed by those whose linked user holds a grant
	// into branchID that is active at the given time.
	ListOperatorCandidates(ctx context.Context, branchID string, at time.Time) ([]OperatorCandidate, error)
	// ListActive returns active employees of one branch, or of all branches when branchID is nil.
	ListActive(ctx context.Context, branchID *string) ([]model.Employee, error)
	// SetPINHashes stores all hashes in one transaction.
	SetPINHashes(ctx context.Context, hashes map[uuid.UUID]string) error
}

type employeeRepo struct{ db *gorm.DB }

func NewEmployeeRepository(db *gorm.DB) EmployeeRepository { return &employeeRepo{db: db} }

func (r *employeeRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	var e model.Employee
	err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error
	return &e, err
}

func (r *employeeRepo) ListOperatorCandidates(ctx context.Context, branchID string, at time.Time) ([]OperatorCandidate, error) {
	db := r.db.WithContext(ctx)

	var home []model.Employee
	if err := db.
		Where("branch_id = ? AND active = ? AND pin_hash <> ''", branchID, true).
		Order("full_name").
		Find(&home).Error; err != nil {
		return nil, err
	}

	granted := db.Model(&model.User{}).
		Select("users.employee_id").
		Joins("JOIN branch_access_grants g ON g.user_id = users.id").
		Where("g.branch_id = ? AND (g.expires_at IS NULL OR g.expires_at > ?)", branchID, at).
		Where("users.active = ? AND users.employee_id IS NOT NULL", true)

	var cross []model.Employee
	if err := db.
		Where("id IN (?) AND branch_id <> ? AND active = ? AND pin_hash <> ''", granted, branchID, true).
		Order("full_name").
		Find(&cross).Error; err != nil {
		return nil, err
	}

	out := make([]OperatorCandidate, 0, len(home)+len(cross))
	for _, e := range home {
		out = append(out, OperatorCandidate{Employee: e})
	}
	for _, e := range cross {
		out = append(out, OperatorCandidate{Employee: e, CrossBranch: true})
	}
	return out, nil
}

func (r *employeeRepo) ListActive(ctx context.Context, branchID *string) ([]model.Employee, error) {
	var emps []model.Employee
	q := r.db.WithContext(ctx).Where("active = ?", true).Order("branch_id, full_name")
	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	}
	err := q.Find(&emps).Error
	return emps, err
}

func (r *employeeRepo) SetPINHashes(ctx context.Context, hashes map[uuid.UUID]string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, h := range hashes {
			res := tx.Model(&model.Employee{}).Where("id = ?", id).Update("pin_hash", h)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return nil
	})
}
