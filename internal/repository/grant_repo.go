package repository

import (
	"context"
	"time"

	"cspacehr/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GrantFilter narrows ListGrants. Zero values mean "any".
type GrantFilter struct {
	UserID         *uuid.UUID
	BranchID       *string
	IncludeExpired bool
}

type GrantRepository interface {
	Create(ctx context.Context, g *model.BranchAccessGrant) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.BranchAccessGrant, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f GrantFilter, at time.Time) ([]model.BranchAccessGrant, error)
	// FindActive returns the grant of userID into branchID in force at the given time.
	FindActive(ctx context.Context, userID uuid.UUID, branchID string, at time.Time) (*model.BranchAccessGrant, error)
	ActiveBranchIDs(ctx context.Context, userID uuid.UUID, at time.Time) ([]string, error)
}

type grantRepo struct{ db *gorm.DB }

func NewGrantRepository(db *gorm.DB) GrantRepository { return &grantRepo{db: db} }

func activeAt(q *gorm.DB, at time.Time) *gorm.DB {
	return q.Where("expires_at IS NULL OR expires_at > ?", at)
}

func (r *grantRepo) Create(ctx context.Context, g *model.BranchAccessGrant) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *grantRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.BranchAccessGrant, error) {
	var g model.BranchAccessGrant
	err := r.db.WithContext(ctx).First(&g, "id = ?", id).Error
	return &g, err
}

func (r *grantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.BranchAccessGrant{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *grantRepo) List(ctx context.Context, f GrantFilter, at time.Time) ([]model.BranchAccessGrant, error) {
	var grants []model.BranchAccessGrant
	q := r.db.WithContext(ctx).Order("granted_at DESC")
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.BranchID != nil {
		q = q.Where("branch_id = ?", *f.BranchID)
	}
	if !f.IncludeExpired {
		q = activeAt(q, at)
	}
	err := q.Find(&grants).Error
	return grants, err
}

func (r *grantRepo) FindActive(ctx context.Context, userID uuid.UUID, branchID string, at time.Time) (*model.BranchAccessGrant, error) {
	var g model.BranchAccessGrant
	q := r.db.WithContext(ctx).Where("user_id = ? AND branch_id = ?", userID, branchID)
	err := activeAt(q, at).Order("granted_at DESC").First(&g).Error
	return &g, err
}

func (r *grantRepo) ActiveBranchIDs(ctx context.Context, userID uuid.UUID, at time.Time) ([]string, error) {
	var ids []string
	q := r.db.WithContext(ctx).Model(&model.BranchAccessGrant{}).Where("user_id = ?", userID)
	err := activeAt(q, at).Distinct("branch_id").Order("branch_id").Pluck("branch_id", &ids).Error
	return ids, err
}
