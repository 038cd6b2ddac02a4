package repository

import (
	"context"

	"cspacehr/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BranchRepository interface {
	FindByID(ctx context.Context, id string) (*model.Branch, error)
	List(ctx context.Context) ([]model.Branch, error)
	Upsert(ctx context.Context, b *model.Branch) error
}

type branchRepo struct{ db *gorm.DB }

func NewBranchRepository(db *gorm.DB) BranchRepository { return &branchRepo{db: db} }

// FindByID only returns active branches.
func (r *branchRepo) FindByID(ctx context.Context, id string) (*model.Branch, error) {
	var b model.Branch
	err := r.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&b).Error
	return &b, err
}

func (r *branchRepo) List(ctx context.Context) ([]model.Branch, error) {
	var branches []model.Branch
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("name").Find(&branches).Error
	return branches, err
}

func (r *branchRepo) Upsert(ctx context.Context, b *model.Branch) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "kiosk_password_hash", "active", "updated_at"}),
	}).Create(b).Error
}
