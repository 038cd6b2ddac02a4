package repository

import (
	"context"

	"cspacehr/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SwitchLogRepository interface {
	Create(ctx context.Context, entry *model.OperatorSwitchLog) error
	ListByBranch(ctx context.Context, branchID string, limit int) ([]model.OperatorSwitchLog, error)
}

type switchLogRepo struct{ db *gorm.DB }

func NewSwitchLogRepository(db *gorm.DB) SwitchLogRepository { return &switchLogRepo{db: db} }

// Create is idempotent on ID so the retry worker can replay an entry safely.
func (r *switchLogRepo) Create(ctx context.Context, entry *model.OperatorSwitchLog) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error
}

func (r *switchLogRepo) ListByBranch(ctx context.Context, branchID string, limit int) ([]model.OperatorSwitchLog, error) {
	var logs []model.OperatorSwitchLog
	err := r.db.WithContext(ctx).
		Where("branch_id = ?", branchID).
		Order("switched_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
