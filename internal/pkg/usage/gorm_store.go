package usage

import (
	"context"

	"github.com/inkwell-app/InkWell/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a usage store backed by GORM. All counter math
// happens in single UPDATE statements so concurrent callers serialize on
// the row inside the database.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) EnsurePeriodRecord(ctx context.Context, rec *models.UsageRecord) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "period_key"},
			{Name: "action"},
		},
		DoNothing: true,
	}).Create(rec).Error
}

func (s *gormStore) TryReserve(ctx context.Context, userID uint, periodKey string, action string, amount int64) (bool, error) {
	// The limit check lives in the WHERE clause so check and increment
	// are one indivisible statement.
	tx := s.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("user_id = ? AND period_key = ? AND action = ?", userID, periodKey, action).
		Where("unlimited_snapshot = ? OR used + ? <= limit_snapshot", true, amount).
		UpdateColumn("used", gorm.Expr("used + ?", amount))
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (s *gormStore) Add(ctx context.Context, userID uint, periodKey string, action string, amount int64) error {
	return s.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("user_id = ? AND period_key = ? AND action = ?", userID, periodKey, action).
		UpdateColumn("used", gorm.Expr("GREATEST(used + ?, 0)", amount)).Error
}

func (s *gormStore) Get(ctx context.Context, userID uint, periodKey string, action string) (*models.UsageRecord, error) {
	var rec models.UsageRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND period_key = ? AND action = ?", userID, periodKey, action).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
