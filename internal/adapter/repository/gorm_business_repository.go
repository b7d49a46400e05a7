package repository

import (
	"context"

	"gorm.io/gorm"

	"bizconnect/internal/domain/repository"
)

type gormBusinessRepository struct {
	db *gorm.DB
}

func NewGormBusinessRepository(db *gorm.DB) repository.BusinessRepository {
	return &gormBusinessRepository{
		db: db,
	}
}

func (r *gormBusinessRepository) Exists(ctx context.Context, businessID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&businessRecord{}).Where("id = ?", businessID).Limit(1).Count(&count).Error
	if err != nil {
		return false, gormError("look up business", err)
	}
	return count > 0, nil
}
