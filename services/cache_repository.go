package services

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vnkhanh/audiodeck-backend/models"
)

// UpsertOutcome tells whether an upsert created the row or found it present.
type UpsertOutcome string

const (
	UpsertInserted       UpsertOutcome = "inserted"
	UpsertAlreadyPresent UpsertOutcome = "already_present"
)

// CacheRepository is the metadata half of the audio cache.
type CacheRepository interface {
	// Find returns nil, nil when no row exists for hash.
	Find(ctx context.Context, hash string) (*models.AudioCache, error)
	// Upsert inserts entry unless its text_hash already exists. Never updates.
	Upsert(ctx context.Context, entry *models.AudioCache) (UpsertOutcome, error)
}

// GormCacheRepository stores audio_cache rows through gorm.
type GormCacheRepository struct {
	db *gorm.DB
}

func NewGormCacheRepository(db *gorm.DB) *GormCacheRepository {
	return &GormCacheRepository{db: db}
}

func (r *GormCacheRepository) Find(ctx context.Context, hash string) (*models.AudioCache, error) {
	var row models.AudioCache
	err := r.db.WithContext(ctx).Where("text_hash = ?", hash).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *GormCacheRepository) Upsert(ctx context.Context, entry *models.AudioCache) (UpsertOutcome, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "text_hash"}},
			DoNothing: true,
		}).
		Create(entry)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return UpsertAlreadyPresent, nil
	}
	return UpsertInserted, nil
}

// Count is used by health and tests.
func (r *GormCacheRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.AudioCache{}).Count(&n).Error
	return n, err
}
