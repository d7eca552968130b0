package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vnkhanh/audiodeck-backend/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "cache.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.AudioCache{}))
	return db
}

func TestGormCacheRepository_FindMissing(t *testing.T) {
	repo := NewGormCacheRepository(openTestDB(t))

	row, err := repo.Find(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestGormCacheRepository_UpsertIsInsertOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewGormCacheRepository(openTestDB(t))

	first := &models.AudioCache{TextHash: "abc", Text: "hello", FilePath: "abc.mp3", Language: "en", Provider: "stub"}
	outcome, err := repo.Upsert(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, UpsertInserted, outcome)

	second := &models.AudioCache{TextHash: "abc", Text: "other", FilePath: "other.mp3", Language: "fr", Provider: "stub"}
	outcome, err = repo.Upsert(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, UpsertAlreadyPresent, outcome)

	row, err := repo.Find(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "hello", row.Text)
	assert.Equal(t, "abc.mp3", row.FilePath)
	assert.Equal(t, "en", row.Language)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
