package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smbt-dev/inspectgo/internal/database"
	"github.com/smbt-dev/inspectgo/internal/database/dbtest"
	"github.com/smbt-dev/inspectgo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestReadSnapshotSeesCommittedRows(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, db.Create(&models.Category{ID: 1, Title: "Exterior", Kind: models.KindImageGroup}).Error)

	var count int64
	err := db.ReadSnapshot(context.Background(), func(tx *gorm.DB) error {
		return tx.Model(&models.Category{}).Count(&count).Error
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestReadSnapshotPropagatesError(t *testing.T) {
	db := dbtest.Open(t)
	boom := errors.New("boom")

	err := db.ReadSnapshot(context.Background(), func(tx *gorm.DB) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestWithTimeout(t *testing.T) {
	db, err := database.New(sqlite.Open(t.TempDir()+"/t.db"), 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := db.WithTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, time.Second)
}

func TestWithTimeoutZeroMeansNoDeadline(t *testing.T) {
	db, err := database.New(sqlite.Open(t.TempDir()+"/t.db"), 0, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := db.WithTimeout(context.Background())
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)
}
