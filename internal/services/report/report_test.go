package report

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/smbt-dev/inspectgo/internal/apperr"
	"github.com/smbt-dev/inspectgo/internal/blobstore"
	"github.com/smbt-dev/inspectgo/internal/database"
	"github.com/smbt-dev/inspectgo/internal/database/dbtest"
	"github.com/smbt-dev/inspectgo/internal/models"
	"github.com/smbt-dev/inspectgo/internal/services/catalog"
	"github.com/smbt-dev/inspectgo/internal/services/photos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssembler(db *database.DB) *Assembler {
	resolver := blobstore.NewResolver("uploads")
	return NewAssembler(db, photos.NewAggregator(db, resolver), resolver)
}

func setup(t *testing.T) *database.DB {
	t.Helper()
	db := dbtest.Open(t)
	ctx := context.Background()

	seed, err := catalog.ReadSeed("")
	require.NoError(t, err)
	_, err = catalog.Seed(ctx, db, seed)
	require.NoError(t, err)

	inspector := models.Person{ID: 7, FIO: "Ivanova Anna", RoleID: models.RoleExterminator}
	require.NoError(t, db.Create(&inspector).Error)

	extID := inspector.ID
	req := models.Request{ID: 42, Address: "12 Lenina St, apt 3", Status: models.StatusCompleted, ExterminatorID: &extID}
	require.NoError(t, db.Create(&req).Error)

	facade := uint(1)
	require.NoError(t, db.Create(&models.WorkPhoto{ID: 1, OrderID: 42, Image: "abc.jpg", ImageGroupID: &facade, GroupCategoryID: 1}).Error)
	return db
}

func TestByID(t *testing.T) {
	db := setup(t)
	extID := uint(7)
	rep := models.Report{ID: 3, RequestID: 42, ExterminatorID: &extID, Rooms: 2, TotalArea: 54.5, HasParks: true}
	require.NoError(t, db.Create(&rep).Error)
	cards := []models.IdentityCardPhoto{
		{ID: 11, ReportID: 3, Photo: "id-front.jpg"},
		{ID: 10, ReportID: 3, Photo: "id-back.jpg"},
	}
	require.NoError(t, db.Create(&cards).Error)

	p, err := newAssembler(db).ByID(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, uint(3), p.ID)
	assert.Equal(t, "12 Lenina St, apt 3", p.ObjectAddress)
	assert.Equal(t, "Ivanova Anna", p.ExterminatorFIO)
	assert.Equal(t, 2, p.Rooms)
	assert.True(t, p.HasParks)
	assert.Equal(t, []string{"uploads/id-back.jpg", "uploads/id-front.jpg"}, p.IdentityPhotos)

	require.NotEmpty(t, p.Categories)
	exterior := p.Categories[0]
	require.NotEmpty(t, exterior.Items)
	require.Len(t, exterior.Items[0].Photos, 1)
	assert.Equal(t, "uploads/abc.jpg", exterior.Items[0].Photos[0].Image)
}

func TestByIDWithoutIdentityPhotos(t *testing.T) {
	db := setup(t)
	require.NoError(t, db.Create(&models.Report{ID: 1, RequestID: 42}).Error)

	p, err := newAssembler(db).ByID(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, p.IdentityPhotos)
	assert.Empty(t, p.IdentityPhotos)
	assert.Empty(t, p.ExterminatorFIO)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, []any{}, decoded["identity_photos"])
	assert.Equal(t, "12 Lenina St, apt 3", decoded["object_address"])
	assert.Contains(t, decoded, "categories")
	assert.Contains(t, decoded, "total_area")
}

func TestByIDNotFound(t *testing.T) {
	db := setup(t)

	p, err := newAssembler(db).ByID(context.Background(), 404)
	assert.ErrorIs(t, err, apperr.ErrReportNotFound)
	assert.Nil(t, p)
}

func TestForRequestPicksMostRecent(t *testing.T) {
	db := setup(t)
	earlier := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	reports := []models.Report{
		{ID: 1, RequestID: 42, Rooms: 1, CreatedAt: earlier},
		{ID: 2, RequestID: 42, Rooms: 2, CreatedAt: later},
		{ID: 3, RequestID: 42, Rooms: 3, CreatedAt: earlier},
	}
	require.NoError(t, db.Create(&reports).Error)

	p, err := newAssembler(db).ForRequest(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, uint(2), p.ID)

	require.NoError(t, db.Delete(&models.Report{}, 2).Error)

	p, err = newAssembler(db).ForRequest(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, uint(3), p.ID, "ties on created_at resolve to the highest id")
}

func TestForRequestNotFound(t *testing.T) {
	db := setup(t)

	_, err := newAssembler(db).ForRequest(context.Background(), 42)
	assert.ErrorIs(t, err, apperr.ErrReportNotFound)
}

func TestAssembleStoreUnavailable(t *testing.T) {
	db := setup(t)
	require.NoError(t, db.Close())

	_, err := newAssembler(db).ForRequest(context.Background(), 42)
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, apperr.ErrReportNotFound)
}
