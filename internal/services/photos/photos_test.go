package photos

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/smbt-dev/inspectgo/internal/apperr"
	"github.com/smbt-dev/inspectgo/internal/blobstore"
	"github.com/smbt-dev/inspectgo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uptr(v uint) *uint { return &v }

var base = blobstore.NewResolver("https://files.example.com/uploads")

func testCatalog() []models.Category {
	return []models.Category{
		{ID: 1, Title: "House", Kind: models.KindImageGroup, ImageGroups: []models.ImageGroup{
			{ID: 10, Title: "Exterior", CategoryID: 1},
			{ID: 11, Title: "Roof", CategoryID: 1},
		}},
		{ID: 2, Title: "Apartment", Kind: models.KindImageGroup, ImageGroups: []models.ImageGroup{
			{ID: 20, Title: "Kitchen", CategoryID: 2},
		}},
		{ID: 4, Title: "Movable property", Kind: models.KindMovableProperty},
		{ID: 5, Title: "Additional", Kind: models.KindFlat},
	}
}

func TestPartitionImageGroupScenario(t *testing.T) {
	categories := []models.Category{
		{ID: 1, Title: "House", Kind: models.KindImageGroup, ImageGroups: []models.ImageGroup{
			{ID: 10, Title: "Exterior", CategoryID: 1},
		}},
	}
	photos := []models.WorkPhoto{
		{ID: 1, OrderID: 5, ImageGroupID: uptr(10), GroupCategoryID: 1, Image: "abc.jpg"},
	}

	buckets, err := Partition(categories, nil, photos, blobstore.NewResolver("uploads"))
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	b := buckets[0]
	assert.Equal(t, uint(1), b.CategoryID)
	require.Len(t, b.Items, 1)
	assert.Equal(t, uint(10), b.Items[0].GroupID)
	assert.Equal(t, "Exterior", b.Items[0].GroupTitle)
	require.Len(t, b.Items[0].Photos, 1)
	assert.Equal(t, "uploads/abc.jpg", b.Items[0].Photos[0].Image)
	assert.Equal(t, uint(1), b.Items[0].Photos[0].ID)
}

func TestPartitionMovablePropertyWithoutPhotos(t *testing.T) {
	categories := []models.Category{{ID: 4, Title: "Movable property", Kind: models.KindMovableProperty}}
	properties := []models.MovableProperty{{ID: 20, RequestID: 5, Title: "Fridge"}}

	buckets, err := Partition(categories, properties, nil, base)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	require.Len(t, buckets[0].Items, 1)

	item := buckets[0].Items[0]
	assert.Equal(t, uint(20), item.PropertyID)
	assert.Equal(t, "Fridge", item.PropertyTitle)
	assert.NotNil(t, item.Photos)
	assert.Empty(t, item.Photos)
}

func TestPartitionEmptyRequestKeepsShape(t *testing.T) {
	buckets, err := Partition(testCatalog(), nil, nil, base)
	require.NoError(t, err)
	require.Len(t, buckets, 4)

	assert.Len(t, buckets[0].Items, 2, "one item per image group")
	assert.Len(t, buckets[1].Items, 1)
	assert.Empty(t, buckets[2].Items, "no movable property, no items")
	assert.NotNil(t, buckets[2].Items)
	assert.Len(t, buckets[3].Items, 1, "flat categories always have one item")

	for _, b := range buckets {
		assert.False(t, b.HasPhotos())
		for _, item := range b.Items {
			assert.NotNil(t, item.Photos)
		}
	}

	data, err := json.Marshal(buckets[2])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"items":[]`)
	data, err = json.Marshal(buckets[3])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"photos":[]`)
}

func TestPartitionItemCountMatchesGroupCount(t *testing.T) {
	categories := testCatalog()
	photos := []models.WorkPhoto{
		{ID: 1, OrderID: 5, ImageGroupID: uptr(11), GroupCategoryID: 1, Image: "roof.jpg"},
	}

	buckets, err := Partition(categories, nil, photos, base)
	require.NoError(t, err)

	for i, c := range categories {
		if c.Kind != models.KindImageGroup {
			continue
		}
		assert.Len(t, buckets[i].Items, len(c.ImageGroups), "category %d", c.ID)
		for j, g := range c.ImageGroups {
			assert.Equal(t, g.ID, buckets[i].Items[j].GroupID, "items follow catalog order")
		}
	}
}

func TestPartitionEveryPhotoLandsExactlyOnce(t *testing.T) {
	categories := testCatalog()
	properties := []models.MovableProperty{
		{ID: 31, RequestID: 5, Title: "Sofa"},
		{ID: 30, RequestID: 5, Title: "Fridge"},
	}

	var photos []models.WorkPhoto
	id := uint(100)
	add := func(p models.WorkPhoto) {
		id--
		p.ID = id
		p.OrderID = 5
		p.Image = fmt.Sprintf("p%d.jpg", id)
		photos = append(photos, p)
	}
	for i := 0; i < 3; i++ {
		add(models.WorkPhoto{ImageGroupID: uptr(10), GroupCategoryID: 1})
		add(models.WorkPhoto{ImageGroupID: uptr(11), GroupCategoryID: 1})
		add(models.WorkPhoto{ImageGroupID: uptr(20), GroupCategoryID: 2})
		add(models.WorkPhoto{MovablePropertyID: uptr(30), GroupCategoryID: 4})
		add(models.WorkPhoto{GroupCategoryID: 5})
	}

	buckets, err := Partition(categories, properties, photos, base)
	require.NoError(t, err)

	seen := make(map[uint]int)
	for _, b := range buckets {
		for _, item := range b.Items {
			var prev uint
			for _, p := range item.Photos {
				seen[p.ID]++
				assert.Equal(t, b.CategoryID, p.GroupCategoryID)
				if b.Kind == models.KindImageGroup {
					assert.Equal(t, item.GroupID, *p.ImageGroupID)
				}
				if b.Kind == models.KindMovableProperty {
					assert.Equal(t, item.PropertyID, *p.MovablePropertyID)
				}
				assert.Greater(t, p.ID, prev, "photos ordered by id")
				prev = p.ID
			}
		}
	}
	assert.Len(t, seen, len(photos))
	for photoID, n := range seen {
		assert.Equal(t, 1, n, "photo %d", photoID)
	}

	movable := buckets[2]
	require.Len(t, movable.Items, 2)
	assert.Equal(t, uint(30), movable.Items[0].PropertyID, "movable property ordered by id")
	assert.Len(t, movable.Items[0].Photos, 3)
	assert.Empty(t, movable.Items[1].Photos)
}

func TestPartitionDoesNotMutateInput(t *testing.T) {
	photos := []models.WorkPhoto{
		{ID: 2, GroupCategoryID: 5, Image: "b.jpg"},
		{ID: 1, GroupCategoryID: 5, Image: "a.jpg"},
	}

	_, err := Partition(testCatalog(), nil, photos, base)
	require.NoError(t, err)
	assert.Equal(t, "b.jpg", photos[0].Image)
	assert.Equal(t, uint(2), photos[0].ID)
}

func TestPartitionMalformedRows(t *testing.T) {
	properties := []models.MovableProperty{{ID: 30, RequestID: 5, Title: "Fridge"}}
	tests := []struct {
		name  string
		photo models.WorkPhoto
	}{
		{"unknown category", models.WorkPhoto{ID: 1, GroupCategoryID: 99}},
		{"group of another category", models.WorkPhoto{ID: 1, GroupCategoryID: 1, ImageGroupID: uptr(20)}},
		{"unknown group", models.WorkPhoto{ID: 1, GroupCategoryID: 1, ImageGroupID: uptr(999)}},
		{"missing group", models.WorkPhoto{ID: 1, GroupCategoryID: 1}},
		{"missing property", models.WorkPhoto{ID: 1, GroupCategoryID: 4}},
		{"property of another request", models.WorkPhoto{ID: 1, GroupCategoryID: 4, MovablePropertyID: uptr(77)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Partition(testCatalog(), properties, []models.WorkPhoto{tt.photo}, base)
			assert.ErrorIs(t, err, apperr.ErrMalformedRow)
		})
	}
}

func TestPartitionUnknownCategoryKind(t *testing.T) {
	categories := []models.Category{{ID: 1, Title: "Broken", Kind: "by_magic"}}

	_, err := Partition(categories, nil, nil, base)
	assert.ErrorIs(t, err, apperr.ErrMalformedRow)
}
