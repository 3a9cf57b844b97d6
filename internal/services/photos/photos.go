// Package photos groups the work photos of an inspection request by
// category, then by image group or movable property depending on the kind of
// the category.
package photos

import (
	"context"
	"errors"
	"sort"

	"github.com/smbt-dev/inspectgo/internal/apperr"
	"github.com/smbt-dev/inspectgo/internal/blobstore"
	"github.com/smbt-dev/inspectgo/internal/database"
	"github.com/smbt-dev/inspectgo/internal/models"
	"github.com/smbt-dev/inspectgo/internal/services/catalog"
	"gorm.io/gorm"
)

// Item is one sub-group of a category bucket. Exactly one of the group or
// property pairs is set, or neither for flat categories.
type Item struct {
	GroupID       uint               `json:"group_id,omitempty"`
	GroupTitle    string             `json:"group_title,omitempty"`
	PropertyID    uint               `json:"property_id,omitempty"`
	PropertyTitle string             `json:"property_title,omitempty"`
	Photos        []models.WorkPhoto `json:"photos"`
}

// CategoryBucket holds the photos of one catalog category
type CategoryBucket struct {
	CategoryID    uint                `json:"category_id"`
	CategoryTitle string              `json:"category_title"`
	Kind          models.CategoryKind `json:"kind"`
	Items         []Item              `json:"items"`
}

// HasPhotos reports whether any item of the bucket carries a photo
func (b CategoryBucket) HasPhotos() bool {
	for _, item := range b.Items {
		if len(item.Photos) > 0 {
			return true
		}
	}
	return false
}

// Aggregator builds category buckets for a request
type Aggregator struct {
	db       *database.DB
	resolver blobstore.Resolver
}

// NewAggregator creates an Aggregator. Photo paths are qualified with resolver.
func NewAggregator(db *database.DB, resolver blobstore.Resolver) *Aggregator {
	return &Aggregator{db: db, resolver: resolver}
}

// Aggregate returns one bucket per catalog category, in catalog order. All
// queries run in a single read-only snapshot; any failure aborts the whole
// call. A request without photos or movable property, including one that
// does not exist, yields buckets with empty items.
func (a *Aggregator) Aggregate(ctx context.Context, requestID uint) ([]CategoryBucket, error) {
	var buckets []CategoryBucket
	err := a.db.ReadSnapshot(ctx, func(tx *gorm.DB) error {
		var err error
		buckets, err = a.AggregateTx(tx, requestID)
		return err
	})
	if err != nil {
		if errors.Is(err, apperr.ErrStoreUnavailable) || errors.Is(err, apperr.ErrMalformedRow) {
			return nil, err
		}
		return nil, apperr.Store("aggregate photos", err)
	}
	return buckets, nil
}

// AggregateTx is Aggregate on an already open transaction
func (a *Aggregator) AggregateTx(tx *gorm.DB, requestID uint) ([]CategoryBucket, error) {
	categories, err := catalog.Load(tx)
	if err != nil {
		return nil, err
	}

	var properties []models.MovableProperty
	if err := tx.Where("request_id = ?", requestID).Order("id ASC").Find(&properties).Error; err != nil {
		return nil, apperr.Store("load movable property", err)
	}

	var workPhotos []models.WorkPhoto
	if err := tx.Where("order_id = ?", requestID).Order("id ASC").Find(&workPhotos).Error; err != nil {
		return nil, apperr.Store("load work photos", err)
	}

	return Partition(categories, properties, workPhotos, a.resolver)
}

type bucketKey struct {
	categoryID uint
	subID      uint // image group or movable property id, 0 for flat categories
}

// Partition distributes photos over the buckets of categories. Photos are
// ordered by id inside each item; items follow catalog order for image
// groups and id order for movable property. Every photo lands in exactly
// one item; a photo that cannot be placed is reported as ErrMalformedRow.
func Partition(categories []models.Category, properties []models.MovableProperty, photos []models.WorkPhoto, resolver blobstore.Resolver) ([]CategoryBucket, error) {
	byID := make(map[uint]models.Category, len(categories))
	groupOwner := make(map[uint]uint)
	for _, c := range categories {
		if !c.Kind.Valid() {
			return nil, apperr.Malformed("category %d has unknown kind %q", c.ID, c.Kind)
		}
		byID[c.ID] = c
		for _, g := range c.ImageGroups {
			groupOwner[g.ID] = c.ID
		}
	}

	properties = append([]models.MovableProperty(nil), properties...)
	sort.SliceStable(properties, func(i, j int) bool { return properties[i].ID < properties[j].ID })
	ownProperty := make(map[uint]bool, len(properties))
	for _, p := range properties {
		ownProperty[p.ID] = true
	}

	photos = append([]models.WorkPhoto(nil), photos...)
	sort.SliceStable(photos, func(i, j int) bool { return photos[i].ID < photos[j].ID })

	grouped := make(map[bucketKey][]models.WorkPhoto)
	for _, p := range photos {
		c, ok := byID[p.GroupCategoryID]
		if !ok {
			return nil, apperr.Malformed("photo %d references unknown category %d", p.ID, p.GroupCategoryID)
		}

		key := bucketKey{categoryID: c.ID}
		switch c.Kind {
		case models.KindImageGroup:
			if p.ImageGroupID == nil {
				return nil, apperr.Malformed("photo %d in category %d has no image group", p.ID, c.ID)
			}
			if owner, ok := groupOwner[*p.ImageGroupID]; !ok || owner != c.ID {
				return nil, apperr.Malformed("photo %d references image group %d outside category %d", p.ID, *p.ImageGroupID, c.ID)
			}
			key.subID = *p.ImageGroupID
		case models.KindMovableProperty:
			if p.MovablePropertyID == nil {
				return nil, apperr.Malformed("photo %d in category %d has no movable property", p.ID, c.ID)
			}
			if !ownProperty[*p.MovablePropertyID] {
				return nil, apperr.Malformed("photo %d references movable property %d of another request", p.ID, *p.MovablePropertyID)
			}
			key.subID = *p.MovablePropertyID
		}

		p.Image = resolver.Qualify(p.Image)
		grouped[key] = append(grouped[key], p)
	}

	buckets := make([]CategoryBucket, 0, len(categories))
	for _, c := range categories {
		bucket := CategoryBucket{
			CategoryID:    c.ID,
			CategoryTitle: c.Title,
			Kind:          c.Kind,
			Items:         []Item{},
		}

		switch c.Kind {
		case models.KindImageGroup:
			for _, g := range c.ImageGroups {
				bucket.Items = append(bucket.Items, Item{
					GroupID:    g.ID,
					GroupTitle: g.Title,
					Photos:     nonNil(grouped[bucketKey{c.ID, g.ID}]),
				})
			}
		case models.KindMovableProperty:
			for _, p := range properties {
				bucket.Items = append(bucket.Items, Item{
					PropertyID:    p.ID,
					PropertyTitle: p.Title,
					Photos:        nonNil(grouped[bucketKey{c.ID, p.ID}]),
				})
			}
		case models.KindFlat:
			bucket.Items = append(bucket.Items, Item{
				Photos: nonNil(grouped[bucketKey{categoryID: c.ID}]),
			})
		}

		buckets = append(buckets, bucket)
	}
	return buckets, nil
}

func nonNil(photos []models.WorkPhoto) []models.WorkPhoto {
	if photos == nil {
		return []models.WorkPhoto{}
	}
	return photos
}
