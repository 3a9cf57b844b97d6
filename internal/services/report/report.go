// Package report assembles the data a finished inspection report is printed
// from: the stored report row, the request address, the inspector name, the
// categorized work photos and the identity-card scans.
package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/smbt-dev/inspectgo/internal/apperr"
	"github.com/smbt-dev/inspectgo/internal/blobstore"
	"github.com/smbt-dev/inspectgo/internal/database"
	"github.com/smbt-dev/inspectgo/internal/models"
	"github.com/smbt-dev/inspectgo/internal/services/photos"
	"gorm.io/gorm"
)

// Payload is a report row enriched with everything needed to render it
type Payload struct {
	models.Report
	ObjectAddress   string                  `json:"object_address"`
	ExterminatorFIO string                  `json:"exterminator_fio"`
	Categories      []photos.CategoryBucket `json:"categories"`
	IdentityPhotos  []string                `json:"identity_photos"`
}

// Assembler builds report payloads
type Assembler struct {
	db         *database.DB
	aggregator *photos.Aggregator
	resolver   blobstore.Resolver
}

// NewAssembler creates an Assembler. Identity photo paths are qualified with
// resolver, the same way the aggregator qualifies work photos.
func NewAssembler(db *database.DB, aggregator *photos.Aggregator, resolver blobstore.Resolver) *Assembler {
	return &Assembler{db: db, aggregator: aggregator, resolver: resolver}
}

// ByID returns the payload of the report with the given id
func (a *Assembler) ByID(ctx context.Context, reportID uint) (*Payload, error) {
	return a.assemble(ctx, fmt.Sprintf("report %d", reportID), func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ?", reportID)
	})
}

// ForRequest returns the payload of the most recent report of a request.
// Reports created at the same instant are ordered by id.
func (a *Assembler) ForRequest(ctx context.Context, requestID uint) (*Payload, error) {
	return a.assemble(ctx, fmt.Sprintf("report for request %d", requestID), func(tx *gorm.DB) *gorm.DB {
		return tx.Where("request_id = ?", requestID).Order("created_at DESC").Order("id DESC")
	})
}

func (a *Assembler) assemble(ctx context.Context, what string, scope func(*gorm.DB) *gorm.DB) (*Payload, error) {
	var payload *Payload
	err := a.db.ReadSnapshot(ctx, func(tx *gorm.DB) error {
		var rep models.Report
		q := tx.
			Preload("Request").
			Preload("Exterminator").
			Preload("IdentityCards", func(db *gorm.DB) *gorm.DB {
				return db.Order("id ASC")
			})
		if err := scope(q).Take(&rep).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%s: %w", what, apperr.ErrReportNotFound)
			}
			return apperr.Store("load "+what, err)
		}

		buckets, err := a.aggregator.AggregateTx(tx, rep.RequestID)
		if err != nil {
			return err
		}

		payload = a.build(rep, buckets)
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrReportNotFound) ||
			errors.Is(err, apperr.ErrStoreUnavailable) ||
			errors.Is(err, apperr.ErrMalformedRow) {
			return nil, err
		}
		return nil, apperr.Store("assemble "+what, err)
	}
	return payload, nil
}

func (a *Assembler) build(rep models.Report, buckets []photos.CategoryBucket) *Payload {
	p := &Payload{
		Report:         rep,
		Categories:     buckets,
		IdentityPhotos: make([]string, 0, len(rep.IdentityCards)),
	}
	if rep.Request != nil {
		p.ObjectAddress = rep.Request.Address
	}
	if rep.Exterminator != nil {
		p.ExterminatorFIO = rep.Exterminator.FIO
	}
	for _, card := range rep.IdentityCards {
		p.IdentityPhotos = append(p.IdentityPhotos, a.resolver.Qualify(card.Photo))
	}
	return p
}
