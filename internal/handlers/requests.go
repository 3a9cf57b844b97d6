package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smbt-dev/inspectgo/internal/apperr"
	"github.com/smbt-dev/inspectgo/internal/middleware"
	"github.com/smbt-dev/inspectgo/internal/models"
	"github.com/smbt-dev/inspectgo/internal/websocket"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateRequestPayload is the intake form of a new inspection request
type CreateRequestPayload struct {
	Address         string          `json:"address"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	Comment         string          `json:"comment"`
	Metadata        json.RawMessage `json:"metadata"`
	MovableProperty []struct {
		Title string `json:"title"`
		Count int    `json:"count"`
		Unit  string `json:"unit"`
	} `json:"movable_property"`
}

// loadRequest fetches a request with its movable property and inspector
func loadRequest(db *gorm.DB, id uint) (*models.Request, error) {
	var request models.Request
	err := db.
		Preload("MovableProperty", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Exterminator").
		First(&request, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("request %d: %w", id, apperr.ErrRequestNotFound)
	}
	if err != nil {
		return nil, apperr.Store("load request", err)
	}
	return &request, nil
}

// createRequest stores a request together with its movable property
func (r *Router) createRequest(w http.ResponseWriter, req *http.Request) {
	var payload CreateRequestPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(payload.Address) == "" {
		respondError(w, http.StatusBadRequest, "address is required")
		return
	}

	request := models.Request{
		Address:       strings.TrimSpace(payload.Address),
		CustomerName:  payload.CustomerName,
		CustomerPhone: payload.CustomerPhone,
		Comment:       payload.Comment,
		Status:        models.StatusNew,
	}
	if len(payload.Metadata) > 0 && string(payload.Metadata) != "null" {
		request.Metadata = datatypes.JSON(payload.Metadata)
	}
	if personID, ok := middleware.PersonID(req.Context()); ok {
		request.CreatedByID = &personID
	}
	for i, mp := range payload.MovableProperty {
		if strings.TrimSpace(mp.Title) == "" || mp.Count < 0 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("movable_property[%d] needs a title and a non-negative count", i))
			return
		}
		request.MovableProperty = append(request.MovableProperty, models.MovableProperty{
			Title: strings.TrimSpace(mp.Title),
			Count: mp.Count,
			Unit:  mp.Unit,
		})
	}

	ctx, cancel := r.db.WithTimeout(req.Context())
	defer cancel()
	if err := r.db.WithContext(ctx).Create(&request).Error; err != nil {
		r.respondErr(w, apperr.Store("create request", err))
		return
	}
	respondJSON(w, http.StatusCreated, request)
}

// listRequests returns requests, newest first. Filters: status, exterminator_id.
func (r *Router) listRequests(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := r.db.WithTimeout(req.Context())
	defer cancel()

	q := r.db.WithContext(ctx).Order("id DESC")
	if s := req.URL.Query().Get("status"); s != "" {
		status := models.RequestStatus(s)
		if !status.Valid() {
			respondError(w, http.StatusBadRequest, "Unknown status")
			return
		}
		q = q.Where("status = ?", status)
	}
	if s := req.URL.Query().Get("exterminator_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid exterminator_id")
			return
		}
		q = q.Where("exterminator_id = ?", id)
	}

	requests := []models.Request{}
	if err := q.Find(&requests).Error; err != nil {
		r.respondErr(w, apperr.Store("list requests", err))
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

// getRequest returns a request with its movable property
func (r *Router) getRequest(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := r.db.WithTimeout(req.Context())
	defer cancel()

	request, err := loadRequest(r.db.WithContext(ctx), pathID(req))
	if err != nil {
		r.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, request)
}

// updateStatus moves a request along its lifecycle
func (r *Router) updateStatus(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Status models.RequestStatus `json:"status"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || !body.Status.Valid() {
		respondError(w, http.StatusBadRequest, "A valid status is required")
		return
	}
	if body.Status == models.StatusAssigned {
		respondError(w, http.StatusBadRequest, "Use the assign endpoint to set an inspector")
		return
	}

	request, err := r.mutateRequest(req, func(request *models.Request) error {
		if !request.Status.CanTransitionTo(body.Status) {
			return fmt.Errorf("%w: cannot move request from %s to %s", apperr.ErrConflict, request.Status, body.Status)
		}
		request.Status = body.Status
		if body.Status == models.StatusCompleted {
			now := time.Now().UTC()
			request.CompletedAt = &now
		}
		return nil
	})
	if err != nil {
		r.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, request)
}

// assignRequest sets the inspector of a request
func (r *Router) assignRequest(w http.ResponseWriter, req *http.Request) {
	var body struct {
		ExterminatorID uint `json:"exterminator_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.ExterminatorID == 0 {
		respondError(w, http.StatusBadRequest, "exterminator_id is required")
		return
	}

	request, err := r.mutateRequest(req, func(request *models.Request) error {
		if !request.Status.CanTransitionTo(models.StatusAssigned) {
			return fmt.Errorf("%w: cannot assign a request in status %s", apperr.ErrConflict, request.Status)
		}
		request.ExterminatorID = &body.ExterminatorID
		request.Exterminator = nil
		request.Status = models.StatusAssigned
		return nil
	}, func(tx *gorm.DB) error {
		return checkInspector(tx, body.ExterminatorID)
	})
	if err != nil {
		r.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, request)
}

// mutateRequest loads the request named by the route, runs the checks and
// apply inside one transaction, saves it and publishes the new state.
func (r *Router) mutateRequest(req *http.Request, apply func(*models.Request) error, checks ...func(*gorm.DB) error) (*models.Request, error) {
	ctx, cancel := r.db.WithTimeout(req.Context())
	defer cancel()

	var request *models.Request
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, check := range checks {
			if err := check(tx); err != nil {
				return err
			}
		}
		var err error
		request, err = loadRequest(tx, pathID(req))
		if err != nil {
			return err
		}
		if err := apply(request); err != nil {
			return err
		}
		err = tx.Model(&models.Request{}).Where("id = ?", request.ID).Updates(map[string]interface{}{
			"status":          request.Status,
			"exterminator_id": request.ExterminatorID,
			"completed_at":    request.CompletedAt,
		}).Error
		if err != nil {
			return apperr.Store("update request", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.hub.Publish(websocket.NewStatusEvent(request))
	return request, nil
}

// updateMovableProperty records what the inspector actually found
func (r *Router) updateMovableProperty(w http.ResponseWriter, req *http.Request) {
	var body struct {
		FactCount *int    `json:"fact_count"`
		Comment   *string `json:"comment"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.FactCount != nil && *body.FactCount < 0 {
		respondError(w, http.StatusBadRequest, "fact_count must not be negative")
		return
	}

	ctx, cancel := r.db.WithTimeout(req.Context())
	defer cancel()
	db := r.db.WithContext(ctx)

	var mp models.MovableProperty
	err := db.First(&mp, pathID(req)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "Movable property not found")
		return
	}
	if err != nil {
		r.respondErr(w, apperr.Store("load movable property", err))
		return
	}

	if body.FactCount != nil {
		mp.FactCount = body.FactCount
	}
	if body.Comment != nil {
		mp.Comment = body.Comment
	}
	err = db.Model(&models.MovableProperty{}).Where("id = ?", mp.ID).Updates(map[string]interface{}{
		"fact_count": mp.FactCount,
		"comment":    mp.Comment,
	}).Error
	if err != nil {
		r.respondErr(w, apperr.Store("update movable property", err))
		return
	}
	respondJSON(w, http.StatusOK, mp)
}
