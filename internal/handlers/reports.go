package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/smbt-dev/inspectgo/internal/apperr"
	"github.com/smbt-dev/inspectgo/internal/middleware"
	"github.com/smbt-dev/inspectgo/internal/models"
	"github.com/smbt-dev/inspectgo/internal/services/printer"
	"github.com/smbt-dev/inspectgo/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// createReport stores the inspection act of a request and completes it.
// A request takes one report; a second submission is a conflict.
func (r *Router) createReport(w http.ResponseWriter, req *http.Request) {
	var rep models.Report
	if err := json.NewDecoder(req.Body).Decode(&rep); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	rep.ID = 0
	rep.RequestID = pathID(req)
	rep.CreatedAt = time.Time{}

	ctx, cancel := r.db.WithTimeout(req.Context())
	defer cancel()

	var request *models.Request
	var completed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		request, err = loadRequest(tx, rep.RequestID)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Report{}).Where("request_id = ?", rep.RequestID).Count(&existing).Error; err != nil {
			return apperr.Store("count reports", err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: request %d already has a report", apperr.ErrConflict, rep.RequestID)
		}

		if rep.ExterminatorID == nil {
			rep.ExterminatorID = request.ExterminatorID
		}
		if rep.ExterminatorID == nil {
			if role, _ := middleware.RoleID(req.Context()); role == models.RoleExterminator {
				personID, _ := middleware.PersonID(req.Context())
				rep.ExterminatorID = &personID
			}
		}
		if rep.ExterminatorID == nil {
			return fmt.Errorf("%w: request %d has no inspector", apperr.ErrConflict, rep.RequestID)
		}
		if err := checkInspector(tx, *rep.ExterminatorID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&rep).Error; err != nil {
			return apperr.Store("create report", err)
		}

		if request.Status.CanTransitionTo(models.StatusCompleted) {
			now := time.Now().UTC()
			request.Status = models.StatusCompleted
			request.CompletedAt = &now
			if err := tx.Model(&models.Request{}).Where("id = ?", request.ID).Updates(map[string]interface{}{
				"status":       request.Status,
				"completed_at": request.CompletedAt,
			}).Error; err != nil {
				return apperr.Store("complete request", err)
			}
			completed = true
		}
		return nil
	})
	if err != nil {
		r.respondErr(w, err)
		return
	}

	if completed {
		r.hub.Publish(websocket.NewStatusEvent(request))
	}
	r.log.Info("report submitted", zap.Uint("request_id", rep.RequestID), zap.Uint("report_id", rep.ID))

	payload, err := r.reports.ByID(req.Context(), rep.ID)
	if err != nil {
		r.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, payload)
}

// checkInspector fails with ErrInvalidInput unless personID names an inspector
func checkInspector(tx *gorm.DB, personID uint) error {
	var inspector models.Person
	err := tx.First(&inspector, personID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Invalid("person %d does not exist", personID)
	}
	if err != nil {
		return apperr.Store("load inspector", err)
	}
	if inspector.RoleID != models.RoleExterminator {
		return apperr.Invalid("person %d is not an inspector", personID)
	}
	return nil
}

// getRequestReport returns the latest report of a request
func (r *Router) getRequestReport(w http.ResponseWriter, req *http.Request) {
	payload, err := r.reports.ForRequest(req.Context(), pathID(req))
	if err != nil {
		r.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

// getReport returns a report by id
func (r *Router) getReport(w http.ResponseWriter, req *http.Request) {
	payload, err := r.reports.ByID(req.Context(), pathID(req))
	if err != nil {
		r.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payload)
}

// getReportPDF renders the latest report of a request
func (r *Router) getReportPDF(w http.ResponseWriter, req *http.Request) {
	requestID := pathID(req)
	payload, err := r.reports.ForRequest(req.Context(), requestID)
	if err != nil {
		r.respondErr(w, err)
		return
	}

	pdf, err := printer.RenderReport(req.Context(), payload, r.blobs, r.resolver, printer.Options{
		FontFile:   r.cfg.Report.FontFile,
		RequestURL: printer.RequestURL(r.cfg.Report.PublicURL, requestID),
		Date:       reportDate(payload.CreatedAt),
		Log:        r.log,
	})
	if err != nil {
		r.log.Error("failed to render report", zap.Uint("request_id", requestID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="report-%d.pdf"`, requestID))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func reportDate(created time.Time) time.Time {
	if created.IsZero() {
		return time.Now()
	}
	return created
}

// uploadIdentityPhoto attaches an identity-card scan to a report
func (r *Router) uploadIdentityPhoto(w http.ResponseWriter, req *http.Request) {
	reportID := pathID(req)
	up, err := readUpload(w, req, "photo")
	if err != nil {
		r.respondErr(w, err)
		return
	}
	defer up.close()

	ctx, cancel := r.db.WithTimeout(req.Context())
	defer cancel()
	db := r.db.WithContext(ctx)

	var n int64
	if err := db.Model(&models.Report{}).Where("id = ?", reportID).Count(&n).Error; err != nil {
		r.respondErr(w, apperr.Store("load report", err))
		return
	}
	if n == 0 {
		r.respondErr(w, fmt.Errorf("report %d: %w", reportID, apperr.ErrReportNotFound))
		return
	}

	key, err := r.blobs.Save(ctx, fmt.Sprintf("lpo_%d", reportID), up.mimeType, up.body)
	if err != nil {
		r.respondErr(w, err)
		return
	}

	card := models.IdentityCardPhoto{ReportID: reportID, Photo: key}
	if err := db.Create(&card).Error; err != nil {
		r.removeBlob(req, key)
		r.respondErr(w, apperr.Store("create identity photo", err))
		return
	}

	card.Photo = r.resolver.Qualify(card.Photo)
	respondJSON(w, http.StatusCreated, card)
}

// deleteIdentityPhoto removes an identity-card scan and its blob
func (r *Router) deleteIdentityPhoto(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := r.db.WithTimeout(req.Context())
	defer cancel()
	db := r.db.WithContext(ctx)

	var card models.IdentityCardPhoto
	err := db.First(&card, pathID(req)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "Identity photo not found")
		return
	}
	if err != nil {
		r.respondErr(w, apperr.Store("load identity photo", err))
		return
	}

	if err := db.Delete(&card).Error; err != nil {
		r.respondErr(w, apperr.Store("delete identity photo", err))
		return
	}
	r.removeBlob(req, card.Photo)
	w.WriteHeader(http.StatusNoContent)
}
