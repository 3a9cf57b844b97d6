package handlers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/smbt-dev/inspectgo/internal/apperr"
	"github.com/smbt-dev/inspectgo/internal/blobstore"
	"github.com/smbt-dev/inspectgo/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// listPhotos returns the work photos of a request grouped by category
func (r *Router) listPhotos(w http.ResponseWriter, req *http.Request) {
	buckets, err := r.aggregator.Aggregate(req.Context(), pathID(req))
	if err != nil {
		r.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, buckets)
}

// upload is a file taken from a multipart form
type upload struct {
	body     io.Reader
	mimeType string
	close    func() error
}

// readUpload opens the image in form field name. The caller must close it.
func readUpload(w http.ResponseWriter, req *http.Request, name string) (*upload, error) {
	return readFile(w, req, name, isImage)
}

// readFile opens the file in form field name if accept allows its sniffed type
func readFile(w http.ResponseWriter, req *http.Request, name string, accept func(mimeType string) bool) (*upload, error) {
	if err := parseMultipart(w, req); err != nil {
		return nil, err
	}
	file, header, err := req.FormFile(name)
	if err != nil {
		return nil, apperr.Invalid("form field %q must hold a file", name)
	}

	br := bufio.NewReader(file)
	sniff, _ := br.Peek(512)
	mimeType := http.DetectContentType(sniff)
	if !accept(mimeType) {
		mimeType = header.Header.Get("Content-Type")
	}
	if !accept(mimeType) {
		file.Close()
		return nil, apperr.Invalid("%s has an unsupported file type", header.Filename)
	}
	return &upload{body: br, mimeType: mimeType, close: file.Close}, nil
}

// parseMultipart reads the multipart form of req once, bounded by
// maxUploadSize
func parseMultipart(w http.ResponseWriter, req *http.Request) error {
	if req.MultipartForm != nil {
		return nil
	}
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadSize)
	if err := req.ParseMultipartForm(maxUploadSize); err != nil {
		return apperr.Invalid("invalid multipart form: %v", err)
	}
	return nil
}

func isImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// isDocument accepts scans and PDF copies of credentials
func isDocument(mimeType string) bool {
	return isImage(mimeType) || mimeType == "application/pdf"
}

func formUint(req *http.Request, name string) (*uint, error) {
	s := req.FormValue(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return nil, apperr.Invalid("%s must be a positive integer", name)
	}
	id := uint(v)
	return &id, nil
}

// photoTarget checks that the sub-grouping fields of photo match the kind of
// its category and that everything it references exists.
func photoTarget(tx *gorm.DB, photo *models.WorkPhoto) error {
	var request models.Request
	err := tx.Select("id").First(&request, photo.OrderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("request %d: %w", photo.OrderID, apperr.ErrRequestNotFound)
	}
	if err != nil {
		return apperr.Store("load request", err)
	}

	var category models.Category
	err = tx.First(&category, photo.GroupCategoryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Invalid("category %d does not exist", photo.GroupCategoryID)
	}
	if err != nil {
		return apperr.Store("load category", err)
	}

	switch category.Kind {
	case models.KindImageGroup:
		if photo.ImageGroupID == nil || photo.MovablePropertyID != nil {
			return apperr.Invalid("category %d needs image_group_id only", category.ID)
		}
		var n int64
		if err := tx.Model(&models.ImageGroup{}).
			Where("id = ? AND category_id = ?", *photo.ImageGroupID, category.ID).
			Count(&n).Error; err != nil {
			return apperr.Store("load image group", err)
		}
		if n == 0 {
			return apperr.Invalid("image group %d is not part of category %d", *photo.ImageGroupID, category.ID)
		}
	case models.KindMovableProperty:
		if photo.MovablePropertyID == nil || photo.ImageGroupID != nil {
			return apperr.Invalid("category %d needs movable_property_id only", category.ID)
		}
		var n int64
		if err := tx.Model(&models.MovableProperty{}).
			Where("id = ? AND request_id = ?", *photo.MovablePropertyID, photo.OrderID).
			Count(&n).Error; err != nil {
			return apperr.Store("load movable property", err)
		}
		if n == 0 {
			return apperr.Invalid("movable property %d does not belong to request %d", *photo.MovablePropertyID, photo.OrderID)
		}
	case models.KindFlat:
		if photo.ImageGroupID != nil || photo.MovablePropertyID != nil {
			return apperr.Invalid("category %d takes no image group or movable property", category.ID)
		}
	default:
		return apperr.Malformed("category %d has unknown kind %q", category.ID, category.Kind)
	}
	return nil
}

// uploadPhoto stores a work photo of a request
func (r *Router) uploadPhoto(w http.ResponseWriter, req *http.Request) {
	up, err := readUpload(w, req, "image")
	if err != nil {
		r.respondErr(w, err)
		return
	}
	defer up.close()

	photo := models.WorkPhoto{OrderID: pathID(req)}
	categoryID, err := formUint(req, "category_id")
	if err == nil && categoryID == nil {
		err = apperr.Invalid("category_id is required")
	}
	if err != nil {
		r.respondErr(w, err)
		return
	}
	photo.GroupCategoryID = *categoryID
	if photo.ImageGroupID, err = formUint(req, "image_group_id"); err != nil {
		r.respondErr(w, err)
		return
	}
	if photo.MovablePropertyID, err = formUint(req, "movable_property_id"); err != nil {
		r.respondErr(w, err)
		return
	}

	ctx, cancel := r.db.WithTimeout(req.Context())
	defer cancel()
	db := r.db.WithContext(ctx)

	if err := photoTarget(db, &photo); err != nil {
		r.respondErr(w, err)
		return
	}

	key, err := r.blobs.Save(ctx, fmt.Sprintf("work_%d", photo.OrderID), up.mimeType, up.body)
	if err != nil {
		r.respondErr(w, err)
		return
	}
	photo.Image = key

	if err := db.Create(&photo).Error; err != nil {
		r.removeBlob(req, key)
		r.respondErr(w, apperr.Store("create work photo", err))
		return
	}

	r.log.Info("work photo stored",
		zap.Uint("request_id", photo.OrderID),
		zap.Uint("photo_id", photo.ID),
		zap.String("key", key))

	photo.Image = r.resolver.Qualify(photo.Image)
	respondJSON(w, http.StatusCreated, photo)
}

// deletePhoto removes a work photo row and its blob
func (r *Router) deletePhoto(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := r.db.WithTimeout(req.Context())
	defer cancel()
	db := r.db.WithContext(ctx)

	var photo models.WorkPhoto
	err := db.First(&photo, pathID(req)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "Photo not found")
		return
	}
	if err != nil {
		r.respondErr(w, apperr.Store("load work photo", err))
		return
	}

	if err := db.Delete(&photo).Error; err != nil {
		r.respondErr(w, apperr.Store("delete work photo", err))
		return
	}
	r.removeBlob(req, photo.Image)
	w.WriteHeader(http.StatusNoContent)
}

// removeBlob deletes a stored file after its row is gone. Failures are
// logged only; the row is the source of truth.
func (r *Router) removeBlob(req *http.Request, key string) {
	err := r.blobs.Delete(req.Context(), key)
	if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		r.log.Warn("failed to delete blob", zap.String("key", key), zap.Error(err))
	}
}

// serveUpload streams a stored photo
func (r *Router) serveUpload(w http.ResponseWriter, req *http.Request) {
	key := mux.Vars(req)["key"]
	rc, mimeType, err := r.blobs.Get(req.Context(), key)
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		respondError(w, http.StatusNotFound, "File not found")
		return
	case errors.Is(err, blobstore.ErrInvalidKey):
		respondError(w, http.StatusBadRequest, "Invalid file key")
		return
	case err != nil:
		r.respondErr(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		r.log.Warn("failed to stream upload", zap.String("key", key), zap.Error(err))
	}
}
