package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/smbt-dev/inspectgo/internal/apperr"
	"github.com/smbt-dev/inspectgo/internal/blobstore"
	"github.com/smbt-dev/inspectgo/internal/buildinfo"
	"github.com/smbt-dev/inspectgo/internal/config"
	"github.com/smbt-dev/inspectgo/internal/database"
	"github.com/smbt-dev/inspectgo/internal/middleware"
	"github.com/smbt-dev/inspectgo/internal/models"
	"github.com/smbt-dev/inspectgo/internal/services/catalog"
	"github.com/smbt-dev/inspectgo/internal/services/photos"
	"github.com/smbt-dev/inspectgo/internal/services/report"
	"github.com/smbt-dev/inspectgo/internal/websocket"
	"go.uber.org/zap"
)

// maxUploadSize bounds multipart photo uploads
const maxUploadSize = 32 << 20

// Deps are the collaborators of the HTTP layer
type Deps struct {
	DB     *database.DB
	Config *config.Config
	Log    *zap.Logger
	Blobs  blobstore.Store
	Hub    *websocket.Hub
}

// Router wraps the mux router and the services behind it
type Router struct {
	*mux.Router
	db       *database.DB
	cfg      *config.Config
	log      *zap.Logger
	blobs    blobstore.Store
	resolver blobstore.Resolver
	hub      *websocket.Hub

	catalog    *catalog.Loader
	aggregator *photos.Aggregator
	reports    *report.Assembler
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(d Deps) *Router {
	resolver := blobstore.NewResolver(d.Config.Storage.PhotoBaseURL)
	aggregator := photos.NewAggregator(d.DB, resolver)

	r := &Router{
		Router:     mux.NewRouter(),
		db:         d.DB,
		cfg:        d.Config,
		log:        d.Log,
		blobs:      d.Blobs,
		resolver:   resolver,
		hub:        d.Hub,
		catalog:    catalog.NewLoader(d.DB),
		aggregator: aggregator,
		reports:    report.NewAssembler(d.DB, aggregator, resolver),
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")

	// API routes (protected)
	authenticate := middleware.Auth(d.Config.JWTSecret)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	staffOnly := middleware.RequireRole(models.RoleExterminator, models.RoleAdmin)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authenticate)
	api.HandleFunc("/status", r.getStatus).Methods("GET")
	api.HandleFunc("/categories", r.listCategories).Methods("GET")

	api.HandleFunc("/requests", r.listRequests).Methods("GET")
	api.HandleFunc("/requests", r.createRequest).Methods("POST")
	api.HandleFunc("/requests/{id:[0-9]+}", r.getRequest).Methods("GET")
	api.Handle("/requests/{id:[0-9]+}/status", staffOnly(http.HandlerFunc(r.updateStatus))).Methods("PUT")
	api.Handle("/requests/{id:[0-9]+}/assign", adminOnly(http.HandlerFunc(r.assignRequest))).Methods("PUT")
	api.Handle("/movable-property/{id:[0-9]+}", staffOnly(http.HandlerFunc(r.updateMovableProperty))).Methods("PUT")

	api.HandleFunc("/requests/{id:[0-9]+}/photos", r.listPhotos).Methods("GET")
	api.Handle("/requests/{id:[0-9]+}/photos", staffOnly(http.HandlerFunc(r.uploadPhoto))).Methods("POST")
	api.Handle("/photos/{id:[0-9]+}", staffOnly(http.HandlerFunc(r.deletePhoto))).Methods("DELETE")

	api.Handle("/requests/{id:[0-9]+}/report", staffOnly(http.HandlerFunc(r.createReport))).Methods("POST")
	api.HandleFunc("/requests/{id:[0-9]+}/report", r.getRequestReport).Methods("GET")
	api.HandleFunc("/requests/{id:[0-9]+}/report.pdf", r.getReportPDF).Methods("GET")
	api.HandleFunc("/reports/{id:[0-9]+}", r.getReport).Methods("GET")
	api.Handle("/reports/{id:[0-9]+}/identity-photos", staffOnly(http.HandlerFunc(r.uploadIdentityPhoto))).Methods("POST")
	api.Handle("/identity-photos/{id:[0-9]+}", staffOnly(http.HandlerFunc(r.deleteIdentityPhoto))).Methods("DELETE")

	// Stored photos and the live status feed
	r.HandleFunc("/uploads/{key}", r.serveUpload).Methods("GET")
	r.Handle("/ws", authenticate(http.HandlerFunc(r.serveWs))).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// getStatus returns the build info of the running server
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "running",
		"build":  buildinfo.Get(),
	})
}

func (r *Router) serveWs(w http.ResponseWriter, req *http.Request) {
	websocket.ServeWs(r.hub, w, req)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondErr maps err onto a status code via the apperr taxonomy
func (r *Router) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrRequestNotFound), errors.Is(err, apperr.ErrReportNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrMalformedRow):
		r.log.Error("data integrity violation", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "data integrity error")
	case errors.Is(err, apperr.ErrStoreUnavailable):
		r.log.Error("store unavailable", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		r.log.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// pathID parses the {id} route variable
func pathID(req *http.Request) uint {
	id, _ := strconv.ParseUint(mux.Vars(req)["id"], 10, 64)
	return uint(id)
}
