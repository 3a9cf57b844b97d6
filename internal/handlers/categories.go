package handlers

import "net/http"

// listCategories returns the photo catalog with its image groups
func (r *Router) listCategories(w http.ResponseWriter, req *http.Request) {
	categories, err := r.catalog.LoadCategories(req.Context())
	if err != nil {
		r.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}
