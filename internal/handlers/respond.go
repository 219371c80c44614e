package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lightfolio/server/internal/models"
	"github.com/lightfolio/server/internal/observability"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// respondError maps domain sentinels to status codes; anything unmapped is a
// logged 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrNoSession):
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"isAuthenticated": false,
			"message":         "No host session established.",
		})
	case errors.Is(err, models.ErrAlbumNotFound),
		errors.Is(err, models.ErrPhotoNotFound),
		errors.Is(err, models.ErrCollectionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrCollectionExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrCollectionInvalidName),
		errors.Is(err, models.ErrCollectionNoAlbum),
		errors.Is(err, models.ErrThumbnailNotInAlbum),
		errors.Is(err, models.ErrReorderUnknownEntry):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		observability.WithContext(r.Context()).Errorf("request failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
