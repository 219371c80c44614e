package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lightfolio/server/internal/models"
	"github.com/lightfolio/server/internal/services"
)

// CollectionHandler exposes the collection curation endpoints.
type CollectionHandler struct {
	collections *services.CollectionService
	renditions  *services.RenditionService
	session     *services.SessionService
}

// NewCollectionHandler creates a CollectionHandler.
func NewCollectionHandler(collections *services.CollectionService, renditions *services.RenditionService, session *services.SessionService) *CollectionHandler {
	return &CollectionHandler{
		collections: collections,
		renditions:  renditions,
		session:     session,
	}
}

// GetCollections returns all collections ordered by display index. Public:
// the gallery frontend renders from this.
func (h *CollectionHandler) GetCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.collections.ListCollections(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collections)
}

// AddCollection creates a new collection.
func (h *CollectionHandler) AddCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")

	collection, err := h.collections.CreateCollection(r.Context(), name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, collection)
}

// DelCollection deletes a collection, detaching its album.
func (h *CollectionHandler) DelCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")

	if err := h.collections.DeleteCollection(r.Context(), name); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CollectionClick toggles a collection's public visibility.
func (h *CollectionHandler) CollectionClick(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")

	selected, err := h.collections.ToggleVisibility(r.Context(), name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"selected": selected})
}

// ReorderCollections bulk-overwrites collection display indexes. No sync is
// triggered.
func (h *CollectionHandler) ReorderCollections(w http.ResponseWriter, r *http.Request) {
	var entries []models.ReorderEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.collections.ReorderCollections(r.Context(), entries); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ThumbnailClick sets a collection's cover photo, materializing its
// thumbnail rendition first.
func (h *CollectionHandler) ThumbnailClick(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")
	photoKey := chi.URLParam(r, "thumbnail")

	token, err := h.session.AccessToken(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	collection, err := h.collections.GetCollection(r.Context(), name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if collection.Album == "" {
		respondError(w, r, models.ErrCollectionNoAlbum)
		return
	}

	url, err := h.renditions.EnsureRendition(r.Context(), token, collection.Album, photoKey, services.RenditionThumbnail)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.collections.SetCoverPhoto(r.Context(), name, photoKey, url); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
