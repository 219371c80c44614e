package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lightfolio/server/internal/models"
	"github.com/lightfolio/server/internal/observability"
	"github.com/lightfolio/server/internal/services"
)

// AlbumHandler exposes the album sync and photo endpoints.
type AlbumHandler struct {
	session     *services.SessionService
	albumSync   *services.AlbumSyncService
	assetSync   *services.AssetSyncService
	renditions  *services.RenditionService
	collections *services.CollectionService
}

// NewAlbumHandler creates an AlbumHandler.
func NewAlbumHandler(
	session *services.SessionService,
	albumSync *services.AlbumSyncService,
	assetSync *services.AssetSyncService,
	renditions *services.RenditionService,
	collections *services.CollectionService,
) *AlbumHandler {
	return &AlbumHandler{
		session:     session,
		albumSync:   albumSync,
		assetSync:   assetSync,
		renditions:  renditions,
		collections: collections,
	}
}

// GetAlbums lists all albums for the admin picker of a collection. The list
// is always preceded by a full album and asset sync pass.
func (h *AlbumHandler) GetAlbums(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	token, err := h.session.AccessToken(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	if _, err := h.albumSync.SyncAlbums(r.Context(), token); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.assetSync.SyncAll(r.Context(), token); err != nil {
		respondError(w, r, err)
		return
	}

	albums, err := h.collections.ListAlbums(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"collection": collection,
		"albums":     albums,
	})
}

// AlbumClick toggles an album's attachment to a collection. Attaching syncs
// the album's assets, materializes its renditions and records the photo
// count on the collection.
func (h *AlbumHandler) AlbumClick(w http.ResponseWriter, r *http.Request) {
	albumKey := chi.URLParam(r, "id")
	collection := chi.URLParam(r, "collection")

	token, err := h.session.AccessToken(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	attached, err := h.collections.AttachAlbum(r.Context(), collection, albumKey)
	if err != nil {
		respondError(w, r, err)
		return
	}

	numPhotos := 0
	if attached {
		numPhotos, err = h.assetSync.SyncAlbum(r.Context(), token, albumKey)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if err := h.collections.SetPhotoCount(r.Context(), collection, numPhotos); err != nil {
			respondError(w, r, err)
			return
		}
		if err := h.renditions.EnsureAlbum(r.Context(), token, albumKey,
			services.RenditionFull, services.RenditionThumbnail); err != nil {
			// renditions retry on the next read; attachment already stands
			observability.WithContext(r.Context()).WithField("album_key", albumKey).
				Errorf("failed to materialize renditions: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"attached":  attached,
		"numPhotos": numPhotos,
	})
}

// ReorderPhotos bulk-overwrites photo display indexes within an album. No
// sync is triggered.
func (h *AlbumHandler) ReorderPhotos(w http.ResponseWriter, r *http.Request) {
	albumKey := chi.URLParam(r, "album")

	var entries []models.ReorderEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.collections.ReorderPhotos(r.Context(), albumKey, entries); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Thumbnails returns an album's photos in display order, materializing any
// missing thumbnail renditions first.
func (h *AlbumHandler) Thumbnails(w http.ResponseWriter, r *http.Request) {
	albumKey := chi.URLParam(r, "album")

	token, err := h.session.AccessToken(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.renditions.EnsureAlbum(r.Context(), token, albumKey, services.RenditionThumbnail); err != nil {
		respondError(w, r, err)
		return
	}

	photos, err := h.collections.PhotosView(r.Context(), albumKey)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photos)
}
