package services

import (
	"context"
	"sort"
	"strings"

	"github.com/lightfolio/server/internal/models"
	"github.com/lightfolio/server/internal/observability"
	"github.com/lightfolio/server/internal/repository"
)

// CollectionService handles collection curation: create/delete, visibility,
// album attachment, ordering and cover photos. Mutations that touch both the
// albums and collections documents run in a single store transaction.
type CollectionService struct {
	metadata repository.MetadataRepo
}

// NewCollectionService creates a CollectionService.
func NewCollectionService(metadata repository.MetadataRepo) *CollectionService {
	return &CollectionService{metadata: metadata}
}

// ListCollections returns all collections ordered by display index.
func (s *CollectionService) ListCollections(ctx context.Context) ([]models.CollectionSummary, error) {
	collections, err := s.metadata.GetCollections(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.CollectionSummary, 0, len(collections))
	for name, c := range collections {
		summaries = append(summaries, models.CollectionSummary{
			Name:         name,
			Album:        c.Album,
			Selected:     c.Selected,
			Thumbnail:    c.Thumbnail,
			ThumbnailURL: c.ThumbnailURL,
			Index:        c.Index,
			NumPhotos:    c.NumPhotos,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Index != summaries[j].Index {
			return summaries[i].Index < summaries[j].Index
		}
		return summaries[i].Name < summaries[j].Name
	})
	return summaries, nil
}

// ListAlbums returns all albums as admin summaries, ordered by name.
func (s *CollectionService) ListAlbums(ctx context.Context) ([]models.AlbumSummary, error) {
	albums, err := s.metadata.GetAlbums(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.AlbumSummary, 0, len(albums))
	for key, a := range albums {
		summaries = append(summaries, models.AlbumSummary{
			Key:        key,
			Name:       a.Name,
			Collection: a.Collection,
			NumPhotos:  len(a.Photos),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

// PhotosView returns an album's photos ordered by display index.
func (s *CollectionService) PhotosView(ctx context.Context, albumKey string) ([]models.PhotoView, error) {
	albums, err := s.metadata.GetAlbums(ctx)
	if err != nil {
		return nil, err
	}
	album, ok := albums[albumKey]
	if !ok {
		return nil, models.ErrAlbumNotFound
	}

	views := make([]models.PhotoView, 0, len(album.Photos))
	for key, p := range album.Photos {
		views = append(views, models.PhotoView{
			Key:       key,
			URL:       p.URL,
			Thumbnail: p.Thumbnail,
			Index:     p.Index,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Index < views[j].Index })
	return views, nil
}

// CreateCollection creates a hidden, detached collection at the end of the
// display order.
func (s *CollectionService) CreateCollection(ctx context.Context, name string) (*models.Collection, error) {
	name = strings.TrimSpace(name)
	if !models.ValidCollectionName(name) {
		return nil, models.ErrCollectionInvalidName
	}

	var created *models.Collection
	err := s.metadata.MutateCollections(ctx, func(collections map[string]*models.Collection) ([]repository.FieldUpdate, error) {
		if _, ok := collections[name]; ok {
			return nil, models.ErrCollectionExists
		}
		next := 0
		for _, c := range collections {
			if c.Index >= next {
				next = c.Index + 1
			}
		}
		created = models.NewCollection(next)
		return []repository.FieldUpdate{repository.Set(created, name)}, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteCollection removes a collection. The attached album, if any, is
// detached, and its selection counter drops when the collection was visible.
func (s *CollectionService) DeleteCollection(ctx context.Context, name string) error {
	return s.metadata.Mutate(ctx, func(albums map[string]*models.Album, collections map[string]*models.Collection) ([]repository.FieldUpdate, []repository.FieldUpdate, error) {
		col, ok := collections[name]
		if !ok {
			return nil, nil, models.ErrCollectionNotFound
		}

		var albumUpdates []repository.FieldUpdate
		if col.Album != "" {
			if album, ok := albums[col.Album]; ok {
				albumUpdates = append(albumUpdates, repository.Set("", col.Album, "collection"))
				if col.Selected {
					albumUpdates = append(albumUpdates, repository.Set(album.Selected-1, col.Album, "selected"))
				}
			}
		}
		return albumUpdates, []repository.FieldUpdate{repository.Remove(name)}, nil
	})
}

// ToggleVisibility flips a collection's public visibility and keeps the
// attached album's selection counter in step. Returns the new state.
func (s *CollectionService) ToggleVisibility(ctx context.Context, name string) (bool, error) {
	var selected bool
	err := s.metadata.Mutate(ctx, func(albums map[string]*models.Album, collections map[string]*models.Collection) ([]repository.FieldUpdate, []repository.FieldUpdate, error) {
		col, ok := collections[name]
		if !ok {
			return nil, nil, models.ErrCollectionNotFound
		}
		selected = !col.Selected

		colUpdates := []repository.FieldUpdate{repository.Set(selected, name, "selected")}

		var albumUpdates []repository.FieldUpdate
		if col.Album != "" {
			if album, ok := albums[col.Album]; ok {
				delta := -1
				if selected {
					delta = 1
				}
				albumUpdates = append(albumUpdates, repository.Set(album.Selected+delta, col.Album, "selected"))
			}
		}
		return albumUpdates, colUpdates, nil
	})
	return selected, err
}

// AttachAlbum toggles an album's attachment to a collection: clicking the
// currently attached album detaches it, clicking another album replaces the
// previous attachment. The cover thumbnail resets either way since it
// referenced the old album's photos. Returns whether the album ended up
// attached.
func (s *CollectionService) AttachAlbum(ctx context.Context, name, albumKey string) (bool, error) {
	ctx, span := observability.StartServiceSpan(ctx, "collections", "attach_album")
	span.SetAttributes(observability.CollectionName(name), observability.AlbumKey(albumKey))
	defer span.End()

	var attached bool
	err := s.metadata.Mutate(ctx, func(albums map[string]*models.Album, collections map[string]*models.Collection) ([]repository.FieldUpdate, []repository.FieldUpdate, error) {
		col, ok := collections[name]
		if !ok {
			return nil, nil, models.ErrCollectionNotFound
		}
		album, ok := albums[albumKey]
		if !ok {
			return nil, nil, models.ErrAlbumNotFound
		}

		colUpdates := []repository.FieldUpdate{
			repository.Set("", name, "thumbnail"),
			repository.Set("", name, "thumbnailUrl"),
		}
		var albumUpdates []repository.FieldUpdate

		if col.Album == albumKey {
			// toggle off
			attached = false
			colUpdates = append(colUpdates,
				repository.Set("", name, "album"),
				repository.Set(0, name, "num_photos"),
			)
			albumUpdates = append(albumUpdates, repository.Set("", albumKey, "collection"))
			if col.Selected {
				albumUpdates = append(albumUpdates, repository.Set(album.Selected-1, albumKey, "selected"))
			}
			return albumUpdates, colUpdates, nil
		}

		// detach the collection's previous album first
		if col.Album != "" {
			if prev, ok := albums[col.Album]; ok {
				albumUpdates = append(albumUpdates, repository.Set("", col.Album, "collection"))
				if col.Selected {
					albumUpdates = append(albumUpdates, repository.Set(prev.Selected-1, col.Album, "selected"))
				}
			}
		}

		attached = true
		colUpdates = append(colUpdates,
			repository.Set(albumKey, name, "album"),
			repository.Set(len(album.Photos), name, "num_photos"),
		)
		albumUpdates = append(albumUpdates, repository.Set(name, albumKey, "collection"))
		if col.Selected {
			albumUpdates = append(albumUpdates, repository.Set(album.Selected+1, albumKey, "selected"))
		}
		return albumUpdates, colUpdates, nil
	})
	return attached, err
}

// SetPhotoCount records an attached album's photo count on the collection,
// called after an asset sync changes the album.
func (s *CollectionService) SetPhotoCount(ctx context.Context, name string, count int) error {
	return s.metadata.MutateCollections(ctx, func(collections map[string]*models.Collection) ([]repository.FieldUpdate, error) {
		if _, ok := collections[name]; !ok {
			return nil, models.ErrCollectionNotFound
		}
		return []repository.FieldUpdate{repository.Set(count, name, "num_photos")}, nil
	})
}

// ReorderCollections overwrites collection display indexes in bulk. Every
// entry must name a stored collection; nothing is synced.
func (s *CollectionService) ReorderCollections(ctx context.Context, entries []models.ReorderEntry) error {
	return s.metadata.MutateCollections(ctx, func(collections map[string]*models.Collection) ([]repository.FieldUpdate, error) {
		updates := make([]repository.FieldUpdate, 0, len(entries))
		for _, e := range entries {
			if _, ok := collections[e.Name]; !ok {
				return nil, models.ErrReorderUnknownEntry
			}
			updates = append(updates, repository.Set(e.Index, e.Name, "index"))
		}
		return updates, nil
	})
}

// ReorderPhotos overwrites photo display indexes within an album in bulk.
// Entries address photos by asset key in the href field.
func (s *CollectionService) ReorderPhotos(ctx context.Context, albumKey string, entries []models.ReorderEntry) error {
	return s.metadata.MutateAlbums(ctx, func(albums map[string]*models.Album) ([]repository.FieldUpdate, error) {
		album, ok := albums[albumKey]
		if !ok {
			return nil, models.ErrAlbumNotFound
		}
		updates := make([]repository.FieldUpdate, 0, len(entries))
		for _, e := range entries {
			if _, ok := album.Photos[e.Href]; !ok {
				return nil, models.ErrReorderUnknownEntry
			}
			updates = append(updates, repository.Set(e.Index, albumKey, "photos", e.Href, "index"))
		}
		return updates, nil
	})
}

// SetCoverPhoto records a collection's cover image. The photo must belong to
// the attached album's current photo map.
func (s *CollectionService) SetCoverPhoto(ctx context.Context, name, photoKey, signedURL string) error {
	return s.metadata.Mutate(ctx, func(albums map[string]*models.Album, collections map[string]*models.Collection) ([]repository.FieldUpdate, []repository.FieldUpdate, error) {
		col, ok := collections[name]
		if !ok {
			return nil, nil, models.ErrCollectionNotFound
		}
		if col.Album == "" {
			return nil, nil, models.ErrCollectionNoAlbum
		}
		album, ok := albums[col.Album]
		if !ok {
			return nil, nil, models.ErrAlbumNotFound
		}
		if _, ok := album.Photos[photoKey]; !ok {
			return nil, nil, models.ErrThumbnailNotInAlbum
		}
		return nil, []repository.FieldUpdate{
			repository.Set(photoKey, name, "thumbnail"),
			repository.Set(signedURL, name, "thumbnailUrl"),
		}, nil
	})
}

// GetCollection returns one collection by name.
func (s *CollectionService) GetCollection(ctx context.Context, name string) (*models.Collection, error) {
	collections, err := s.metadata.GetCollections(ctx)
	if err != nil {
		return nil, err
	}
	col, ok := collections[name]
	if !ok {
		return nil, models.ErrCollectionNotFound
	}
	return col, nil
}
