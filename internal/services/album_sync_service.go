package services

import (
	"context"
	"fmt"

	"github.com/lightfolio/server/internal/lightroom"
	"github.com/lightfolio/server/internal/models"
	"github.com/lightfolio/server/internal/observability"
	"github.com/lightfolio/server/internal/repository"
)

// AlbumSyncService reconciles the albums document against the host's album
// list: new albums are created, renamed albums updated in place, and albums
// gone from the host are deleted along with their cached renditions.
type AlbumSyncService struct {
	metadata repository.MetadataRepo
	host     *lightroom.Client
	catalog  *CatalogService
	cleanup  *CleanupService
}

// NewAlbumSyncService creates an AlbumSyncService.
func NewAlbumSyncService(metadata repository.MetadataRepo, host *lightroom.Client, catalog *CatalogService, cleanup *CleanupService) *AlbumSyncService {
	return &AlbumSyncService{metadata: metadata, host: host, catalog: catalog, cleanup: cleanup}
}

// SyncAlbums runs one reconciliation pass and returns the resulting album
// map. A host error aborts the pass before anything is written; the pass is
// idempotent, so the next call simply diffs again. Cached objects of removed
// albums are handed to the cleanup queue after the metadata commit.
func (s *AlbumSyncService) SyncAlbums(ctx context.Context, token string) (map[string]*models.Album, error) {
	ctx, span := observability.StartServiceSpan(ctx, "album_sync", "sync_albums")
	defer span.End()

	catalogHref, err := s.catalog.Href(ctx, token)
	if err != nil {
		return nil, err
	}

	hostAlbums, err := s.host.Albums(ctx, token, catalogHref)
	if err != nil {
		err = fmt.Errorf("failed to list host albums: %w", err)
		observability.RecordError(span, err)
		return nil, err
	}

	var (
		result  map[string]*models.Album
		orphans []string
		added   int
		renamed int
		removed int
	)

	err = s.metadata.MutateAlbums(ctx, func(albums map[string]*models.Album) ([]repository.FieldUpdate, error) {
		// the mutator can be retried; start each attempt clean
		orphans = orphans[:0]
		added, renamed, removed = 0, 0, 0

		var updates []repository.FieldUpdate
		seen := make(map[string]bool, len(hostAlbums))

		for _, hostAlbum := range hostAlbums {
			key := models.AlbumKey(hostAlbum.ID)
			seen[key] = true

			stored, ok := albums[key]
			if !ok {
				album := models.NewAlbum(hostAlbum.Name, hostAlbum.Href)
				albums[key] = album
				updates = append(updates, repository.Set(album, key))
				added++
				continue
			}
			// only the name tracks the host; href and collection stay put
			if stored.Name != hostAlbum.Name {
				stored.Name = hostAlbum.Name
				updates = append(updates, repository.Set(hostAlbum.Name, key, "name"))
				renamed++
			}
		}

		for key, stored := range albums {
			if seen[key] {
				continue
			}
			for photoKey := range stored.Photos {
				orphans = append(orphans, PhotoObjectPath(photoKey), ThumbnailObjectPath(photoKey))
			}
			delete(albums, key)
			updates = append(updates, repository.Remove(key))
			removed++
		}

		result = albums
		return updates, nil
	})
	if err != nil {
		return nil, err
	}

	if len(orphans) > 0 {
		s.cleanup.Enqueue(orphans...)
	}
	if added+renamed+removed > 0 {
		observability.WithContext(ctx).WithFields(map[string]any{
			"added":   added,
			"renamed": renamed,
			"removed": removed,
		}).Info("album sync applied changes")
	}
	return result, nil
}
