package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/lightfolio/server/internal/lightroom"
	"github.com/lightfolio/server/internal/models"
	"github.com/lightfolio/server/internal/observability"
	"github.com/lightfolio/server/internal/repository"
)

// AssetSyncService reconciles each attached album's photo map against the
// host's asset list. Unattached albums are skipped for cost control.
type AssetSyncService struct {
	metadata repository.MetadataRepo
	host     *lightroom.Client
	catalog  *CatalogService
	cleanup  *CleanupService
}

// NewAssetSyncService creates an AssetSyncService.
func NewAssetSyncService(metadata repository.MetadataRepo, host *lightroom.Client, catalog *CatalogService, cleanup *CleanupService) *AssetSyncService {
	return &AssetSyncService{metadata: metadata, host: host, catalog: catalog, cleanup: cleanup}
}

// SyncAll syncs every album currently attached to a collection. Unlike the
// album pass, a failure is scoped to its album: it is logged and the
// remaining albums still proceed.
func (s *AssetSyncService) SyncAll(ctx context.Context, token string) error {
	albums, err := s.metadata.GetAlbums(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(albums))
	for key, album := range albums {
		if album.Collection != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, err := s.SyncAlbum(ctx, token, key); err != nil {
			observability.WithContext(ctx).WithField("album_key", key).
				Errorf("asset sync failed for album: %v", err)
		}
	}
	return nil
}

// SyncAlbum reconciles one album's photos and returns the resulting photo
// count. New photos get the next monotonic index in host-list encounter
// order; photos gone from the host are deleted and their cached objects
// queued for cleanup.
func (s *AssetSyncService) SyncAlbum(ctx context.Context, token, albumKey string) (int, error) {
	ctx, span := observability.StartServiceSpan(ctx, "asset_sync", "sync_album")
	span.SetAttributes(observability.AlbumKey(albumKey))
	defer span.End()

	catalogHref, err := s.catalog.Href(ctx, token)
	if err != nil {
		return 0, err
	}

	albums, err := s.metadata.GetAlbums(ctx)
	if err != nil {
		return 0, err
	}
	album, ok := albums[albumKey]
	if !ok {
		return 0, models.ErrAlbumNotFound
	}

	assets, err := s.host.Assets(ctx, token, catalogHref, album.Href)
	if err != nil {
		err = fmt.Errorf("failed to list host assets: %w", err)
		observability.RecordError(span, err)
		return 0, err
	}

	var (
		count   int
		orphans []string
	)

	err = s.metadata.MutateAlbums(ctx, func(albums map[string]*models.Album) ([]repository.FieldUpdate, error) {
		orphans = orphans[:0]

		album, ok := albums[albumKey]
		if !ok {
			return nil, models.ErrAlbumNotFound
		}

		var updates []repository.FieldUpdate
		seen := make(map[string]bool, len(assets))
		next := album.NextPhotoIndex()

		for _, asset := range assets {
			key := models.PhotoKey(asset.ID)
			seen[key] = true
			if _, ok := album.Photos[key]; ok {
				continue
			}
			photo := &models.Photo{Href: asset.Href, Index: next}
			next++
			album.Photos[key] = photo
			updates = append(updates, repository.Set(photo, albumKey, "photos", key))
		}

		for photoKey := range album.Photos {
			if seen[photoKey] {
				continue
			}
			orphans = append(orphans, PhotoObjectPath(photoKey), ThumbnailObjectPath(photoKey))
			delete(album.Photos, photoKey)
			updates = append(updates, repository.Remove(albumKey, "photos", photoKey))
		}

		count = len(album.Photos)
		return updates, nil
	})
	if err != nil {
		return 0, err
	}

	if len(orphans) > 0 {
		s.cleanup.Enqueue(orphans...)
	}
	return count, nil
}
