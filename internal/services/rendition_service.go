package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/disintegration/imaging"

	"github.com/lightfolio/server/internal/lightroom"
	"github.com/lightfolio/server/internal/models"
	"github.com/lightfolio/server/internal/observability"
	"github.com/lightfolio/server/internal/repository"
)

// RenditionKind selects which cached rendition of a photo to work with.
type RenditionKind string

const (
	RenditionFull      RenditionKind = "full"
	RenditionThumbnail RenditionKind = "thumbnail"
)

// Host size presets. Full size falls back to the smaller preset when the
// host has not generated the large one; thumbnails fall back to a local
// downscale of the full rendition.
const (
	sizeFull         = "2048"
	sizeFullFallback = "1280"
	sizeThumbnail    = "640"

	thumbnailWidth = 640
)

// objectPath returns the cache key for a photo at this kind.
func (k RenditionKind) objectPath(photoKey string) string {
	if k == RenditionThumbnail {
		return ThumbnailObjectPath(photoKey)
	}
	return PhotoObjectPath(photoKey)
}

// field returns the photo document field holding this kind's signed URL.
func (k RenditionKind) field() string {
	if k == RenditionThumbnail {
		return "thumbnail"
	}
	return "url"
}

func (k RenditionKind) urlOf(p *models.Photo) string {
	if k == RenditionThumbnail {
		return p.Thumbnail
	}
	return p.URL
}

// RenditionService lazily materializes image renditions into the cache
// bucket and records their signed URLs on the photo metadata.
type RenditionService struct {
	metadata   repository.MetadataRepo
	host       *lightroom.Client
	catalog    *CatalogService
	store      ObjectStore
	maxWorkers int
}

// NewRenditionService creates a RenditionService. maxWorkers bounds the
// concurrent host fetches during a batch ensure.
func NewRenditionService(metadata repository.MetadataRepo, host *lightroom.Client, catalog *CatalogService, store ObjectStore, maxWorkers int) *RenditionService {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	return &RenditionService{
		metadata:   metadata,
		host:       host,
		catalog:    catalog,
		store:      store,
		maxWorkers: maxWorkers,
	}
}

// EnsureRendition returns the signed URL of one photo's rendition, fetching
// and caching it first when needed, and persists the URL on the photo.
func (s *RenditionService) EnsureRendition(ctx context.Context, token, albumKey, photoKey string, kind RenditionKind) (string, error) {
	ctx, span := observability.StartServiceSpan(ctx, "renditions", "ensure_rendition")
	span.SetAttributes(
		observability.AlbumKey(albumKey),
		observability.PhotoKey(photoKey),
		observability.RenditionKind(string(kind)),
	)
	defer span.End()

	albums, err := s.metadata.GetAlbums(ctx)
	if err != nil {
		return "", err
	}
	album, ok := albums[albumKey]
	if !ok {
		return "", models.ErrAlbumNotFound
	}
	photo, ok := album.Photos[photoKey]
	if !ok {
		return "", models.ErrPhotoNotFound
	}
	if url := kind.urlOf(photo); url != "" {
		return url, nil
	}

	url, err := s.ensureObject(ctx, token, photoKey, photo.Href, kind)
	if err != nil {
		return "", err
	}
	if err := s.persistURLs(ctx, albumKey, []renditionResult{{photoKey: photoKey, kind: kind, url: url}}); err != nil {
		return "", err
	}
	return url, nil
}

// EnsureAlbum materializes the given rendition kinds for every photo of an
// album on a bounded worker pool. Per-photo failures are logged and skipped;
// the photo's URL field stays empty so the next call retries it.
func (s *RenditionService) EnsureAlbum(ctx context.Context, token, albumKey string, kinds ...RenditionKind) error {
	ctx, span := observability.StartServiceSpan(ctx, "renditions", "ensure_album")
	span.SetAttributes(observability.AlbumKey(albumKey))
	defer span.End()

	albums, err := s.metadata.GetAlbums(ctx)
	if err != nil {
		return err
	}
	album, ok := albums[albumKey]
	if !ok {
		return models.ErrAlbumNotFound
	}

	var (
		mu      sync.Mutex
		results []renditionResult
	)
	pool := pond.NewPool(s.maxWorkers, pond.WithContext(ctx))

	for photoKey, photo := range album.Photos {
		for _, kind := range kinds {
			if kind.urlOf(photo) != "" {
				continue
			}
			photoKey, href, kind := photoKey, photo.Href, kind
			pool.Submit(func() {
				url, err := s.ensureObject(ctx, token, photoKey, href, kind)
				if err != nil {
					observability.WithContext(ctx).WithFields(map[string]any{
						"album_key": albumKey,
						"photo_key": photoKey,
						"kind":      string(kind),
					}).Errorf("failed to ensure rendition: %v", err)
					return
				}
				mu.Lock()
				results = append(results, renditionResult{photoKey: photoKey, kind: kind, url: url})
				mu.Unlock()
			})
		}
	}
	pool.StopAndWait()

	return s.persistURLs(ctx, albumKey, results)
}

type renditionResult struct {
	photoKey string
	kind     RenditionKind
	url      string
}

// persistURLs writes signed URLs back onto the album in one batched update,
// skipping photos that were deleted while the fetches ran.
func (s *RenditionService) persistURLs(ctx context.Context, albumKey string, results []renditionResult) error {
	if len(results) == 0 {
		return nil
	}
	return s.metadata.MutateAlbums(ctx, func(albums map[string]*models.Album) ([]repository.FieldUpdate, error) {
		album, ok := albums[albumKey]
		if !ok {
			return nil, nil
		}
		var updates []repository.FieldUpdate
		for _, r := range results {
			if _, ok := album.Photos[r.photoKey]; !ok {
				continue
			}
			updates = append(updates, repository.Set(r.url, albumKey, "photos", r.photoKey, r.kind.field()))
		}
		return updates, nil
	})
}

// ensureObject makes sure the cached object exists and returns its signed
// URL. When the object is already present no host request is made.
func (s *RenditionService) ensureObject(ctx context.Context, token, photoKey, assetHref string, kind RenditionKind) (string, error) {
	object := kind.objectPath(photoKey)

	exists, err := s.store.Exists(ctx, object)
	if err != nil {
		return "", err
	}
	if !exists {
		data, err := s.fetch(ctx, token, assetHref, kind)
		if err != nil {
			return "", err
		}
		if err := s.store.Upload(ctx, object, renditionContentType, data); err != nil {
			return "", err
		}
	}
	return s.store.SignedURL(object)
}

// fetch downloads the rendition bytes for a kind, applying its fallback
// chain.
func (s *RenditionService) fetch(ctx context.Context, token, assetHref string, kind RenditionKind) ([]byte, error) {
	catalogHref, err := s.catalog.Href(ctx, token)
	if err != nil {
		return nil, err
	}

	if kind == RenditionThumbnail {
		data, err := s.host.Rendition(ctx, token, catalogHref, assetHref, sizeThumbnail)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, lightroom.ErrRenditionNotFound) {
			return nil, err
		}
		// no small preset on the host; downscale the full rendition
		full, err := s.fetchFull(ctx, token, catalogHref, assetHref)
		if err != nil {
			return nil, err
		}
		return downscale(full, thumbnailWidth)
	}

	return s.fetchFull(ctx, token, catalogHref, assetHref)
}

func (s *RenditionService) fetchFull(ctx context.Context, token, catalogHref, assetHref string) ([]byte, error) {
	data, err := s.host.Rendition(ctx, token, catalogHref, assetHref, sizeFull)
	if errors.Is(err, lightroom.ErrRenditionNotFound) {
		return s.host.Rendition(ctx, token, catalogHref, assetHref, sizeFullFallback)
	}
	return data, err
}

func downscale(data []byte, width int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendition for downscale: %w", err)
	}
	thumb := imaging.Resize(img, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
