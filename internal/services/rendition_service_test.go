package services

import (
	"bytes"
	"context"
	"image"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightfolio/server/internal/models"
)

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	err := imaging.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)), imaging.JPEG)
	require.NoError(t, err)
	return buf.Bytes()
}

func renditionFixture(t *testing.T, mux *http.ServeMux) (*RenditionService, *fakeMetadataRepo, *fakeObjectStore) {
	t.Helper()
	host := newTestHost(t, mux)

	repo := newFakeMetadataRepo()
	repo.catalog = &models.Catalog{Name: "My Catalog", Href: "catalogs/cat1"}
	album := models.NewAlbum("Beach", "albums/1")
	album.Photos["asset_p1"] = &models.Photo{Href: "assets/p1", Index: 0}
	repo.albums["album_1"] = album

	store := newFakeObjectStore()
	svc := NewRenditionService(repo, host, NewCatalogService(repo, host), store, 2)
	return svc, repo, store
}

func TestRenditionService_EnsureRendition(t *testing.T) {
	t.Run("fetches once then serves the stored URL", func(t *testing.T) {
		var hostCalls int32
		mux := http.NewServeMux()
		mux.HandleFunc("/catalogs/cat1/assets/p1/renditions/2048", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hostCalls, 1)
			w.Write([]byte("jpeg-bytes"))
		})
		svc, repo, store := renditionFixture(t, mux)

		url, err := svc.EnsureRendition(context.Background(), "tok", "album_1", "asset_p1", RenditionFull)
		require.NoError(t, err)
		assert.Equal(t, "https://signed.example/photos/asset_p1.jpg", url)
		assert.Equal(t, url, repo.albums["album_1"].Photos["asset_p1"].URL)
		assert.True(t, store.has(PhotoObjectPath("asset_p1")))

		again, err := svc.EnsureRendition(context.Background(), "tok", "album_1", "asset_p1", RenditionFull)
		require.NoError(t, err)
		assert.Equal(t, url, again)
		assert.EqualValues(t, 1, atomic.LoadInt32(&hostCalls))
		assert.Equal(t, 1, store.uploadCalls)
	})

	t.Run("falls back to the smaller full preset", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/catalogs/cat1/assets/p1/renditions/2048", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		mux.HandleFunc("/catalogs/cat1/assets/p1/renditions/1280", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("smaller-jpeg"))
		})
		svc, _, store := renditionFixture(t, mux)

		_, err := svc.EnsureRendition(context.Background(), "tok", "album_1", "asset_p1", RenditionFull)
		require.NoError(t, err)
		assert.Equal(t, []byte("smaller-jpeg"), store.objects[PhotoObjectPath("asset_p1")])
	})

	t.Run("downscales the full rendition when no thumbnail preset exists", func(t *testing.T) {
		full := testJPEG(t, 1600, 1000)
		mux := http.NewServeMux()
		mux.HandleFunc("/catalogs/cat1/assets/p1/renditions/640", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		mux.HandleFunc("/catalogs/cat1/assets/p1/renditions/2048", func(w http.ResponseWriter, r *http.Request) {
			w.Write(full)
		})
		svc, _, store := renditionFixture(t, mux)

		url, err := svc.EnsureRendition(context.Background(), "tok", "album_1", "asset_p1", RenditionThumbnail)
		require.NoError(t, err)
		assert.Equal(t, "https://signed.example/thumbnails/asset_p1.jpg", url)

		thumb, err := imaging.Decode(bytes.NewReader(store.objects[ThumbnailObjectPath("asset_p1")]))
		require.NoError(t, err)
		assert.Equal(t, 640, thumb.Bounds().Dx())
	})

	t.Run("unknown photo returns ErrPhotoNotFound", func(t *testing.T) {
		svc, _, _ := renditionFixture(t, http.NewServeMux())

		_, err := svc.EnsureRendition(context.Background(), "tok", "album_1", "asset_nope", RenditionFull)
		assert.ErrorIs(t, err, models.ErrPhotoNotFound)
	})
}

func TestRenditionService_EnsureAlbum(t *testing.T) {
	t.Run("materializes missing renditions for every photo", func(t *testing.T) {
		mux := http.NewServeMux()
		for _, id := range []string{"p1", "p2"} {
			id := id
			mux.HandleFunc("/catalogs/cat1/assets/"+id+"/renditions/2048", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("full-" + id))
			})
			mux.HandleFunc("/catalogs/cat1/assets/"+id+"/renditions/640", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("thumb-" + id))
			})
		}
		svc, repo, store := renditionFixture(t, mux)
		repo.albums["album_1"].Photos["asset_p2"] = &models.Photo{Href: "assets/p2", Index: 1}

		err := svc.EnsureAlbum(context.Background(), "tok", "album_1", RenditionFull, RenditionThumbnail)
		require.NoError(t, err)

		for _, key := range []string{"asset_p1", "asset_p2"} {
			photo := repo.albums["album_1"].Photos[key]
			assert.Equal(t, "https://signed.example/"+PhotoObjectPath(key), photo.URL)
			assert.Equal(t, "https://signed.example/"+ThumbnailObjectPath(key), photo.Thumbnail)
			assert.True(t, store.has(PhotoObjectPath(key)))
			assert.True(t, store.has(ThumbnailObjectPath(key)))
		}
	})

	t.Run("skips photos that already have URLs", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unexpected host request %s", r.URL.Path)
		})
		svc, repo, store := renditionFixture(t, mux)
		repo.albums["album_1"].Photos["asset_p1"].URL = "https://signed.example/photos/asset_p1.jpg"

		err := svc.EnsureAlbum(context.Background(), "tok", "album_1", RenditionFull)
		require.NoError(t, err)
		assert.Equal(t, 0, store.uploadCalls)
	})

	t.Run("per-photo failures leave the URL empty for retry", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/catalogs/cat1/assets/p1/renditions/2048", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		mux.HandleFunc("/catalogs/cat1/assets/p1/renditions/1280", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		mux.HandleFunc("/catalogs/cat1/assets/p2/renditions/2048", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("full-p2"))
		})
		svc, repo, _ := renditionFixture(t, mux)
		repo.albums["album_1"].Photos["asset_p2"] = &models.Photo{Href: "assets/p2", Index: 1}

		err := svc.EnsureAlbum(context.Background(), "tok", "album_1", RenditionFull)
		require.NoError(t, err)

		assert.Empty(t, repo.albums["album_1"].Photos["asset_p1"].URL)
		assert.NotEmpty(t, repo.albums["album_1"].Photos["asset_p2"].URL)
	})
}
