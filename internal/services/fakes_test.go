package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lightfolio/server/internal/lightroom"
	"github.com/lightfolio/server/internal/models"
	"github.com/lightfolio/server/internal/repository"
)

// fakeMetadataRepo is an in-memory MetadataRepo. Mutators receive deep
// copies of the stored maps and their field updates are applied back to the
// authoritative state, mirroring the snapshot-then-update shape of the real
// store. Update counters let tests assert idempotence.
type fakeMetadataRepo struct {
	catalog     *models.Catalog
	albums      map[string]*models.Album
	collections map[string]*models.Collection

	albumUpdates      int
	collectionUpdates int
}

func newFakeMetadataRepo() *fakeMetadataRepo {
	return &fakeMetadataRepo{
		albums:      map[string]*models.Album{},
		collections: map[string]*models.Collection{},
	}
}

func (f *fakeMetadataRepo) GetCatalog(ctx context.Context) (*models.Catalog, error) {
	if f.catalog == nil {
		return nil, nil
	}
	c := *f.catalog
	return &c, nil
}

func (f *fakeMetadataRepo) SetCatalog(ctx context.Context, catalog *models.Catalog) error {
	c := *catalog
	f.catalog = &c
	return nil
}

func (f *fakeMetadataRepo) GetAlbums(ctx context.Context) (map[string]*models.Album, error) {
	return copyAlbums(f.albums), nil
}

func (f *fakeMetadataRepo) GetCollections(ctx context.Context) (map[string]*models.Collection, error) {
	return copyCollections(f.collections), nil
}

func (f *fakeMetadataRepo) MutateAlbums(ctx context.Context, mutate repository.AlbumMutator) error {
	updates, err := mutate(copyAlbums(f.albums))
	if err != nil {
		return err
	}
	for _, u := range updates {
		if err := applyAlbumUpdate(f.albums, u); err != nil {
			return err
		}
	}
	f.albumUpdates += len(updates)
	return nil
}

func (f *fakeMetadataRepo) MutateCollections(ctx context.Context, mutate repository.CollectionMutator) error {
	updates, err := mutate(copyCollections(f.collections))
	if err != nil {
		return err
	}
	for _, u := range updates {
		if err := applyCollectionUpdate(f.collections, u); err != nil {
			return err
		}
	}
	f.collectionUpdates += len(updates)
	return nil
}

func (f *fakeMetadataRepo) Mutate(ctx context.Context, mutate repository.MetadataMutator) error {
	albumUpdates, collectionUpdates, err := mutate(copyAlbums(f.albums), copyCollections(f.collections))
	if err != nil {
		return err
	}
	for _, u := range albumUpdates {
		if err := applyAlbumUpdate(f.albums, u); err != nil {
			return err
		}
	}
	for _, u := range collectionUpdates {
		if err := applyCollectionUpdate(f.collections, u); err != nil {
			return err
		}
	}
	f.albumUpdates += len(albumUpdates)
	f.collectionUpdates += len(collectionUpdates)
	return nil
}

func copyAlbums(albums map[string]*models.Album) map[string]*models.Album {
	out := make(map[string]*models.Album, len(albums))
	for key, a := range albums {
		cp := *a
		cp.Photos = make(map[string]*models.Photo, len(a.Photos))
		for pk, p := range a.Photos {
			pc := *p
			cp.Photos[pk] = &pc
		}
		out[key] = &cp
	}
	return out
}

func copyCollections(collections map[string]*models.Collection) map[string]*models.Collection {
	out := make(map[string]*models.Collection, len(collections))
	for name, c := range collections {
		cp := *c
		out[name] = &cp
	}
	return out
}

func applyAlbumUpdate(albums map[string]*models.Album, u repository.FieldUpdate) error {
	switch len(u.Path) {
	case 1:
		if u.Delete {
			delete(albums, u.Path[0])
			return nil
		}
		album, ok := u.Value.(*models.Album)
		if !ok {
			return fmt.Errorf("unexpected album value %T", u.Value)
		}
		albums[u.Path[0]] = copyAlbums(map[string]*models.Album{u.Path[0]: album})[u.Path[0]]
	case 2:
		album, ok := albums[u.Path[0]]
		if !ok {
			return fmt.Errorf("album %s not found", u.Path[0])
		}
		switch u.Path[1] {
		case "name":
			album.Name = u.Value.(string)
		case "collection":
			album.Collection = u.Value.(string)
		case "selected":
			album.Selected = u.Value.(int)
		default:
			return fmt.Errorf("unexpected album field %q", u.Path[1])
		}
	case 3:
		album, ok := albums[u.Path[0]]
		if !ok || u.Path[1] != "photos" {
			return fmt.Errorf("unexpected path %v", u.Path)
		}
		if u.Delete {
			delete(album.Photos, u.Path[2])
			return nil
		}
		photo, ok := u.Value.(*models.Photo)
		if !ok {
			return fmt.Errorf("unexpected photo value %T", u.Value)
		}
		pc := *photo
		album.Photos[u.Path[2]] = &pc
	case 4:
		album, ok := albums[u.Path[0]]
		if !ok || u.Path[1] != "photos" {
			return fmt.Errorf("unexpected path %v", u.Path)
		}
		photo, ok := album.Photos[u.Path[2]]
		if !ok {
			return fmt.Errorf("photo %s not found", u.Path[2])
		}
		switch u.Path[3] {
		case "url":
			photo.URL = u.Value.(string)
		case "thumbnail":
			photo.Thumbnail = u.Value.(string)
		case "index":
			photo.Index = u.Value.(int)
		default:
			return fmt.Errorf("unexpected photo field %q", u.Path[3])
		}
	default:
		return fmt.Errorf("unexpected path %v", u.Path)
	}
	return nil
}

func applyCollectionUpdate(collections map[string]*models.Collection, u repository.FieldUpdate) error {
	switch len(u.Path) {
	case 1:
		if u.Delete {
			delete(collections, u.Path[0])
			return nil
		}
		col, ok := u.Value.(*models.Collection)
		if !ok {
			return fmt.Errorf("unexpected collection value %T", u.Value)
		}
		cp := *col
		collections[u.Path[0]] = &cp
	case 2:
		col, ok := collections[u.Path[0]]
		if !ok {
			return fmt.Errorf("collection %s not found", u.Path[0])
		}
		switch u.Path[1] {
		case "album":
			col.Album = u.Value.(string)
		case "selected":
			col.Selected = u.Value.(bool)
		case "thumbnail":
			col.Thumbnail = u.Value.(string)
		case "thumbnailUrl":
			col.ThumbnailURL = u.Value.(string)
		case "index":
			col.Index = u.Value.(int)
		case "num_photos":
			col.NumPhotos = u.Value.(int)
		default:
			return fmt.Errorf("unexpected collection field %q", u.Path[1])
		}
	default:
		return fmt.Errorf("unexpected path %v", u.Path)
	}
	return nil
}

// fakeTokenRepo is an in-memory TokenRepo.
type fakeTokenRepo struct {
	session *models.Session
	saves   int
}

func (f *fakeTokenRepo) GetSession(ctx context.Context) (*models.Session, error) {
	if f.session == nil {
		return nil, nil
	}
	s := *f.session
	return &s, nil
}

func (f *fakeTokenRepo) SaveSession(ctx context.Context, session *models.Session) error {
	s := *session
	f.session = &s
	f.saves++
	return nil
}

// fakeObjectStore is an in-memory ObjectStore with call counters and an
// optional number of Delete failures before success.
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	existsCalls int
	uploadCalls int
	deleteCalls int
	failDeletes int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) Exists(ctx context.Context, object string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	_, ok := f.objects[object]
	return ok, nil
}

func (f *fakeObjectStore) Upload(ctx context.Context, object, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCalls++
	f.objects[object] = data
	return nil
}

func (f *fakeObjectStore) SignedURL(object string) (string, error) {
	return "https://signed.example/" + object, nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, object string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.failDeletes > 0 {
		f.failDeletes--
		return fmt.Errorf("storage unavailable")
	}
	delete(f.objects, object)
	return nil
}

func (f *fakeObjectStore) has(object string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[object]
	return ok
}

// newTestHost spins up an httptest server with the given handler and returns
// a lightroom client pointed at it.
func newTestHost(t *testing.T, handler http.Handler) *lightroom.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return lightroom.NewClient(srv.URL, "test-api-key", srv.Client())
}

// writeGuarded writes a host-style JSON body with the anti-hijacking prefix.
func writeGuarded(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, "while (1) {}\n"+body)
}
