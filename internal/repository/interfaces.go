package repository

import (
	"context"

	"github.com/lightfolio/server/internal/models"
)

// FieldUpdate is one field-path mutation against a metadata document. Path
// segments are raw field names, so keys containing special characters stay
// safe. Delete removes the field instead of setting it.
type FieldUpdate struct {
	Path   []string
	Value  any
	Delete bool
}

// Set builds a FieldUpdate writing value at path.
func Set(value any, path ...string) FieldUpdate {
	return FieldUpdate{Path: path, Value: value}
}

// Remove builds a FieldUpdate deleting the field at path.
func Remove(path ...string) FieldUpdate {
	return FieldUpdate{Path: path, Delete: true}
}

// Mutators receive the current document snapshot and return the field
// updates to apply. They run inside a store transaction and may be retried,
// so they must be side-effect free. Returning no updates skips the write.
type (
	AlbumMutator      func(albums map[string]*models.Album) ([]FieldUpdate, error)
	CollectionMutator func(collections map[string]*models.Collection) ([]FieldUpdate, error)
	MetadataMutator   func(albums map[string]*models.Album, collections map[string]*models.Collection) (albumUpdates, collectionUpdates []FieldUpdate, err error)
)

// MetadataRepo persists the albums, collections and catalog documents.
type MetadataRepo interface {
	GetCatalog(ctx context.Context) (*models.Catalog, error)
	SetCatalog(ctx context.Context, catalog *models.Catalog) error
	GetAlbums(ctx context.Context) (map[string]*models.Album, error)
	GetCollections(ctx context.Context) (map[string]*models.Collection, error)
	MutateAlbums(ctx context.Context, mutate AlbumMutator) error
	MutateCollections(ctx context.Context, mutate CollectionMutator) error
	// Mutate applies updates to both documents in one transaction, for
	// operations that must keep them consistent with each other.
	Mutate(ctx context.Context, mutate MetadataMutator) error
}

// TokenRepo persists the singleton host session. GetSession returns
// (nil, nil) when no session has been created yet.
type TokenRepo interface {
	GetSession(ctx context.Context) (*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error
}
