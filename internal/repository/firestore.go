package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lightfolio/server/internal/models"
)

const (
	metadataCollection = "photo_metadata"
	albumsDoc          = "albums"
	collectionsDoc     = "collections"
	catalogDoc         = "catalog"

	tokensCollection = "tokens"
	sessionDoc       = "session"
)

// FirestoreMetadataRepo implements MetadataRepo on Firestore. All
// read-modify-write sequences run inside RunTransaction, so concurrent
// admin actions serialize instead of silently losing writes.
type FirestoreMetadataRepo struct {
	client *firestore.Client
}

// NewFirestoreMetadataRepo creates a FirestoreMetadataRepo.
func NewFirestoreMetadataRepo(client *firestore.Client) *FirestoreMetadataRepo {
	return &FirestoreMetadataRepo{client: client}
}

// EnsureDocuments creates the albums and collections documents when they do
// not exist yet, so later field-path updates always have a target.
func (r *FirestoreMetadataRepo) EnsureDocuments(ctx context.Context) error {
	for _, doc := range []string{albumsDoc, collectionsDoc} {
		ref := r.client.Collection(metadataCollection).Doc(doc)
		_, err := ref.Get(ctx)
		if status.Code(err) == codes.NotFound {
			if _, err := ref.Set(ctx, map[string]any{}); err != nil {
				return fmt.Errorf("failed to bootstrap %s document: %w", doc, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to check %s document: %w", doc, err)
		}
	}
	return nil
}

func (r *FirestoreMetadataRepo) albumsRef() *firestore.DocumentRef {
	return r.client.Collection(metadataCollection).Doc(albumsDoc)
}

func (r *FirestoreMetadataRepo) collectionsRef() *firestore.DocumentRef {
	return r.client.Collection(metadataCollection).Doc(collectionsDoc)
}

// GetCatalog returns the stored catalog, or (nil, nil) when none exists.
func (r *FirestoreMetadataRepo) GetCatalog(ctx context.Context) (*models.Catalog, error) {
	snap, err := r.client.Collection(metadataCollection).Doc(catalogDoc).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}
	var catalog models.Catalog
	if err := snap.DataTo(&catalog); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return &catalog, nil
}

// SetCatalog stores the catalog document.
func (r *FirestoreMetadataRepo) SetCatalog(ctx context.Context, catalog *models.Catalog) error {
	_, err := r.client.Collection(metadataCollection).Doc(catalogDoc).Set(ctx, catalog)
	if err != nil {
		return fmt.Errorf("failed to store catalog: %w", err)
	}
	return nil
}

// GetAlbums returns a snapshot of the albums document.
func (r *FirestoreMetadataRepo) GetAlbums(ctx context.Context) (map[string]*models.Album, error) {
	return decodeDoc[models.Album](ctx, r.albumsRef(), "albums")
}

// GetCollections returns a snapshot of the collections document.
func (r *FirestoreMetadataRepo) GetCollections(ctx context.Context) (map[string]*models.Collection, error) {
	return decodeDoc[models.Collection](ctx, r.collectionsRef(), "collections")
}

// MutateAlbums runs mutate against a transactional snapshot of the albums
// document and applies the returned updates in the same transaction.
func (r *FirestoreMetadataRepo) MutateAlbums(ctx context.Context, mutate AlbumMutator) error {
	return r.Mutate(ctx, func(albums map[string]*models.Album, _ map[string]*models.Collection) ([]FieldUpdate, []FieldUpdate, error) {
		updates, err := mutate(albums)
		return updates, nil, err
	})
}

// MutateCollections runs mutate against a transactional snapshot of the
// collections document.
func (r *FirestoreMetadataRepo) MutateCollections(ctx context.Context, mutate CollectionMutator) error {
	return r.Mutate(ctx, func(_ map[string]*models.Album, collections map[string]*models.Collection) ([]FieldUpdate, []FieldUpdate, error) {
		updates, err := mutate(collections)
		return nil, updates, err
	})
}

// Mutate reads both documents in one transaction, calls mutate, and applies
// the returned field-path updates. Empty update sets write nothing.
func (r *FirestoreMetadataRepo) Mutate(ctx context.Context, mutate MetadataMutator) error {
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		albums, err := decodeTxDoc[models.Album](tx, r.albumsRef(), "albums")
		if err != nil {
			return err
		}
		collections, err := decodeTxDoc[models.Collection](tx, r.collectionsRef(), "collections")
		if err != nil {
			return err
		}

		albumUpdates, collectionUpdates, err := mutate(albums, collections)
		if err != nil {
			return err
		}

		if len(albumUpdates) > 0 {
			if err := tx.Update(r.albumsRef(), toFirestoreUpdates(albumUpdates)); err != nil {
				return fmt.Errorf("failed to update albums: %w", err)
			}
		}
		if len(collectionUpdates) > 0 {
			if err := tx.Update(r.collectionsRef(), toFirestoreUpdates(collectionUpdates)); err != nil {
				return fmt.Errorf("failed to update collections: %w", err)
			}
		}
		return nil
	})
}

func toFirestoreUpdates(updates []FieldUpdate) []firestore.Update {
	out := make([]firestore.Update, len(updates))
	for i, u := range updates {
		fu := firestore.Update{FieldPath: firestore.FieldPath(u.Path), Value: u.Value}
		if u.Delete {
			fu.Value = firestore.Delete
		}
		out[i] = fu
	}
	return out
}

func decodeDoc[T any](ctx context.Context, ref *firestore.DocumentRef, name string) (map[string]*T, error) {
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return map[string]*T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", name, err)
	}
	return decodeSnap[T](snap, name)
}

func decodeTxDoc[T any](tx *firestore.Transaction, ref *firestore.DocumentRef, name string) (map[string]*T, error) {
	snap, err := tx.Get(ref)
	if status.Code(err) == codes.NotFound {
		return map[string]*T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", name, err)
	}
	return decodeSnap[T](snap, name)
}

func decodeSnap[T any](snap *firestore.DocumentSnapshot, name string) (map[string]*T, error) {
	out := map[string]*T{}
	if err := snap.DataTo(&out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return out, nil
}

// FirestoreTokenRepo implements TokenRepo on Firestore.
type FirestoreTokenRepo struct {
	client *firestore.Client
}

// NewFirestoreTokenRepo creates a FirestoreTokenRepo.
func NewFirestoreTokenRepo(client *firestore.Client) *FirestoreTokenRepo {
	return &FirestoreTokenRepo{client: client}
}

// GetSession returns the stored session pair, or (nil, nil) when the
// authorization flow has not run yet.
func (r *FirestoreTokenRepo) GetSession(ctx context.Context) (*models.Session, error) {
	snap, err := r.client.Collection(tokensCollection).Doc(sessionDoc).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var session models.Session
	if err := snap.DataTo(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// SaveSession stores the session pair, replacing any previous one.
func (r *FirestoreTokenRepo) SaveSession(ctx context.Context, session *models.Session) error {
	_, err := r.client.Collection(tokensCollection).Doc(sessionDoc).Set(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}
