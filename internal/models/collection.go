package models

import "strings"

// Collection is one entry in the photo_metadata/collections document, keyed
// by its user-chosen name. Album holds the attached album's key ("" when
// detached); Thumbnail must reference a key in the attached album's photos.
type Collection struct {
	Album        string `firestore:"album" json:"album"`
	Selected     bool   `firestore:"selected" json:"selected"`
	Thumbnail    string `firestore:"thumbnail" json:"thumbnail"`
	ThumbnailURL string `firestore:"thumbnailUrl" json:"thumbnailUrl"`
	Index        int    `firestore:"index" json:"index"`
	NumPhotos    int    `firestore:"num_photos" json:"numPhotos"`
}

// NewCollection creates a detached, hidden collection at the given display
// position.
func NewCollection(index int) *Collection {
	return &Collection{
		Album: "",
		Index: index,
	}
}

// ValidCollectionName reports whether a name can be used as a document field
// key. Dots would split into nested field paths on partial updates.
func ValidCollectionName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && !strings.Contains(name, ".")
}

// CollectionError is a domain error for collection operations.
type CollectionError struct {
	Message string
}

func (e CollectionError) Error() string {
	return e.Message
}

var (
	ErrCollectionNotFound    = CollectionError{"collection not found"}
	ErrCollectionExists      = CollectionError{"collection already exists"}
	ErrCollectionInvalidName = CollectionError{"invalid collection name"}
	ErrCollectionNoAlbum     = CollectionError{"collection has no attached album"}
	ErrThumbnailNotInAlbum   = CollectionError{"thumbnail is not a photo of the attached album"}
	ErrReorderUnknownEntry   = CollectionError{"reorder entry does not match a stored key"}
)
