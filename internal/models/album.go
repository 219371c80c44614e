package models

import "strings"

// Key prefixes assigned by the Lightroom host. Album and photo keys are
// stable across syncs, so they double as document field names.
const (
	AlbumKeyPrefix = "album_"
	PhotoKeyPrefix = "asset_"
)

// AlbumKey builds the metadata key for a host album ID.
func AlbumKey(hostID string) string {
	return AlbumKeyPrefix + hostID
}

// PhotoKey builds the metadata key for a host asset ID.
func PhotoKey(hostID string) string {
	return PhotoKeyPrefix + hostID
}

// Album is one entry in the photo_metadata/albums document, keyed by
// AlbumKey. Name tracks the host; Href and Collection are never overwritten
// by sync once set.
type Album struct {
	Name       string            `firestore:"name" json:"name"`
	Href       string            `firestore:"href" json:"href"`
	Collection string            `firestore:"collection" json:"collection"`
	Selected   int               `firestore:"selected" json:"selected"`
	Photos     map[string]*Photo `firestore:"photos" json:"photos"`
}

// Photo is one entry in an album's photos map, keyed by PhotoKey. URL and
// Thumbnail stay empty until the rendition cache fills them in.
type Photo struct {
	Href      string `firestore:"href" json:"href"`
	URL       string `firestore:"url" json:"url"`
	Thumbnail string `firestore:"thumbnail" json:"thumbnail"`
	Index     int    `firestore:"index" json:"index"`
}

// NewAlbum creates an album as first seen from the host: unattached, with an
// empty photo map.
func NewAlbum(name, href string) *Album {
	return &Album{
		Name:       strings.TrimSpace(name),
		Href:       href,
		Collection: "",
		Selected:   0,
		Photos:     map[string]*Photo{},
	}
}

// NextPhotoIndex returns the index to assign to the next appended photo.
// Indexes are monotonic per album; deletions never renumber survivors.
func (a *Album) NextPhotoIndex() int {
	next := 0
	for _, p := range a.Photos {
		if p.Index >= next {
			next = p.Index + 1
		}
	}
	return next
}

// AlbumError is a domain error for album/photo operations.
type AlbumError struct {
	Message string
}

func (e AlbumError) Error() string {
	return e.Message
}

var (
	ErrAlbumNotFound = AlbumError{"album not found"}
	ErrPhotoNotFound = AlbumError{"photo not found in album"}
)
