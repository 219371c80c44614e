package models

// ReorderEntry is one element of a reorder request body. Collections are
// addressed by name, photos by their asset key in the href field.
type ReorderEntry struct {
	Name  string `json:"name,omitempty"`
	Href  string `json:"href,omitempty"`
	Index int    `json:"index"`
}

// AlbumSummary is the admin-facing view of an album.
type AlbumSummary struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	Collection string `json:"collection"`
	NumPhotos  int    `json:"numPhotos"`
}

// CollectionSummary is the public/admin view of a collection.
type CollectionSummary struct {
	Name         string `json:"name"`
	Album        string `json:"album"`
	Selected     bool   `json:"selected"`
	Thumbnail    string `json:"thumbnail"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Index        int    `json:"index"`
	NumPhotos    int    `json:"numPhotos"`
}

// PhotoView is one photo in a thumbnails/gallery response, ordered by Index.
type PhotoView struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Index     int    `json:"index"`
}

// AuthStatusResponse is returned by GET /get-auth.
type AuthStatusResponse struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Message         string `json:"message"`
}
