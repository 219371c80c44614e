package models

// Catalog identifies the user's host-side photo catalog. Written once on the
// first successful lookup and cached indefinitely.
type Catalog struct {
	Name string `firestore:"name" json:"name"`
	Href string `firestore:"href" json:"href"`
}
