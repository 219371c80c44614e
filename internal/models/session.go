package models

import "time"

// Session is the singleton OAuth pair for the host API, stored under
// tokens/session.
type Session struct {
	AccessToken  string    `firestore:"access_token" json:"-"`
	RefreshToken string    `firestore:"refresh_token" json:"-"`
	Expiration   time.Time `firestore:"expiration" json:"expiration"`
}

// Expired reports whether the access token needs a refresh. A small skew
// keeps a token that expires mid-request from reaching the host.
func (s *Session) Expired(now time.Time) bool {
	return !now.Add(time.Minute).Before(s.Expiration)
}

// SessionError is a domain error for host-session handling.
type SessionError struct {
	Message string
}

func (e SessionError) Error() string {
	return e.Message
}

// ErrNoSession means no Adobe session has been established yet; handlers map
// it to 401.
var ErrNoSession = SessionError{"no host session established"}
