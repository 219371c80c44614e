package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type contextKey string

// IdentityContextKey holds the verified identity UID in request context.
const IdentityContextKey contextKey = "identity"

// GetIdentityFromContext retrieves the verified identity UID, or "" when the
// request was not authenticated.
func GetIdentityFromContext(ctx context.Context) string {
	if uid, ok := ctx.Value(IdentityContextKey).(string); ok {
		return uid
	}
	return ""
}

// IdentityVerifier validates an identity bearer token and returns its UID.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (string, error)
}

// FirebaseVerifier implements IdentityVerifier with the Firebase Admin SDK.
type FirebaseVerifier struct {
	auth *firebaseauth.Client
}

// NewFirebaseVerifier creates a FirebaseVerifier.
func NewFirebaseVerifier(auth *firebaseauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{auth: auth}
}

// Verify checks the ID token's signature and expiry.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (string, error) {
	token, err := v.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", err
	}
	return token.UID, nil
}

// RequireIdentity creates middleware that rejects requests without a valid
// identity bearer token before any mutation can happen.
func RequireIdentity(verifier IdentityVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				unauthenticated(w, "No authentication token provided.")
				return
			}

			idToken := strings.TrimPrefix(authHeader, "Bearer ")
			uid, err := verifier.Verify(r.Context(), idToken)
			if err != nil {
				unauthenticated(w, "Invalid or expired authentication token.")
				return
			}

			ctx := context.WithValue(r.Context(), IdentityContextKey, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthenticated(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"isAuthenticated": false,
		"message":         message,
	})
}
