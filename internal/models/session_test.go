package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_Expired(t *testing.T) {
	now := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fresh token is not expired", func(t *testing.T) {
		s := &Session{Expiration: now.Add(time.Hour)}
		assert.False(t, s.Expired(now))
	})

	t.Run("token within the skew window counts as expired", func(t *testing.T) {
		s := &Session{Expiration: now.Add(30 * time.Second)}
		assert.True(t, s.Expired(now))
	})

	t.Run("past expiration is expired", func(t *testing.T) {
		s := &Session{Expiration: now.Add(-time.Hour)}
		assert.True(t, s.Expired(now))
	})
}
