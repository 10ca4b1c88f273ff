package auth

import (
	"path/filepath"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := OpenSessionStore(filepath.Join(t.TempDir(), "nested", "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionStore_SaveLoadDelete(t *testing.T) {
	s := newTestSessionStore(t)

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoSession)

	saved := Session{Token: "abc", TeamID: "t1", SavedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, s.Save(saved))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, saved.Token, got.Token)
	assert.Equal(t, saved.TeamID, got.TeamID)
	assert.True(t, saved.SavedAt.Equal(got.SavedAt))

	require.NoError(t, s.Delete())
	_, err = s.Load()
	assert.ErrorIs(t, err, ErrNoSession)
	assert.NoError(t, s.Delete())
}

func TestSessionStore_Current(t *testing.T) {
	s := newTestSessionStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, _, err := s.Current(now)
	assert.ErrorIs(t, err, ErrNoSession)

	expired := signToken(t, gojwt.MapClaims{"team_id": "t1", "exp": now.Add(-time.Minute).Unix()})
	require.NoError(t, s.Save(Session{Token: expired, TeamID: "t1"}))
	_, _, err = s.Current(now)
	assert.ErrorIs(t, err, ErrTokenExpired)

	fresh := signToken(t, gojwt.MapClaims{"team_id": "t1", "exp": now.Add(time.Hour).Unix()})
	require.NoError(t, s.Save(Session{Token: fresh, TeamID: "t1"}))
	sess, tok, err := s.Current(now)
	require.NoError(t, err)
	assert.Equal(t, "t1", sess.TeamID)
	assert.Equal(t, "t1", tok.TeamID)
}
