package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/civicvoice/civicvoice/client-go/internal/models"
)

func TestFileStore_TokensRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	// empty store reports absent, not an error
	_, ok, err := s.LoadTokens(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	pair := models.TokenPair{AccessToken: "at-1", RefreshToken: "rt-1"}
	require.NoError(t, s.SaveTokens(ctx, pair))

	got, ok, err := s.LoadTokens(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pair, got)

	// overwrite wins
	require.NoError(t, s.SaveTokens(ctx, models.TokenPair{AccessToken: "at-2", RefreshToken: "rt-2"}))
	got, _, _ = s.LoadTokens(ctx)
	require.Equal(t, "at-2", got.AccessToken)
}

func TestFileStore_UserRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	u := &models.UserIdentity{ID: "u1", FirstName: "Alice", Role: models.Role{Name: models.RoleCitizen}}
	require.NoError(t, s.SaveUser(ctx, u))

	got, ok, err := s.LoadUser(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, u, got)
}

func TestFileStore_Clear(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.SaveTokens(ctx, models.TokenPair{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, s.SaveUser(ctx, &models.UserIdentity{ID: "u1"}))
	require.NoError(t, s.Clear(ctx))

	_, ok, err := s.LoadTokens(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = s.LoadUser(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// clearing twice is fine
	require.NoError(t, s.Clear(ctx))
}

func TestFileStore_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveTokens(context.Background(), models.TokenPair{AccessToken: "a", RefreshToken: "r"}))

	info, err := os.Stat(filepath.Join(dir, "auth_tokens"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_CorruptFileErrors(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth_tokens"), []byte("{not json"), 0o600))

	_, _, err = s.LoadTokens(context.Background())
	require.Error(t, err)
}
