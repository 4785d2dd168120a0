package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	acc := &Account{
		ID:       "acc-1",
		Email:    "a@example.com",
		IsActive: true,
		Token:    &Token{AccessToken: "at", RefreshToken: "rt"},
	}
	require.NoError(t, fs.Save(ctx, acc))

	got, err := fs.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "acc-1", got[0].ID)
	require.Equal(t, "at", got[0].Token.AccessToken)

	require.NoError(t, fs.Delete(ctx, "acc-1"))
	got, err = fs.List(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	// Deleting a missing account is not an error.
	require.NoError(t, fs.Delete(ctx, "acc-1"))
}

func TestFileStoreListSkipsDisabledAndBroken(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.Save(ctx, &Account{
		ID: "enabled", IsActive: true, Token: &Token{AccessToken: "at"},
	}))
	require.NoError(t, fs.Save(ctx, &Account{
		ID: "disabled", IsActive: false, Token: &Token{AccessToken: "at"},
	}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o600))

	got, err := fs.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "enabled", got[0].ID)
}

func TestSanitizeProjectID(t *testing.T) {
	acc := &Account{Token: &Token{ProjectID: "cloud-code-98765"}}
	require.True(t, acc.SanitizeProjectID())
	require.Empty(t, acc.Token.ProjectID)

	acc = &Account{Token: &Token{ProjectID: "CLOUD-CODE-1"}}
	require.True(t, acc.SanitizeProjectID())

	acc = &Account{Token: &Token{ProjectID: "my-real-project"}}
	require.False(t, acc.SanitizeProjectID())
	require.Equal(t, "my-real-project", acc.Token.ProjectID)

	require.False(t, (&Account{}).SanitizeProjectID())
}
