package tokenpool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/poemonsense/antigravity-gateway/internal/config"
	"github.com/poemonsense/antigravity-gateway/internal/store"
)

type fakeStore struct {
	accounts []*store.Account
	saved    []string
}

func (f *fakeStore) List(ctx context.Context) ([]*store.Account, error) {
	return f.accounts, nil
}

func (f *fakeStore) Save(ctx context.Context, acc *store.Account) error {
	f.saved = append(f.saved, acc.ID)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	return nil
}

type fakeRefresher struct {
	calls int
	token *store.Token
	err   error
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*store.Token, error) {
	f.calls++
	return f.token, f.err
}

func freshToken() *store.Token {
	return &store.Token{
		AccessToken:     "at",
		RefreshToken:    "rt",
		ExpiryTimestamp: time.Now().Add(time.Hour).Unix(),
	}
}

func account(id string) *store.Account {
	return &store.Account{ID: id, Email: id + "@example.com", Token: freshToken(), IsActive: true}
}

func newTestPool(t *testing.T, ids ...string) (*Pool, *fakeStore, *fakeRefresher) {
	t.Helper()
	fs := &fakeStore{}
	for _, id := range ids {
		fs.accounts = append(fs.accounts, account(id))
	}
	fr := &fakeRefresher{}
	p := New(fs, fr)
	require.NoError(t, p.Reload(context.Background()))
	return p, fs, fr
}

func TestSelectNextRoundRobin(t *testing.T) {
	p, _, _ := newTestPool(t, "a", "b")
	ctx := context.Background()

	require.Equal(t, "a", p.SelectNext(ctx, SelectOptions{}).ID)
	require.Equal(t, "b", p.SelectNext(ctx, SelectOptions{}).ID)
	require.Equal(t, "a", p.SelectNext(ctx, SelectOptions{}).ID)
}

func TestSelectNextStickySession(t *testing.T) {
	p, _, _ := newTestPool(t, "a", "b", "c")
	ctx := context.Background()

	first := p.SelectNext(ctx, SelectOptions{SessionKey: "anthropic:s1"})
	require.NotNil(t, first)
	for i := 0; i < 5; i++ {
		got := p.SelectNext(ctx, SelectOptions{SessionKey: "anthropic:s1"})
		require.Equal(t, first.ID, got.ID)
	}

	// A different session advances the rotation independently.
	other := p.SelectNext(ctx, SelectOptions{SessionKey: "anthropic:s2"})
	require.NotEqual(t, first.ID, other.ID)
}

func TestSessionBindingExpires(t *testing.T) {
	p, _, _ := newTestPool(t, "a", "b")
	ctx := context.Background()

	now := time.Now().UnixMilli()
	p.now = func() int64 { return now }

	first := p.SelectNext(ctx, SelectOptions{SessionKey: "anthropic:s1"})
	require.Equal(t, "a", first.ID)
	require.Equal(t, "a", p.SelectNext(ctx, SelectOptions{SessionKey: "anthropic:s1"}).ID)

	// Past the binding TTL the session follows the rotation again.
	now += config.SessionBindingTTLMs + 1
	require.Equal(t, "b", p.SelectNext(ctx, SelectOptions{SessionKey: "anthropic:s1"}).ID)
}

func TestSelectNextExclusions(t *testing.T) {
	p, _, _ := newTestPool(t, "a", "b")
	ctx := context.Background()

	got := p.SelectNext(ctx, SelectOptions{ExcludeAccountIDs: []string{"a"}})
	require.Equal(t, "b", got.ID)

	// Everything excluded falls back to the full pool rather than failing.
	got = p.SelectNext(ctx, SelectOptions{ExcludeAccountIDs: []string{"a", "b"}})
	require.NotNil(t, got)
}

func TestSelectNextCooldown(t *testing.T) {
	p, _, _ := newTestPool(t, "a", "b")
	ctx := context.Background()

	p.MarkRateLimited("a")
	require.Equal(t, "b", p.SelectNext(ctx, SelectOptions{}).ID)
	require.Equal(t, "b", p.SelectNext(ctx, SelectOptions{}).ID)

	// With every account cooling down the pool serves anyway.
	p.MarkForbidden("b")
	require.NotNil(t, p.SelectNext(ctx, SelectOptions{}))
}

func TestMarkByEmail(t *testing.T) {
	p, _, _ := newTestPool(t, "a", "b")
	ctx := context.Background()

	p.MarkForbidden("a@example.com")
	require.Equal(t, "b", p.SelectNext(ctx, SelectOptions{}).ID)
}

func TestFinalizeRefreshesExpiringToken(t *testing.T) {
	fs := &fakeStore{}
	acc := account("a")
	acc.Token.ProjectID = "my-project"
	acc.Token.ExpiryTimestamp = time.Now().Add(time.Minute).Unix() // inside refresh window
	fs.accounts = []*store.Account{acc}

	fr := &fakeRefresher{token: &store.Token{
		AccessToken:     "new-at",
		RefreshToken:    "rt",
		ExpiryTimestamp: time.Now().Add(time.Hour).Unix(),
	}}
	p := New(fs, fr)
	require.NoError(t, p.Reload(context.Background()))

	got := p.SelectNext(context.Background(), SelectOptions{})
	require.Equal(t, 1, fr.calls)
	require.Equal(t, "new-at", got.Token.AccessToken)
	// Project id survives the token swap, and the refreshed token persists.
	require.Equal(t, "my-project", got.Token.ProjectID)
	require.Equal(t, []string{"a"}, fs.saved)
}

func TestFinalizeSanitizesSyntheticProject(t *testing.T) {
	fs := &fakeStore{}
	acc := account("a")
	acc.Token.ProjectID = "cloud-code-12345"
	fs.accounts = []*store.Account{acc}

	p := New(fs, &fakeRefresher{})
	require.NoError(t, p.Reload(context.Background()))

	got := p.SelectNext(context.Background(), SelectOptions{})
	require.Equal(t, "", got.Token.ProjectID)
}

func TestSelectNextEmptyPool(t *testing.T) {
	p := New(&fakeStore{}, &fakeRefresher{})
	require.Nil(t, p.SelectNext(context.Background(), SelectOptions{}))
}
