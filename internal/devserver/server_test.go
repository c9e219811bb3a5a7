package devserver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/civicvoice/civicvoice/client-go/internal/issues"
	"github.com/civicvoice/civicvoice/client-go/internal/models"
	"github.com/civicvoice/civicvoice/client-go/internal/session"
	"github.com/civicvoice/civicvoice/client-go/internal/store"
)

func newPortal(t *testing.T) (*Server, *session.Manager, store.Store) {
	t.Helper()
	srv := New(Config{JWTSecret: "devserver-test-secret-32-bytes-xx"})
	ts := httptest.NewServer(srv.Engine())
	t.Cleanup(ts.Close)

	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	m := session.NewManager(session.Config{BaseURL: ts.URL, Store: st})
	t.Cleanup(func() { m.Logout(context.Background()) })
	return srv, m, st
}

func seedCitizen(t *testing.T, srv *Server) string {
	t.Helper()
	id, err := srv.Seed(models.UserIdentity{
		FirstName: "Alice",
		LastName:  "Uwase",
		Email:     "alice@example.com",
		Role:      models.Role{Name: models.RoleCitizen},
	}, "pass-word-1")
	require.NoError(t, err)
	return id
}

func TestLoginAgainstDevserver(t *testing.T) {
	srv, m, _ := newPortal(t)
	seedCitizen(t, srv)
	ctx := context.Background()

	require.False(t, m.Login(ctx, "alice@example.com", "wrong"))
	require.True(t, m.Login(ctx, "alice@example.com", "pass-word-1"))
	require.True(t, m.IsAuthenticated())
	require.Equal(t, "Alice Uwase", m.CurrentUser().DisplayName())
}

func TestRegisterAgainstDevserver(t *testing.T) {
	_, m, _ := newPortal(t)
	ctx := context.Background()

	ok := m.Register(ctx, session.RegisterRequest{
		FirstName:   "Bosco",
		LastName:    "Niyonzima",
		PhoneNumber: "+250788111222",
		Password:    "pass-word-2",
	})
	require.True(t, ok)
	require.True(t, m.IsAuthenticated())
	require.True(t, m.CurrentUser().Role.Is(models.RoleCitizen))
}

func TestRefreshRotatesToken(t *testing.T) {
	srv, m, st := newPortal(t)
	seedCitizen(t, srv)
	ctx := context.Background()

	require.True(t, m.Login(ctx, "alice@example.com", "pass-word-1"))
	before, _, err := st.LoadTokens(ctx)
	require.NoError(t, err)

	require.True(t, m.Refresh(ctx))
	after, ok, err := st.LoadTokens(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, before.RefreshToken, after.RefreshToken)

	// the rotated-out token is rejected if replayed
	srv.mu.Lock()
	_, replayable := srv.refresh[before.RefreshToken]
	srv.mu.Unlock()
	require.False(t, replayable)
}

// A stale access token on an authenticated call recovers transparently
// through the one-shot refresh-and-retry cycle.
func TestStaleAccessTokenRecovers(t *testing.T) {
	srv, m, st := newPortal(t)
	seedCitizen(t, srv)
	ctx := context.Background()

	require.True(t, m.Login(ctx, "alice@example.com", "pass-word-1"))
	pair, _, err := st.LoadTokens(ctx)
	require.NoError(t, err)
	pair.AccessToken = "garbage"
	require.NoError(t, st.SaveTokens(ctx, pair))

	ic := issues.NewClient(m.API())
	created, err := ic.Report(ctx, issues.ReportRequest{Title: "Pothole on KG 11", Category: "ROADS"})
	require.NoError(t, err)
	require.Equal(t, "OPEN", created.Status)
	require.True(t, m.IsAuthenticated())
}

func TestIssueListAndFilter(t *testing.T) {
	srv, m, _ := newPortal(t)
	seedCitizen(t, srv)
	ctx := context.Background()
	require.True(t, m.Login(ctx, "alice@example.com", "pass-word-1"))

	ic := issues.NewClient(m.API())
	_, err := ic.Report(ctx, issues.ReportRequest{Title: "Pothole", Category: "ROADS"})
	require.NoError(t, err)
	_, err = ic.Report(ctx, issues.ReportRequest{Title: "Blocked drain", Category: "SANITATION"})
	require.NoError(t, err)

	all, err := ic.List(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	roads, err := ic.List(ctx, "", "ROADS")
	require.NoError(t, err)
	require.Len(t, roads, 1)
	require.Equal(t, "Pothole", roads[0].Title)
}

func TestCompleteProfileEndToEnd(t *testing.T) {
	srv, m, _ := newPortal(t)
	seedCitizen(t, srv)
	ctx := context.Background()
	require.True(t, m.Login(ctx, "alice@example.com", "pass-word-1"))

	ok := m.CompleteProfile(ctx, session.ProfileData{
		Location: &models.Location{District: "Nyarugenge", Sector: "Kimisagara"},
	})
	require.True(t, ok)
	require.Equal(t, "Nyarugenge", m.CurrentUser().Location.District)
}

func TestRestoreAcrossProcessRestart(t *testing.T) {
	srv, m, st := newPortal(t)
	seedCitizen(t, srv)
	ctx := context.Background()
	require.True(t, m.Login(ctx, "alice@example.com", "pass-word-1"))
	m2 := session.NewManager(session.Config{BaseURL: "", Store: st, RestoreTimeout: 5 * time.Second})
	t.Cleanup(func() { m2.Logout(context.Background()) })

	// same store, new manager: the fresh access token restores without network
	require.Equal(t, session.Authenticated, m2.Restore(ctx))
	require.Equal(t, "Alice Uwase", m2.CurrentUser().DisplayName())
}
