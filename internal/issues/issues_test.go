package issues

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/civicvoice/civicvoice/client-go/internal/api"
	"github.com/civicvoice/civicvoice/client-go/internal/models"
	"github.com/civicvoice/civicvoice/client-go/internal/store"
)

func newClient(t *testing.T, handler http.Handler) (*Client, store.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewClient(&api.Client{BaseURL: srv.URL, Store: st}), st
}

func TestList_FiltersAndDecodes(t *testing.T) {
	var gotQuery string
	c, st := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]Issue{
			{ID: "i1", Title: "Broken streetlight", Category: "INFRASTRUCTURE", Status: "OPEN", CreatedAt: time.Now()},
		})
	}))
	ctx := context.Background()
	require.NoError(t, st.SaveTokens(ctx, models.TokenPair{AccessToken: "tok", RefreshToken: "rt"}))

	got, err := c.List(ctx, "OPEN", "INFRASTRUCTURE")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Broken streetlight", got[0].Title)
	require.Contains(t, gotQuery, "status=OPEN")
	require.Contains(t, gotQuery, "category=INFRASTRUCTURE")
}

func TestReport_PostsAndReturnsCreated(t *testing.T) {
	c, st := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req ReportRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(Issue{ID: "i9", Title: req.Title, Category: req.Category, Status: "OPEN"})
	}))
	ctx := context.Background()
	require.NoError(t, st.SaveTokens(ctx, models.TokenPair{AccessToken: "tok", RefreshToken: "rt"}))

	got, err := c.Report(ctx, ReportRequest{Title: "Blocked drain", Description: "after rains", Category: "SANITATION"})
	require.NoError(t, err)
	require.Equal(t, "i9", got.ID)
	require.Equal(t, "Blocked drain", got.Title)
}

func TestList_SessionGoneSurfacesError(t *testing.T) {
	c, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	_, err := c.List(context.Background(), "", "")
	require.ErrorIs(t, err, api.ErrSessionExpired)
}
