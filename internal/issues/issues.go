package issues

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/civicvoice/civicvoice/client-go/internal/api"
	"github.com/civicvoice/civicvoice/client-go/internal/models"
)

// Issue is a citizen-reported issue as returned by the portal.
type Issue struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Status      string           `json:"status"`
	Location    *models.Location `json:"location,omitempty"`
	ReportedBy  string           `json:"reportedBy,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// ReportRequest carries the fields for a new issue report.
type ReportRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Location    *models.Location `json:"location,omitempty"`
}

// Client is a thin consumer of the portal's issue endpoints. Every call goes
// through the session's authenticated request client, so token attachment and
// the 401 refresh-retry cycle apply uniformly.
type Client struct {
	api *api.Client
}

func NewClient(a *api.Client) *Client { return &Client{api: a} }

// List returns issues visible to the current user, optionally filtered by
// status and category.
func (c *Client) List(ctx context.Context, status, category string) ([]Issue, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if category != "" {
		q.Set("category", category)
	}
	path := "/issues"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []Issue
	if err := c.api.DoJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Report files a new issue and returns the created record.
func (c *Client) Report(ctx context.Context, req ReportRequest) (*Issue, error) {
	var out Issue
	if err := c.api.DoJSON(ctx, http.MethodPost, "/issues", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
