// Package emby implements the catalog client for an Emby media
// server: the library views and the recently-added items per view.
// Every call re-fetches from the server; results are snapshots, not a
// cache.
package emby

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/hausmedia/embylatest/internal/config"
	"github.com/hausmedia/embylatest/internal/fetch"
)

// latestFields is the field list requested for recently added items.
const latestFields = "CommunityRating,Studios,PremiereDate,Genres,ChildCount,ProductionYear,DateCreated"

// Client queries the Emby HTTP API on behalf of one user.
type Client struct {
	baseURL       string
	host          string
	apiKey        string
	userID        string
	maxItems      int
	groupEpisodes bool
	fetcher       *fetch.Fetcher
	logger        *slog.Logger
}

// NewClient creates a new Emby catalog client. A nil logger falls back
// to slog.Default().
func NewClient(cfg config.Config, f *fetch.Fetcher, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if f == nil {
		f = fetch.New(logger)
	}
	return &Client{
		baseURL:       cfg.BaseURL(),
		host:          cfg.Server.Host,
		apiKey:        cfg.Server.APIKey,
		userID:        cfg.Server.UserID,
		maxItems:      cfg.Server.MaxItems,
		groupEpisodes: cfg.Server.GroupEpisodes,
		fetcher:       f,
		logger:        logger,
	}
}

// GetViewCategories returns the user's library views in server order.
func (c *Client) GetViewCategories(ctx context.Context) ([]Category, error) {
	query := url.Values{}
	query.Set("api_key", c.apiKey)

	reqURL := fmt.Sprintf("%s/Users/%s/Views?%s", c.baseURL, c.userID, query.Encode())

	status, body, err := c.fetcher.Get(ctx, reqURL)
	if err != nil {
		c.logger.Warn("host is not available", "host", c.host, "error", err)
		return nil, c.unreachable(err)
	}
	if status != http.StatusOK {
		c.logger.Warn("could not reach url", "url", reqURL, "status", status)
		return nil, c.unreachable(fmt.Errorf("status %d", status))
	}

	var resp ViewsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	return resp.Items, nil
}

// GetLatestItems returns the most recently added items of one view
// category, most recent first, at most MaxItems long.
func (c *Client) GetLatestItems(ctx context.Context, categoryID string) ([]MediaItem, error) {
	query := url.Values{}
	query.Set("Limit", strconv.Itoa(c.maxItems))
	query.Set("Fields", latestFields)
	query.Set("ParentId", categoryID)
	query.Set("api_key", c.apiKey)
	if !c.groupEpisodes {
		query.Set("GroupItems", "False")
	}

	reqURL := fmt.Sprintf("%s/Users/%s/Items/Latest?%s", c.baseURL, c.userID, query.Encode())

	status, body, err := c.fetcher.Get(ctx, reqURL)
	if err != nil {
		c.logger.Warn("host is not available", "host", c.host, "error", err)
		return nil, c.unreachable(err)
	}
	if status != http.StatusOK {
		c.logger.Warn("could not reach url", "url", reqURL, "status", status)
		return nil, c.unreachable(fmt.Errorf("status %d", status))
	}

	// /Items/Latest answers with a bare array, not an Items envelope.
	var items []MediaItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	if len(items) > c.maxItems {
		items = items[:c.maxItems]
	}
	return items, nil
}

func (c *Client) unreachable(cause error) error {
	return fmt.Errorf("%s cannot be reached: %w (%v)", c.host, ErrServerUnreachable, cause)
}
