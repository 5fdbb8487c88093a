package listings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// StatusError reports a non-2xx response from the listings API. Callers
// branch on StatusCode to decide between cooldown, credential failure
// and missing collections.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("listings api status %d: %s", e.StatusCode, e.Body)
}

// Listing is one order returned by the marketplace listings API.
type Listing struct {
	OrderHash    string          `json:"order_hash"`
	Chain        string          `json:"chain"`
	ProtocolData json.RawMessage `json:"protocol_data"`
	Price        json.RawMessage `json:"price"`
}

// Page is one page of best listings plus the continuation cursor. An
// empty Next means the collection is exhausted.
type Page struct {
	Listings []Listing `json:"listings"`
	Next     string    `json:"next"`
}

const defaultPageLimit = 100

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger.With("component", "listings-client"),
	}
}

// GetBestListings fetches one page of best listings for a collection
// slug. Pass the cursor from the previous Page to continue, or empty to
// start from the top.
func (c *Client) GetBestListings(ctx context.Context, slug, cursor string) (*Page, error) {
	endpoint := fmt.Sprintf("%s/listings/collection/%s/best", c.baseURL, url.PathEscape(slug))

	q := url.Values{}
	q.Set("limit", strconv.Itoa(defaultPageLimit))
	if cursor != "" {
		q.Set("next", cursor)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	var page Page
	if err := json.Unmarshal(respBody, &page); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &page, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
