// Package zoom is the client for the Zoom cloud recording API: it obtains
// server-to-server OAuth tokens, lists recordings over paginated, chunked
// date windows, streams media downloads, and deletes meeting recordings.
package zoom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/daterange"
	"github.com/liquorice-head/zoom-recordings-to-gdrive/internal/models"
)

// ErrUnauthorized reports an expired or invalid bearer token. Callers refresh
// the token and retry exactly once; a second failure is a normal error.
var ErrUnauthorized = errors.New("zoom: unauthorized")

const (
	defaultBaseURL  = "https://api.zoom.us/v2"
	defaultTokenURL = "https://zoom.us/oauth/token"

	// maxPageSize is the largest page_size the recordings endpoint accepts.
	maxPageSize = 300

	// dateLayout is the format the from/to query parameters expect.
	dateLayout = "2006-01-02"
)

// Config holds the server-to-server OAuth app credentials and endpoint
// overrides (overrides are used by tests).
type Config struct {
	ClientID     string
	ClientSecret string
	AccountID    string

	BaseURL  string
	TokenURL string

	// Timeout bounds every individual HTTP call. The zero value gets a
	// generous default suited to multi-gigabyte recording downloads.
	Timeout time.Duration
}

// Client talks to the Zoom REST API. It is safe for sequential reuse; the
// archiver never calls it concurrently.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient validates the credentials and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.AccountID == "" {
		return nil, fmt.Errorf("zoom client id, secret and account id must all be set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// AccessToken performs the account_credentials grant and returns a fresh
// bearer token.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type": {"account_credentials"},
		"account_id": {c.cfg.AccountID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned an empty access token")
	}
	return tok.AccessToken, nil
}

// Page is one page of the account recordings listing.
type Page struct {
	Meetings      []models.Recording `json:"meetings"`
	NextPageToken string             `json:"next_page_token"`
}

// FetchPage retrieves a single page of recordings for [from, to]. A non-empty
// cursor continues a previous listing.
func (c *Client) FetchPage(ctx context.Context, token string, from, to time.Time, cursor string) (Page, error) {
	q := url.Values{
		"from":      {from.Format(dateLayout)},
		"to":        {to.Format(dateLayout)},
		"page_size": {fmt.Sprint(maxPageSize)},
	}
	if cursor != "" {
		q.Set("next_page_token", cursor)
	}
	endpoint := fmt.Sprintf("%s/accounts/me/recordings?%s", c.cfg.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to build recordings request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("recordings request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return Page{}, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("recordings endpoint returned %s", resp.Status)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return Page{}, fmt.Errorf("failed to decode recordings page: %w", err)
	}
	return page, nil
}

// FetchAll follows next_page_token until the listing for [from, to] is
// exhausted. Provider order is preserved but not guaranteed stable across
// runs; correctness never depends on it.
func (c *Client) FetchAll(ctx context.Context, token string, from, to time.Time) ([]models.Recording, error) {
	var all []models.Recording
	cursor := ""
	for {
		page, err := c.FetchPage(ctx, token, from, to, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Meetings...)
		if page.NextPageToken == "" {
			return all, nil
		}
		cursor = page.NextPageToken
	}
}

// FetchChunked splits [start, end] into month-sized windows and fetches each
// in turn. Zoom rejects or silently trims windows longer than a month.
func (c *Client) FetchChunked(ctx context.Context, token string, start, end time.Time) ([]models.Recording, error) {
	chunks, err := daterange.Chunks(start, end)
	if err != nil {
		return nil, err
	}
	var all []models.Recording
	for _, chunk := range chunks {
		recs, err := c.FetchAll(ctx, token, chunk.From, chunk.To)
		if err != nil {
			return nil, fmt.Errorf("fetching window %s..%s: %w",
				chunk.From.Format(dateLayout), chunk.To.Format(dateLayout), err)
		}
		all = append(all, recs...)
	}
	return all, nil
}

// DownloadFile streams a recording file to destPath. A 401 surfaces as
// ErrUnauthorized so the caller can refresh the token and retry; any partial
// file is removed before returning an error.
func (c *Client) DownloadFile(ctx context.Context, token, downloadURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned %s", resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create staging file %s: %w", destPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to stream download to %s: %w", destPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to finalize staging file %s: %w", destPath, err)
	}
	return nil
}

// DeleteRecordings permanently removes all recording files of one meeting
// from Zoom. Irreversible.
func (c *Client) DeleteRecordings(ctx context.Context, token, meetingUUID string) error {
	// Meeting UUIDs may contain "/" and must be double-encoded in paths.
	encoded := url.PathEscape(url.PathEscape(meetingUUID))
	endpoint := fmt.Sprintf("%s/meetings/%s/recordings?action=delete", c.cfg.BaseURL, encoded)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	// Zoom returns 204 on success and 200 for some account configurations.
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete returned %s", resp.Status)
	}
	return nil
}
