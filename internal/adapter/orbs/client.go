// Package orbs downloads the raw monitoring CSV files from the ORBS portal.
package orbs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNotFound is returned when the portal has no file for the requested id.
	ErrNotFound = errors.New("file not found")
	// ErrNotCSV is returned when the portal answers with something other than CSV,
	// usually an HTML error page.
	ErrNotCSV = errors.New("response is not csv")
)

// Client fetches single files from the portal.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a portal client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// URL returns the portal address of file n of the dataset.
func (c *Client) URL(ds Dataset, n int) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, ds.Category, ds.FileName(n))
}

// Fetch downloads file n of the dataset.
func (c *Client) Fetch(ctx context.Context, ds Dataset, n int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(ds, n), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ds.FileName(n), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ds.FileName(n), err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal error: status %d", resp.StatusCode)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/csv" {
		if title := pageTitle(mediaType, body); title != "" {
			return nil, fmt.Errorf("%w: %s page %q", ErrNotCSV, mediaType, title)
		}
		return nil, fmt.Errorf("%w: content type %q", ErrNotCSV, mediaType)
	}
	return body, nil
}

// pageTitle returns the <title> of an HTML body, or "" for other media types.
func pageTitle(mediaType string, body []byte) string {
	if mediaType != "text/html" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
