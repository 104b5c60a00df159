// Package offdata is the data-source adapter for the Open Food Facts
// catalog. It normalizes upstream records into the lean Product shape
// the tool registry exposes; callers never see raw upstream payloads.
package offdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/foodscout/foodscout/pkg/errors"
	"github.com/foodscout/foodscout/pkg/resilience"
)

const (
	defaultBaseURL  = "https://world.openfoodfacts.org"
	defaultPageSize = 10
	maxPageSize     = 50
)

// ClientOption customizes the adapter.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent sent upstream.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRetry overrides the retry policy for upstream calls.
func WithRetry(rc resilience.RetryConfig) ClientOption {
	return func(c *Client) {
		c.retry = rc
	}
}

// Client talks to the Open Food Facts HTTP API.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	retry     resilience.RetryConfig
}

// NewClient creates an adapter against the given base URL; an empty
// base URL targets the public catalog.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:   baseURL,
		userAgent: "foodscout/0.1",
		http:      &http.Client{Timeout: 10 * time.Second},
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetProduct looks up a single product by barcode. A missing product is
// a CodeNotFound error; transport and 5xx failures are CodeUpstream.
func (c *Client) GetProduct(ctx context.Context, barcode string) (*Product, error) {
	if barcode == "" {
		return nil, errors.Newf(errors.CodeInvalidInput, "barcode is required")
	}

	var payload struct {
		Status  int        `json:"status"`
		Product rawProduct `json:"product"`
	}
	endpoint := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, url.PathEscape(barcode))
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	if payload.Status != 1 {
		return nil, errors.Newf(errors.CodeNotFound, "product %s not found", barcode)
	}

	product := normalize(payload.Product)
	if product.Barcode == "" {
		product.Barcode = barcode
	}
	return &product, nil
}

// Search performs a keyword search with pagination.
func (c *Client) Search(ctx context.Context, query string, page, pageSize int) (*Page, error) {
	if query == "" {
		return nil, errors.Newf(errors.CodeInvalidInput, "query is required")
	}
	page, pageSize = clampPaging(page, pageSize)

	values := url.Values{}
	values.Set("search_terms", query)
	values.Set("search_simple", "1")
	values.Set("json", "1")
	values.Set("page", strconv.Itoa(page))
	values.Set("page_size", strconv.Itoa(pageSize))

	return c.getPage(ctx, c.baseURL+"/cgi/search.pl?"+values.Encode(), page, pageSize)
}

// Category browses a category with pagination.
func (c *Client) Category(ctx context.Context, category string, page, pageSize int) (*Page, error) {
	if category == "" {
		return nil, errors.Newf(errors.CodeInvalidInput, "category is required")
	}
	page, pageSize = clampPaging(page, pageSize)

	values := url.Values{}
	values.Set("page", strconv.Itoa(page))
	values.Set("page_size", strconv.Itoa(pageSize))

	endpoint := fmt.Sprintf("%s/category/%s.json?%s", c.baseURL, url.PathEscape(category), values.Encode())
	return c.getPage(ctx, endpoint, page, pageSize)
}

func (c *Client) getPage(ctx context.Context, endpoint string, page, pageSize int) (*Page, error) {
	var payload struct {
		Count    int          `json:"count"`
		Products []rawProduct `json:"products"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	out := &Page{
		Page:     page,
		PageSize: pageSize,
		Count:    payload.Count,
		Products: make([]Product, 0, len(payload.Products)),
	}
	for _, raw := range payload.Products {
		out.Products = append(out.Products, normalize(raw))
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	return c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return errors.New(errors.CodeInternal, "failed to build request", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return errors.New(errors.CodeUpstream, "open food facts unreachable", err).
				WithRecoverable(true)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			// The product endpoint reports missing barcodes with 404
			// and a status:0 body depending on API version; both map
			// to not-found.
			return errors.Newf(errors.CodeNotFound, "resource not found")
		case resp.StatusCode >= 500:
			return errors.Newf(errors.CodeUpstream, "open food facts returned %d", resp.StatusCode).
				WithRecoverable(true)
		case resp.StatusCode != http.StatusOK:
			return errors.Newf(errors.CodeUpstream, "open food facts returned %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return errors.New(errors.CodeUpstream, "invalid upstream payload", err)
		}
		return nil
	})
}

func clampPaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
