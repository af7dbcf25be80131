// Package paypal provides a PayPal Invoicing API client abstracted behind
// interfaces for testability: an OAuth2 client-credentials token provider,
// the search-invoices paginator, the per-invoice detail fetch, and the
// flattening of invoice documents into rows.
package paypal

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the live PayPal REST API host.
	DefaultBaseURL = "https://api-m.paypal.com"

	tokenPath  = "/v1/oauth2/token" //nolint:gosec // not a credential
	searchPath = "/v2/invoicing/search-invoices"
)

// TokenProvider defines the interface for obtaining OAuth2 tokens.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Searcher issues a single search-invoices request.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// DetailFetcher retrieves the full invoice document behind a search result.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, item SearchResultItem) (*InvoiceDetail, error)
}

// Client implements Searcher and DetailFetcher against the Invoicing API.
type Client struct {
	tokens      TokenProvider
	baseURL     string
	client      *http.Client
	rateLimiter *RateLimiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL overrides the default API host.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithClientHTTPClient overrides the default HTTP client.
func WithClientHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithRateLimiter paces every search and detail request through r.
func WithRateLimiter(r *RateLimiter) ClientOption {
	return func(c *Client) {
		c.rateLimiter = r
	}
}

// NewClient creates a new Invoicing API client.
func NewClient(tokens TokenProvider, opts ...ClientOption) *Client {
	c := &Client{
		tokens:  tokens,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) wait(ctx context.Context) error {
	if c.rateLimiter == nil {
		return nil
	}
	return c.rateLimiter.Wait(ctx)
}
