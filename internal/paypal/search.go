package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/donaldgifford/tap-paypal/internal/metrics"
	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

// SearchRequest defines one search-invoices page request.
type SearchRequest struct {
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD
	Page      int    // 0 omits the page parameter
	PageSize  int
}

// SearchResponse holds one page of search results.
type SearchResponse struct {
	Items      []SearchResultItem
	HasItems   bool // false when the response had no items key
	TotalItems int
	TotalPages int
}

// Search implements Searcher by POSTing to the search-invoices endpoint.
// Token failures are returned as *AuthError; everything else that prevents
// reading the page is a *PageFetchError.
func (c *Client) Search(
	ctx context.Context,
	req SearchRequest,
) (*SearchResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting auth token: %w", err)
	}

	payload, err := json.Marshal(searchAPIRequest{
		InvoiceDateRange: searchDateRange{Start: req.StartDate, End: req.EndDate},
		Fields:           []searchField{{Field: "items"}},
	})
	if err != nil {
		return nil, &PageFetchError{Page: req.Page, Err: fmt.Errorf("encoding search body: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.buildSearchURL(req),
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, &PageFetchError{Page: req.Page, Err: fmt.Errorf("creating HTTP request: %w", err)}
	}

	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &PageFetchError{Page: req.Page, Err: fmt.Errorf("executing search request: %w", err)}
	}
	defer resp.Body.Close()

	metrics.APIRequestDuration.
		WithLabelValues("search", strconv.Itoa(resp.StatusCode)).
		Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &PageFetchError{Page: req.Page, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &PageFetchError{
			Page:       req.Page,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var apiResp searchAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &PageFetchError{
			Page: req.Page,
			Body: string(body),
			Err:  fmt.Errorf("parsing search response: %w", err),
		}
	}

	out := &SearchResponse{
		TotalItems: apiResp.TotalItems,
		TotalPages: apiResp.TotalPages,
	}
	if apiResp.Items != nil {
		out.HasItems = true
		out.Items = toSearchResultItems(*apiResp.Items)
	}
	return out, nil
}

func (c *Client) buildSearchURL(req SearchRequest) string {
	params := url.Values{}

	size := req.PageSize
	if size <= 0 {
		size = PageSize
	}
	params.Set("page_size", strconv.Itoa(size))

	if req.Page > 0 {
		params.Set("page", strconv.Itoa(req.Page))
	}

	params.Set("sort", "asc")
	params.Set("order_by", domain.ReplicationKey)

	return c.baseURL + searchPath + "?" + params.Encode()
}

func toSearchResultItems(items []searchAPIItem) []SearchResultItem {
	out := make([]SearchResultItem, 0, len(items))
	for i := range items {
		out = append(out, SearchResultItem{
			ID:         items[i].ID,
			Status:     items[i].Status,
			DetailLink: detailLink(items[i].Links),
		})
	}
	return out
}
