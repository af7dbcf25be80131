package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/donaldgifford/tap-paypal/internal/metrics"
)

// FetchDetail implements DetailFetcher with an authenticated GET to the
// item's detail link.
//
// Errors that only affect this invoice are *DetailFetchError (bad link,
// transport failure, non-200) or *FlattenError (undecodable document).
// Token failures stay fatal and are returned as the underlying *AuthError.
func (c *Client) FetchDetail(
	ctx context.Context,
	item SearchResultItem,
) (*InvoiceDetail, error) {
	link, err := parseDetailLink(item.DetailLink)
	if err != nil {
		return nil, &DetailFetchError{InvoiceID: item.ID, Link: item.DetailLink, Err: err}
	}

	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting auth token: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, link, http.NoBody)
	if err != nil {
		return nil, &DetailFetchError{
			InvoiceID: item.ID,
			Link:      item.DetailLink,
			Err:       fmt.Errorf("creating HTTP request: %w", err),
		}
	}

	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &DetailFetchError{
			InvoiceID: item.ID,
			Link:      item.DetailLink,
			Err:       fmt.Errorf("executing detail request: %w", err),
		}
	}
	defer resp.Body.Close()

	metrics.APIRequestDuration.
		WithLabelValues("detail", strconv.Itoa(resp.StatusCode)).
		Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DetailFetchError{
			InvoiceID: item.ID,
			Link:      item.DetailLink,
			Err:       fmt.Errorf("reading response body: %w", err),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &DetailFetchError{
			InvoiceID:  item.ID,
			Link:       item.DetailLink,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var detail InvoiceDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, &FlattenError{
			InvoiceID: item.ID,
			Err:       fmt.Errorf("decoding invoice document: %w", err),
		}
	}

	return &detail, nil
}

func parseDetailLink(raw string) (string, error) {
	if raw == "" {
		return "", ErrMissingDetailLink
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedDetailLink, err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedDetailLink, raw)
	}

	return u.String(), nil
}
