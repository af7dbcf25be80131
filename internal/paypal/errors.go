package paypal

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDetailLink is returned when a search result carries no detail link.
	ErrMissingDetailLink = errors.New("missing detail link")

	// ErrMalformedDetailLink is returned when a detail link is not an absolute http(s) URL.
	ErrMalformedDetailLink = errors.New("malformed detail link")

	// ErrSequenceConsumed is yielded when a single-use sequence is iterated twice.
	ErrSequenceConsumed = errors.New("sequence already consumed")
)

// AuthError reports a failed client-credentials exchange. It is fatal for a
// run: no further authorized calls are possible.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("oauth token request failed (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("oauth token request failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// PageFetchError reports a search page that could not be fetched or parsed.
// Pagination cannot safely continue past it.
type PageFetchError struct {
	Page       int
	StatusCode int
	Body       string
	Err        error
}

func (e *PageFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("search page %d failed (status %d): %s", e.Page, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("search page %d failed: %v", e.Page, e.Err)
}

func (e *PageFetchError) Unwrap() error { return e.Err }

// DetailFetchError reports a single invoice whose detail document could not
// be retrieved. The invoice is skipped and the run continues.
type DetailFetchError struct {
	InvoiceID  string
	Link       string
	StatusCode int
	Body       string
	Err        error
}

func (e *DetailFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf(
			"fetching invoice %s detail (status %d): %s",
			e.InvoiceID, e.StatusCode, e.Body,
		)
	}
	return fmt.Sprintf("fetching invoice %s detail: %v", e.InvoiceID, e.Err)
}

func (e *DetailFetchError) Unwrap() error { return e.Err }

// FlattenError reports an invoice document with an unexpected shape. Zero rows
// are emitted for the invoice and the run continues.
type FlattenError struct {
	InvoiceID string
	Err       error
}

func (e *FlattenError) Error() string {
	return fmt.Sprintf("flattening invoice %s: %v", e.InvoiceID, e.Err)
}

func (e *FlattenError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err only affects a single invoice, meaning the
// run may skip that invoice and continue.
func IsRecoverable(err error) bool {
	var (
		detailErr  *DetailFetchError
		flattenErr *FlattenError
	)
	return errors.As(err, &detailErr) || errors.As(err, &flattenErr)
}
