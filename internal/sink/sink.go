// Package sink delivers flattened invoice rows and the run's final state to
// their destinations: Singer messages on stdout, a Postgres table, or both.
package sink

import (
	"context"
	"errors"

	"github.com/donaldgifford/tap-paypal/internal/store"
	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

// Sink receives the rows of a run in emission order, then the state to
// persist once the row sequence is exhausted.
type Sink interface {
	WriteRow(ctx context.Context, row *domain.FlatRow) error
	WriteState(ctx context.Context, state store.State) error
	Flush(ctx context.Context) error
}

// Multi fans out every call to each sink in order. It stops at the first
// failing sink.
type Multi []Sink

// WriteRow implements Sink.
func (m Multi) WriteRow(ctx context.Context, row *domain.FlatRow) error {
	for _, s := range m {
		if err := s.WriteRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// WriteState implements Sink.
func (m Multi) WriteState(ctx context.Context, state store.State) error {
	for _, s := range m {
		if err := s.WriteState(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

// Flush implements Sink. Every sink is flushed even if an earlier one fails.
func (m Multi) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops everything. It backs runs with no configured output.
type Discard struct{}

// WriteRow implements Sink.
func (Discard) WriteRow(context.Context, *domain.FlatRow) error { return nil }

// WriteState implements Sink.
func (Discard) WriteState(context.Context, store.State) error { return nil }

// Flush implements Sink.
func (Discard) Flush(context.Context) error { return nil }
