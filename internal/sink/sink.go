// Package sink persists per-window flow results.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/sweeney/pump-monitor/internal/flow"
)

// Sink appends one result record.
type Sink interface {
	Name() string
	Append(ctx context.Context, r flow.Result) error
}

// WriteError reports a result that a sink failed to persist. The result is
// dropped; it is not retried.
type WriteError struct {
	Sink    string
	Channel string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: write %s: %v", e.Sink, e.Channel, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Multi fans a result out to every sink in order. Calls are sequential, so
// each underlying sink sees one append at a time.
type Multi []Sink

// Name returns "multi".
func (m Multi) Name() string { return "multi" }

// Append writes r to every sink, continuing past failures. Failures are
// returned joined as *WriteError values.
func (m Multi) Append(ctx context.Context, r flow.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, r); err != nil {
			errs = append(errs, &WriteError{Sink: s.Name(), Channel: r.Channel, Err: err})
		}
	}
	return errors.Join(errs...)
}
