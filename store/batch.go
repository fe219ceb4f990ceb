// Package store holds helpers shared by the storage implementations.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/warp/incentive-engine/model"
)

// =============================================================================
// PER-DOCUMENT BATCH WRITES
// =============================================================================

// RetryPolicy bounds how often a single failing document is retried.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration // multiplied by the attempt number
}

// DefaultRetry is used when a store is not given a policy.
var DefaultRetry = RetryPolicy{Attempts: 3, Backoff: 25 * time.Millisecond}

// WriteEach writes docs one at a time. A document that still fails after
// the retry budget is recorded in the result and the batch moves on;
// documents already written stay written. Only context cancellation stops
// the batch early.
func WriteEach[T any](
	ctx context.Context,
	docs []T,
	key func(T) model.RowKey,
	policy RetryPolicy,
	write func(context.Context, T) error,
) (model.BatchResult, error) {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	var result model.BatchResult
	for _, doc := range docs {
		var err error
		attempt := 0
		for attempt < policy.Attempts {
			attempt++
			if err = write(ctx, doc); err == nil {
				break
			}
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			if attempt < policy.Attempts && policy.Backoff > 0 {
				select {
				case <-ctx.Done():
					return result, ctx.Err()
				case <-time.After(time.Duration(attempt) * policy.Backoff):
				}
			}
		}

		if err != nil {
			k := key(doc)
			result.Failures = append(result.Failures, model.DocFailure{
				RMName:   k.RMName,
				Month:    k.Month,
				Attempts: attempt,
				Err:      err.Error(),
			})
			continue
		}
		result.Written++
	}
	return result, nil
}

// SourceKey identifies a source record: its own id when present, else the
// joined natural key parts.
func SourceKey(id string, parts ...string) string {
	if id != "" {
		return id
	}
	return strings.Join(parts, "|")
}
