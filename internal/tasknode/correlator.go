package tasknode

import (
	"context"
	"log/slog"
	"time"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

// ResponseQuery describes one request/response correlation. A response is a
// later successful transaction flowing back to the requester whose memo
// fields satisfy the given criteria.
type ResponseQuery struct {
	RequestAccount string
	// RequestDestination is accepted but never consulted by the matching
	// logic, exactly as in the source system. It may be a vestige or a
	// latent bug (the response's sender is never cross-checked against it);
	// callers must not rely on it narrowing results.
	RequestDestination  string
	RequestTime         time.Time
	ResponseMemoType    string
	ResponseMemoFormat  *string
	ResponseMemoData    *string
	RequireAfterRequest bool
}

// Correlator locates the response transaction for a prior request.
type Correlator struct {
	store  store.TasknodeStore
	logger *slog.Logger
}

func NewCorrelator(s store.TasknodeStore, logger *slog.Logger) *Correlator {
	return &Correlator{
		store:  s,
		logger: logger.With(slog.String("service", "correlator")),
	}
}

// FindResponse returns the earliest successful memo addressed back to the
// request account that satisfies all criteria, or nil when none exists.
// First-response-wins: among multiple qualifying responses the one with the
// lowest timestamp is returned.
func (c *Correlator) FindResponse(ctx context.Context, query ResponseQuery) (*store.MemoData, error) {
	filter := store.MemoFilter{
		Destination:       query.RequestAccount,
		TransactionResult: TxResultSuccess,
		MemoType:          query.ResponseMemoType,
		MemoFormat:        query.ResponseMemoFormat,
		MemoDataLike:      query.ResponseMemoData,
		Limit:             1,
	}
	if query.RequireAfterRequest {
		after := query.RequestTime
		filter.After = &after
	}

	candidates, err := c.store.ListMemos(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	return candidates[0], nil
}
