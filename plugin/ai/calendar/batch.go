package calendar

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one input of a batch. Exactly one of Result and Err is set.
type BatchItem struct {
	Index  int     `json:"index"`
	Input  string  `json:"input"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// ProcessBatch runs Process on every input with at most limit runs in flight.
// Items are returned in input order. A failed input does not stop the others;
// canceling ctx fails the runs that have not finished.
func (p *Pipeline) ProcessBatch(ctx context.Context, inputs []string, now time.Time, limit int) []BatchItem {
	items := make([]BatchItem, len(inputs))
	if len(inputs) == 0 {
		return items
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, input := range inputs {
		g.Go(func() error {
			res, err := p.Process(ctx, input, now)
			items[i] = BatchItem{Index: i, Input: input, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	p.logger.Info("batch processed", "inputs", len(inputs), "limit", limit)
	return items
}
