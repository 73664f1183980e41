// Package worker runs per-race feature assembly on a bounded pool.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/pitwall/internal/domain/features"
	"github.com/okian/pitwall/internal/domain/types"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Assembler builds the feature rows of one race.
type Assembler interface {
	AssembleRace(ctx context.Context, raceID int, mode features.Mode) ([]types.FeatureRow, error)
}

// Pool runs one job per race with at most size jobs in flight.
type Pool struct {
	size   int
	name   string
	logger logger.Logger
}

// NewPool creates a pool. A size below 1 uses one worker per CPU.
func NewPool(size int, opts ...Option) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		size:   size,
		name:   "worker-pool",
		logger: logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.name != "worker-pool" {
		p.logger = p.logger.Named(p.name)
	}
	metrics.UpdateWorkerCount(size)
	return p
}

// Size is the number of concurrent jobs.
func (p *Pool) Size() int { return p.size }

// Run assembles every race. The result is indexed like raceIDs regardless of
// completion order. The first failure cancels the jobs not yet finished.
func (p *Pool) Run(ctx context.Context, raceIDs []int, a Assembler, mode features.Mode) ([][]types.FeatureRow, error) {
	out := make([][]types.FeatureRow, len(raceIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)
	for i, id := range raceIDs {
		g.Go(func() error {
			rows, err := p.process(gctx, id, a, mode)
			if err != nil {
				return err
			}
			out[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// process handles a single race.
func (p *Pool) process(ctx context.Context, raceID int, a Assembler, mode features.Mode) ([]types.FeatureRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	rows, err := a.AssembleRace(ctx, raceID, mode)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "assemble")
		p.logger.Error(ctx, "race assembly failed", logger.Int("race_id", raceID), logger.Error(err))
		return nil, fmt.Errorf("race %d: %w", raceID, err)
	}

	p.logger.Debug(ctx, "race assembled",
		logger.Int("race_id", raceID),
		logger.Int("rows", len(rows)),
		logger.String("mode", string(mode)))
	return rows, nil
}
