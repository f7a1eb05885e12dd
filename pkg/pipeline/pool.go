// Package pipeline runs units of work through a fixed worker group, one batch at a time.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Outcome int

const (
	Processed Outcome = iota
	Failed
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Processed:
		return "processed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Options struct {
	Workers   int
	BatchSize int
	// Strict stops the run at the first unit error instead of counting it as failed.
	Strict bool
}

// Normalize clamps workers to at least one and the batch size to at least the worker count.
func (o Options) Normalize() Options {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.BatchSize < o.Workers {
		o.BatchSize = o.Workers
	}
	return o
}

type BatchReport struct {
	Index     int           `json:"index"`
	Size      int           `json:"size"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Elapsed   time.Duration `json:"elapsed"`
}

type Summary struct {
	Batches   int           `json:"batches"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Elapsed   time.Duration `json:"elapsed"`
}

func (s *Summary) add(r BatchReport) {
	s.Batches++
	s.Processed += r.Processed
	s.Failed += r.Failed
	s.Skipped += r.Skipped
}

// Handler processes one unit. A non-nil error counts the unit as failed.
type Handler[T any] func(ctx context.Context, unit T) (Outcome, error)

// Run pulls batches until one comes back empty. Units of a batch are handed to
// opts.Workers workers over a bounded channel; onBatch, when set, sees every finished batch.
//
// Cancelling ctx stops handing out units. Units already taken by a worker finish on a
// context detached from the cancellation, and Run returns ctx.Err().
func Run[T any](ctx context.Context, opts Options, batches Batches[T], handle Handler[T], onBatch func(BatchReport)) (Summary, error) {
	opts = opts.Normalize()
	start := time.Now()
	var sum Summary

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			sum.Elapsed = time.Since(start)
			return sum, err
		}

		units, err := batches.Next(ctx, opts.BatchSize)
		if err != nil {
			sum.Elapsed = time.Since(start)
			return sum, fmt.Errorf("fetch batch %d: %w", index, err)
		}
		if len(units) == 0 {
			break
		}

		report, err := runBatch(ctx, opts, units, handle)
		report.Index = index
		sum.add(report)
		if onBatch != nil {
			onBatch(report)
		}
		if err != nil {
			sum.Elapsed = time.Since(start)
			return sum, err
		}
	}

	sum.Elapsed = time.Since(start)
	return sum, nil
}

func runBatch[T any](ctx context.Context, opts Options, units []T, handle Handler[T]) (BatchReport, error) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	work := make(chan T, opts.Workers)
	detached := context.WithoutCancel(ctx)

	var processed, failed, skipped atomic.Int64

	g.Go(func() error {
		defer close(work)
		for _, unit := range units {
			select {
			case <-gctx.Done():
				return nil
			case work <- unit:
			}
		}
		return nil
	})

	for i := 0; i < opts.Workers; i++ {
		g.Go(func() error {
			for unit := range work {
				if gctx.Err() != nil {
					// drain without starting new units
					continue
				}
				outcome, err := handle(detached, unit)
				switch {
				case err != nil:
					failed.Add(1)
					if opts.Strict {
						return err
					}
				case outcome == Skipped:
					skipped.Add(1)
				case outcome == Failed:
					failed.Add(1)
				default:
					processed.Add(1)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return BatchReport{
		Size:      len(units),
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
		Elapsed:   time.Since(start),
	}, err
}
