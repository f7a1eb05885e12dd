package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNormalizeClampsBatchSize(t *testing.T) {
	got := Options{Workers: 8, BatchSize: 3}.Normalize()
	if got.BatchSize != 8 {
		t.Fatalf("batch size should be clamped to workers, got %d", got.BatchSize)
	}
	got = Options{}.Normalize()
	if got.Workers != 1 || got.BatchSize != 1 {
		t.Fatalf("zero options should normalise to 1/1, got %+v", got)
	}
}

func TestRunCountsOutcomesPerBatch(t *testing.T) {
	units := []int{1, 2, 3, 4, 5, 6, 7}
	var reports []BatchReport
	var mu sync.Mutex

	sum, err := Run(context.Background(), Options{Workers: 2, BatchSize: 3}, SliceBatches(units),
		func(_ context.Context, u int) (Outcome, error) {
			switch {
			case u == 4:
				return Failed, errors.New("broken unit")
			case u%3 == 0:
				return Skipped, nil
			}
			return Processed, nil
		},
		func(r BatchReport) {
			mu.Lock()
			reports = append(reports, r)
			mu.Unlock()
		})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Batches != 3 || len(reports) != 3 {
		t.Fatalf("expected 3 batches, got %d (%d reports)", sum.Batches, len(reports))
	}
	if sum.Processed != 4 || sum.Failed != 1 || sum.Skipped != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if reports[0].Index != 0 || reports[0].Size != 3 || reports[2].Size != 1 {
		t.Fatalf("unexpected batch reports %+v", reports)
	}
}

func TestRunStrictStopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	var handled atomic.Int64
	units := make([]int, 50)
	for i := range units {
		units[i] = i
	}

	_, err := Run(context.Background(), Options{Workers: 1, BatchSize: 5, Strict: true}, SliceBatches(units),
		func(_ context.Context, u int) (Outcome, error) {
			handled.Add(1)
			if u == 2 {
				return Failed, boom
			}
			return Processed, nil
		}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected strict error, got %v", err)
	}
	if handled.Load() > 5 {
		t.Fatalf("strict mode should stop within the failing batch, handled %d", handled.Load())
	}
}

func TestRunCancellationDrainsInFlightUnits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var finished atomic.Int64
	var sawCancelled atomic.Bool

	units := make([]int, 20)
	done := make(chan struct{})
	var sum Summary
	var err error
	go func() {
		defer close(done)
		var once sync.Once
		sum, err = Run(ctx, Options{Workers: 2, BatchSize: 4}, SliceBatches(units),
			func(uctx context.Context, _ int) (Outcome, error) {
				once.Do(func() { close(started) })
				time.Sleep(20 * time.Millisecond)
				if uctx.Err() != nil {
					sawCancelled.Store(true)
				}
				finished.Add(1)
				return Processed, nil
			}, nil)
	}()

	<-started
	cancel()
	<-done

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sawCancelled.Load() {
		t.Fatalf("in-flight units must run on a detached context")
	}
	if finished.Load() >= int64(len(units)) {
		t.Fatalf("cancellation should stop handing out units")
	}
	if sum.Processed != int(finished.Load()) {
		t.Fatalf("summary %d does not match finished units %d", sum.Processed, finished.Load())
	}
}

func TestPageBatchesAdvancesOffset(t *testing.T) {
	data := []string{"a", "b", "c", "d", "e"}
	var offsets []int
	b := PageBatches(func(_ context.Context, offset, limit int) ([]string, error) {
		offsets = append(offsets, offset)
		if offset >= len(data) {
			return nil, nil
		}
		end := offset + limit
		if end > len(data) {
			end = len(data)
		}
		return data[offset:end], nil
	})

	var seen []string
	sum, err := Run(context.Background(), Options{Workers: 1, BatchSize: 2}, b,
		func(_ context.Context, s string) (Outcome, error) {
			seen = append(seen, s)
			return Processed, nil
		}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Processed != 5 || len(seen) != 5 {
		t.Fatalf("expected 5 processed, got %d", sum.Processed)
	}
	if len(offsets) != 4 || offsets[3] != 5 {
		t.Fatalf("unexpected offsets %v", offsets)
	}
}
