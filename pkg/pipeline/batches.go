package pipeline

import "context"

// Batches yields successive batches of at most size units. An empty batch ends the run.
type Batches[T any] interface {
	Next(ctx context.Context, size int) ([]T, error)
}

type sliceBatches[T any] struct {
	units []T
	pos   int
}

// SliceBatches splits an in-memory list.
func SliceBatches[T any](units []T) Batches[T] {
	return &sliceBatches[T]{units: units}
}

func (s *sliceBatches[T]) Next(_ context.Context, size int) ([]T, error) {
	if s.pos >= len(s.units) {
		return nil, nil
	}
	end := s.pos + size
	if end > len(s.units) {
		end = len(s.units)
	}
	batch := s.units[s.pos:end]
	s.pos = end
	return batch, nil
}

// PageFunc fetches limit units starting at offset.
type PageFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

type pageBatches[T any] struct {
	fetch  PageFunc[T]
	offset int
}

// PageBatches pages through a store.
func PageBatches[T any](fetch PageFunc[T]) Batches[T] {
	return &pageBatches[T]{fetch: fetch}
}

func (p *pageBatches[T]) Next(ctx context.Context, size int) ([]T, error) {
	page, err := p.fetch(ctx, p.offset, size)
	if err != nil {
		return nil, err
	}
	p.offset += len(page)
	return page, nil
}
