// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package workerpool provides a persistent, reusable worker pool for running
// independent slices of a convolution concurrently. A Pool is created once
// and reused across many Forward calls, so no goroutines or channels are
// allocated per call.
//
// Usage:
//
//	pool := workerpool.New(runtime.GOMAXPROCS(0))
//	defer pool.Close()
//
//	for _, layer := range layers {
//	    layer.ForwardParallel(pool, src, nil, dst)
//	}
//
// Work items handed to a Pool must write disjoint memory; the pool provides
// no synchronization beyond waiting for all items of one call.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a persistent worker pool. Workers are spawned once at creation
// and live until Close.
type Pool struct {
	numWorkers int
	workC      chan workItem
	closeOnce  sync.Once
	closed     atomic.Bool
}

type workItem struct {
	fn      func()
	barrier *sync.WaitGroup
}

// New creates a pool with numWorkers workers.
// If numWorkers <= 0, uses GOMAXPROCS.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		// Buffer enough for all workers to have pending work
		workC: make(chan workItem, numWorkers*2),
	}
	for range numWorkers {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for item := range p.workC {
		item.fn()
		item.barrier.Done()
	}
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Close shuts down the pool. Pending work completes; later calls on the
// pool run sequentially on the caller's goroutine. Close is idempotent.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.workC)
	})
}

// workers returns how many workers to use for n items, or 1 when the call
// should run inline.
func (p *Pool) workers(n int) int {
	if p == nil || p.closed.Load() {
		return 1
	}
	return max(1, min(p.numWorkers, n))
}

// run starts fn on workers goroutines and waits for all of them.
func (p *Pool) run(workers int, fn func(worker int)) {
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := range workers {
		p.workC <- workItem{
			fn:      func() { fn(w) },
			barrier: &wg,
		}
	}
	wg.Wait()
}

// ParallelFor executes fn over [0, n) split into one contiguous range per
// worker. Blocks until all work completes. A nil or closed pool runs fn(0, n)
// inline.
func (p *Pool) ParallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := p.workers(n)
	if workers == 1 {
		fn(0, n)
		return
	}

	chunkSize := (n + workers - 1) / workers
	p.run(workers, func(w int) {
		start := w * chunkSize
		if start < n {
			fn(start, min(start+chunkSize, n))
		}
	})
}

// ParallelForAtomic executes fn for each index in [0, n), with workers
// claiming indices through an atomic counter. This balances load when items
// differ in cost, such as output row blocks that include padded borders.
func (p *Pool) ParallelForAtomic(n int, fn func(i int)) {
	p.ParallelForAtomicBatched(n, 1, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}

// ParallelForAtomicBatched is ParallelForAtomic claiming batchSize indices
// per atomic operation. fn receives [start, end).
func (p *Pool) ParallelForAtomicBatched(n int, batchSize int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	batchSize = max(batchSize, 1)
	numBatches := (n + batchSize - 1) / batchSize
	workers := p.workers(numBatches)
	if workers == 1 {
		fn(0, n)
		return
	}

	var next atomic.Int64
	p.run(workers, func(int) {
		for {
			start := int(next.Add(1)-1) * batchSize
			if start >= n {
				return
			}
			fn(start, min(start+batchSize, n))
		}
	})
}

// ParallelForGrid executes fn for every cell of a rows x cols grid, such as
// (output-channel block, output-row block) pairs of a tiled convolution.
// Cells are claimed atomically in row-major order.
func (p *Pool) ParallelForGrid(rows, cols int, fn func(row, col int)) {
	if rows <= 0 || cols <= 0 {
		return
	}
	p.ParallelForAtomic(rows*cols, func(i int) {
		fn(i/cols, i%cols)
	})
}
