package utils

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

type indexedJob[T any] struct {
	Index int
	Item  T
}

type indexedResult[R any] struct {
	Index  int
	Result R
}

// WorkerPool manages a pool of goroutines for parallel processing
type WorkerPool[T, R any] struct {
	NumWorkers int
	JobQueue   chan indexedJob[T]
	Results    chan indexedResult[R]
	wg         sync.WaitGroup
	started    bool
	mu         sync.Mutex
}

// NewWorkerPool creates a new worker pool with specified number of workers
func NewWorkerPool[T, R any](numWorkers int, jobBufferSize int, resultBufferSize int) *WorkerPool[T, R] {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	return &WorkerPool[T, R]{
		NumWorkers: numWorkers,
		JobQueue:   make(chan indexedJob[T], jobBufferSize),
		Results:    make(chan indexedResult[R], resultBufferSize),
	}
}

// StartWorkers starts the worker goroutines with the given work function
func (wp *WorkerPool[T, R]) StartWorkers(workFunc func(T) R) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return
	}

	wp.started = true
	wp.wg.Add(wp.NumWorkers)

	for range wp.NumWorkers {
		go wp.worker(workFunc)
	}
}

func (wp *WorkerPool[T, R]) worker(workFunc func(T) R) {
	defer wp.wg.Done()

	for job := range wp.JobQueue {
		wp.Results <- indexedResult[R]{Index: job.Index, Result: workFunc(job.Item)}
	}
}

// ProgressTracker tracks progress of concurrent operations
type ProgressTracker struct {
	Total     int64
	Processed int64
	StartTime time.Time
	Name      string
}

func NewProgressTracker(total int64, name string) *ProgressTracker {
	return &ProgressTracker{
		Total:     total,
		StartTime: time.Now(),
		Name:      name,
	}
}

// Increment increments the processed count atomically
func (pt *ProgressTracker) Increment() {
	processed := atomic.AddInt64(&pt.Processed, 1)

	if processed%1000 == 0 || processed == pt.Total {
		elapsed := time.Since(pt.StartTime)
		slog.Debug("progress",
			"task", pt.Name,
			"processed", processed,
			"total", pt.Total,
			"rate", float64(processed)/elapsed.Seconds())
	}
}

// ProcessBatch runs workFunc over items on numWorkers goroutines and returns
// the results in input order.
func ProcessBatch[T, R any](numWorkers int, items []T, workFunc func(T) R, progressName string) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}

	tracker := NewProgressTracker(int64(len(items)), progressName)
	wp := NewWorkerPool[T, R](numWorkers, len(items), len(items))
	wp.StartWorkers(func(item T) R {
		result := workFunc(item)
		tracker.Increment()
		return result
	})

	for i, item := range items {
		wp.JobQueue <- indexedJob[T]{Index: i, Item: item}
	}
	close(wp.JobQueue)

	for range len(items) {
		res := <-wp.Results
		results[res.Index] = res.Result
	}

	wp.wg.Wait()
	close(wp.Results)

	return results
}
