// Package parallel splits index ranges across goroutines for the tensor kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
	MinWork      int  // Minimum inner iterations per goroutine, used by ForWork.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
		MinWork:      1 << 14,
	}
}

// For executes f(i) for i in [0, n), splitting the range into contiguous
// chunks of at least MinChunkSize items. It runs sequentially when
// parallelism is disabled or n is below MinChunkSize.
//
// f must only write state owned by index i.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < max(cfg.MinChunkSize, 2) {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForBatch executes f(b, c) for every (batch, channel) pair, where each pair
// costs about cost inner iterations. Pairs are handed out in row-major order.
func ForBatch(batch, channels, cost int, f func(b, c int), cfg Config) {
	ForWork(batch*channels, cost, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}

// ForWork is For for items that each cost about cost inner iterations:
// every goroutine receives at least MinWork iterations of work.
func ForWork(n, cost int, f func(i int), cfg Config) {
	cfg.MinChunkSize = max((cfg.MinWork+cost-1)/max(cost, 1), 1)
	For(n, f, cfg)
}
