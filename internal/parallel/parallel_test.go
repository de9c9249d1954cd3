package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor_VisitsEveryIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}
	const n = 1000

	visits := make([]int32, n)
	For(n, func(i int) {
		atomic.AddInt32(&visits[i], 1)
	}, cfg)

	for i, v := range visits {
		assert.EqualValues(t, 1, v, "index %d", i)
	}
}

func TestFor_Sequential(t *testing.T) {
	for _, cfg := range []Config{
		{Enabled: false, NumWorkers: 4},
		{Enabled: true, NumWorkers: 1},
		{Enabled: true, NumWorkers: 4, MinChunkSize: 200},
	} {
		var order []int
		For(100, func(i int) { order = append(order, i) }, cfg)
		assert.Len(t, order, 100)
		for i, v := range order {
			assert.Equal(t, i, v)
		}
	}
}

func TestFor_Empty(t *testing.T) {
	called := false
	For(0, func(int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func TestForBatch(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1}
	batch, channels := 4, 8

	var hits [4][8]int32
	ForBatch(batch, channels, 1, func(b, c int) {
		atomic.AddInt32(&hits[b][c], 1)
	}, cfg)

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			assert.EqualValues(t, 1, hits[b][c], "pair (%d, %d)", b, c)
		}
	}
}

func TestForWork(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinWork: 100}

	var count int64
	ForWork(50, 10, func(int) { atomic.AddInt64(&count, 1) }, cfg)
	assert.EqualValues(t, 50, count)

	// Cheap items below MinWork in total stay on the calling goroutine.
	var order []int
	ForWork(5, 10, func(i int) { order = append(order, i) }, cfg)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)

	count = 0
	ForWork(3, 0, func(int) { atomic.AddInt64(&count, 1) }, cfg)
	assert.EqualValues(t, 3, count)
}

func BenchmarkForWork(b *testing.B) {
	cfg := DefaultConfig()
	const n, cost = 256, 1 << 10

	run := func(b *testing.B, cfg Config) {
		for i := 0; i < b.N; i++ {
			var sum int64
			ForWork(n, cost, func(i int) {
				local := int64(0)
				for j := 0; j < cost; j++ {
					local += int64(i ^ j)
				}
				atomic.AddInt64(&sum, local)
			}, cfg)
		}
	}

	b.Run("parallel", func(b *testing.B) { run(b, cfg) })
	b.Run("sequential", func(b *testing.B) {
		seq := cfg
		seq.Enabled = false
		run(b, seq)
	})
}
