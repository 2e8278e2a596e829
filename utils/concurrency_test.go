package utils

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLSetNoDuplicates(t *testing.T) {
	s := NewURLSet()

	assert.True(t, s.Add("https://example.com/1"), "first Add should return true")
	assert.False(t, s.Add("https://example.com/1"), "second Add of same URL should return false")
	assert.Equal(t, 1, s.Size())
}

func TestURLSetConcurrency(t *testing.T) {
	s := NewURLSet()
	var added int64

	pool := NewWorkerPool(10)
	for i := 0; i < 100; i++ {
		pool.Submit(func() {
			if s.Add("https://example.com/same") {
				atomic.AddInt64(&added, 1)
			}
		})
	}
	pool.Wait()

	assert.Equal(t, int64(1), added, "exactly one Add should succeed")
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	const limit = 2
	pool := NewWorkerPool(limit)

	var inFlight, maxInFlight int64
	for i := 0; i < 20; i++ {
		pool.Submit(func() {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				m := atomic.LoadInt64(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt64(&maxInFlight, m, n) {
					break
				}
			}
			atomic.AddInt64(&inFlight, -1)
		})
	}
	pool.Wait()

	assert.LessOrEqual(t, maxInFlight, int64(limit))
}

func TestWorkerPoolWaitCompletesAllJobs(t *testing.T) {
	pool := NewWorkerPool(4)

	var done int64
	for i := 0; i < 50; i++ {
		pool.Submit(func() { atomic.AddInt64(&done, 1) })
	}
	pool.Wait()

	assert.Equal(t, int64(50), done)
}
