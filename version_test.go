package stm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterNeverProducesInvalidVersion(t *testing.T) {
	var c Counter
	for i := 0; i < 1000; i++ {
		assert.NotEqual(t, InvalidVersion, c.Incf())
	}
}

func TestCounterMonotonic(t *testing.T) {
	var c Counter
	prev := c.Get()
	for i := 0; i < 100; i++ {
		next := c.Incf()
		assert.Greater(t, uint64(next), uint64(prev))
		prev = next
	}
}

func TestCounterConcurrentIncf(t *testing.T) {
	var c Counter
	const goroutines = 20
	const perGoroutine = 500

	seen := make(chan Version, goroutines*perGoroutine)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				seen <- c.Incf()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[Version]bool)
	for v := range seen {
		assert.False(t, unique[v], "version %d produced twice", v)
		unique[v] = true
	}
	assert.Len(t, unique, goroutines*perGoroutine)
}
