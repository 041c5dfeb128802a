package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTryAcquireExhaustsBurst(t *testing.T) {
	l := New(20, 10, 0)

	allowed := 0
	for i := 0; i < 25; i++ {
		if l.TryAcquire("c1").Allowed {
			allowed++
		}
	}
	require.Equal(t, 20, allowed)
}

func TestTryAcquireRefillsOverTime(t *testing.T) {
	l := New(20, 10, 0)
	fakeNow := time.Now()
	l.now = func() time.Time { return fakeNow }

	for i := 0; i < 20; i++ {
		require.True(t, l.TryAcquire("c1").Allowed)
	}
	require.False(t, l.TryAcquire("c1").Allowed)

	fakeNow = fakeNow.Add(time.Second)
	allowed := 0
	for i := 0; i < 10; i++ {
		if l.TryAcquire("c1").Allowed {
			allowed++
		}
	}
	require.Equal(t, 10, allowed)
}

func TestWhitelistBypassesLimiting(t *testing.T) {
	l := New(1, 1, 0)
	l.Whitelist("trusted")
	for i := 0; i < 100; i++ {
		require.True(t, l.TryAcquire("trusted").Allowed)
	}
}

func TestBucketEvictionBoundsPopulation(t *testing.T) {
	l := New(5, 1, 3)
	l.TryAcquire("a")
	l.TryAcquire("b")
	l.TryAcquire("c")
	l.TryAcquire("d") // evicts "a"

	require.Equal(t, 3, l.BucketCount())
}

func TestConcurrentTryAcquireNoRaces(t *testing.T) {
	l := New(100, 50, 0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.TryAcquire("shared")
		}()
	}
	wg.Wait()
}
