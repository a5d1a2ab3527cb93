package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestLimiter_UnderBudgetDoesNotBlock(t *testing.T) {
	limiter := New(3, 10*time.Second)

	start := time.Now()
	limiter.Wait()
	limiter.Wait()
	limiter.Wait()

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("3 admissions under budget took %v, expected no blocking", elapsed)
	}
	if n := limiter.InWindow(); n != 3 {
		t.Errorf("InWindow() = %d, want 3", n)
	}
}

func TestLimiter_FourthCallBlocksUntilWindowExpires(t *testing.T) {
	// Scaled-down version of the max_requests=3, interval=10s scenario:
	// the 4th back-to-back call must block until ~interval after the 1st.
	interval := 300 * time.Millisecond
	limiter := New(3, interval)

	first := time.Now()
	limiter.Wait()
	limiter.Wait()
	limiter.Wait()

	limiter.Wait() // must block until the first stamp leaves the window

	elapsed := time.Since(first)
	if elapsed < interval-20*time.Millisecond {
		t.Errorf("4th call returned after %v, expected ~%v after 1st call", elapsed, interval)
	}
}

func TestLimiter_WindowInvariantUnderConcurrency(t *testing.T) {
	maxRequests := 5
	interval := 200 * time.Millisecond
	limiter := New(maxRequests, interval)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Wait()
			// The admission we just got plus all others inside the
			// trailing window must never exceed the budget.
			if n := limiter.InWindow(); n > maxRequests {
				t.Errorf("window holds %d admissions, budget is %d", n, maxRequests)
			}
		}()
	}
	wg.Wait()
}

func TestLimiter_OldStampsArePruned(t *testing.T) {
	limiter := New(2, 50*time.Millisecond)

	limiter.Wait()
	limiter.Wait()
	time.Sleep(60 * time.Millisecond)

	if n := limiter.InWindow(); n != 0 {
		t.Errorf("InWindow() after expiry = %d, want 0", n)
	}

	// Fresh admissions should not block.
	start := time.Now()
	limiter.Wait()
	limiter.Wait()
	if elapsed := time.Since(start); elapsed > 30*time.Millisecond {
		t.Errorf("admissions after expiry took %v, expected no blocking", elapsed)
	}
}

func TestNew_ClampsInvalidBudget(t *testing.T) {
	limiter := New(0, time.Second)
	if limiter.maxRequests != 1 {
		t.Errorf("maxRequests = %d, want clamped to 1", limiter.maxRequests)
	}
}
