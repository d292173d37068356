// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New(time.Minute)

	c.Set("key", "value")
	got, ok := c.Get("key")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != "value" {
		t.Errorf("got %v", got)
	}
}

func TestGetMissing(t *testing.T) {
	c := New(time.Minute)

	if _, ok := c.Get("absent"); ok {
		t.Error("expected miss")
	}
}

func TestExpiryEvictsLazily(t *testing.T) {
	c := New(time.Minute)

	c.SetWithTTL("short", "value", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("expected expired entry to miss")
	}

	stats := c.GetStats()
	if stats.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", stats.Evictions)
	}
}

func TestOverwrite(t *testing.T) {
	c := New(time.Minute)

	c.Set("key", "old")
	c.Set("key", "new")

	got, _ := c.Get("key")
	if got != "new" {
		t.Errorf("got %v, want new", got)
	}
	if keys := c.GetStats().TotalKeys; keys != 1 {
		t.Errorf("total keys = %d, want 1", keys)
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := New(time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key still present")
	}

	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Error("cleared key still present")
	}
	if keys := c.GetStats().TotalKeys; keys != 0 {
		t.Errorf("total keys after clear = %d", keys)
	}
}

func TestStatsAndHitRate(t *testing.T) {
	c := New(time.Minute)

	c.Set("key", "value")
	c.Get("key")
	c.Get("key")
	c.Get("missing")

	stats := c.GetStats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("hits=%d misses=%d", stats.Hits, stats.Misses)
	}
	want := float64(2) / float64(3) * 100.0
	if rate := c.HitRate(); rate != want {
		t.Errorf("hit rate = %f, want %f", rate, want)
	}
}

func TestHitRateEmpty(t *testing.T) {
	c := New(time.Minute)
	if rate := c.HitRate(); rate != 0.0 {
		t.Errorf("empty cache hit rate = %f", rate)
	}
}

func TestCleanupRemovesExpired(t *testing.T) {
	c := New(time.Minute)

	c.SetWithTTL("stale", 1, 5*time.Millisecond)
	c.Set("fresh", 2)
	time.Sleep(20 * time.Millisecond)

	c.cleanup()

	stats := c.GetStats()
	if stats.TotalKeys != 1 {
		t.Errorf("total keys after cleanup = %d, want 1", stats.TotalKeys)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry removed by cleanup")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Set(fmt.Sprintf("key-%d", n%10), n)
		}(i)
		go func(n int) {
			defer wg.Done()
			c.Get(fmt.Sprintf("key-%d", n%10))
		}(i)
	}
	wg.Wait()

	if keys := c.GetStats().TotalKeys; keys > 10 {
		t.Errorf("total keys = %d, want at most 10", keys)
	}
}
