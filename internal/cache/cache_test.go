// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package cache

import (
	"sync"
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New(time.Minute)

	c.Set("stats:vid-1", 42)
	got, ok := c.Get("stats:vid-1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.(int) != 42 {
		t.Errorf("got %v, want 42", got)
	}

	if _, ok := c.Get("stats:vid-2"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestExpiration(t *testing.T) {
	c := New(time.Minute)

	c.SetWithTTL("ephemeral", "value", 10*time.Millisecond)
	if _, ok := c.Get("ephemeral"); !ok {
		t.Fatal("entry should be present before expiry")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("ephemeral"); ok {
		t.Error("entry should have expired")
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := New(time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted entry should be gone")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("other entries should survive delete")
	}

	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Error("clear should remove all entries")
	}
}

func TestStatsAndHitRate(t *testing.T) {
	c := New(time.Minute)

	c.Set("k", 1)
	c.Get("k")       // hit
	c.Get("missing") // miss

	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %d hits, %d misses, want 1, 1", stats.Hits, stats.Misses)
	}
	if rate := c.HitRate(); rate != 50.0 {
		t.Errorf("HitRate = %v, want 50.0", rate)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := GenerateKey("topVideos", i%4)
			c.Set(key, i)
			c.Get(key)
		}(i)
	}
	wg.Wait()
}

func TestGenerateKeyDeterministic(t *testing.T) {
	type params struct {
		VideoID string
		Limit   int
	}

	a := GenerateKey("topVideos", params{VideoID: "vid-1", Limit: 10})
	b := GenerateKey("topVideos", params{VideoID: "vid-1", Limit: 10})
	if a != b {
		t.Errorf("equal params should produce equal keys: %q vs %q", a, b)
	}

	other := GenerateKey("topVideos", params{VideoID: "vid-1", Limit: 20})
	if a == other {
		t.Error("different params should produce different keys")
	}
}
