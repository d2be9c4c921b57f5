package cache

import (
	"testing"
	"time"
)

func TestCache_SetAndGet(t *testing.T) {
	c := New[string](time.Minute, time.Minute)

	c.Set("key1", "value1")

	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key1 to be present")
	}
	if val != "value1" {
		t.Fatalf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMissing(t *testing.T) {
	c := New[string](time.Minute, time.Minute)

	if _, ok := c.Get("nonexistent"); ok {
		t.Fatal("expected miss for nonexistent key")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New[string](10*time.Millisecond, time.Minute)

	c.Set("expiring", "value")

	// Should exist immediately
	if _, ok := c.Get("expiring"); !ok {
		t.Fatal("expected hit immediately after set")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("expiring"); ok {
		t.Fatal("expected miss after expiry")
	}
	// The read must have removed the entry, not merely hidden it.
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be deleted, %d entries remain", c.Len())
	}
}

func TestCache_EmptyKeyNoop(t *testing.T) {
	c := New[string](time.Minute, time.Minute)

	c.Set("", "value")
	if c.Len() != 0 {
		t.Fatal("Set with empty key must not store an entry")
	}
	if _, ok := c.Get(""); ok {
		t.Fatal("Get with empty key must miss")
	}
}

func TestCache_Overwrite(t *testing.T) {
	c := New[string](time.Minute, time.Minute)

	c.Set("key", "old")
	c.Set("key", "new")

	val, ok := c.Get("key")
	if !ok || val != "new" {
		t.Fatalf("expected 'new', got '%s' (ok=%v)", val, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("expected exactly one entry, got %d", c.Len())
	}
}

func TestCache_GetMany(t *testing.T) {
	c := New[int](20*time.Millisecond, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)

	got := c.GetMany([]string{"a", "b", "missing", ""})
	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(got))
	}
	if got["a"] != 1 || got["b"] != 2 {
		t.Fatalf("unexpected values: %v", got)
	}

	time.Sleep(30 * time.Millisecond)

	got = c.GetMany([]string{"a", "b"})
	if len(got) != 0 {
		t.Fatalf("expected no hits after expiry, got %v", got)
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entries deleted, %d remain", c.Len())
	}
}

func TestCache_PeriodicSweep(t *testing.T) {
	c := New[string](5*time.Millisecond, 10*time.Millisecond)

	// Written once, never read again: only the sweep can remove these.
	c.Set("stale1", "v")
	c.Set("stale2", "v")
	c.Set("live", "v")

	time.Sleep(15 * time.Millisecond)

	// Refresh one entry, then trigger a sweep via an unrelated read.
	c.Set("live", "v")
	c.Get("live")

	if c.Len() != 1 {
		t.Fatalf("expected sweep to leave only the live entry, got %d", c.Len())
	}
}
