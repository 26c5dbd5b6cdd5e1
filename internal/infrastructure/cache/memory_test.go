package cache

import (
	"testing"
	"time"
)

func TestMemoryHitAndExpiry(t *testing.T) {
	c := NewMemory(50 * time.Millisecond)

	if _, ok := c.Get("repo_info:acme/widgets"); ok {
		t.Fatal("empty cache should miss")
	}

	c.Set("repo_info:acme/widgets", "payload")
	v, ok := c.Get("repo_info:acme/widgets")
	if !ok || v.(string) != "payload" {
		t.Fatalf("expected hit, got ok=%v v=%v", ok, v)
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := c.Get("repo_info:acme/widgets"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestMemoryDisabledWhenTTLZero(t *testing.T) {
	c := NewMemory(0)
	c.Set("k", "v")
	if _, ok := c.Get("k"); ok {
		t.Fatal("zero TTL must disable caching")
	}
	if c.Len() != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestMemoryClear(t *testing.T) {
	c := NewMemory(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("got %d entries after clear", c.Len())
	}
}
