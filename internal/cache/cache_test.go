package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBackendExpiry(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	backend := NewMemoryBackend()
	backend.NowFunc = func() time.Time { return now }
	ctx := context.Background()

	if err := backend.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, ok, err := backend.Get(ctx, "k")
	if err != nil || !ok || string(value) != "v" {
		t.Fatalf("expected hit got %q %v %v", value, ok, err)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := backend.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestMemoryBackendDelete(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	_ = backend.Set(ctx, "k", []byte("v"), time.Minute)
	if err := backend.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := backend.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestMemoryBackendCopiesValues(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	value := []byte("abc")
	_ = backend.Set(ctx, "k", value, time.Minute)
	value[0] = 'z'

	got, _, _ := backend.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("expected stored copy got %q", got)
	}
}

type listing struct {
	Names []string `json:"names"`
}

func TestJSONCache(t *testing.T) {
	c := NewJSON[listing](NewMemoryBackend(), time.Minute)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "dir"); ok || err != nil {
		t.Fatalf("expected clean miss got %v %v", ok, err)
	}

	if err := c.Set(ctx, "dir", listing{Names: []string{"ann", "bo"}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.Get(ctx, "dir")
	if err != nil || !ok || len(got.Names) != 2 || got.Names[1] != "bo" {
		t.Fatalf("unexpected cached value %+v %v %v", got, ok, err)
	}

	var unset *JSON[listing]
	if _, _, err := unset.Get(ctx, "dir"); err != ErrBackendUnavailable {
		t.Fatalf("expected backend unavailable got %v", err)
	}
}
