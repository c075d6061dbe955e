package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStorageTest(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s, err := NewRedisStorage(rdb, "wellness:", time.Second)
	if err != nil {
		t.Fatalf("NewRedisStorage() error: %v", err)
	}
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return s, mr
}

func TestRedisStorageRoundTrip(t *testing.T) {
	s, mr := newRedisStorageTest(t)

	if _, ok, err := s.GetItem("users"); err != nil || ok {
		t.Fatalf("expected absent key, ok=%v err=%v", ok, err)
	}
	if err := s.SetItem("users", "[]"); err != nil {
		t.Fatalf("SetItem() error: %v", err)
	}
	raw, err := mr.Get("wellness:users")
	if err != nil {
		t.Fatalf("miniredis get: %v", err)
	}
	if raw != "[]" {
		t.Fatalf("expected prefixed key to hold [], got %q", raw)
	}

	v, ok, err := s.GetItem("users")
	if err != nil || !ok || v != "[]" {
		t.Fatalf("unexpected GetItem() result: %q ok=%v err=%v", v, ok, err)
	}
	if err := s.RemoveItem("users"); err != nil {
		t.Fatalf("RemoveItem() error: %v", err)
	}
	if err := s.RemoveItem("users"); err != nil {
		t.Fatalf("second RemoveItem() error: %v", err)
	}
	if mr.Exists("wellness:users") {
		t.Fatalf("expected key deleted")
	}
}

func TestRedisStoragePing(t *testing.T) {
	s, _ := newRedisStorageTest(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

func TestOpenRedisRequiresAddr(t *testing.T) {
	if _, err := OpenRedis(RedisOptions{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}
