package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "gto_dupfinder/internal/adapters/redis"
	"gto_dupfinder/internal/domain"
)

func newTestCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return redisad.NewFrom(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	in := domain.HotelDetail{HotelID: 42, Site: "example.com", Phone: "+380441234567"}
	if err := c.Set(ctx, "hotelinfo:42", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out domain.HotelDetail
	ok, err := c.Get(ctx, "hotelinfo:42", &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestCache_MissAndExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var out domain.HotelDetail
	if ok, err := c.Get(ctx, "hotelinfo:404", &out); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, "hotelinfo:1", domain.HotelDetail{HotelID: 1}, 30); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(31 * time.Second)
	if ok, _ := c.Get(ctx, "hotelinfo:1", &out); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestCache_Del(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "k", domain.HotelDetail{HotelID: 9}, 60)
	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	var out domain.HotelDetail
	if ok, _ := c.Get(ctx, "k", &out); ok {
		t.Fatalf("deleted key still present")
	}
}
