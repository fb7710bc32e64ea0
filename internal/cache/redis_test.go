package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

func stubRedis(t *testing.T, pingErr error) *string {
	t.Helper()
	origNewClient := newRedisClient
	origPing := pingRedis
	t.Cleanup(func() {
		newRedisClient = origNewClient
		pingRedis = origPing
	})

	var capturedAddr string
	newRedisClient = func(opts *redis.Options) *redis.Client {
		capturedAddr = opts.Addr
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return pingErr
	}
	return &capturedAddr
}

func TestConnectWithCustomAddr(t *testing.T) {
	addr := stubRedis(t, nil)

	client, err := Connect(context.Background(), "redis:9999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()
	if *addr != "redis:9999" {
		t.Fatalf("expected custom addr, got %s", *addr)
	}
}

func TestConnectWithURL(t *testing.T) {
	addr := stubRedis(t, nil)

	client, err := Connect(context.Background(), "redis://:secret@cache.internal:6380/2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()
	if *addr != "cache.internal:6380" {
		t.Fatalf("expected parsed addr, got %s", *addr)
	}
	if client.Options().DB != 2 || client.Options().Password != "secret" {
		t.Fatalf("unexpected options: %+v", client.Options())
	}
}

func TestConnectDisabled(t *testing.T) {
	addr := stubRedis(t, nil)

	client, err := Connect(context.Background(), "  ")
	if err != nil || client != nil {
		t.Fatalf("expected no client, got %v %v", client, err)
	}
	if *addr != "" {
		t.Fatal("no client should be constructed")
	}
}

func TestConnectPingFailure(t *testing.T) {
	stubRedis(t, errors.New("connection refused"))

	if _, err := Connect(context.Background(), "localhost:6379"); err == nil {
		t.Fatal("expected ping error")
	}
}

func TestOptionsRejectsBadURL(t *testing.T) {
	if _, err := Options("redis://host:notaport/x"); err == nil {
		t.Fatal("expected parse error")
	}
}
