package embedding

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestVectorCodec(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3e-7}
	got, err := decodeVector(encodeVector(v))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(v) {
		t.Fatalf("len = %d, want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], v[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestRedisCache_GetSet(t *testing.T) {
	addr := os.Getenv("KOTAE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KOTAE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, addr, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	key := "test-" + uuid.New().String()
	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("expected miss for fresh key")
	}
	c.Set(ctx, key, []float32{1, 2, 3})
	v, ok := c.Get(ctx, key)
	if !ok || len(v) != 3 || v[2] != 3 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisCache(ctx, "127.0.0.1:1", time.Minute); err == nil {
		t.Error("expected error for unreachable redis")
	}
}
