package cache

import (
	"context"
	"testing"
	"time"
)

// 需要本地Redis实例，连不上时跳过
func newTestMirror(t *testing.T) (*StockMirror, *RedisCache) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping Redis test in short mode")
	}

	rc, err := NewRedisCache("localhost:6379", "", 1) // 使用DB 1避免冲突
	if err != nil {
		t.Skipf("Skipping Redis test, cannot connect: %v", err)
	}
	t.Cleanup(func() { rc.Close() })

	return NewStockMirror(rc.Client()), rc
}

func TestStockMirror_SetGet(t *testing.T) {
	mirror, _ := newTestMirror(t)
	ctx := context.Background()

	defer mirror.Invalidate(ctx, 9001)

	if err := mirror.Set(ctx, 9001, 42, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	stock, found, err := mirror.Get(ctx, 9001)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("expected mirror hit")
	}
	if stock != 42 {
		t.Errorf("expected stock=42, got %d", stock)
	}
}

func TestStockMirror_GetMissing(t *testing.T) {
	mirror, _ := newTestMirror(t)
	ctx := context.Background()

	_, found, err := mirror.Get(ctx, 9002)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("expected mirror miss for absent key")
	}
}

func TestStockMirror_ApplyDelta(t *testing.T) {
	mirror, _ := newTestMirror(t)
	ctx := context.Background()

	defer mirror.Invalidate(ctx, 9003)

	if err := mirror.Set(ctx, 9003, 10, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	newStock, applied, err := mirror.ApplyDelta(ctx, 9003, -3, time.Minute)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if !applied {
		t.Fatal("expected delta to apply")
	}
	if newStock != 7 {
		t.Errorf("expected stock=7, got %d", newStock)
	}

	newStock, applied, err = mirror.ApplyDelta(ctx, 9003, 5, time.Minute)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if !applied || newStock != 12 {
		t.Errorf("expected applied with stock=12, got applied=%v stock=%d", applied, newStock)
	}
}

func TestStockMirror_ApplyDeltaMiss(t *testing.T) {
	mirror, _ := newTestMirror(t)
	ctx := context.Background()

	_, applied, err := mirror.ApplyDelta(ctx, 9004, -1, time.Minute)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if applied {
		t.Error("delta must not apply to an absent key")
	}
}

func TestStockMirror_ApplyDeltaDrift(t *testing.T) {
	mirror, _ := newTestMirror(t)
	ctx := context.Background()

	defer mirror.Invalidate(ctx, 9005)

	if err := mirror.Set(ctx, 9005, 2, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// 追加后为负说明镜像漂移，键应被删除
	_, applied, err := mirror.ApplyDelta(ctx, 9005, -5, time.Minute)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if applied {
		t.Error("negative result must not apply")
	}

	_, found, err := mirror.Get(ctx, 9005)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("drifted key should be invalidated")
	}
}

func TestStockMirror_GetBatch(t *testing.T) {
	mirror, _ := newTestMirror(t)
	ctx := context.Background()

	defer mirror.Invalidate(ctx, 9006, 9007)

	if err := mirror.Set(ctx, 9006, 3, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := mirror.Set(ctx, 9007, 0, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	stocks, err := mirror.GetBatch(ctx, []int64{9006, 9007, 9008})
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}

	if got := stocks[9006]; got != 3 {
		t.Errorf("expected stock=3 for 9006, got %d", got)
	}
	if got, ok := stocks[9007]; !ok || got != 0 {
		t.Errorf("expected stock=0 for 9007, got %d (ok=%v)", got, ok)
	}
	if _, ok := stocks[9008]; ok {
		t.Error("absent product should not appear in batch result")
	}
}
