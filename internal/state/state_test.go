package state

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"nft-alerts/internal/market"
)

func TestKeyNamespacing(t *testing.T) {
	k := Key{Chain: "mainnet", Stream: market.StreamListings, Field: FieldCursor}
	if k.String() != "nftalerts:mainnet:listings:cursor" {
		t.Fatalf("unexpected key %q", k.String())
	}
	other := Key{Chain: "base", Stream: market.StreamListings, Field: FieldCursor}
	if k.String() == other.String() {
		t.Fatal("chains must not share keys")
	}
	if !strings.HasPrefix(k.String(), KeyPrefix("mainnet")) || strings.HasPrefix(other.String(), KeyPrefix("mainnet")) {
		t.Fatalf("KeyPrefix should select exactly one chain's keys")
	}
}

func TestStoreCursorLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(), "mainnet")

	cur, err := store.Cursor(ctx, market.StreamSales)
	if err != nil {
		t.Fatalf("Cursor failed: %v", err)
	}
	if cur.Set {
		t.Fatal("fresh store should return the null cursor")
	}

	if err := store.SetCursor(ctx, market.StreamSales, "sale-5"); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}
	cur, _ = store.Cursor(ctx, market.StreamSales)
	if !cur.Set || cur.LastSeenID != "sale-5" {
		t.Fatalf("cursor not persisted: %+v", cur)
	}

	if err := store.ClearCursor(ctx, market.StreamSales); err != nil {
		t.Fatalf("ClearCursor failed: %v", err)
	}
	cur, _ = store.Cursor(ctx, market.StreamSales)
	if cur.Set {
		t.Fatal("cleared cursor should be null")
	}

	if err := store.SetCursor(ctx, market.StreamSales, ""); err == nil {
		t.Fatal("empty cursor id should be rejected")
	}
	if _, err := store.Cursor(ctx, market.Stream("mints")); !errors.Is(err, ErrUnknownStream) {
		t.Fatalf("expected ErrUnknownStream, got %v", err)
	}
}

func TestStoreCooldownExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	backend := NewMemoryBackend().WithClock(func() time.Time { return now })
	store := NewStore(backend, "mainnet")

	if err := store.ArmCooldown(ctx, market.StreamFloor, 30*time.Minute); err != nil {
		t.Fatalf("ArmCooldown failed: %v", err)
	}
	active, _ := store.CooldownActive(ctx, market.StreamFloor)
	if !active {
		t.Fatal("cooldown should be active right after arming")
	}

	now = now.Add(30 * time.Minute)
	active, _ = store.CooldownActive(ctx, market.StreamFloor)
	if active {
		t.Fatal("cooldown should expire after its window")
	}

	if err := store.ArmCooldown(ctx, market.StreamFloor, 0); err != nil {
		t.Fatalf("zero ttl should clear the marker: %v", err)
	}
	active, _ = store.CooldownActive(ctx, market.StreamFloor)
	if active {
		t.Fatal("zero ttl must not leave a marker")
	}
}

func TestStoreLastValueAndReset(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(), "mainnet")

	if _, ok, _ := store.LastValue(ctx, market.StreamBid); ok {
		t.Fatal("no value expected initially")
	}
	if err := store.SetLastValue(ctx, market.StreamBid, decimal.RequireFromString("12.345")); err != nil {
		t.Fatalf("SetLastValue failed: %v", err)
	}
	_ = store.SetCursor(ctx, market.StreamBid, "77")
	_ = store.ArmCooldown(ctx, market.StreamBid, time.Hour)

	snap, err := store.Snapshot(ctx, market.StreamBid)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !snap.LastValue.Valid || !snap.LastValue.Decimal.Equal(decimal.RequireFromString("12.345")) {
		t.Fatalf("unexpected last value %+v", snap.LastValue)
	}
	if !snap.CooldownActive || snap.Cursor.LastSeenID != "77" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if err := store.Reset(ctx, market.StreamBid); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	snap, _ = store.Snapshot(ctx, market.StreamBid)
	if snap.Cursor.Set || snap.CooldownActive || snap.LastValue.Valid {
		t.Fatalf("reset should clear everything: %+v", snap)
	}
}

func TestRedisBackend(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	backend := NewRedisBackendFromClient(client)
	defer backend.Close()

	ctx := context.Background()
	if err := backend.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	store := NewStore(backend, "mainnet")
	if err := store.SetCursor(ctx, market.StreamListings, "order-1"); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}
	if got, _ := srv.Get("nftalerts:mainnet:listings:cursor"); got != "order-1" {
		t.Fatalf("redis key not written, got %q", got)
	}

	if err := store.ArmCooldown(ctx, market.StreamFloor, time.Minute); err != nil {
		t.Fatalf("ArmCooldown failed: %v", err)
	}
	active, _ := store.CooldownActive(ctx, market.StreamFloor)
	if !active {
		t.Fatal("cooldown should be active")
	}
	srv.FastForward(2 * time.Minute)
	active, _ = store.CooldownActive(ctx, market.StreamFloor)
	if active {
		t.Fatal("cooldown should expire in redis")
	}

	if err := store.ClearCursor(ctx, market.StreamListings); err != nil {
		t.Fatalf("ClearCursor failed: %v", err)
	}
	if srv.Exists("nftalerts:mainnet:listings:cursor") {
		t.Fatal("cursor should be deleted")
	}
}

type flakyPinger struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyPinger) Ping(ctx context.Context) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitReady(t *testing.T) {
	p := &flakyPinger{failures: 2}
	if err := WaitReady(context.Background(), p, 5, time.Millisecond, zerolog.Nop()); err != nil {
		t.Fatalf("WaitReady should succeed after retries: %v", err)
	}
	if p.calls.Load() != 3 {
		t.Fatalf("expected 3 pings, got %d", p.calls.Load())
	}

	p = &flakyPinger{failures: 10}
	if err := WaitReady(context.Background(), p, 2, time.Millisecond, zerolog.Nop()); err == nil {
		t.Fatal("WaitReady should give up")
	}
}
