package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/ports"
)

func newTestCache(t *testing.T) ports.Cache {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	c := NewLocalCache(time.Hour, logger)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLocalCacheSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "status:dev-1", `{"status":"Charging"}`, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := c.Get(ctx, "status:dev-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != `{"status":"Charging"}` {
		t.Errorf("unexpected value: %s", got)
	}
}

func TestLocalCacheMarshalsStructs(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", map[string]int{"connectorId": 1}, 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != `{"connectorId":1}` {
		t.Errorf("unexpected value: %s", got)
	}
}

func TestLocalCacheExpiration(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Nanosecond); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); err == nil {
		t.Fatal("expected expired key to miss")
	}
}

func TestLocalCacheDeleteByPrefix(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "sessions:list:c=cust-1", "[]", time.Minute)
	c.Set(ctx, "sessions:list:c=cust-2", "[]", time.Minute)
	c.Set(ctx, "status:dev-1", "ok", time.Minute)

	if err := c.DeleteByPrefix(ctx, "sessions:list:"); err != nil {
		t.Fatalf("delete by prefix failed: %v", err)
	}

	if _, err := c.Get(ctx, "sessions:list:c=cust-1"); err == nil {
		t.Error("expected listing key to be dropped")
	}
	if _, err := c.Get(ctx, "status:dev-1"); err != nil {
		t.Error("expected status key to survive")
	}
}

func TestEncodeValueNormalizesAcrossDrivers(t *testing.T) {
	snap := domain.DeviceStatusSnapshot{
		DeviceID:   "CP-001",
		Status:     "Charging",
		ObservedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	encoded, err := encodeValue(snap)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var decoded domain.DeviceStatusSnapshot
	if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
		t.Fatalf("encoded value is not valid JSON: %v", err)
	}
	if decoded != snap {
		t.Errorf("round trip mismatch: %+v", decoded)
	}

	// The in-memory driver must store exactly the encoded form, so a value
	// written through either driver reads back the same string.
	c := newTestCache(t)
	ctx := context.Background()
	if err := c.Set(ctx, "status:CP-001", snap, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	stored, err := c.Get(ctx, "status:CP-001")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored != encoded {
		t.Errorf("stored form diverges from encoded form: %s vs %s", stored, encoded)
	}

	if s, err := encodeValue("plain"); err != nil || s != "plain" {
		t.Errorf("strings must pass through, got %q err %v", s, err)
	}
	if s, err := encodeValue([]byte("raw")); err != nil || s != "raw" {
		t.Errorf("bytes must pass through, got %q err %v", s, err)
	}
}

func TestSessionListKeyIsDeterministic(t *testing.T) {
	f := ports.SessionFilter{CustomerID: "cust-1", Status: "active", Limit: 50}
	if SessionListKey(f) != SessionListKey(f) {
		t.Fatal("expected identical filters to produce identical keys")
	}
	other := ports.SessionFilter{CustomerID: "cust-2", Status: "active", Limit: 50}
	if SessionListKey(f) == SessionListKey(other) {
		t.Fatal("expected different filters to produce different keys")
	}
}
