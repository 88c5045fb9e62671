package store

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGetSetExists(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, ok, err := m.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
	}
	if err := m.SetEx(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("SetEx() error = %v", err)
	}
	val, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || val != "v" {
		t.Fatalf("Get(k) = %q ok=%v err=%v, want v", val, ok, err)
	}
	exists, err := m.Exists(ctx, "k")
	if err != nil || !exists {
		t.Fatalf("Exists(k) = %v err=%v, want true", exists, err)
	}
	if exists, _ := m.Exists(ctx, "missing"); exists {
		t.Fatal("Exists(missing) = true, want false")
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	current := base
	m.now = func() time.Time { return current }

	if err := m.SetEx(ctx, "k", "v", 30*time.Second); err != nil {
		t.Fatalf("SetEx() error = %v", err)
	}

	current = base.Add(29 * time.Second)
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatal("key expired before its TTL")
	}

	current = base.Add(31 * time.Second)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("key survived past its TTL")
	}
	if exists, _ := m.Exists(ctx, "k"); exists {
		t.Fatal("Exists reports an expired key")
	}
	if got := m.Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0", got)
	}
}

func TestMemoryOverwriteRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	current := base
	m.now = func() time.Time { return current }

	_ = m.SetEx(ctx, "k", "v1", 10*time.Second)
	current = base.Add(8 * time.Second)
	_ = m.SetEx(ctx, "k", "v2", 10*time.Second)

	current = base.Add(15 * time.Second)
	val, ok, _ := m.Get(ctx, "k")
	if !ok || val != "v2" {
		t.Fatalf("Get(k) = %q ok=%v, want refreshed v2", val, ok)
	}
}

func TestNewDriverSelection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default is memory", cfg: Config{}},
		{name: "memory", cfg: Config{Driver: DriverMemory}},
		{name: "redis", cfg: Config{Driver: DriverRedis, RedisAddr: "localhost:6379"}},
		{name: "unknown", cfg: Config{Driver: "etcd"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				_ = kv.Close()
			}
		})
	}
}
