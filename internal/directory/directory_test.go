package directory

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisDirectory(t *testing.T) (*RedisDirectory, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedisDirectory(client, time.Hour), mr
}

func implementations(t *testing.T) map[string]Directory {
	redisDir, _ := newRedisDirectory(t)
	return map[string]Directory{
		"memory": NewMemoryDirectory(time.Hour),
		"redis":  redisDir,
	}
}

func TestMarkerIsIdempotent(t *testing.T) {
	for name, dir := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := dir.ClearPinVerified(ctx, "tab-1", "user-1"); err != nil {
				t.Fatalf("clear on empty: %v", err)
			}
			for i := 0; i < 2; i++ {
				if err := dir.MarkPinVerified(ctx, "tab-1", "user-1"); err != nil {
					t.Fatalf("mark #%d: %v", i, err)
				}
			}
			ok, err := dir.IsPinVerified(ctx, "tab-1", "user-1")
			if err != nil || !ok {
				t.Fatalf("expected verified, got %v, %v", ok, err)
			}

			if err := dir.ClearPinVerified(ctx, "tab-1", "user-1"); err != nil {
				t.Fatalf("clear: %v", err)
			}
			ok, err = dir.IsPinVerified(ctx, "tab-1", "user-1")
			if err != nil || ok {
				t.Fatalf("expected cleared, got %v, %v", ok, err)
			}
		})
	}
}

func TestMarkersDoNotCrossScopesOrIdentities(t *testing.T) {
	for name, dir := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := dir.MarkPinVerified(ctx, "tab-1", "user-1"); err != nil {
				t.Fatalf("mark: %v", err)
			}
			for _, probe := range [][2]string{{"tab-1", "user-2"}, {"tab-2", "user-1"}} {
				ok, err := dir.IsPinVerified(ctx, probe[0], probe[1])
				if err != nil || ok {
					t.Fatalf("marker leaked to %v: %v, %v", probe, ok, err)
				}
			}
		})
	}
}

func TestPinFailureCounter(t *testing.T) {
	for name, dir := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for want := 1; want <= 3; want++ {
				got, err := dir.RecordPinFailure(ctx, "tab-1", "user-1")
				if err != nil {
					t.Fatalf("record: %v", err)
				}
				if got != want {
					t.Fatalf("expected %d, got %d", want, got)
				}
			}
			if err := dir.ResetPinFailures(ctx, "tab-1", "user-1"); err != nil {
				t.Fatalf("reset: %v", err)
			}
			got, err := dir.RecordPinFailure(ctx, "tab-1", "user-1")
			if err != nil || got != 1 {
				t.Fatalf("expected counter restart at 1, got %d, %v", got, err)
			}
		})
	}
}

func TestEmptyKeysRejected(t *testing.T) {
	for name, dir := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := dir.MarkPinVerified(ctx, "", "user-1"); err == nil {
				t.Fatal("expected error for empty scope")
			}
			if _, err := dir.IsPinVerified(ctx, "tab-1", ""); err == nil {
				t.Fatal("expected error for empty identity")
			}
			if err := dir.PurgeLegacy(ctx, ""); err == nil {
				t.Fatal("expected error for empty scope")
			}
		})
	}
}

func TestRedisMarkerExpires(t *testing.T) {
	dir, mr := newRedisDirectory(t)
	ctx := context.Background()
	if err := dir.MarkPinVerified(ctx, "tab-1", "user-1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	mr.FastForward(2 * time.Hour)
	ok, err := dir.IsPinVerified(ctx, "tab-1", "user-1")
	if err != nil || ok {
		t.Fatalf("expected expired marker, got %v, %v", ok, err)
	}
}

func TestRedisPurgeLegacy(t *testing.T) {
	dir, mr := newRedisDirectory(t)
	mr.Set("legacy:tab-1:isAuthenticated", "true")
	mr.Set("legacy:tab-1:user", `{"id":"u"}`)
	mr.Set("legacy:tab-2:user", `{"id":"v"}`)

	if err := dir.PurgeLegacy(context.Background(), "tab-1"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if mr.Exists("legacy:tab-1:isAuthenticated") || mr.Exists("legacy:tab-1:user") {
		t.Fatal("expected tab-1 legacy flags removed")
	}
	if !mr.Exists("legacy:tab-2:user") {
		t.Fatal("purge touched another scope")
	}
}

func TestMemoryExpiryAndLegacy(t *testing.T) {
	dir := NewMemoryDirectory(time.Minute)
	now := time.Now()
	dir.now = func() time.Time { return now }
	ctx := context.Background()

	_ = dir.MarkPinVerified(ctx, "tab-1", "user-1")
	now = now.Add(2 * time.Minute)
	if ok, _ := dir.IsPinVerified(ctx, "tab-1", "user-1"); ok {
		t.Fatal("expected expired marker")
	}

	dir.SetLegacyFlag("tab-1", "isAuthenticated", "true")
	if _, ok := dir.LegacyFlag("tab-1", "isAuthenticated"); !ok {
		t.Fatal("expected legacy flag")
	}
	_ = dir.PurgeLegacy(ctx, "tab-1")
	if _, ok := dir.LegacyFlag("tab-1", "isAuthenticated"); ok {
		t.Fatal("expected legacy flag purged")
	}
}
