package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedisZ emula los sorted sets que usa el store de sesiones de consola.
type fakeRedisZ struct {
	sets     map[string]map[string]float64
	expireAt map[string]time.Time
	err      error
}

func newFakeRedisZ() *fakeRedisZ {
	return &fakeRedisZ{sets: make(map[string]map[string]float64), expireAt: make(map[string]time.Time)}
}

func (f *fakeRedisZ) set(key string) map[string]float64 {
	if f.sets[key] == nil {
		f.sets[key] = make(map[string]float64)
	}
	return f.sets[key]
}

func (f *fakeRedisZ) intCmd(ctx context.Context, n int64) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	cmd.SetVal(n)
	return cmd
}

func (f *fakeRedisZ) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	if f.err == nil {
		for _, m := range members {
			f.set(key)[m.Member.(string)] = m.Score
		}
	}
	return f.intCmd(ctx, int64(len(members)))
}

func (f *fakeRedisZ) ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd {
	var n int64
	if f.err == nil {
		limit, _ := strconv.ParseFloat(max, 64)
		for m, score := range f.set(key) {
			if min == "-inf" && score <= limit {
				delete(f.sets[key], m)
				n++
			}
		}
	}
	return f.intCmd(ctx, n)
}

func (f *fakeRedisZ) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) *redis.IntCmd {
	var n int64
	if f.err == nil {
		members := make([]string, 0, len(f.set(key)))
		for m := range f.sets[key] {
			members = append(members, m)
		}
		sort.Slice(members, func(i, j int) bool { return f.sets[key][members[i]] < f.sets[key][members[j]] })
		if stop < 0 {
			stop += int64(len(members))
		}
		for i := start; i <= stop && i < int64(len(members)); i++ {
			delete(f.sets[key], members[i])
			n++
		}
	}
	return f.intCmd(ctx, n)
}

func (f *fakeRedisZ) ExpireAt(ctx context.Context, key string, tm time.Time) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.expireAt[key] = tm
	cmd.SetVal(true)
	return cmd
}

func (f *fakeRedisZ) ZScore(ctx context.Context, key, member string) *redis.FloatCmd {
	cmd := redis.NewFloatCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	score, ok := f.set(key)[member]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(score)
	return cmd
}

func (f *fakeRedisZ) ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	var n int64
	if f.err == nil {
		for _, m := range members {
			if _, ok := f.set(key)[m.(string)]; ok {
				delete(f.sets[key], m.(string))
				n++
			}
		}
	}
	return f.intCmd(ctx, n)
}

func (f *fakeRedisZ) ZCard(ctx context.Context, key string) *redis.IntCmd {
	return f.intCmd(ctx, int64(len(f.sets[key])))
}

func (f *fakeRedisZ) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	if f.err == nil {
		for _, k := range keys {
			if _, ok := f.sets[k]; ok {
				delete(f.sets, k)
				n++
			}
		}
	}
	return f.intCmd(ctx, n)
}

// consoleStores arma cada implementacion con el mismo reloj controlable.
func consoleStores(now *time.Time) map[string]RefreshTokenStore {
	clock := func() time.Time { return *now }
	mem := NewMemoryRefreshTokenStore().(*memoryRefreshTokenStore)
	mem.now = clock
	return map[string]RefreshTokenStore{
		"memory": mem,
		"redis": &redisRefreshTokenStore{
			client:  newFakeRedisZ(),
			prefix:  "chat:admin:sessions:",
			timeout: time.Second,
			now:     clock,
		},
	}
}

func TestRefreshTokenStore_ConsoleSessions(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for name, store := range consoleStores(&now) {
		t.Run(name, func(t *testing.T) {
			start := now
			defer func() { now = start }()

			// El operador entra desde mas dispositivos que el limite; el mas viejo queda fuera.
			for i := 0; i <= MaxConsoleSessions; i++ {
				exp := now.Add(time.Duration(i+1) * time.Hour)
				if err := store.Store("admin:ops@agency.test", fmt.Sprintf("device-%d", i), exp); err != nil {
					t.Fatalf("store device-%d: %v", i, err)
				}
			}
			if ok, _ := store.Valid("admin:ops@agency.test", "device-0"); ok {
				t.Fatalf("expected oldest console session evicted")
			}
			for i := 1; i <= MaxConsoleSessions; i++ {
				if ok, err := store.Valid("admin:ops@agency.test", fmt.Sprintf("device-%d", i)); err != nil || !ok {
					t.Fatalf("expected device-%d valid, got %v err=%v", i, ok, err)
				}
			}

			// Un jti no vale bajo otro operador.
			if ok, _ := store.Valid("admin:sales@agency.test", "device-1"); ok {
				t.Fatalf("expected token scoped to its operator")
			}

			if err := store.Revoke("admin:ops@agency.test", "device-1"); err != nil {
				t.Fatalf("revoke: %v", err)
			}
			if ok, _ := store.Valid("admin:ops@agency.test", "device-1"); ok {
				t.Fatalf("expected revoked session invalid")
			}

			now = now.Add(200 * time.Minute)
			if ok, _ := store.Valid("admin:ops@agency.test", "device-2"); ok {
				t.Fatalf("expected expired session invalid")
			}
			if ok, _ := store.Valid("admin:ops@agency.test", "device-3"); !ok {
				t.Fatalf("expected device-3 still valid")
			}
		})
	}
}

func TestRefreshTokenStore_RevokeAllSignsOutOneOperator(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for name, store := range consoleStores(&now) {
		t.Run(name, func(t *testing.T) {
			exp := now.Add(time.Hour)
			for _, jti := range []string{"laptop", "phone"} {
				if err := store.Store("admin:ops@agency.test", jti, exp); err != nil {
					t.Fatalf("store: %v", err)
				}
			}
			if err := store.Store("admin:sales@agency.test", "laptop", exp); err != nil {
				t.Fatalf("store: %v", err)
			}

			n, err := store.RevokeAll("admin:ops@agency.test")
			if err != nil || n != 2 {
				t.Fatalf("expected 2 sessions revoked, got %d err=%v", n, err)
			}
			for _, jti := range []string{"laptop", "phone"} {
				if ok, _ := store.Valid("admin:ops@agency.test", jti); ok {
					t.Fatalf("expected %s signed out", jti)
				}
			}
			if ok, _ := store.Valid("admin:sales@agency.test", "laptop"); !ok {
				t.Fatalf("expected other operator untouched")
			}
			if err := store.Store("", "laptop", exp); !errors.Is(err, ErrJWTInvalid) {
				t.Fatalf("expected ErrJWTInvalid without operator, got %v", err)
			}
		})
	}
}

func TestRedisRefreshTokenStore_KeyExpiryAndErrors(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	fake := newFakeRedisZ()
	store := &redisRefreshTokenStore{client: fake, prefix: "chat:admin:sessions:", timeout: time.Second, now: func() time.Time { return now }}

	exp := now.Add(7 * 24 * time.Hour)
	if err := store.Store("admin:ops@agency.test", "laptop", exp); err != nil {
		t.Fatalf("store: %v", err)
	}
	if got := fake.expireAt["chat:admin:sessions:admin:ops@agency.test"]; !got.Equal(exp) {
		t.Fatalf("expected operator key to expire with its newest token, got %v", got)
	}

	fake.err = errors.New("redis down")
	if err := store.Store("admin:ops@agency.test", "phone", exp); err == nil {
		t.Fatalf("expected store error")
	}
	if _, err := store.Valid("admin:ops@agency.test", "laptop"); err == nil {
		t.Fatalf("expected valid error")
	}
	if _, err := store.RevokeAll("admin:ops@agency.test"); err == nil {
		t.Fatalf("expected revoke all error")
	}
}
