package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// MaxConsoleSessions es cuantos refresh tokens vivos puede tener un operador a la vez.
// Al iniciar una sesion de consola de mas se descarta la que vence primero.
const MaxConsoleSessions = 5

// RefreshTokenStore lleva las sesiones de consola de cada operador: un jti por refresh token,
// agrupados por admin para poder cerrar todas juntas.
type RefreshTokenStore interface {
	Store(adminID, jti string, expiresAt time.Time) error
	Valid(adminID, jti string) (bool, error)
	Revoke(adminID, jti string) error
	RevokeAll(adminID string) (int, error)
}

type memoryRefreshTokenStore struct {
	mu       sync.Mutex
	sessions map[string]map[string]time.Time
	now      func() time.Time
}

func NewMemoryRefreshTokenStore() RefreshTokenStore {
	return &memoryRefreshTokenStore{
		sessions: make(map[string]map[string]time.Time),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryRefreshTokenStore) Store(adminID, jti string, expiresAt time.Time) error {
	if adminID == "" || jti == "" {
		return ErrJWTInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.prune(adminID)
	if active == nil {
		active = make(map[string]time.Time)
		s.sessions[adminID] = active
	}
	active[jti] = expiresAt
	for len(active) > MaxConsoleSessions {
		oldest := lo.MinBy(lo.Keys(active), func(a, b string) bool { return active[a].Before(active[b]) })
		delete(active, oldest)
	}
	return nil
}

func (s *memoryRefreshTokenStore) Valid(adminID, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.prune(adminID)[jti]
	return ok, nil
}

func (s *memoryRefreshTokenStore) Revoke(adminID, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prune(adminID), jti)
	return nil
}

func (s *memoryRefreshTokenStore) RevokeAll(adminID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.prune(adminID))
	delete(s.sessions, adminID)
	return n, nil
}

// prune descarta los tokens vencidos del operador y devuelve los vigentes.
func (s *memoryRefreshTokenStore) prune(adminID string) map[string]time.Time {
	active := s.sessions[adminID]
	now := s.now()
	for jti, exp := range active {
		if !exp.After(now) {
			delete(active, jti)
		}
	}
	if active != nil && len(active) == 0 {
		delete(s.sessions, adminID)
		return nil
	}
	return active
}

// redisZClient es el subconjunto de go-redis que usa el store; los tests lo reemplazan.
type redisZClient interface {
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) *redis.IntCmd
	ExpireAt(ctx context.Context, key string, tm time.Time) *redis.BoolCmd
	ZScore(ctx context.Context, key, member string) *redis.FloatCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// redisRefreshTokenStore guarda un sorted set por operador: miembro jti, score el vencimiento unix.
type redisRefreshTokenStore struct {
	client  redisZClient
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

func NewRedisRefreshTokenStore(client *redis.Client) RefreshTokenStore {
	if client == nil {
		return nil
	}
	return &redisRefreshTokenStore{
		client:  client,
		prefix:  "chat:admin:sessions:",
		timeout: 500 * time.Millisecond,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *redisRefreshTokenStore) key(adminID string) string {
	return s.prefix + adminID
}

func (s *redisRefreshTokenStore) Store(adminID, jti string, expiresAt time.Time) error {
	if adminID == "" || jti == "" {
		return ErrJWTInvalid
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	key := s.key(adminID)
	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", unixScore(s.now())).Err(); err != nil {
		return err
	}
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: float64(expiresAt.Unix()), Member: jti}).Err(); err != nil {
		return err
	}
	// Conserva los MaxConsoleSessions de vencimiento mas lejano.
	if err := s.client.ZRemRangeByRank(ctx, key, 0, -int64(MaxConsoleSessions)-1).Err(); err != nil {
		return err
	}
	return s.client.ExpireAt(ctx, key, expiresAt).Err()
}

func (s *redisRefreshTokenStore) Valid(adminID, jti string) (bool, error) {
	if adminID == "" || jti == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	score, err := s.client.ZScore(ctx, s.key(adminID), jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return int64(score) > s.now().Unix(), nil
}

func (s *redisRefreshTokenStore) Revoke(adminID, jti string) error {
	if adminID == "" || jti == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.ZRem(ctx, s.key(adminID), jti).Err()
}

func (s *redisRefreshTokenStore) RevokeAll(adminID string) (int, error) {
	if strings.TrimSpace(adminID) == "" {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	key := s.key(adminID)
	n, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return 0, err
	}
	return int(n), nil
}

func unixScore(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
