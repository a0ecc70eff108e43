// Package redisstore keeps usersys login sessions in Redis.
//
// Each session is stored as JSON under <prefix>:session:<id> and indexed in
// the set <prefix>:user:<user id> so a user's sessions can be dropped at once.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	usersys "github.com/goliatone/go-usersys"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces all keys written by the store
const DefaultPrefix = "usersys"

// ErrRedisUnavailable wraps transport failures talking to Redis
var ErrRedisUnavailable = errors.New("redis unavailable")

// Store implements usersys.SessionStore on top of go-redis
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ usersys.SessionStore = (*Store)(nil)

type Option func(*Store)

// WithPrefix overrides DefaultPrefix
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL expires idle sessions after ttl. Zero keeps them until deleted.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

func NewStore(client redis.UniversalClient, opts ...Option) *Store {
	if client == nil {
		panic("redisstore: missing redis client")
	}
	s := &Store{
		redis:  client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(id string) string {
	return s.prefix + ":session:" + id
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

func (s *Store) CreateSession(ctx context.Context, session *usersys.Session) (*usersys.Session, error) {
	if session == nil {
		return nil, fmt.Errorf("redisstore: nil session")
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	if session.LastAccess.IsZero() {
		session.LastAccess = session.CreatedAt
	}

	encoded, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}

	id := session.ID.String()
	userKey := s.userKey(session.UserID.String())
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(id), encoded, s.ttl)
		pipe.SAdd(ctx, userKey, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*usersys.Session, error) {
	if id == "" {
		return nil, nil
	}

	raw, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	session := &usersys.Session{}
	if err := json.Unmarshal(raw, session); err != nil {
		return nil, fmt.Errorf("redisstore: corrupt session %s: %w", id, err)
	}
	return session, nil
}

func (s *Store) TouchSession(ctx context.Context, id string, at time.Time) error {
	session, err := s.GetSession(ctx, id)
	if err != nil || session == nil {
		return err
	}

	session.LastAccess = at
	encoded, err := json.Marshal(session)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(id), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	session, err := s.GetSession(ctx, id)
	if err != nil || session == nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		pipe.SRem(ctx, s.userKey(session.UserID.String()), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	userKey := s.userKey(userID.String())

	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.key(id))
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SessionIDs lists the ids currently indexed for the user
func (s *Store) SessionIDs(ctx context.Context, userID uuid.UUID) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID.String())).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}
