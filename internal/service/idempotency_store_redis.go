package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ARamos00/nursery-tracker/internal/domain"
	"github.com/ARamos00/nursery-tracker/internal/repository"
)

// redisIdempotencyInsertScript stores a record only when the key is absent,
// mirroring the unique-insert contract of the SQL store. Returns 1 when the
// caller won, 0 when a record already existed.
var redisIdempotencyInsertScript = redis.NewScript(`
local key = KEYS[1]
local ttl_ms = ARGV[1]

if redis.call("EXISTS", key) == 1 then
  return 0
end

redis.call("HSET", key,
  "status_code", ARGV[2],
  "content_type", ARGV[3],
  "response_body", ARGV[4])
redis.call("PEXPIRE", key, ttl_ms)
return 1
`)

// RedisIdempotencyStore is a drop-in alternative to the GORM record store.
// Expiry is handled by Redis TTLs instead of the batch cleanup command.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisIdempotencyStore {
	if prefix == "" {
		prefix = "idem"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisIdempotencyStore) redisKey(tuple repository.IdempotencyTuple) string {
	// The tuple is hashed so arbitrary client keys and paths cannot produce
	// pathological Redis key lengths.
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%s|%s",
		tuple.OwnerID, tuple.Key, tuple.Method, tuple.Path, tuple.BodyHash)))
	return fmt.Sprintf("%s:%d:%s", s.prefix, tuple.OwnerID, hex.EncodeToString(sum[:]))
}

func (s *RedisIdempotencyStore) Find(ctx context.Context, tuple repository.IdempotencyTuple) (*domain.IdempotencyRecord, error) {
	values, err := s.client.HGetAll(ctx, s.redisKey(tuple)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	status, err := strconv.Atoi(values["status_code"])
	if err != nil {
		return nil, fmt.Errorf("parse stored status: %w", err)
	}
	body, err := base64.StdEncoding.DecodeString(values["response_body"])
	if err != nil {
		return nil, fmt.Errorf("decode stored body: %w", err)
	}
	return &domain.IdempotencyRecord{
		OwnerID:        tuple.OwnerID,
		IdempotencyKey: tuple.Key,
		Method:         tuple.Method,
		Path:           tuple.Path,
		BodyHash:       tuple.BodyHash,
		StatusCode:     status,
		ContentType:    values["content_type"],
		ResponseBody:   body,
	}, nil
}

func (s *RedisIdempotencyStore) Insert(ctx context.Context, rec *domain.IdempotencyRecord) error {
	tuple := repository.IdempotencyTuple{
		OwnerID:  rec.OwnerID,
		Key:      rec.IdempotencyKey,
		Method:   rec.Method,
		Path:     rec.Path,
		BodyHash: rec.BodyHash,
	}
	won, err := redisIdempotencyInsertScript.Run(
		ctx,
		s.client,
		[]string{s.redisKey(tuple)},
		int(s.ttl/time.Millisecond),
		rec.StatusCode,
		rec.ContentType,
		base64.StdEncoding.EncodeToString(rec.ResponseBody),
	).Int()
	if err != nil {
		return err
	}
	if won == 0 {
		return repository.ErrDuplicateIdempotencyRecord
	}
	return nil
}
