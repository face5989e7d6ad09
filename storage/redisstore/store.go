package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/staffsync/errkind"
	"github.com/MrEthical07/staffsync/notify"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces keys when New is given an empty prefix.
const DefaultPrefix = "staffsync"

// ErrRedisUnavailable wraps transport and server failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrCorrupt is returned when a stored hash cannot be decoded.
var ErrCorrupt = errors.New("notification record corrupt")

const setReadScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return false
end
redis.call("HSET", KEYS[1], "read", ARGV[1])
return redis.call("HGETALL", KEYS[1])
`

var setReadLua = redis.NewScript(setReadScript)

const markAllReadScript = `
local changed = 0
for _, key in ipairs(KEYS) do
  if redis.call("HGET", key, "read") == "0" then
    redis.call("HSET", key, "read", "1")
    changed = changed + 1
  end
end
return changed
`

var markAllReadLua = redis.NewScript(markAllReadScript)

const deleteScript = `
local fields = redis.call("HGETALL", KEYS[1])
if #fields == 0 then
  return false
end
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[1])
return fields
`

var deleteLua = redis.NewScript(deleteScript)

const countUnreadScript = `
local count = 0
for _, key in ipairs(KEYS) do
  if redis.call("HGET", key, "read") == "0" then
    count = count + 1
  end
end
return count
`

var countUnreadLua = redis.NewScript(countUnreadScript)

// Store is a notify.Store backed by Redis. Every key carries the prefix as a
// hash tag, so one store lives in a single cluster slot.
type Store struct {
	redis redis.UniversalClient
	tag   string
}

var _ notify.Store = (*Store)(nil)

// New returns a Store using rdb. An empty prefix selects DefaultPrefix.
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{redis: rdb, tag: "{" + prefix + "}"}
}

func (s *Store) key(id string) string {
	return s.tag + ":n:" + id
}

func (s *Store) ownerKey(owner string) string {
	return s.tag + ":owner:" + owner
}

// ownedKeys returns the hash keys indexed under owner.
func (s *Store) ownedKeys(ctx context.Context, owner string) ([]string, error) {
	ids, err := s.redis.ZRange(ctx, s.ownerKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	return keys, nil
}

// Insert writes the hash and the owner index in one transaction.
func (s *Store) Insert(ctx context.Context, n notify.Notification) error {
	created := n.CreatedAt.UnixMilli()
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(n.ID),
			"id", n.ID,
			"owner", n.OwnerUserID,
			"title", n.Title,
			"message", n.Message,
			"kind", string(n.Kind),
			"read", boolField(n.IsRead),
			"created", strconv.FormatInt(created, 10),
		)
		pipe.ZAdd(ctx, s.ownerKey(n.OwnerUserID), redis.Z{Score: float64(created), Member: n.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (notify.Notification, error) {
	const op = "redisstore/FindByID"

	fields, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return notify.Notification{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return notify.Notification{}, fmt.Errorf("%s: %w", op, errkind.ErrNotFound)
	}
	return decode(fields)
}

func (s *Store) SetRead(ctx context.Context, id string, read bool) (notify.Notification, error) {
	const op = "redisstore/SetRead"

	res, err := setReadLua.Run(ctx, s.redis, []string{s.key(id)}, boolField(read)).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notify.Notification{}, fmt.Errorf("%s: %w", op, errkind.ErrNotFound)
		}
		return notify.Notification{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodePairs(res)
}

// MarkAllRead flips the hashes indexed under owner at call time. A
// notification inserted concurrently may stay unread.
func (s *Store) MarkAllRead(ctx context.Context, owner string) (int, error) {
	keys, err := s.ownedKeys(ctx, owner)
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	n, err := markAllReadLua.Run(ctx, s.redis, keys).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

func (s *Store) Delete(ctx context.Context, id string) (notify.Notification, error) {
	const op = "redisstore/Delete"

	owner, err := s.redis.HGet(ctx, s.key(id), "owner").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notify.Notification{}, fmt.Errorf("%s: %w", op, errkind.ErrNotFound)
		}
		return notify.Notification{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	res, err := deleteLua.Run(ctx, s.redis, []string{s.key(id), s.ownerKey(owner)}, id).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notify.Notification{}, fmt.Errorf("%s: %w", op, errkind.ErrNotFound)
		}
		return notify.Notification{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodePairs(res)
}

func (s *Store) CountUnread(ctx context.Context, owner string) (int, error) {
	keys, err := s.ownedKeys(ctx, owner)
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	n, err := countUnreadLua.Run(ctx, s.redis, keys).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

func (s *Store) ListByOwner(ctx context.Context, owner string, limit int) ([]notify.Notification, error) {
	if limit <= 0 {
		limit = notify.DefaultListLimit
	}
	ids, err := s.redis.ZRevRange(ctx, s.ownerKey(owner), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []notify.Notification{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]notify.Notification, 0, len(ids))
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		// Deleted between the range and the pipeline.
		if len(fields) == 0 {
			continue
		}
		n, err := decode(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func decodePairs(pairs []any) (notify.Notification, error) {
	if len(pairs)%2 != 0 {
		return notify.Notification{}, ErrCorrupt
	}
	fields := make(map[string]string, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		k, ok1 := pairs[i].(string)
		v, ok2 := pairs[i+1].(string)
		if !ok1 || !ok2 {
			return notify.Notification{}, ErrCorrupt
		}
		fields[k] = v
	}
	return decode(fields)
}

func decode(fields map[string]string) (notify.Notification, error) {
	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil || fields["id"] == "" || fields["owner"] == "" {
		return notify.Notification{}, ErrCorrupt
	}
	return notify.Notification{
		ID:          fields["id"],
		OwnerUserID: fields["owner"],
		Title:       fields["title"],
		Message:     fields["message"],
		Kind:        notify.Kind(fields["kind"]),
		IsRead:      fields["read"] == "1",
		CreatedAt:   time.UnixMilli(created).UTC(),
	}, nil
}
