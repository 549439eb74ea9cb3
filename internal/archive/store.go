package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mhardt/gambit/internal/obslog"
)

const recordTTL = 30 * 24 * time.Hour

// Store keeps finished-match records in Redis, indexed per participant.
type Store struct {
	rdb *redis.Client
}

func NewStore(redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for match archive")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Save persists one record and indexes it under both participants.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("archive store not initialized")
	}
	if rec == nil || strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("invalid record")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, recordKey(rec.ID), raw, recordTTL).Err(); err != nil {
		return err
	}
	for _, userID := range []string{rec.WhiteID, rec.BlackID} {
		if strings.TrimSpace(userID) == "" {
			continue
		}
		key := idxUserKey(userID)
		if err := s.rdb.SAdd(ctx, key, rec.ID).Err(); err != nil {
			return err
		}
		// refresh index TTL alongside the record
		_ = s.rdb.Expire(ctx, key, recordTTL).Err()
	}
	obslog.L().Info("archive_saved",
		zap.String("record_id", rec.ID),
		zap.String("outcome", rec.Outcome),
		zap.String("method", rec.Method),
	)
	return nil
}

// Get returns a record by id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, recordKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ByUser returns a participant's records, most recent first.
func (s *Store) ByUser(ctx context.Context, userID string) ([]*Record, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	ids, err := s.rdb.SMembers(ctx, idxUserKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var list []*Record
	for _, id := range ids {
		rec, rerr := s.Get(ctx, id)
		if rerr == nil && rec != nil {
			list = append(list, rec)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].EndedAt.After(list[j].EndedAt) })
	return list, nil
}

func recordKey(id string) string  { return "archive:match:" + strings.TrimSpace(id) }
func idxUserKey(id string) string { return "archive:index:user:" + strings.TrimSpace(id) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
