package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/pkg/logger"
	"github.com/okian/tastebud/pkg/metrics"
)

// scanBatch bounds how many profiles one MGET fetches during a query.
const scanBatch = 500

// RedisStore keeps profiles in Redis:
//
//	<prefix>profile:<id>  JSON document
//	<prefix>usernames     hash username -> id
//	<prefix>ids           set of every id
//	<prefix>synthetic     set of ghost ids
//
// Queries fetch every profile and rank them in process.
type RedisStore struct {
	client *redis.Client
	opts   options
	logger logger.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to addr and verifies the server answers.
func NewRedisStore(ctx context.Context, addr, password string, db int, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, classify(err)
	}
	return NewRedisStoreWithClient(ctx, client, opts...), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(ctx context.Context, client *redis.Client, opts ...Option) *RedisStore {
	o := applyOptions(opts)
	s := &RedisStore{
		client:   client,
		opts:     o,
		logger:   o.logger,
		stopChan: make(chan struct{}),
	}
	s.startMetricsUpdater(ctx)
	return s
}

func (s *RedisStore) profileKey(id string) string { return s.opts.keyPrefix + "profile:" + id }
func (s *RedisStore) usernamesKey() string { return s.opts.keyPrefix + "usernames" }
func (s *RedisStore) idsKey() string { return s.opts.keyPrefix + "ids" }
func (s *RedisStore) syntheticKey() string { return s.opts.keyPrefix + "synthetic" }

// Close stops the metrics updater and closes the client.
func (s *RedisStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return s.client.Close()
}

// Upsert implements Store.Upsert.
func (s *RedisStore) Upsert(ctx context.Context, p model.Profile) (model.Profile, error) {
	start := time.Now()
	defer func() {
		metrics.RecordIndexLatency("upsert", float64(time.Since(start).Microseconds())/1000)
	}()

	if err := validate(p, s.opts.dimension); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_profile")
		return model.Profile{}, err
	}

	name := NormalizeUsername(p.Username)
	now := s.opts.now().UTC()
	stored := cloneProfile(p)
	stored.Username = name
	stored.UpdatedAt = now

	id, claimed, err := s.claimID(ctx, name)
	if err != nil {
		return model.Profile{}, err
	}
	stored.ID = id
	stored.CreatedAt = now
	if !claimed {
		data, err := s.client.Get(ctx, s.profileKey(id)).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// claimed by a writer that has not stored its document yet
		case err != nil:
			return model.Profile{}, classify(err)
		default:
			if prev, err := decodeProfile(data, s.opts.dimension); err == nil {
				stored.CreatedAt = prev.CreatedAt
			}
		}
	}

	payload, err := encodeProfile(stored)
	if err != nil {
		return model.Profile{}, fmt.Errorf("encode profile: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.profileKey(stored.ID), payload, 0)
		pipe.SAdd(ctx, s.idsKey(), stored.ID)
		if stored.Synthetic {
			pipe.SAdd(ctx, s.syntheticKey(), stored.ID)
		} else {
			pipe.SRem(ctx, s.syntheticKey(), stored.ID)
		}
		return nil
	})
	if err != nil {
		return model.Profile{}, classify(err)
	}
	return stored, nil
}

// claimID returns the id name maps to. A name without one gets a fresh id
// through HSETNX, so concurrent writers of a new name agree on a single id.
// claimed is true when this call created the mapping.
func (s *RedisStore) claimID(ctx context.Context, name string) (id string, claimed bool, err error) {
	id, err = s.client.HGet(ctx, s.usernamesKey(), name).Result()
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", false, classify(err)
	}

	fresh := s.opts.newID()
	claimed, err = s.client.HSetNX(ctx, s.usernamesKey(), name, fresh).Result()
	if err != nil {
		return "", false, classify(err)
	}
	if claimed {
		return fresh, true, nil
	}
	id, err = s.client.HGet(ctx, s.usernamesKey(), name).Result()
	if err != nil {
		return "", false, classify(err)
	}
	return id, false, nil
}

// GetByUsername implements Store.GetByUsername.
func (s *RedisStore) GetByUsername(ctx context.Context, username string) (model.Profile, error) {
	id, err := s.client.HGet(ctx, s.usernamesKey(), NormalizeUsername(username)).Result()
	if errors.Is(err, redis.Nil) {
		return model.Profile{}, model.ErrNotFound
	}
	if err != nil {
		return model.Profile{}, classify(err)
	}

	data, err := s.client.Get(ctx, s.profileKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Profile{}, model.ErrNotFound
	}
	if err != nil {
		return model.Profile{}, classify(err)
	}
	return decodeProfile(data, s.opts.dimension)
}

// Query implements Store.Query.
func (s *RedisStore) Query(ctx context.Context, vector model.Vector, k int, excludeIDs []string) ([]model.Hit, error) {
	start := time.Now()
	defer func() {
		metrics.RecordIndexLatency("query", float64(time.Since(start).Microseconds())/1000)
	}()

	if k < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	if len(vector) != s.opts.dimension {
		return nil, ErrDimensionMismatch
	}
	skip := excludeSet(excludeIDs)

	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, classify(err)
	}

	best := newTopK(k)
	err = s.scan(ctx, ids, func(p model.Profile) {
		if _, ok := skip[p.ID]; !ok {
			best.offer(vector, p)
		}
	})
	if err != nil {
		return nil, err
	}
	return best.result(), nil
}

// scan loads the given ids in batches. Ids whose document has gone are
// skipped; a document that fails to decode is logged and skipped.
func (s *RedisStore) scan(ctx context.Context, ids []string, fn func(model.Profile)) error {
	for lo := 0; lo < len(ids); lo += scanBatch {
		hi := min(lo+scanBatch, len(ids))
		keys := make([]string, 0, hi-lo)
		for _, id := range ids[lo:hi] {
			keys = append(keys, s.profileKey(id))
		}
		vals, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return classify(err)
		}
		for i, v := range vals {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			p, err := decodeProfile([]byte(raw), s.opts.dimension)
			if err != nil {
				s.logger.Warn(ctx, "skipping stored profile", logger.String("key", keys[i]), logger.Error(err))
				continue
			}
			fn(p)
		}
	}
	return nil
}

// Counts implements Store.Counts.
func (s *RedisStore) Counts(ctx context.Context) (Counts, error) {
	var total, synthetic *redis.IntCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		total = pipe.SCard(ctx, s.idsKey())
		synthetic = pipe.SCard(ctx, s.syntheticKey())
		return nil
	})
	if err != nil {
		return Counts{}, classify(err)
	}
	c := Counts{Total: int(total.Val()), Synthetic: int(synthetic.Val())}
	c.Real = c.Total - c.Synthetic
	return c, nil
}

// Usernames implements Store.Usernames.
func (s *RedisStore) Usernames(ctx context.Context, kind Kind) ([]string, error) {
	byName, err := s.client.HGetAll(ctx, s.usernamesKey()).Result()
	if err != nil {
		return nil, classify(err)
	}
	var ghosts map[string]struct{}
	if kind != KindAll {
		ids, err := s.client.SMembers(ctx, s.syntheticKey()).Result()
		if err != nil {
			return nil, classify(err)
		}
		ghosts = excludeSet(ids)
	}

	out := make([]string, 0, len(byName))
	for name, id := range byName {
		_, ghost := ghosts[id]
		if kind.matches(model.Profile{Synthetic: ghost}) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// DeleteSynthetic implements Store.DeleteSynthetic.
func (s *RedisStore) DeleteSynthetic(ctx context.Context) (int, error) {
	ids, err := s.client.SMembers(ctx, s.syntheticKey()).Result()
	if err != nil {
		return 0, classify(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var names []string
	if err := s.scan(ctx, ids, func(p model.Profile) { names = append(names, p.Username) }); err != nil {
		return 0, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		keys := make([]string, 0, len(ids))
		members := make([]interface{}, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, s.profileKey(id))
			members = append(members, id)
		}
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, s.idsKey(), members...)
		if len(names) > 0 {
			pipe.HDel(ctx, s.usernamesKey(), names...)
		}
		pipe.Del(ctx, s.syntheticKey())
		return nil
	})
	if err != nil {
		return 0, classify(err)
	}
	s.logger.Info(ctx, "synthetic profiles deleted", logger.Int("count", len(ids)))
	return len(ids), nil
}

// DeleteDuplicates implements Store.DeleteDuplicates.
func (s *RedisStore) DeleteDuplicates(ctx context.Context) (int, error) {
	byName, err := s.client.HGetAll(ctx, s.usernamesKey()).Result()
	if err != nil {
		return 0, classify(err)
	}
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return 0, classify(err)
	}

	groups := make(map[string][]model.Profile)
	err = s.scan(ctx, ids, func(p model.Profile) {
		name := NormalizeUsername(p.Username)
		groups[name] = append(groups[name], p)
	})
	if err != nil {
		return 0, err
	}
	drop, repoint := duplicates(groups, func(name string) (string, bool) {
		id, ok := byName[name]
		return id, ok
	})
	if len(drop) == 0 && len(repoint) == 0 {
		return 0, nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(drop) > 0 {
			keys := make([]string, 0, len(drop))
			members := make([]interface{}, 0, len(drop))
			for _, p := range drop {
				keys = append(keys, s.profileKey(p.ID))
				members = append(members, p.ID)
			}
			pipe.Del(ctx, keys...)
			pipe.SRem(ctx, s.idsKey(), members...)
			pipe.SRem(ctx, s.syntheticKey(), members...)
		}
		for name, id := range repoint {
			pipe.HSet(ctx, s.usernamesKey(), name, id)
		}
		return nil
	})
	if err != nil {
		return 0, classify(err)
	}
	s.logger.Info(ctx, "duplicate profiles deleted", logger.Int("count", len(drop)))
	return len(drop), nil
}

func (s *RedisStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				c, err := s.Counts(ctx)
				if err != nil {
					continue
				}
				metrics.UpdateProfileCount(KindReal.String(), c.Real)
				metrics.UpdateProfileCount(KindSynthetic.String(), c.Synthetic)
			}
		}
	}()
}

// classify maps a transport failure onto the dependency taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: redis: %v", model.ErrDependencyTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: redis: %v", model.ErrDependencyUnavailable, err)
	}
}
