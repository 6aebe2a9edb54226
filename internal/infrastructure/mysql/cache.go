package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"arc72scan/internal/application"
	"arc72scan/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	transferCacheVersionKey = "arc72scan:transfers:version"
	transferCacheKeyPrefix  = "arc72scan:transfers:v"
	defaultCacheTTL         = time.Hour
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedRepository serves transfer queries from redis. Every stored round bumps
// a version counter so stale entries are never read again.
type CachedRepository struct {
	*Repository
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedRepository(base *Repository, cfg CacheConfig) (*CachedRepository, error) {
	if base == nil {
		return nil, errors.New("base repository is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedRepository{Repository: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedRepository{Repository: base, cache: client, ttl: cfg.TTL}, nil
}

func (r *CachedRepository) StoreRound(ctx context.Context, round uint64, events []domain.TransferEvent) error {
	if err := r.Repository.StoreRound(ctx, round, events); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *CachedRepository) QueryTransfers(ctx context.Context, filter application.TransferQueryFilter) ([]domain.TransferEvent, error) {
	if r.cache == nil {
		return r.Repository.QueryTransfers(ctx, filter)
	}
	version, ok := r.cacheVersion(ctx)
	if !ok {
		return r.Repository.QueryTransfers(ctx, filter)
	}
	key := transferCacheKey(r.network, version, filter)
	if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
		var events []domain.TransferEvent
		if err := json.Unmarshal([]byte(cached), &events); err == nil {
			return events, nil
		}
	}

	events, err := r.Repository.QueryTransfers(ctx, filter)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return events, nil
	}
	_ = r.cache.Set(ctx, key, payload, r.ttl).Err()
	return events, nil
}

func (r *CachedRepository) Close() error {
	if r.cache != nil {
		_ = r.cache.Close()
	}
	return r.Repository.Close()
}

func (r *CachedRepository) cacheVersion(ctx context.Context) (string, bool) {
	version, err := r.cache.Get(ctx, transferCacheVersionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

func (r *CachedRepository) invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Incr(ctx, transferCacheVersionKey).Err()
}

func transferCacheKey(network, version string, filter application.TransferQueryFilter) string {
	var b strings.Builder
	b.Grow(128)
	b.WriteString(transferCacheKeyPrefix)
	b.WriteString(version)
	b.WriteString(":net=")
	b.WriteString(network)
	b.WriteString(":contract=")
	if filter.ContractID != nil {
		b.WriteString(strconv.FormatUint(*filter.ContractID, 10))
	} else {
		b.WriteString("any")
	}
	b.WriteString(":owner=")
	if filter.Owner != "" {
		b.WriteString(filter.Owner)
	} else {
		b.WriteString("any")
	}
	b.WriteString(":from=")
	if filter.FromRound != nil {
		b.WriteString(strconv.FormatUint(*filter.FromRound, 10))
	} else {
		b.WriteString("any")
	}
	b.WriteString(":to=")
	if filter.ToRound != nil {
		b.WriteString(strconv.FormatUint(*filter.ToRound, 10))
	} else {
		b.WriteString("any")
	}
	b.WriteString(":limit=")
	b.WriteString(strconv.Itoa(filter.NormalizedLimit()))
	return b.String()
}
