package classifier

import (
	"context"
	"crypto/sha512"
	"errors"
	"log/slog"

	"github.com/coocood/freecache"
)

const (
	verdictNo  byte = 0
	verdictYes byte = 1
)

// Classifier returns a verdict or the reason none could be reached.
type Classifier interface {
	Classify(ctx context.Context, program []byte) (bool, error)
}

// Cached memoizes verdicts by program hash for the life of the process.
// Failed lookups are not cached so a flaky node is retried on the next sighting.
type Cached struct {
	next  Classifier
	cache *freecache.Cache
}

func NewCached(next Classifier, sizeMB int) (*Cached, error) {
	if next == nil {
		return nil, errors.New("classifier is required")
	}
	if sizeMB <= 0 {
		sizeMB = 16
	}
	return &Cached{next: next, cache: freecache.NewCache(sizeMB * 1024 * 1024)}, nil
}

func (c *Cached) IsTargetStandard(ctx context.Context, program []byte) bool {
	if len(program) == 0 {
		return false
	}
	key := programKey(program)
	if value, err := c.cache.Get(key); err == nil && len(value) == 1 {
		return value[0] == verdictYes
	}

	ok, err := c.next.Classify(ctx, program)
	if err != nil {
		slog.Debug("program classification failed", "err", err, "program_len", len(program))
		return false
	}
	verdict := verdictNo
	if ok {
		verdict = verdictYes
	}
	_ = c.cache.Set(key, []byte{verdict}, 0)
	return ok
}

// Stats reports cache hits and misses since start.
func (c *Cached) Stats() (hits, misses int64) {
	return c.cache.HitCount(), c.cache.MissCount()
}

func programKey(program []byte) []byte {
	sum := sha512.Sum512_256(program)
	return sum[:]
}
