package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClassifier struct {
	calls   int
	verdict bool
	err     error
}

func (c *countingClassifier) Classify(context.Context, []byte) (bool, error) {
	c.calls++
	return c.verdict, c.err
}

func TestCached_MemoizesVerdict(t *testing.T) {
	next := &countingClassifier{verdict: true}
	cached, err := NewCached(next, 1)
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, cached.IsTargetStandard(ctx, []byte{1, 2, 3}))
	assert.True(t, cached.IsTargetStandard(ctx, []byte{1, 2, 3}))
	assert.Equal(t, 1, next.calls)

	next.verdict = false
	assert.False(t, cached.IsTargetStandard(ctx, []byte{4}))
	assert.False(t, cached.IsTargetStandard(ctx, []byte{4}))
	assert.Equal(t, 2, next.calls)

	hits, misses := cached.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(2), misses)
}

func TestCached_DoesNotCacheFailures(t *testing.T) {
	next := &countingClassifier{err: errors.New("node down")}
	cached, err := NewCached(next, 1)
	require.NoError(t, err)
	ctx := context.Background()

	assert.False(t, cached.IsTargetStandard(ctx, []byte{9}))
	next.err = nil
	next.verdict = true
	assert.True(t, cached.IsTargetStandard(ctx, []byte{9}))
	assert.Equal(t, 2, next.calls)
}

func TestCached_EmptyProgram(t *testing.T) {
	next := &countingClassifier{verdict: true}
	cached, err := NewCached(next, 0)
	require.NoError(t, err)
	assert.False(t, cached.IsTargetStandard(context.Background(), nil))
	assert.Zero(t, next.calls)
}

func TestNewCached_RequiresClassifier(t *testing.T) {
	_, err := NewCached(nil, 1)
	assert.Error(t, err)
}
