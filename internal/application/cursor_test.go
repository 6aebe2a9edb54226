package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundCursor_Next(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		state *memoryState
		want  uint64
	}{
		{name: "missing state uses start", state: &memoryState{}, want: 1000},
		{name: "zero state uses start", state: &memoryState{set: true, next: 0}, want: 1000},
		{name: "unreadable state uses start", state: &memoryState{loadErr: errBoom}, want: 1000},
		{name: "stored round wins", state: &memoryState{set: true, next: 1234}, want: 1234},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor, err := NewRoundCursor(tt.state, 1000)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cursor.Next(ctx))
		})
	}
}

func TestRoundCursor_Advance(t *testing.T) {
	ctx := context.Background()
	state := &memoryState{}
	cursor, err := NewRoundCursor(state, 10)
	require.NoError(t, err)

	require.NoError(t, cursor.Advance(ctx, 11))
	assert.Equal(t, uint64(11), cursor.Next(ctx))

	state.saveErr = errBoom
	require.ErrorIs(t, cursor.Advance(ctx, 12), errBoom)
	assert.Equal(t, uint64(11), cursor.Next(ctx))
}
