package roundfile

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"arc72scan/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zeroAddress = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ"

func TestPersister_WriteAndRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p, err := NewPersister(dir)
	require.NoError(t, err)
	ctx := context.Background()

	events := []domain.TransferEvent{
		{Round: 100, ContractID: 42, TokenID: big.NewInt(7), Owner: zeroAddress},
		{Round: 100, ContractID: 43, TokenID: big.NewInt(8), Owner: zeroAddress},
	}
	require.NoError(t, p.WriteRound(ctx, 100, events))

	got, ok, err := p.ReadRound(ctx, 100)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(42), got[0].ContractID)
	assert.Equal(t, 0, got[1].TokenID.Cmp(big.NewInt(8)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "100.json", entries[0].Name())
}

func TestPersister_EmptyRoundIsEmptyArray(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersister(dir)
	require.NoError(t, err)

	require.NoError(t, p.WriteRound(context.Background(), 5, nil))

	raw, err := os.ReadFile(filepath.Join(dir, "5.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(raw))
}

func TestPersister_OverwritesRound(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersister(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, p.WriteRound(ctx, 9, []domain.TransferEvent{{Round: 9, ContractID: 1, TokenID: big.NewInt(1), Owner: zeroAddress}}))
	first, err := os.ReadFile(filepath.Join(dir, "9.json"))
	require.NoError(t, err)

	require.NoError(t, p.WriteRound(ctx, 9, []domain.TransferEvent{}))
	got, ok, err := p.ReadRound(ctx, 9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)

	require.NoError(t, p.WriteRound(ctx, 9, []domain.TransferEvent{{Round: 9, ContractID: 1, TokenID: big.NewInt(1), Owner: zeroAddress}}))
	again, err := os.ReadFile(filepath.Join(dir, "9.json"))
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestPersister_LargeTokenIDRoundTrips(t *testing.T) {
	p, err := NewPersister(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	token, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)

	require.NoError(t, p.WriteRound(ctx, 1, []domain.TransferEvent{{Round: 1, ContractID: 2, TokenID: token, Owner: zeroAddress}}))
	got, _, err := p.ReadRound(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, got[0].TokenID.Cmp(token))
}

func TestPersister_ReadMissingRound(t *testing.T) {
	p, err := NewPersister(t.TempDir())
	require.NoError(t, err)
	_, ok, err := p.ReadRound(context.Background(), 77)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPersister_ReadCorruptRound(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersister(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "3.json"), []byte("{not json"), 0o644))

	_, _, err = p.ReadRound(context.Background(), 3)
	require.ErrorIs(t, err, domain.ErrDecode)
}

func TestPersister_WriteFailsWhenDirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	p, err := NewPersister(file)
	require.NoError(t, err)

	assert.Error(t, p.WriteRound(context.Background(), 1, nil))
}

func TestStateFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "round.txt")
	s, err := NewStateFile(path)
	require.NoError(t, err)

	_, ok, err := s.LoadNextRound(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveNextRound(ctx, 1234))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1234", string(raw))

	round, ok, err := s.LoadNextRound(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1234), round)

	require.NoError(t, s.ClearNextRound(ctx))
	_, ok, err = s.LoadNextRound(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.ClearNextRound(ctx))
}

func TestStateFile_Unparsable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc\n"), 0o644))
	s, err := NewStateFile(path)
	require.NoError(t, err)

	_, _, err = s.LoadNextRound(context.Background())
	require.ErrorIs(t, err, domain.ErrDecode)
}

func TestStateFile_TrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round.txt")
	require.NoError(t, os.WriteFile(path, []byte(" 55\n"), 0o644))
	s, err := NewStateFile(path)
	require.NoError(t, err)

	round, ok, err := s.LoadNextRound(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(55), round)
}
