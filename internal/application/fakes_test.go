package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"arc72scan/internal/domain"
)

type fakeSource struct {
	blocks map[uint64]domain.Block
	latest uint64
	err    error
}

func (f *fakeSource) FetchBlock(ctx context.Context, round uint64) (domain.Block, error) {
	if f.err != nil {
		return domain.Block{}, f.err
	}
	block, ok := f.blocks[round]
	if !ok {
		return domain.Block{}, fmt.Errorf("%w: round %d not available", domain.ErrNetwork, round)
	}
	return block, nil
}

func (f *fakeSource) LatestRound(ctx context.Context) (uint64, error) {
	return f.latest, nil
}

type fakeVerifier struct {
	mu       sync.Mutex
	reject   map[string]bool
	received []domain.TransferCandidate
}

func (f *fakeVerifier) Verify(ctx context.Context, candidate domain.TransferCandidate) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, candidate)
	return !f.reject[candidate.TokenID.String()]
}

type memoryWriter struct {
	rounds map[uint64][]byte
	writes int
}

func (m *memoryWriter) WriteRound(ctx context.Context, round uint64, events []domain.TransferEvent) error {
	if m.rounds == nil {
		m.rounds = make(map[uint64][]byte)
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return err
	}
	m.rounds[round] = payload
	m.writes++
	return nil
}

func (m *memoryWriter) events(round uint64) []domain.TransferEvent {
	var events []domain.TransferEvent
	_ = json.Unmarshal(m.rounds[round], &events)
	return events
}

type memoryState struct {
	next    uint64
	set     bool
	loadErr error
	saveErr error
}

func (m *memoryState) LoadNextRound(ctx context.Context) (uint64, bool, error) {
	if m.loadErr != nil {
		return 0, false, m.loadErr
	}
	return m.next, m.set, nil
}

func (m *memoryState) SaveNextRound(ctx context.Context, round uint64) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.next = round
	m.set = true
	return nil
}

type recordingSink struct {
	results []RoundResult
	err     error
}

func (r *recordingSink) PublishRound(ctx context.Context, result RoundResult) error {
	r.results = append(r.results, result)
	return r.err
}

type stubClassifier struct {
	match bool
	calls int
}

func (s *stubClassifier) IsTargetStandard(ctx context.Context, program []byte) bool {
	s.calls++
	return s.match
}

type stubDisassembler struct {
	source string
	err    error
}

func (s stubDisassembler) Disassemble(ctx context.Context, program []byte) (string, error) {
	return s.source, s.err
}

var errBoom = errors.New("boom")

func publicKey(seed byte) []byte {
	key := make([]byte, domain.PublicKeySize)
	for i := range key {
		key[i] = seed
	}
	return key
}

func transferCall(appID uint64, from, to byte, tokenBytes []byte) domain.Transaction {
	return domain.Transaction{
		Type:          domain.TxTypeApplicationCall,
		Sender:        mustAddress(publicKey(from)),
		ApplicationID: appID,
		Args:          [][]byte{TransferFromSelector, publicKey(from), publicKey(to), tokenBytes},
	}
}

func mustAddress(key []byte) string {
	addr, err := domain.EncodeAddress(key)
	if err != nil {
		panic(err)
	}
	return addr
}

func bigInt(v int64) *big.Int {
	return big.NewInt(v)
}
