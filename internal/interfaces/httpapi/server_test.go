package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"arc72scan/internal/application"
	"arc72scan/internal/config"
	"arc72scan/internal/domain"
	"arc72scan/internal/infrastructure/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ"

type fakeStore struct {
	rounds   map[uint64][]domain.TransferEvent
	queryErr error
	pingErr  error
	filter   application.TransferQueryFilter
}

func (f *fakeStore) ReadRound(_ context.Context, round uint64) ([]domain.TransferEvent, bool, error) {
	events, ok := f.rounds[round]
	return events, ok, nil
}

func (f *fakeStore) QueryTransfers(_ context.Context, filter application.TransferQueryFilter) ([]domain.TransferEvent, error) {
	f.filter = filter
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []domain.TransferEvent
	for _, events := range f.rounds {
		out = append(out, events...)
	}
	return out, nil
}

func (f *fakeStore) RoundRange(context.Context) (uint64, uint64, bool, error) {
	return 0, 0, false, nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

type fakeState struct {
	next    uint64
	ok      bool
	cleared bool
}

func (f *fakeState) LoadNextRound(context.Context) (uint64, bool, error) { return f.next, f.ok, nil }

func (f *fakeState) SaveNextRound(_ context.Context, round uint64) error {
	f.next, f.ok = round, true
	return nil
}

func (f *fakeState) ClearNextRound(context.Context) error {
	f.next, f.ok, f.cleared = 0, false, true
	return nil
}

type fakeNode struct{ err error }

func (f fakeNode) LatestRound(context.Context) (uint64, error) { return 500, f.err }

func newTestServer(t *testing.T, store *fakeStore, state *fakeState, node fakeNode) http.Handler {
	t.Helper()
	cfg := config.Config{Network: "testnet", StartRound: 10, PollInterval: time.Second}
	server, err := NewServer(cfg, store, state, node, nil, BuildInfo{Version: "1.2.3"})
	require.NoError(t, err)
	return server.Handler()
}

func do(t *testing.T, handler http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, target, body))
	return rec
}

func storeWithRound() *fakeStore {
	return &fakeStore{rounds: map[uint64][]domain.TransferEvent{
		42: {{Round: 42, ContractID: 7, TokenID: big.NewInt(3), Owner: owner}},
		43: {},
	}}
}

func TestHealthAndVersion(t *testing.T) {
	handler := newTestServer(t, storeWithRound(), &fakeState{}, fakeNode{})

	rec := do(t, handler, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, handler, http.MethodGet, "/version", nil)
	assert.JSONEq(t, `{"version":"1.2.3","commit":"","build_time":""}`, rec.Body.String())
}

func TestReady(t *testing.T) {
	rec := do(t, newTestServer(t, storeWithRound(), &fakeState{}, fakeNode{}), http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, newTestServer(t, &fakeStore{pingErr: errors.New("locked")}, &fakeState{}, fakeNode{}), http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "storage")

	rec = do(t, newTestServer(t, storeWithRound(), &fakeState{}, fakeNode{err: domain.ErrNetwork}), http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "node")
}

func TestRound(t *testing.T) {
	handler := newTestServer(t, storeWithRound(), &fakeState{}, fakeNode{})

	rec := do(t, handler, http.MethodGet, "/rounds/42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`[{"round":42,"contractId":7,"tokenId":3,"owner":%q}]`, owner), rec.Body.String())

	rec = do(t, handler, http.MethodGet, "/rounds/43", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, handler, http.MethodGet, "/rounds/44", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, handler, http.MethodGet, "/rounds/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransfers(t *testing.T) {
	store := storeWithRound()
	handler := newTestServer(t, store, &fakeState{}, fakeNode{})

	rec := do(t, handler, http.MethodGet, "/transfers?contract_id=7&from_round=40&to_round=50&limit=5&owner="+owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.filter.ContractID)
	assert.Equal(t, uint64(7), *store.filter.ContractID)
	assert.Equal(t, uint64(40), *store.filter.FromRound)
	assert.Equal(t, uint64(50), *store.filter.ToRound)
	assert.Equal(t, 5, store.filter.Limit)
	assert.Equal(t, owner, store.filter.Owner)

	var events []domain.TransferEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 1)
}

func TestTransfers_BadRequests(t *testing.T) {
	handler := newTestServer(t, storeWithRound(), &fakeState{}, fakeNode{})
	for _, target := range []string{
		"/transfers?contract_id=x",
		"/transfers?from_round=-1",
		"/transfers?from_round=9&to_round=3",
		"/transfers?limit=-5",
		"/transfers?owner=not-an-address",
	} {
		rec := do(t, handler, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestTransfers_StoreErrors(t *testing.T) {
	rec := do(t, newTestServer(t, &fakeStore{queryErr: storage.ErrIndexUnavailable}, &fakeState{}, fakeNode{}), http.MethodGet, "/transfers", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, newTestServer(t, &fakeStore{queryErr: errors.New("boom")}, &fakeState{}, fakeNode{}), http.MethodGet, "/transfers", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestState(t *testing.T) {
	state := &fakeState{next: 101, ok: true}
	handler := newTestServer(t, storeWithRound(), state, fakeNode{})

	rec := do(t, handler, http.MethodGet, "/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(101), body["next_round"])
	assert.Equal(t, true, body["has_state"])
	assert.Equal(t, "testnet", body["network"])
}

func TestRescan(t *testing.T) {
	state := &fakeState{next: 101, ok: true}
	handler := newTestServer(t, storeWithRound(), state, fakeNode{})

	rec := do(t, handler, http.MethodPost, "/rescan?from_round=50", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(50), state.next)

	rec = do(t, handler, http.MethodPost, "/rescan", strings.NewReader(`{"from_round":"60"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(60), state.next)

	rec = do(t, handler, http.MethodPost, "/rescan", strings.NewReader(`{"from_round":0}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, state.cleared)
	assert.Contains(t, rec.Body.String(), `"next_round":10`)

	rec = do(t, handler, http.MethodPost, "/rescan", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, handler, http.MethodGet, "/rescan?from_round=1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := NewMetrics("testnet")
	server, err := NewServer(config.Config{Network: "testnet"}, storeWithRound(), &fakeState{}, fakeNode{}, metrics, BuildInfo{})
	require.NoError(t, err)

	metrics.OnLatestRound(120)
	metrics.OnRoundScanned(application.RoundResult{
		Network:    "testnet",
		Round:      100,
		Candidates: make([]domain.TransferCandidate, 3),
		Events:     []domain.TransferEvent{{Round: 100, ContractID: 1, TokenID: big.NewInt(1), Owner: owner}},
		Duration:   40 * time.Millisecond,
	})
	metrics.OnRoundFailed(101, fmt.Errorf("fetch round 101: %w", domain.ErrNetwork))

	rec := do(t, server.Handler(), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `arc72scan_latest_round{network="testnet"} 120`)
	assert.Contains(t, body, `arc72scan_last_scanned_round{network="testnet"} 100`)
	assert.Contains(t, body, `arc72scan_transfers_total{network="testnet",verdict="accepted"} 1`)
	assert.Contains(t, body, `arc72scan_transfers_total{network="testnet",verdict="rejected"} 2`)
	assert.Contains(t, body, `arc72scan_rounds_total{network="testnet",outcome="network_error"} 1`)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(20), snap.Lag())
	assert.Equal(t, uint64(1), snap.RoundsFailed)
	assert.Contains(t, snap.LastError, "network error")
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(config.Config{}, nil, &fakeState{}, fakeNode{}, nil, BuildInfo{})
	assert.Error(t, err)
}
