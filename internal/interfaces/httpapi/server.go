package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arc72scan/internal/application"
	"arc72scan/internal/config"
	"arc72scan/internal/domain"
	"arc72scan/internal/infrastructure/storage"
)

type TransferStore interface {
	ReadRound(ctx context.Context, round uint64) ([]domain.TransferEvent, bool, error)
	QueryTransfers(ctx context.Context, filter application.TransferQueryFilter) ([]domain.TransferEvent, error)
	RoundRange(ctx context.Context) (uint64, uint64, bool, error)
	Ping(ctx context.Context) error
}

type StateStore interface {
	LoadNextRound(ctx context.Context) (uint64, bool, error)
	SaveNextRound(ctx context.Context, round uint64) error
	ClearNextRound(ctx context.Context) error
}

type NodeStatus interface {
	LatestRound(ctx context.Context) (uint64, error)
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	cfg       config.Config
	store     TransferStore
	state     StateStore
	node      NodeStatus
	metrics   *Metrics
	buildInfo BuildInfo
}

func NewServer(cfg config.Config, store TransferStore, state StateStore, node NodeStatus, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if store == nil || state == nil || node == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics(cfg.Network)
	}
	return &Server{cfg: cfg, store: store, state: state, node: node, metrics: metrics, buildInfo: buildInfo}, nil
}

func (s *Server) MetricsObserver() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /rounds/{round}", s.handleRound)
	mux.HandleFunc("GET /transfers", s.handleTransfers)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("POST /rescan", s.handleRescan)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "storage not ready")
		return
	}
	if _, err := s.node.LatestRound(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "node not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	next, ok, err := s.state.LoadNextRound(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "state read failed")
		return
	}
	snap := s.metrics.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"network":    s.cfg.Network,
		"next_round": next,
		"has_state":  ok,
		"lag":        snap.Lag(),
		"progress":   snap,
		"config": map[string]any{
			"algod_url":       s.cfg.AlgodURL,
			"start_round":     s.cfg.StartRound,
			"scan_rounds":     s.cfg.ScanRounds,
			"follow":          s.cfg.Follow,
			"poll_interval":   s.cfg.PollInterval.String(),
			"verify_workers":  s.cfg.VerifyWorkers,
			"magic_literal":   s.cfg.MagicLiteral,
			"scan_inner_txns": s.cfg.ScanInner,
			"state_backend":   s.cfg.StateBackend,
			"output_dir":      s.cfg.OutputDir,
		},
	})
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	round, err := strconv.ParseUint(r.PathValue("round"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid round")
		return
	}
	events, ok, err := s.store.ReadRound(r.Context(), round)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "round read failed")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "round not scanned")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransferFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := s.store.QueryTransfers(r.Context(), filter)
	if err != nil {
		if errors.Is(err, storage.ErrIndexUnavailable) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

// handleRescan moves the cursor. from_round=0 clears the state so the next
// run starts at the configured start round.
func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	from, err := parseUintParam(r, "from_round")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if from == 0 {
		if err := s.state.ClearNextRound(r.Context()); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to reset state")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"next_round": s.cfg.StartRound,
		})
		return
	}

	if err := s.state.SaveNextRound(r.Context(), from); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update state")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"next_round": from,
	})
}

func parseTransferFilter(r *http.Request) (application.TransferQueryFilter, error) {
	query := r.URL.Query()
	limit, err := parseLimit(r)
	if err != nil {
		return application.TransferQueryFilter{}, err
	}
	contractID, err := parseOptionalUint(query.Get("contract_id"), "contract_id")
	if err != nil {
		return application.TransferQueryFilter{}, err
	}
	from, err := parseOptionalUint(query.Get("from_round"), "from_round")
	if err != nil {
		return application.TransferQueryFilter{}, err
	}
	to, err := parseOptionalUint(query.Get("to_round"), "to_round")
	if err != nil {
		return application.TransferQueryFilter{}, err
	}
	if from != nil && to != nil && *from > *to {
		return application.TransferQueryFilter{}, errors.New("from_round must not exceed to_round")
	}

	owner := strings.TrimSpace(query.Get("owner"))
	if owner != "" && !domain.IsValidAddress(owner) {
		return application.TransferQueryFilter{}, errors.New("invalid owner")
	}

	return application.TransferQueryFilter{
		ContractID: contractID,
		Owner:      owner,
		FromRound:  from,
		ToRound:    to,
		Limit:      limit,
	}, nil
}

func parseLimit(r *http.Request) (int, error) {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return 0, errors.New("invalid limit")
		}
		return value, nil
	}
	return 100, nil
}

func parseOptionalUint(raw, key string) (*uint64, error) {
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &value, nil
}

func parseUintParam(r *http.Request, key string) (uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return 0, fmt.Errorf("%s is required", key)
		}
		valueAny, ok := payload[key]
		if !ok {
			return 0, fmt.Errorf("%s is required", key)
		}
		switch v := valueAny.(type) {
		case float64:
			if v < 0 {
				return 0, fmt.Errorf("invalid %s", key)
			}
			return uint64(v), nil
		case string:
			value, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid %s", key)
			}
			return value, nil
		default:
			return 0, fmt.Errorf("invalid %s", key)
		}
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return value, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
