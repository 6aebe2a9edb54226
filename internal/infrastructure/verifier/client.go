package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"arc72scan/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client submits transfer candidates to the external verification service.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
}

type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("verifier url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Verify reports whether the service accepted the candidate. Every failure
// mode counts as not verified.
func (c *Client) Verify(ctx context.Context, candidate domain.TransferCandidate) bool {
	err := c.Submit(ctx, candidate)
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrVerificationRejected) {
		slog.Debug("verification rejected", "round", candidate.Round, "app_id", candidate.ContractID, "err", err)
	} else {
		slog.Warn("verification failed", "round", candidate.Round, "app_id", candidate.ContractID, "err", err)
	}
	return false
}

// Submit posts the candidate. It returns domain.ErrVerificationRejected for
// any status other than 200 and domain.ErrNetwork for transport failures.
func (c *Client) Submit(ctx context.Context, candidate domain.TransferCandidate) error {
	ctx, span := otel.Tracer("arc72scan/verifier").Start(ctx, "verifier.submit", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("round", int64(candidate.Round)),
		attribute.Int64("contract.id", int64(candidate.ContractID)),
		attribute.String("owner", candidate.Owner),
	)
	if candidate.TokenID != nil {
		span.SetAttributes(attribute.String("token.id", candidate.TokenID.String()))
	}

	err := c.submit(ctx, candidate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) submit(ctx context.Context, candidate domain.TransferCandidate) error {
	payload, err := json.Marshal(candidate)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", domain.ErrVerificationRejected, resp.StatusCode)
	}
	return nil
}
