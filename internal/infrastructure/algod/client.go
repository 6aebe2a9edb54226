package algod

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"arc72scan/internal/domain"
)

const tokenHeader = "X-Algo-API-Token"

// Client talks to an algod node over its REST API.
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
		return nil, errors.New("algod url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// FetchBlock loads a round with its transactions. A round without
// transactions is returned as an empty block.
func (c *Client) FetchBlock(ctx context.Context, round uint64) (domain.Block, error) {
	var envelope blockEnvelope
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/v2/blocks/%d?format=json", round), nil, "", &envelope); err != nil {
		return domain.Block{}, err
	}
	if envelope.Block == nil {
		return domain.Block{}, fmt.Errorf("%w: round %d: response has no block", domain.ErrDecode, round)
	}
	block := domain.Block{
		Round:        round,
		Transactions: make([]domain.Transaction, 0, len(envelope.Block.Txns)),
	}
	for _, stxn := range envelope.Block.Txns {
		block.Transactions = append(block.Transactions, stxn.toDomain())
	}
	return block, nil
}

func (c *Client) LatestRound(ctx context.Context) (uint64, error) {
	var status nodeStatus
	if err := c.call(ctx, http.MethodGet, "/v2/status", nil, "", &status); err != nil {
		return 0, err
	}
	return status.LastRound, nil
}

// Disassemble returns the TEAL source of a compiled program.
func (c *Client) Disassemble(ctx context.Context, program []byte) (string, error) {
	var result disassembleResponse
	if err := c.call(ctx, http.MethodPost, "/v2/teal/disassemble", program, "application/x-binary", &result); err != nil {
		return "", err
	}
	return result.Result, nil
}

// ApplicationGlobalState returns an application's global state with values
// decoded as address, text or uint.
func (c *Client) ApplicationGlobalState(ctx context.Context, appID uint64) ([]domain.GlobalStateEntry, error) {
	var app applicationResponse
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/v2/applications/%d", appID), nil, "", &app); err != nil {
		return nil, err
	}
	entries := make([]domain.GlobalStateEntry, 0, len(app.Params.GlobalState))
	for _, kv := range app.Params.GlobalState {
		entries = append(entries, domain.GlobalStateEntry{
			Key:   string(kv.Key),
			Value: domain.DecodeStateValue(kv.Value.Bytes, kv.Value.Uint),
		})
	}
	return entries, nil
}

type blockEnvelope struct {
	Block *struct {
		Round uint64      `json:"rnd"`
		Txns  []signedTxn `json:"txns"`
	} `json:"block"`
}

type signedTxn struct {
	Txn   rawTxn     `json:"txn"`
	Delta *evalDelta `json:"dt,omitempty"`
}

type evalDelta struct {
	InnerTxns []signedTxn `json:"itx,omitempty"`
}

type rawTxn struct {
	Type            string   `json:"type"`
	Sender          []byte   `json:"snd"`
	ApplicationID   uint64   `json:"apid"`
	ApprovalProgram []byte   `json:"apap"`
	Args            [][]byte `json:"apaa"`
}

func (s signedTxn) toDomain() domain.Transaction {
	txn := domain.Transaction{
		Type:            domain.TxType(s.Txn.Type),
		ApplicationID:   s.Txn.ApplicationID,
		ApprovalProgram: s.Txn.ApprovalProgram,
		Args:            s.Txn.Args,
	}
	if sender, err := domain.EncodeAddress(s.Txn.Sender); err == nil {
		txn.Sender = sender
	}
	if s.Delta != nil {
		for _, inner := range s.Delta.InnerTxns {
			txn.InnerTxns = append(txn.InnerTxns, inner.toDomain())
		}
	}
	return txn
}

type nodeStatus struct {
	LastRound uint64 `json:"last-round"`
}

type disassembleResponse struct {
	Result string `json:"result"`
}

type applicationResponse struct {
	ID     uint64 `json:"id"`
	Params struct {
		GlobalState []struct {
			Key   []byte `json:"key"`
			Value struct {
				Type  int    `json:"type"`
				Bytes []byte `json:"bytes"`
				Uint  uint64 `json:"uint"`
			} `json:"value"`
		} `json:"global-state"`
	} `json:"params"`
}

type apiError struct {
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method, path string, body []byte, contentType string, result any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set(tokenHeader, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", domain.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", domain.ErrNetwork, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(payload, &apiErr)
		if apiErr.Message != "" {
			return fmt.Errorf("%w: %s %s: status %d: %s", domain.ErrNetwork, method, path, resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("%w: %s %s: status %d", domain.ErrNetwork, method, path, resp.StatusCode)
	}
	if err := json.Unmarshal(payload, result); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrDecode, path, err)
	}
	return nil
}
