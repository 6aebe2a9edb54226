package roundfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"arc72scan/internal/domain"
)

// Persister writes one JSON array per round into a directory.
type Persister struct {
	dir string
}

func NewPersister(dir string) (*Persister, error) {
	if dir == "" {
		return nil, errors.New("output dir is required")
	}
	return &Persister{dir: dir}, nil
}

func (p *Persister) Dir() string {
	return p.dir
}

func (p *Persister) path(round uint64) string {
	return filepath.Join(p.dir, strconv.FormatUint(round, 10)+".json")
}

// WriteRound replaces the round file with the given events. An empty set is
// written as [].
func (p *Persister) WriteRound(ctx context.Context, round uint64, events []domain.TransferEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if events == nil {
		events = []domain.TransferEvent{}
	}
	payload, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("encode round %d: %w", round, err)
	}
	payload = append(payload, '\n')
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return writeAtomic(p.path(round), payload)
}

// ReadRound returns the persisted events for a round and false when the round
// was never written.
func (p *Persister) ReadRound(ctx context.Context, round uint64) ([]domain.TransferEvent, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	payload, err := os.ReadFile(p.path(round))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var events []domain.TransferEvent
	if err := json.Unmarshal(payload, &events); err != nil {
		return nil, false, fmt.Errorf("%w: round %d: %w", domain.ErrDecode, round, err)
	}
	return events, true, nil
}

func (p *Persister) Ping(ctx context.Context) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return err
	}
	info, err := os.Stat(p.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", p.dir)
	}
	return nil
}

func writeAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
