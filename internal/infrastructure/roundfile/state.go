package roundfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"arc72scan/internal/domain"
)

// StateFile keeps the next round to scan as a plain decimal in a text file.
type StateFile struct {
	path string
}

func NewStateFile(path string) (*StateFile, error) {
	if path == "" {
		return nil, errors.New("state file path is required")
	}
	return &StateFile{path: path}, nil
}

func (s *StateFile) LoadNextRound(ctx context.Context) (uint64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, err
	}
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return 0, false, nil
	}
	round, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: state %q: %w", domain.ErrDecode, value, err)
	}
	return round, true, nil
}

func (s *StateFile) SaveNextRound(ctx context.Context, round uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return writeAtomic(s.path, []byte(strconv.FormatUint(round, 10)))
}

func (s *StateFile) ClearNextRound(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *StateFile) Ping(ctx context.Context) error {
	return ctx.Err()
}
