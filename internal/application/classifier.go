package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// DefaultMagicLiteral is the ARC-72 core interface selector as it appears in
// disassembled TEAL.
const DefaultMagicLiteral = "0x53f02a40"

// Disassembler turns compiled program bytes back into TEAL source.
type Disassembler interface {
	Disassemble(ctx context.Context, program []byte) (string, error)
}

// ContractClassifier decides whether a compiled program implements the token standard.
type ContractClassifier interface {
	IsTargetStandard(ctx context.Context, program []byte) bool
}

// SourceClassifier matches a literal in the disassembled program text. It is
// a substring heuristic: a literal used for unrelated reasons still matches.
type SourceClassifier struct {
	disassembler Disassembler
	magic        string
}

func NewSourceClassifier(disassembler Disassembler, magic string) (*SourceClassifier, error) {
	if disassembler == nil {
		return nil, errors.New("disassembler is required")
	}
	magic = strings.ToLower(strings.TrimSpace(magic))
	if magic == "" {
		magic = DefaultMagicLiteral
	}
	return &SourceClassifier{disassembler: disassembler, magic: magic}, nil
}

func (c *SourceClassifier) IsTargetStandard(ctx context.Context, program []byte) bool {
	ok, err := c.Classify(ctx, program)
	if err != nil {
		slog.Debug("program disassembly failed", "err", err, "program_len", len(program))
		return false
	}
	return ok
}

// Classify is IsTargetStandard with the disassembly error exposed, so callers
// can tell a negative verdict from a failed lookup.
func (c *SourceClassifier) Classify(ctx context.Context, program []byte) (bool, error) {
	if len(program) == 0 {
		return false, nil
	}
	source, err := c.disassembler.Disassemble(ctx, program)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(source), c.magic), nil
}
