package application

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"arc72scan/internal/domain"

	"github.com/algorand/go-algorand-sdk/v2/abi"
)

// TransferFromSignature is the ARC-4 signature of the ARC-72 transfer method.
const TransferFromSignature = "arc72_transferFrom(address,address,uint256)void"

const (
	transferArgCount = 4
	ownerArgIndex    = 2
	tokenArgIndex    = 3
	maxInnerDepth    = 8
)

// TransferFromSelector is the 4-byte method selector of TransferFromSignature.
var TransferFromSelector = mustSelector(TransferFromSignature)

var errNotTransfer = errors.New("not a transfer call")

func mustSelector(signature string) []byte {
	method, err := abi.MethodFromSignature(signature)
	if err != nil {
		panic(fmt.Sprintf("invalid method signature %q: %v", signature, err))
	}
	return method.GetSelector()
}

// Extraction is what a single block yields before verification.
type Extraction struct {
	Candidates   []domain.TransferCandidate
	NewContracts []domain.NewContract
}

type ExtractorConfig struct {
	// ScanInner applies the detection rules to inner transactions as well.
	ScanInner bool
}

// TransferExtractor finds token transfer candidates in a block.
type TransferExtractor struct {
	classifier ContractClassifier
	cfg        ExtractorConfig
}

func NewTransferExtractor(classifier ContractClassifier, cfg ExtractorConfig) (*TransferExtractor, error) {
	if classifier == nil {
		return nil, errors.New("contract classifier is required")
	}
	return &TransferExtractor{classifier: classifier, cfg: cfg}, nil
}

// Extract applies the creation-time and call-time rules to every transaction
// in block order. Candidates are not deduplicated.
func (e *TransferExtractor) Extract(ctx context.Context, block domain.Block) Extraction {
	var out Extraction
	for index, txn := range block.Transactions {
		e.inspect(ctx, block.Round, index, txn, 0, &out)
	}
	return out
}

func (e *TransferExtractor) inspect(ctx context.Context, round uint64, index int, txn domain.Transaction, depth int, out *Extraction) {
	if txn.IsApplicationCall() {
		if txn.IsCreation() {
			if len(txn.ApprovalProgram) > 0 && e.classifier.IsTargetStandard(ctx, txn.ApprovalProgram) {
				slog.Info("new arc72 contract created", "round", round, "tx_index", index, "creator", txn.Sender, "inner", depth > 0)
				out.NewContracts = append(out.NewContracts, domain.NewContract{
					Round:   round,
					TxIndex: index,
					Creator: txn.Sender,
				})
			}
		} else {
			candidate, err := DecodeTransfer(round, txn)
			switch {
			case err == nil:
				out.Candidates = append(out.Candidates, candidate)
			case !errors.Is(err, errNotTransfer):
				slog.Warn("discarding transfer call", "round", round, "tx_index", index, "app_id", txn.ApplicationID, "err", err)
			}
		}
	}
	if !e.cfg.ScanInner || depth >= maxInnerDepth {
		return
	}
	for _, inner := range txn.InnerTxns {
		e.inspect(ctx, round, index, inner, depth+1, out)
	}
}

// DecodeTransfer builds a candidate from an application call carrying the
// transfer selector. Calls with another shape return errNotTransfer; calls
// with the selector but undecodable arguments return a domain.ErrDecode.
func DecodeTransfer(round uint64, txn domain.Transaction) (domain.TransferCandidate, error) {
	if !txn.IsApplicationCall() || txn.ApplicationID == 0 {
		return domain.TransferCandidate{}, errNotTransfer
	}
	if len(txn.Args) != transferArgCount || !bytes.Equal(txn.Args[0], TransferFromSelector) {
		return domain.TransferCandidate{}, errNotTransfer
	}
	owner, err := domain.EncodeAddress(txn.Args[ownerArgIndex])
	if err != nil {
		return domain.TransferCandidate{}, fmt.Errorf("owner: %w", err)
	}
	tokenID, err := DecodeTokenID(txn.Args[tokenArgIndex])
	if err != nil {
		return domain.TransferCandidate{}, err
	}
	return domain.TransferCandidate{
		Round:      round,
		ContractID: txn.ApplicationID,
		TokenID:    tokenID,
		Owner:      owner,
	}, nil
}

// DecodeTokenID reads raw argument bytes as a big-endian unsigned integer of
// any width. Leading zero bytes do not change the result.
func DecodeTokenID(raw []byte) (*big.Int, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty token id", domain.ErrDecode)
	}
	tokenID, ok := new(big.Int).SetString(hex.EncodeToString(raw), 16)
	if !ok {
		return nil, fmt.Errorf("%w: token id %x", domain.ErrDecode, raw)
	}
	return tokenID, nil
}
