package application

import (
	"context"
	"crypto/sha512"
	"errors"
	"testing"

	"arc72scan/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExtractor(t *testing.T, classifier ContractClassifier, cfg ExtractorConfig) *TransferExtractor {
	t.Helper()
	extractor, err := NewTransferExtractor(classifier, cfg)
	require.NoError(t, err)
	return extractor
}

func TestTransferFromSelector(t *testing.T) {
	sum := sha512.Sum512_256([]byte(TransferFromSignature))
	assert.Equal(t, sum[:4], TransferFromSelector)
}

func TestExtract_CallTimeMatch(t *testing.T) {
	extractor := newExtractor(t, &stubClassifier{}, ExtractorConfig{})
	block := domain.Block{
		Round:        500,
		Transactions: []domain.Transaction{transferCall(42, 1, 2, []byte{0x07})},
	}

	out := extractor.Extract(context.Background(), block)

	require.Len(t, out.Candidates, 1)
	candidate := out.Candidates[0]
	assert.Equal(t, uint64(500), candidate.Round)
	assert.Equal(t, uint64(42), candidate.ContractID)
	assert.Equal(t, "7", candidate.TokenID.String())
	assert.Equal(t, mustAddress(publicKey(2)), candidate.Owner)
	assert.Empty(t, out.NewContracts)
}

func TestExtract_WrongSelectorYieldsNothing(t *testing.T) {
	extractor := newExtractor(t, &stubClassifier{}, ExtractorConfig{})
	txn := transferCall(42, 1, 2, []byte{0x07})
	txn.Args[0] = []byte{0xde, 0xad, 0xbe, 0xef}

	out := extractor.Extract(context.Background(), domain.Block{Round: 1, Transactions: []domain.Transaction{txn}})
	assert.Empty(t, out.Candidates)
}

func TestExtract_ArgumentCountMustBeFour(t *testing.T) {
	extractor := newExtractor(t, &stubClassifier{}, ExtractorConfig{})
	short := transferCall(42, 1, 2, []byte{0x07})
	short.Args = short.Args[:3]
	long := transferCall(42, 1, 2, []byte{0x07})
	long.Args = append(long.Args, []byte{0x01})

	out := extractor.Extract(context.Background(), domain.Block{Round: 1, Transactions: []domain.Transaction{short, long}})
	assert.Empty(t, out.Candidates)
}

func TestExtract_InvalidOwnerDiscarded(t *testing.T) {
	extractor := newExtractor(t, &stubClassifier{}, ExtractorConfig{})
	txn := transferCall(42, 1, 2, []byte{0x07})
	txn.Args[ownerArgIndex] = []byte{0x01, 0x02}

	out := extractor.Extract(context.Background(), domain.Block{Round: 1, Transactions: []domain.Transaction{txn}})
	assert.Empty(t, out.Candidates)
}

func TestExtract_NonApplicationCallsIgnored(t *testing.T) {
	classifier := &stubClassifier{match: true}
	extractor := newExtractor(t, classifier, ExtractorConfig{})
	txn := transferCall(42, 1, 2, []byte{0x07})
	txn.Type = domain.TxTypePayment

	out := extractor.Extract(context.Background(), domain.Block{Round: 1, Transactions: []domain.Transaction{txn}})
	assert.Empty(t, out.Candidates)
	assert.Zero(t, classifier.calls)
}

func TestExtract_CreationTimeMatch(t *testing.T) {
	classifier := &stubClassifier{match: true}
	extractor := newExtractor(t, classifier, ExtractorConfig{})
	creator := mustAddress(publicKey(9))
	creation := domain.Transaction{
		Type:            domain.TxTypeApplicationCall,
		Sender:          creator,
		ApprovalProgram: []byte{0x08, 0x81, 0x01},
		Args:            [][]byte{TransferFromSelector, publicKey(1), publicKey(2), {0x07}},
	}

	out := extractor.Extract(context.Background(), domain.Block{Round: 77, Transactions: []domain.Transaction{creation}})

	assert.Empty(t, out.Candidates, "creation calls never yield transfers")
	require.Len(t, out.NewContracts, 1)
	assert.Equal(t, domain.NewContract{Round: 77, TxIndex: 0, Creator: creator}, out.NewContracts[0])
	assert.Equal(t, 1, classifier.calls)
}

func TestExtract_CreationWithoutLiteral(t *testing.T) {
	classifier, err := NewSourceClassifier(stubDisassembler{source: "#pragma version 8\nint 1\n"}, "")
	require.NoError(t, err)
	extractor := newExtractor(t, classifier, ExtractorConfig{})
	creation := domain.Transaction{
		Type:            domain.TxTypeApplicationCall,
		ApprovalProgram: []byte{0x08, 0x81, 0x01},
	}

	out := extractor.Extract(context.Background(), domain.Block{Round: 3, Transactions: []domain.Transaction{creation}})
	assert.Empty(t, out.Candidates)
	assert.Empty(t, out.NewContracts)
}

func TestExtract_CreationWithoutProgramSkipsClassifier(t *testing.T) {
	classifier := &stubClassifier{match: true}
	extractor := newExtractor(t, classifier, ExtractorConfig{})
	creation := domain.Transaction{Type: domain.TxTypeApplicationCall}

	out := extractor.Extract(context.Background(), domain.Block{Round: 3, Transactions: []domain.Transaction{creation}})
	assert.Empty(t, out.NewContracts)
	assert.Zero(t, classifier.calls)
}

func TestExtract_BlockOrderAndNoDedup(t *testing.T) {
	extractor := newExtractor(t, &stubClassifier{}, ExtractorConfig{})
	block := domain.Block{
		Round: 10,
		Transactions: []domain.Transaction{
			transferCall(1, 1, 2, []byte{0x03}),
			{Type: domain.TxTypePayment},
			transferCall(2, 1, 3, []byte{0x01}),
			transferCall(1, 1, 2, []byte{0x03}),
		},
	}

	out := extractor.Extract(context.Background(), block)

	require.Len(t, out.Candidates, 3)
	assert.Equal(t, uint64(1), out.Candidates[0].ContractID)
	assert.Equal(t, uint64(2), out.Candidates[1].ContractID)
	assert.Equal(t, out.Candidates[0], out.Candidates[2])
}

func TestExtract_InnerTransactions(t *testing.T) {
	outer := domain.Transaction{
		Type:          domain.TxTypeApplicationCall,
		ApplicationID: 900,
		InnerTxns:     []domain.Transaction{transferCall(42, 1, 2, []byte{0x05})},
	}
	block := domain.Block{Round: 4, Transactions: []domain.Transaction{outer}}

	t.Run("ignored by default", func(t *testing.T) {
		out := newExtractor(t, &stubClassifier{}, ExtractorConfig{}).Extract(context.Background(), block)
		assert.Empty(t, out.Candidates)
	})
	t.Run("detected when enabled", func(t *testing.T) {
		out := newExtractor(t, &stubClassifier{}, ExtractorConfig{ScanInner: true}).Extract(context.Background(), block)
		require.Len(t, out.Candidates, 1)
		assert.Equal(t, uint64(42), out.Candidates[0].ContractID)
		assert.Equal(t, "5", out.Candidates[0].TokenID.String())
	})
}

func TestDecodeTokenID(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{name: "single byte", raw: []byte{0x07}, want: "7"},
		{name: "leading zeros", raw: []byte{0x00, 0x00, 0x00, 0x07}, want: "7"},
		{name: "uint256 width", raw: append(make([]byte, 31), 0x07), want: "7"},
		{name: "multi byte", raw: []byte{0x01, 0x00}, want: "256"},
		{name: "all zero", raw: []byte{0x00, 0x00}, want: "0"},
		{name: "max uint256", raw: fill(32, 0xff), want: "115792089237316195423570985008687907853269984665640564039457584007913129639935"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTokenID(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestDecodeTokenID_Empty(t *testing.T) {
	_, err := DecodeTokenID(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDecode))
}

func TestDecodeTransfer_CreationIsNotTransfer(t *testing.T) {
	txn := transferCall(0, 1, 2, []byte{0x07})
	_, err := DecodeTransfer(1, txn)
	assert.ErrorIs(t, err, errNotTransfer)
}

func fill(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
