package nats

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"arc72scan/internal/application"
	"arc72scan/internal/domain"
	"arc72scan/internal/streaming"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingJetStream struct {
	msgs []*nats.Msg
	err  error
}

func (r *recordingJetStream) PublishMsg(_ context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.msgs = append(r.msgs, msg)
	return &jetstream.PubAck{Stream: StreamName, Sequence: uint64(len(r.msgs))}, nil
}

func TestPublishRound(t *testing.T) {
	js := &recordingJetStream{}
	publisher := &Publisher{js: js}

	err := publisher.PublishRound(context.Background(), application.RoundResult{
		Network: "mainnet",
		Round:   12,
		Events: []domain.TransferEvent{
			{Round: 12, ContractID: 1, TokenID: big.NewInt(3), Owner: "A"},
			{Round: 12, ContractID: 1, TokenID: big.NewInt(4), Owner: "B"},
		},
	})
	require.NoError(t, err)
	require.Len(t, js.msgs, 3)
	for _, msg := range js.msgs {
		assert.Equal(t, "arc72.transfers.mainnet", msg.Subject)
	}
	last, err := streaming.Decode(js.msgs[2].Data)
	require.NoError(t, err)
	assert.Equal(t, streaming.MessageTypeRound, last.Type)
}

func TestPublishRound_Error(t *testing.T) {
	publisher := &Publisher{js: &recordingJetStream{err: errors.New("no responders")}}
	err := publisher.PublishRound(context.Background(), application.RoundResult{Network: "mainnet", Round: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "round:1")
}

func TestMessageID(t *testing.T) {
	assert.Equal(t, "testnet:5:transfer:2", messageID("testnet", streaming.Message{Type: streaming.MessageTypeTransfer, Round: 5, Position: 2}))
	assert.Equal(t, "testnet:5:round", messageID("testnet", streaming.Message{Type: streaming.MessageTypeRound, Round: 5}))
}

func TestNewPublisher_RequiresURL(t *testing.T) {
	_, err := NewPublisher(context.Background(), "")
	assert.Error(t, err)
}
