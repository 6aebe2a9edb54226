package streaming

import (
	"encoding/json"
	"errors"
	"strconv"

	"arc72scan/internal/application"
)

type MessageType string

const (
	MessageTypeTransfer MessageType = "transfer"
	MessageTypeRound    MessageType = "round"
)

// Message is the payload published for every accepted transfer and once per
// scanned round. The round marker follows the transfers of its round.
type Message struct {
	Type         MessageType `json:"type"`
	Network      string      `json:"network"`
	TraceID      string      `json:"trace_id,omitempty"`
	Round        uint64      `json:"round"`
	Position     int         `json:"position,omitempty"`
	ContractID   uint64      `json:"contract_id,omitempty"`
	TokenID      string      `json:"token_id,omitempty"`
	Owner        string      `json:"owner,omitempty"`
	Transactions int         `json:"transactions,omitempty"`
	Candidates   int         `json:"candidates,omitempty"`
	Accepted     int         `json:"accepted,omitempty"`
	NewContracts int         `json:"new_contracts,omitempty"`
}

// Key groups a token's transfers on one partition. Round markers use the round.
func (m Message) Key() string {
	if m.Type == MessageTypeTransfer {
		return "transfer:" + strconv.FormatUint(m.ContractID, 10) + ":" + m.TokenID
	}
	return "round:" + strconv.FormatUint(m.Round, 10)
}

// FromRound builds the messages for a scanned round in publish order.
func FromRound(result application.RoundResult, traceID string) []Message {
	messages := make([]Message, 0, len(result.Events)+1)
	for i, event := range result.Events {
		token := ""
		if event.TokenID != nil {
			token = event.TokenID.String()
		}
		messages = append(messages, Message{
			Type:       MessageTypeTransfer,
			Network:    result.Network,
			TraceID:    traceID,
			Round:      event.Round,
			Position:   i,
			ContractID: event.ContractID,
			TokenID:    token,
			Owner:      event.Owner,
		})
	}
	messages = append(messages, Message{
		Type:         MessageTypeRound,
		Network:      result.Network,
		TraceID:      traceID,
		Round:        result.Round,
		Transactions: result.Transactions,
		Candidates:   len(result.Candidates),
		Accepted:     len(result.Events),
		NewContracts: len(result.NewContracts),
	})
	return messages
}

func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, errors.New("message type is required")
	}
	if msg.Network == "" {
		return nil, errors.New("network is required")
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" {
		return Message{}, errors.New("message type is missing")
	}
	if msg.Network == "" {
		return Message{}, errors.New("network is missing")
	}
	return msg, nil
}
