package domain

import "math/big"

// TransferCandidate is a transfer extracted from a block that has not been verified yet.
type TransferCandidate struct {
	Round      uint64   `json:"round"`
	ContractID uint64   `json:"contractId"`
	TokenID    *big.Int `json:"tokenId"`
	Owner      string   `json:"owner"`
}

// Accept marks the candidate as verified.
func (c TransferCandidate) Accept() TransferEvent {
	return TransferEvent{
		Round:      c.Round,
		ContractID: c.ContractID,
		TokenID:    c.TokenID,
		Owner:      c.Owner,
	}
}

// TransferEvent is a candidate confirmed by the verification service.
type TransferEvent struct {
	Round      uint64   `json:"round"`
	ContractID uint64   `json:"contractId"`
	TokenID    *big.Int `json:"tokenId"`
	Owner      string   `json:"owner"`
}

// NewContract notes an application-creation call whose program matched the token standard.
type NewContract struct {
	Round   uint64 `json:"round"`
	TxIndex int    `json:"txIndex"`
	Creator string `json:"creator"`
}
