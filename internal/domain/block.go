package domain

// TxType is the ledger transaction type tag.
type TxType string

const (
	TxTypeApplicationCall TxType = "appl"
	TxTypePayment         TxType = "pay"
	TxTypeAssetTransfer   TxType = "axfer"
)

// Block is a fetched round with its transactions in ledger order.
type Block struct {
	Round        uint64
	Transactions []Transaction
}

// Transaction carries the fields needed to detect token transfers.
// ApplicationID is zero for application-creation calls.
type Transaction struct {
	Type            TxType
	Sender          string
	ApplicationID   uint64
	ApprovalProgram []byte
	Args            [][]byte
	InnerTxns       []Transaction
}

// IsApplicationCall reports whether the transaction invokes or creates an application.
func (t Transaction) IsApplicationCall() bool {
	return t.Type == TxTypeApplicationCall
}

// IsCreation reports whether the transaction creates a new application.
func (t Transaction) IsCreation() bool {
	return t.IsApplicationCall() && t.ApplicationID == 0
}
