package models

type TransactionStatus string

type TransactionType string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

const (
	TransactionTypeCreatePool    TransactionType = "create_pool"
	TransactionTypeEnableDeposit TransactionType = "enable_deposit"
	TransactionTypeStartPool     TransactionType = "start_pool"
	TransactionTypeEndPool       TransactionType = "end_pool"
	TransactionTypeDeletePool    TransactionType = "delete_pool"
	TransactionTypeApprove       TransactionType = "approve"
	TransactionTypeJoinPool      TransactionType = "join_pool"
	TransactionTypeSelfRefund    TransactionType = "self_refund"
	TransactionTypeSetWinners    TransactionType = "set_winners"
	TransactionTypeClaimWinnings TransactionType = "claim_winnings"
	TransactionTypeRegular       TransactionType = "regular"
)

// TransactionRecord tracks one executor invocation. It lives in memory only and is
// discarded once the invocation returns.
type TransactionRecord struct {
	Type TransactionType `json:"type"`
	// Hashes holds the transaction hash of every submitted call in order
	Hashes []string `json:"hashes"`
	// CallsID is the paymaster request id when the calls were batched
	CallsID    string            `json:"calls_id,omitempty"`
	Status     TransactionStatus `json:"status"`
	Loading    bool              `json:"loading"`
	Confirming bool              `json:"confirming"`
	Confirmed  bool              `json:"confirmed"`
	Error      string            `json:"error,omitempty"`
}

// LastHash returns the most recently tracked transaction hash.
func (r *TransactionRecord) LastHash() string {
	if len(r.Hashes) == 0 {
		return ""
	}
	return r.Hashes[len(r.Hashes)-1]
}
