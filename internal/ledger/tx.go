package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Outcome classifies a submitted transaction from the client's perspective.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeReverted  Outcome = "reverted"
)

// TxRecord tracks one submitted transaction through confirmation.
type TxRecord struct {
	Hash          common.Hash
	SubmittedAt   time.Time
	Attempt       int
	Confirmations uint64
	Outcome       Outcome
}
