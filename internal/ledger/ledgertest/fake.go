// Package ledgertest provides an in-memory, scripted implementation of
// ledger.Ledger for package tests.
package ledgertest

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/compose-network/governance-deployer/internal/ledger"
)

// SubmittedTx is one recorded state-changing submission. To is nil for
// contract creations.
type SubmittedTx struct {
	To       *common.Address
	Data     []byte
	GasLimit uint64
	Hash     common.Hash
}

// Fake simulates a chain with immediate inclusion. Each submission is
// included at head+1 and the head then advances by ConfirmDepth, so with the
// default depth of 1 a transaction is confirmable on the first poll.
type Fake struct {
	SenderAddr common.Address

	Fee       ledger.FeeQuote
	FeeErr    error
	SubmitErr error

	// Drop leaves submitted transactions without a receipt forever.
	Drop bool
	// FailNext marks the next included transaction as reverted.
	FailNext bool

	// ConfirmDepth is how far the head advances past each inclusion.
	ConfirmDepth uint64
	// AdvancePerPoll advances the head on every BlockNumber read, simulating
	// block production while a tracker polls.
	AdvancePerPoll uint64
	// CodeDelay is how many CodeAt reads per address come back empty before
	// stored code becomes visible.
	CodeDelay int

	// Apply lets a test mutate its simulated contract state when a call is
	// included.
	Apply func(to common.Address, data []byte)

	// DefaultHandler serves reads for addresses without a specific handler,
	// e.g. contracts whose addresses are only known after deployment.
	DefaultHandler func(to common.Address, data []byte) ([]byte, error)

	Head      uint64
	Code      map[common.Address][]byte
	Balances  map[common.Address]*big.Int
	Handlers  map[common.Address]func(data []byte) ([]byte, error)
	Submitted []SubmittedTx

	receipts    map[common.Hash]*types.Receipt
	nonce       uint64
	codeQueries map[common.Address]int
}

func NewFake() *Fake {
	return &Fake{
		SenderAddr:   common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Fee:          ledger.FeeQuote{GasFeeCap: big.NewInt(2_000_000_000), GasTipCap: big.NewInt(1_000_000_000)},
		ConfirmDepth: 1,
		Code:         make(map[common.Address][]byte),
		Balances:     make(map[common.Address]*big.Int),
		Handlers:     make(map[common.Address]func(data []byte) ([]byte, error)),
		receipts:     make(map[common.Hash]*types.Receipt),
		codeQueries:  make(map[common.Address]int),
	}
}

func (f *Fake) Sender() common.Address {
	return f.SenderAddr
}

func (f *Fake) FeeEstimate(context.Context) (ledger.FeeQuote, error) {
	if f.FeeErr != nil {
		return ledger.FeeQuote{}, f.FeeErr
	}
	return f.Fee, nil
}

func (f *Fake) SubmitCall(_ context.Context, to common.Address, data []byte, gasLimit uint64) (*ledger.TxRecord, error) {
	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}

	target := to
	hash := f.nextHash()
	f.Submitted = append(f.Submitted, SubmittedTx{To: &target, Data: data, GasLimit: gasLimit, Hash: hash})
	f.include(hash, to, data)

	return &ledger.TxRecord{Hash: hash, SubmittedAt: time.Now(), Attempt: 1, Outcome: ledger.OutcomePending}, nil
}

func (f *Fake) SubmitDeploy(_ context.Context, code []byte, gasLimit uint64) (*ledger.TxRecord, common.Address, error) {
	if f.SubmitErr != nil {
		return nil, common.Address{}, f.SubmitErr
	}

	address := crypto.CreateAddress(f.SenderAddr, f.nonce)
	hash := f.nextHash()
	f.Submitted = append(f.Submitted, SubmittedTx{Data: code, GasLimit: gasLimit, Hash: hash})

	if !f.Drop {
		f.Code[address] = code
	}
	f.include(hash, address, nil)

	return &ledger.TxRecord{Hash: hash, SubmittedAt: time.Now(), Attempt: 1, Outcome: ledger.OutcomePending}, address, nil
}

func (f *Fake) include(hash common.Hash, to common.Address, data []byte) {
	if f.Drop {
		return
	}

	status := types.ReceiptStatusSuccessful
	if f.FailNext {
		status = types.ReceiptStatusFailed
		f.FailNext = false
	}

	included := f.Head + 1
	f.Head = included + f.ConfirmDepth
	f.receipts[hash] = &types.Receipt{
		TxHash:      hash,
		Status:      status,
		BlockNumber: new(big.Int).SetUint64(included),
	}

	if status == types.ReceiptStatusSuccessful && data != nil && f.Apply != nil {
		f.Apply(to, data)
	}
}

func (f *Fake) Call(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	if handler, ok := f.Handlers[to]; ok {
		return handler(data)
	}
	if f.DefaultHandler != nil {
		return f.DefaultHandler(to, data)
	}
	return nil, fmt.Errorf("no call handler for %s", to.Hex())
}

func (f *Fake) CodeAt(_ context.Context, address common.Address) ([]byte, error) {
	if f.codeQueries[address] < f.CodeDelay {
		f.codeQueries[address]++
		return nil, nil
	}
	return f.Code[address], nil
}

func (f *Fake) BalanceAt(_ context.Context, address common.Address) (*big.Int, error) {
	if balance, ok := f.Balances[address]; ok {
		return balance, nil
	}
	// plenty by default, so only funding tests care
	return new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000_000_000_000_000)), nil
}

func (f *Fake) BlockNumber(context.Context) (uint64, error) {
	f.Head += f.AdvancePerPoll
	return f.Head, nil
}

func (f *Fake) Receipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// CallCount returns how many submissions targeted the given address.
func (f *Fake) CallCount(to common.Address) int {
	var n int
	for _, tx := range f.Submitted {
		if tx.To != nil && *tx.To == to {
			n++
		}
	}
	return n
}

func (f *Fake) nextHash() common.Hash {
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("ledgertest-tx-%d", f.nonce)))
	f.nonce++
	return hash
}

var _ ledger.Ledger = (*Fake)(nil)
