package ledger

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/governance-deployer/internal/network"
)

// chainFake lives in this package (rather than ledgertest) to avoid an import
// cycle; it simulates only what the tracker reads.
type chainFake struct {
	included      uint64
	head          uint64
	advancePerPoll uint64
	headReads     int
	reverted      bool
	neverIncluded bool
	code          []byte
	codeDelay     int
	codeReads     int
}

func newChainFake() *chainFake {
	return &chainFake{}
}

func (f *chainFake) Sender() common.Address { return common.Address{} }

func (f *chainFake) FeeEstimate(context.Context) (FeeQuote, error) {
	return FeeQuote{GasFeeCap: big.NewInt(1), GasTipCap: big.NewInt(1)}, nil
}

func (f *chainFake) SubmitCall(context.Context, common.Address, []byte, uint64) (*TxRecord, error) {
	return nil, nil
}

func (f *chainFake) SubmitDeploy(context.Context, []byte, uint64) (*TxRecord, common.Address, error) {
	return nil, common.Address{}, nil
}

func (f *chainFake) Call(context.Context, common.Address, []byte) ([]byte, error) {
	return nil, nil
}

func (f *chainFake) CodeAt(context.Context, common.Address) ([]byte, error) {
	f.codeReads++
	if f.codeReads <= f.codeDelay {
		return nil, nil
	}
	return f.code, nil
}

func (f *chainFake) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *chainFake) BlockNumber(context.Context) (uint64, error) {
	f.headReads++
	f.head += f.advancePerPoll
	return f.head, nil
}

func (f *chainFake) Receipt(context.Context, common.Hash) (*types.Receipt, error) {
	if f.neverIncluded {
		return nil, ethereum.NotFound
	}
	status := types.ReceiptStatusSuccessful
	if f.reverted {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status, BlockNumber: new(big.Int).SetUint64(f.included)}, nil
}

var _ Ledger = (*chainFake)(nil)

func testProfile(required uint64, timeout time.Duration) network.Profile {
	return network.Profile{
		Name:                  "test",
		PollInterval:          time.Millisecond,
		Timeout:               timeout,
		RequiredConfirmations: required,
	}
}

func TestAwaitConfirmationWaitsForRequiredDepth(t *testing.T) {
	fake := newChainFake()
	fake.included = 5
	fake.head = 5
	fake.advancePerPoll = 1

	tracker := NewTracker(fake, testProfile(3, time.Second))
	record := &TxRecord{Hash: common.HexToHash("0x01"), Outcome: OutcomePending}

	require.NoError(t, tracker.AwaitConfirmation(context.Background(), record))
	assert.Equal(t, OutcomeConfirmed, record.Outcome)
	assert.GreaterOrEqual(t, record.Confirmations, uint64(3))
	// the head had to be read enough times to actually observe the depth
	assert.GreaterOrEqual(t, fake.headReads, 3)
}

func TestAwaitConfirmationDoesNotConfirmBelowDepth(t *testing.T) {
	fake := newChainFake()
	fake.included = 5
	fake.head = 6 // one confirmation observed, two required

	tracker := NewTracker(fake, testProfile(2, 30*time.Millisecond))
	record := &TxRecord{Hash: common.HexToHash("0x02"), Outcome: OutcomePending}

	err := tracker.AwaitConfirmation(context.Background(), record)
	require.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.Equal(t, OutcomeTimedOut, record.Outcome)
}

func TestAwaitConfirmationTimesOutWhenNeverIncluded(t *testing.T) {
	fake := newChainFake()
	fake.neverIncluded = true

	tracker := NewTracker(fake, testProfile(1, 25*time.Millisecond))
	record := &TxRecord{Hash: common.HexToHash("0x03"), Outcome: OutcomePending}

	err := tracker.AwaitConfirmation(context.Background(), record)
	require.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.Equal(t, OutcomeTimedOut, record.Outcome)
}

func TestAwaitConfirmationSurfacesRevert(t *testing.T) {
	fake := newChainFake()
	fake.included = 1
	fake.head = 10
	fake.reverted = true

	tracker := NewTracker(fake, testProfile(1, time.Second))
	record := &TxRecord{Hash: common.HexToHash("0x04"), Outcome: OutcomePending}

	err := tracker.AwaitConfirmation(context.Background(), record)
	require.ErrorIs(t, err, ErrReverted)
	assert.Equal(t, OutcomeReverted, record.Outcome)
}

func TestAwaitBytecodePresenceRetries(t *testing.T) {
	fake := newChainFake()
	fake.code = []byte{0x60, 0x80}
	fake.codeDelay = 2

	tracker := NewTracker(fake, testProfile(1, time.Second))
	tracker.codeWaitBase = time.Millisecond

	require.NoError(t, tracker.AwaitBytecodePresence(context.Background(), common.HexToAddress("0x10")))
	assert.Equal(t, 3, fake.codeReads)
}

func TestAwaitBytecodePresenceExhaustsAttempts(t *testing.T) {
	fake := newChainFake()

	tracker := NewTracker(fake, testProfile(1, time.Second))
	tracker.codeWaitBase = time.Millisecond

	err := tracker.AwaitBytecodePresence(context.Background(), common.HexToAddress("0x11"))
	require.ErrorIs(t, err, ErrCodeNotObserved)
	assert.Equal(t, bytecodeAttempts, fake.codeReads)
}
