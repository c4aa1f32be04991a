package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/compose-network/governance-deployer/internal/logger"
	"github.com/compose-network/governance-deployer/internal/network"
)

const (
	bytecodeAttempts = 3
	bytecodeWaitBase = 15 * time.Second
)

// Tracker blocks on submitted transactions until they reach the profile's
// confirmation depth, and on deployed addresses until their bytecode is
// visible. It polls; it never resubmits.
type Tracker struct {
	ledger  Ledger
	profile network.Profile

	// shrunk in tests
	codeWaitBase time.Duration

	logger *slog.Logger
}

func NewTracker(l Ledger, profile network.Profile) *Tracker {
	return &Tracker{
		ledger:       l,
		profile:      profile,
		codeWaitBase: bytecodeWaitBase,
		logger:       logger.Named("confirmation_tracker"),
	}
}

// AwaitConfirmation polls until the transaction is included and the required
// number of additional blocks has elapsed, or until the profile timeout.
// A timeout is advisory: the ledger may still confirm the transaction later,
// but the run treats the step as failed rather than risk a double submission.
func (t *Tracker) AwaitConfirmation(ctx context.Context, record *TxRecord) error {
	deadline := time.Now().Add(t.profile.Timeout)

	for {
		receipt, err := t.ledger.Receipt(ctx, record.Hash)
		switch {
		case err == nil && receipt != nil:
			if done, err := t.inspectReceipt(ctx, record, receipt); done {
				return err
			}
		case errors.Is(err, ethereum.NotFound):
			// not yet included, keep polling
		case err != nil:
			t.logger.With("err", err.Error()).With("tx_hash", record.Hash.Hex()).Debug("receipt poll failed, will retry")
		}

		if time.Now().After(deadline) {
			record.Outcome = OutcomeTimedOut
			return fmt.Errorf("transaction %s not confirmed within %s: %w",
				record.Hash.Hex(), t.profile.Timeout, ErrConfirmationTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.profile.PollInterval):
		}
	}
}

// inspectReceipt reports whether polling is finished and with what error.
func (t *Tracker) inspectReceipt(ctx context.Context, record *TxRecord, receipt *types.Receipt) (bool, error) {
	if receipt.Status != types.ReceiptStatusSuccessful {
		record.Outcome = OutcomeReverted
		return true, fmt.Errorf("transaction %s: %w", record.Hash.Hex(), ErrReverted)
	}

	head, err := t.ledger.BlockNumber(ctx)
	if err != nil {
		t.logger.With("err", err.Error()).Debug("block number poll failed, will retry")
		return false, nil
	}

	included := receipt.BlockNumber.Uint64()
	if head < included {
		return false, nil
	}

	record.Confirmations = head - included
	if record.Confirmations < t.profile.RequiredConfirmations {
		return false, nil
	}

	record.Outcome = OutcomeConfirmed
	t.logger.
		With("tx_hash", record.Hash.Hex()).
		With("confirmations", record.Confirmations).
		Debug("transaction confirmed")
	return true, nil
}

// AwaitBytecodePresence retries a small fixed number of times with a linearly
// increasing wait, because code visibility can lag transaction confirmation
// on some nodes.
func (t *Tracker) AwaitBytecodePresence(ctx context.Context, address common.Address) error {
	for attempt := 1; attempt <= bytecodeAttempts; attempt++ {
		code, err := t.ledger.CodeAt(ctx, address)
		if err != nil {
			t.logger.With("err", err.Error()).With("address", address.Hex()).Debug("code read failed")
		} else if len(code) > 0 {
			return nil
		}

		if attempt == bytecodeAttempts {
			break
		}

		wait := time.Duration(attempt) * t.codeWaitBase
		t.logger.
			With("address", address.Hex()).
			With("attempt", attempt).
			With("wait", wait.String()).
			Debug("bytecode not yet visible")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("address %s after %d attempts: %w", address.Hex(), bytecodeAttempts, ErrCodeNotObserved)
}
