package threat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/governance-deployer/internal/contracts"
	"github.com/compose-network/governance-deployer/internal/deploy"
	"github.com/compose-network/governance-deployer/internal/ledger"
	"github.com/compose-network/governance-deployer/internal/logger"
)

// ErrTierMismatch marks a post-reconciliation tier verification failure.
var ErrTierMismatch = errors.New("threat tier mismatch")

// Tier setters are simple state writes; a fixed conservative ceiling is used
// instead of estimation.
const tierGasLimit uint64 = 150_000

// Classifier converges the timelock's function and address tiers to the
// declared tables.
type Classifier struct {
	ledger  ledger.Ledger
	tracker *ledger.Tracker
	logger  *slog.Logger
}

func NewClassifier(l ledger.Ledger, tracker *ledger.Tracker) *Classifier {
	return &Classifier{
		ledger:  l,
		tracker: tracker,
		logger:  logger.Named("threat_classifier"),
	}
}

// Reconcile reads every declared mapping and issues a setter only where the
// on-chain tier differs. Returns the number of state-changing calls issued.
func (c *Classifier) Reconcile(ctx context.Context, functions []FunctionRule, addresses []AddressRule, registry deploy.Registry) (int, error) {
	timelock, ok := registry[contracts.ContractNameTimelock]
	if !ok {
		return 0, fmt.Errorf("component %s not in registry", contracts.ContractNameTimelock)
	}

	applied := 0
	for _, rule := range functions {
		changed, err := c.reconcileFunction(ctx, timelock.Proxy, rule)
		if err != nil {
			return applied, fmt.Errorf("classify %s: %w", rule.Signature, err)
		}
		if changed {
			applied++
		}
	}

	for _, rule := range addresses {
		changed, err := c.reconcileAddress(ctx, timelock.Proxy, rule, registry)
		if err != nil {
			return applied, fmt.Errorf("classify %s: %w", rule.Target, err)
		}
		if changed {
			applied++
		}
	}

	c.logger.
		With("functions", len(functions)).
		With("addresses", len(addresses)).
		With("applied", applied).
		Info("threat tiers reconciled")
	return applied, nil
}

func (c *Classifier) reconcileFunction(ctx context.Context, timelock common.Address, rule FunctionRule) (bool, error) {
	selector := contracts.Selector(rule.Signature)

	readData, err := contracts.EncodeFunctionThreatLevel(selector)
	if err != nil {
		return false, err
	}
	actual, err := c.readTier(ctx, timelock, readData)
	if err != nil {
		return false, err
	}
	if actual == rule.Tier {
		c.logger.With("signature", rule.Signature).Debug("function tier already correct, skipping")
		return false, nil
	}

	calldata, err := contracts.EncodeSetFunctionThreatLevel(selector, uint8(rule.Tier))
	if err != nil {
		return false, err
	}

	return true, c.submit(ctx, timelock, calldata, "signature", rule.Signature, rule.Tier)
}

func (c *Classifier) reconcileAddress(ctx context.Context, timelock common.Address, rule AddressRule, registry deploy.Registry) (bool, error) {
	target, err := rule.Target.Resolve(registry)
	if err != nil {
		return false, err
	}

	readData, err := contracts.EncodeAddressThreatLevel(target)
	if err != nil {
		return false, err
	}
	actual, err := c.readTier(ctx, timelock, readData)
	if err != nil {
		return false, err
	}
	if actual == rule.Tier {
		c.logger.With("target", rule.Target.String()).Debug("address tier already correct, skipping")
		return false, nil
	}

	calldata, err := contracts.EncodeSetAddressThreatLevel(target, uint8(rule.Tier))
	if err != nil {
		return false, err
	}

	return true, c.submit(ctx, timelock, calldata, "target", rule.Target.String(), rule.Tier)
}

func (c *Classifier) submit(ctx context.Context, timelock common.Address, calldata []byte, kind, subject string, tier Tier) error {
	record, err := c.ledger.SubmitCall(ctx, timelock, calldata, tierGasLimit)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	c.logger.
		With(kind, subject).
		With("tier", tier.String()).
		With("tx_hash", record.Hash.Hex()).
		Info("threat tier set")

	return c.tracker.AwaitConfirmation(ctx, record)
}

// Verify re-reads every mapping and aggregates mismatches.
func (c *Classifier) Verify(ctx context.Context, functions []FunctionRule, addresses []AddressRule, registry deploy.Registry) error {
	timelock, ok := registry[contracts.ContractNameTimelock]
	if !ok {
		return fmt.Errorf("component %s not in registry", contracts.ContractNameTimelock)
	}

	var errs []error
	for _, rule := range functions {
		readData, err := contracts.EncodeFunctionThreatLevel(contracts.Selector(rule.Signature))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		actual, err := c.readTier(ctx, timelock.Proxy, readData)
		if err != nil {
			errs = append(errs, fmt.Errorf("read tier of %s: %w", rule.Signature, err))
			continue
		}
		if actual != rule.Tier {
			errs = append(errs, fmt.Errorf("%s tier=%s, want %s: %w",
				rule.Signature, actual, rule.Tier, ErrTierMismatch))
		}
	}

	for _, rule := range addresses {
		target, err := rule.Target.Resolve(registry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		readData, err := contracts.EncodeAddressThreatLevel(target)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		actual, err := c.readTier(ctx, timelock.Proxy, readData)
		if err != nil {
			errs = append(errs, fmt.Errorf("read tier of %s: %w", rule.Target, err))
			continue
		}
		if actual != rule.Tier {
			errs = append(errs, fmt.Errorf("%s tier=%s, want %s: %w",
				rule.Target, actual, rule.Tier, ErrTierMismatch))
		}
	}

	return errors.Join(errs...)
}

func (c *Classifier) readTier(ctx context.Context, timelock common.Address, calldata []byte) (Tier, error) {
	output, err := c.ledger.Call(ctx, timelock, calldata)
	if err != nil {
		return TierNone, fmt.Errorf("tier read: %w", err)
	}

	value, err := contracts.DecodeUint8(output)
	if err != nil {
		return TierNone, err
	}
	return Tier(value), nil
}
