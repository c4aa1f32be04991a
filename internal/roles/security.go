package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/governance-deployer/internal/contracts"
	"github.com/compose-network/governance-deployer/internal/deploy"
)

// ErrSecurityMismatch marks an allowlist verification failure.
var ErrSecurityMismatch = errors.New("security allowlist mismatch")

// SecurityEntry declares the desired allowlist state for one function
// signature and one target on the governance component. Reconciled last
// (GroupAllowlist): peer role grants must already hold for its validation
// reads to make sense to the operator.
type SecurityEntry struct {
	Signature       string
	SelectorAllowed bool
	Target          Account
	TargetAllowed   bool
}

// ReconcileSecurity diffs each entry against selectorAllowed/targetAllowed
// reads and converges with updateSecurity, one awaited call per divergent
// entry.
func (r *Reconciler) ReconcileSecurity(ctx context.Context, entries []SecurityEntry, registry deploy.Registry) (int, error) {
	governance, ok := registry[contracts.ContractNameGovernance]
	if !ok {
		return 0, fmt.Errorf("component %s not in registry", contracts.ContractNameGovernance)
	}

	applied := 0
	for _, entry := range entries {
		changed, err := r.reconcileSecurityEntry(ctx, governance.Proxy, entry, registry)
		if err != nil {
			return applied, fmt.Errorf("reconcile security for %s: %w", entry.Signature, err)
		}
		if changed {
			applied++
		}
	}

	r.logger.With("entries", len(entries)).With("applied", applied).Info("security allowlist reconciled")
	return applied, nil
}

func (r *Reconciler) reconcileSecurityEntry(ctx context.Context, governance common.Address, entry SecurityEntry, registry deploy.Registry) (bool, error) {
	selector := contracts.Selector(entry.Signature)

	target, err := entry.Target.Resolve(registry)
	if err != nil {
		return false, err
	}

	selectorActual, targetActual, err := r.readSecurity(ctx, governance, selector, target)
	if err != nil {
		return false, err
	}

	if selectorActual == entry.SelectorAllowed && targetActual == entry.TargetAllowed {
		r.logger.With("signature", entry.Signature).Debug("allowlist already in desired state, skipping")
		return false, nil
	}

	calldata, err := contracts.EncodeUpdateSecurity(selector, entry.SelectorAllowed, target, entry.TargetAllowed)
	if err != nil {
		return false, err
	}

	record, err := r.ledger.SubmitCall(ctx, governance, calldata, roleGasLimit)
	if err != nil {
		return false, fmt.Errorf("submit: %w", err)
	}
	r.logger.With("signature", entry.Signature).With("tx_hash", record.Hash.Hex()).Info("allowlist update sent")

	return true, r.tracker.AwaitConfirmation(ctx, record)
}

// VerifySecurity re-reads every entry and aggregates mismatches.
func (r *Reconciler) VerifySecurity(ctx context.Context, entries []SecurityEntry, registry deploy.Registry) error {
	governance, ok := registry[contracts.ContractNameGovernance]
	if !ok {
		return fmt.Errorf("component %s not in registry", contracts.ContractNameGovernance)
	}

	var errs []error
	for _, entry := range entries {
		target, err := entry.Target.Resolve(registry)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		selectorActual, targetActual, err := r.readSecurity(ctx, governance.Proxy, contracts.Selector(entry.Signature), target)
		if err != nil {
			errs = append(errs, fmt.Errorf("read allowlist for %s: %w", entry.Signature, err))
			continue
		}

		if selectorActual != entry.SelectorAllowed {
			errs = append(errs, fmt.Errorf("selectorAllowed(%s)=%t, want %t: %w",
				entry.Signature, selectorActual, entry.SelectorAllowed, ErrSecurityMismatch))
		}
		if targetActual != entry.TargetAllowed {
			errs = append(errs, fmt.Errorf("targetAllowed(%s)=%t, want %t: %w",
				entry.Target, targetActual, entry.TargetAllowed, ErrSecurityMismatch))
		}
	}

	return errors.Join(errs...)
}

func (r *Reconciler) readSecurity(ctx context.Context, governance common.Address, selector [4]byte, target common.Address) (bool, bool, error) {
	selectorData, err := contracts.EncodeSelectorAllowed(selector)
	if err != nil {
		return false, false, err
	}
	selectorOut, err := r.ledger.Call(ctx, governance, selectorData)
	if err != nil {
		return false, false, fmt.Errorf("selectorAllowed read: %w", err)
	}
	selectorActual, err := contracts.DecodeBool(selectorOut)
	if err != nil {
		return false, false, err
	}

	targetData, err := contracts.EncodeTargetAllowed(target)
	if err != nil {
		return false, false, err
	}
	targetOut, err := r.ledger.Call(ctx, governance, targetData)
	if err != nil {
		return false, false, fmt.Errorf("targetAllowed read: %w", err)
	}
	targetActual, err := contracts.DecodeBool(targetOut)
	if err != nil {
		return false, false, err
	}

	return selectorActual, targetActual, nil
}
