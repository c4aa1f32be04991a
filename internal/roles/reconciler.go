package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/governance-deployer/internal/contracts"
	"github.com/compose-network/governance-deployer/internal/deploy"
	"github.com/compose-network/governance-deployer/internal/ledger"
	"github.com/compose-network/governance-deployer/internal/logger"
)

// ErrRoleMismatch marks a post-reconciliation verification failure.
var ErrRoleMismatch = errors.New("role assignment mismatch")

// Role setters are simple state writes; a fixed conservative ceiling avoids
// per-call estimation.
const roleGasLimit uint64 = 300_000

// Reconciler converges actual role membership to the desired table. All
// transactions are submitted sequentially and awaited individually: the
// signing identity's nonce must never be raced.
type Reconciler struct {
	ledger  ledger.Ledger
	tracker *ledger.Tracker
	logger  *slog.Logger
}

func NewReconciler(l ledger.Ledger, tracker *ledger.Tracker) *Reconciler {
	return &Reconciler{
		ledger:  l,
		tracker: tracker,
		logger:  logger.Named("permission_reconciler"),
	}
}

// Reconcile reads actual membership for every entry and issues only the
// grants/revokes needed. Entries already in the desired state are no-ops,
// which is what makes repeated runs idempotent and safe to re-invoke after a
// partial failure. Returns the number of state-changing calls issued.
func (r *Reconciler) Reconcile(ctx context.Context, table []Assignment, registry deploy.Registry) (int, error) {
	ordered := make([]Assignment, len(table))
	copy(ordered, table)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Group < ordered[j].Group })

	applied := 0
	for _, assignment := range ordered {
		changed, err := r.reconcileOne(ctx, assignment, registry)
		if err != nil {
			return applied, fmt.Errorf("reconcile %s: %w", assignment.describe(), err)
		}
		if changed {
			applied++
		}
	}

	r.logger.With("entries", len(table)).With("applied", applied).Info("role table reconciled")
	return applied, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, assignment Assignment, registry deploy.Registry) (bool, error) {
	target, account, err := r.resolve(assignment, registry)
	if err != nil {
		return false, err
	}

	actual, err := r.hasRole(ctx, target, RoleID(assignment.Role), account)
	if err != nil {
		return false, err
	}

	log := r.logger.
		With("component", string(assignment.Component)).
		With("role", assignment.Role).
		With("account", assignment.Account.String())

	if actual == assignment.Desired {
		log.Debug("role already in desired state, skipping")
		return false, nil
	}

	calldata, err := r.encodeChange(assignment, account)
	if err != nil {
		return false, err
	}

	record, err := r.ledger.SubmitCall(ctx, target, calldata, roleGasLimit)
	if err != nil {
		return false, fmt.Errorf("submit: %w", err)
	}
	log.With("tx_hash", record.Hash.Hex()).With("grant", assignment.Desired).Info("role change sent")

	if err := r.tracker.AwaitConfirmation(ctx, record); err != nil {
		return false, err
	}

	return true, nil
}

func (r *Reconciler) encodeChange(assignment Assignment, account common.Address) ([]byte, error) {
	roleID := RoleID(assignment.Role)

	switch {
	case assignment.Desired && assignment.ViaContract:
		return contracts.EncodeGrantContractRole(roleID, account)
	case assignment.Desired:
		return contracts.EncodeGrantRole(roleID, account)
	default:
		return contracts.EncodeRevokeContractRole(roleID, account)
	}
}

// Verify re-reads every entry. Mismatches are collected across all entries
// and reported as a batch: the operator gets a complete diagnostic, not just
// the first discrepancy.
func (r *Reconciler) Verify(ctx context.Context, table []Assignment, registry deploy.Registry) error {
	var errs []error

	for _, assignment := range table {
		target, account, err := r.resolve(assignment, registry)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		actual, err := r.hasRole(ctx, target, RoleID(assignment.Role), account)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", assignment.describe(), err))
			continue
		}

		if actual != assignment.Desired {
			errs = append(errs, fmt.Errorf("%s: hasRole=%t, want %t: %w",
				assignment.describe(), actual, assignment.Desired, ErrRoleMismatch))
		}
	}

	return errors.Join(errs...)
}

func (r *Reconciler) resolve(assignment Assignment, registry deploy.Registry) (common.Address, common.Address, error) {
	component, ok := registry[assignment.Component]
	if !ok {
		return common.Address{}, common.Address{}, fmt.Errorf("component %s not in registry", assignment.Component)
	}

	account, err := assignment.Account.Resolve(registry)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}

	return component.Proxy, account, nil
}

func (r *Reconciler) hasRole(ctx context.Context, target common.Address, roleID common.Hash, account common.Address) (bool, error) {
	calldata, err := contracts.EncodeHasRole(roleID, account)
	if err != nil {
		return false, err
	}

	output, err := r.ledger.Call(ctx, target, calldata)
	if err != nil {
		return false, fmt.Errorf("hasRole read: %w", err)
	}

	return contracts.DecodeBool(output)
}
