// Package wiring injects dependency addresses into already-deployed
// components and verifies every reference with a round-trip read.
package wiring

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

// ErrWiringMismatch means a reference re-read after the setter call did not
// return the expected address. The run must never proceed with a silently
// wrong cross-reference: later role checks assume correct wiring.
var ErrWiringMismatch = errors.New("wiring mismatch")

const setterGasLimit uint64 = 200_000

// Ref declares one ordered (dependent, dependency) pair with the getter and
// setter method names on the dependent component.
type Ref struct {
	Dependent  contracts.ContractName
	Dependency contracts.ContractName
	Getter     string
	Setter     string
}

type Wirer struct {
	ledger  ledger.Ledger
	tracker *ledger.Tracker
	logger  *slog.Logger
}

func NewWirer(l ledger.Ledger, tracker *ledger.Tracker) *Wirer {
	return &Wirer{
		ledger:  l,
		tracker: tracker,
		logger:  logger.Named("reference_wirer"),
	}
}

// Apply walks the reference list in order. References already pointing at
// the right address are skipped, which keeps repeated runs idempotent.
func (w *Wirer) Apply(ctx context.Context, refs []Ref, registry deploy.Registry) error {
	for _, ref := range refs {
		if err := w.applyRef(ctx, ref, registry); err != nil {
			return fmt.Errorf("wire %s.%s -> %s: %w", ref.Dependent, ref.Setter, ref.Dependency, err)
		}
	}
	return nil
}

func (w *Wirer) applyRef(ctx context.Context, ref Ref, registry deploy.Registry) error {
	dependent, ok := registry[ref.Dependent]
	if !ok {
		return fmt.Errorf("component %s not in registry", ref.Dependent)
	}
	dependency, ok := registry[ref.Dependency]
	if !ok {
		return fmt.Errorf("component %s not in registry", ref.Dependency)
	}

	log := w.logger.
		With("dependent", string(ref.Dependent)).
		With("dependency", string(ref.Dependency)).
		With("setter", ref.Setter)

	current, err := w.readRef(ctx, dependent.Proxy, ref.Getter)
	if err != nil {
		return err
	}
	if current == dependency.Proxy {
		log.Info("reference already correct, skipping")
		return nil
	}

	calldata, err := contracts.EncodeAddressSetter(ref.Setter, dependency.Proxy)
	if err != nil {
		return err
	}

	record, err := w.ledger.SubmitCall(ctx, dependent.Proxy, calldata, setterGasLimit)
	if err != nil {
		return fmt.Errorf("submit setter: %w", err)
	}
	log.With("tx_hash", record.Hash.Hex()).Info("reference setter sent")

	if err := w.tracker.AwaitConfirmation(ctx, record); err != nil {
		return err
	}

	verified, err := w.readRef(ctx, dependent.Proxy, ref.Getter)
	if err != nil {
		return err
	}
	if verified != dependency.Proxy {
		return fmt.Errorf("getter %s returned %s, want %s: %w",
			ref.Getter, verified.Hex(), dependency.Proxy.Hex(), ErrWiringMismatch)
	}

	log.Info("reference wired and verified")
	return nil
}

func (w *Wirer) readRef(ctx context.Context, proxy common.Address, getter string) (common.Address, error) {
	calldata, err := contracts.EncodeAddressGetter(getter)
	if err != nil {
		return common.Address{}, err
	}

	output, err := w.ledger.Call(ctx, proxy, calldata)
	if err != nil {
		return common.Address{}, fmt.Errorf("read %s: %w", getter, err)
	}

	return contracts.DecodeAddress(output)
}

// Verify re-reads every reference without writing. Mismatches are collected
// across all entries so the operator gets a complete diagnostic.
func Verify(ctx context.Context, l ledger.Ledger, refs []Ref, registry deploy.Registry) error {
	var errs []error

	for _, ref := range refs {
		dependent, ok := registry[ref.Dependent]
		if !ok {
			errs = append(errs, fmt.Errorf("component %s not in registry", ref.Dependent))
			continue
		}
		dependency, ok := registry[ref.Dependency]
		if !ok {
			errs = append(errs, fmt.Errorf("component %s not in registry", ref.Dependency))
			continue
		}

		calldata, err := contracts.EncodeAddressGetter(ref.Getter)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		output, err := l.Call(ctx, dependent.Proxy, calldata)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s.%s: %w", ref.Dependent, ref.Getter, err))
			continue
		}
		current, err := contracts.DecodeAddress(output)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if current != dependency.Proxy {
			errs = append(errs, fmt.Errorf("%s.%s() = %s, want %s: %w",
				ref.Dependent, ref.Getter, current.Hex(), dependency.Proxy.Hex(), ErrWiringMismatch))
		}
	}

	return errors.Join(errs...)
}
