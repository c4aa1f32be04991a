// Package verify is the final read-only pass. It reproduces every invariant
// of a completed run — bytecode presence, cross-references, role membership,
// allowlists, threat tiers — and reports all discrepancies at once.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/compose-network/governance-deployer/internal/contracts"
	"github.com/compose-network/governance-deployer/internal/deploy"
	"github.com/compose-network/governance-deployer/internal/ledger"
	"github.com/compose-network/governance-deployer/internal/logger"
	"github.com/compose-network/governance-deployer/internal/roles"
	"github.com/compose-network/governance-deployer/internal/threat"
	"github.com/compose-network/governance-deployer/internal/wiring"
)

// Input is everything a run declared, plus the registry it produced.
type Input struct {
	Registry        deploy.Registry
	Wiring          []wiring.Ref
	Roles           []roles.Assignment
	Security        []roles.SecurityEntry
	ThreatFunctions []threat.FunctionRule
	ThreatAddresses []threat.AddressRule
}

type Verifier struct {
	ledger     ledger.Ledger
	reconciler *roles.Reconciler
	classifier *threat.Classifier
	logger     *slog.Logger
}

func NewVerifier(l ledger.Ledger, tracker *ledger.Tracker) *Verifier {
	return &Verifier{
		ledger:     l,
		reconciler: roles.NewReconciler(l, tracker),
		classifier: threat.NewClassifier(l, tracker),
		logger:     logger.Named("verifier"),
	}
}

// Run executes every check to completion and aggregates the failures:
// independent diagnostic checks never mask each other.
func (v *Verifier) Run(ctx context.Context, input Input) error {
	var errs []error

	errs = append(errs, v.checkBytecode(ctx, input.Registry)...)

	if err := wiring.Verify(ctx, v.ledger, input.Wiring, input.Registry); err != nil {
		errs = append(errs, err)
	}
	if err := v.reconciler.Verify(ctx, input.Roles, input.Registry); err != nil {
		errs = append(errs, err)
	}
	if err := v.reconciler.VerifySecurity(ctx, input.Security, input.Registry); err != nil {
		errs = append(errs, err)
	}
	if err := v.classifier.Verify(ctx, input.ThreatFunctions, input.ThreatAddresses, input.Registry); err != nil {
		errs = append(errs, err)
	}

	if joined := errors.Join(errs...); joined != nil {
		return fmt.Errorf("final verification failed: %w", joined)
	}

	v.logger.
		With("components", len(input.Registry)).
		With("role_entries", len(input.Roles)).
		Info("all invariants verified")
	return nil
}

func (v *Verifier) checkBytecode(ctx context.Context, registry deploy.Registry) []error {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, string(name))
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		component := registry[contracts.ContractName(name)]
		code, err := v.ledger.CodeAt(ctx, component.Proxy)
		if err != nil {
			errs = append(errs, fmt.Errorf("read code of %s: %w", name, err))
			continue
		}
		if len(code) == 0 {
			errs = append(errs, fmt.Errorf("no bytecode at %s proxy %s", name, component.Proxy.Hex()))
		}
	}
	return errs
}
