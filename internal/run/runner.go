package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/governance-deployer/internal/contracts"
	"github.com/compose-network/governance-deployer/internal/deploy"
	"github.com/compose-network/governance-deployer/internal/ledger"
	"github.com/compose-network/governance-deployer/internal/logger"
	"github.com/compose-network/governance-deployer/internal/network"
	"github.com/compose-network/governance-deployer/internal/roles"
	"github.com/compose-network/governance-deployer/internal/threat"
	"github.com/compose-network/governance-deployer/internal/verify"
	"github.com/compose-network/governance-deployer/internal/wiring"
)

// Worst-case gas assumptions for the funds precheck. Each component costs
// two creations (implementation plus proxy); every later call is bounded by
// the largest per-call ceiling used anywhere in the pipeline.
const (
	perComponentGas uint64 = 2 * 6_000_000
	perCallGas      uint64 = 300_000
)

// fallbackGasPrice is used when the node cannot quote fees, so the precheck
// still produces a meaningful bound instead of failing the run outright.
var fallbackGasPrice = big.NewInt(10_000_000_000) // 10 gwei

// Runner owns the end-to-end pipeline. Stages run strictly in order and the
// first failed stage halts the run; each stage is idempotent, so a rerun
// resumes by skipping everything already converged.
type Runner struct {
	ledger    ledger.Ledger
	tracker   *ledger.Tracker
	profile   network.Profile
	artifacts map[contracts.ContractName]contracts.CompiledContract
	logger    *slog.Logger
}

func NewRunner(
	l ledger.Ledger,
	tracker *ledger.Tracker,
	profile network.Profile,
	artifacts map[contracts.ContractName]contracts.CompiledContract,
) *Runner {
	return &Runner{
		ledger:    l,
		tracker:   tracker,
		profile:   profile,
		artifacts: artifacts,
		logger:    logger.Named("runner"),
	}
}

// Run executes the blueprint. When attach maps every plan component to an
// address the deployment stage is skipped and the run reconciles in place.
func (r *Runner) Run(ctx context.Context, blueprint Blueprint, attach map[string]common.Address) (deploy.Registry, error) {
	attaching := len(attach) > 0

	if err := r.checkFunds(ctx, blueprint, attaching); err != nil {
		return nil, err
	}

	registry, err := r.resolveComponents(ctx, blueprint, attach)
	if err != nil {
		return nil, err
	}

	wirer := wiring.NewWirer(r.ledger, r.tracker)
	if err := wirer.Apply(ctx, blueprint.Wiring, registry); err != nil {
		return nil, fmt.Errorf("wiring stage: %w", err)
	}

	reconciler := roles.NewReconciler(r.ledger, r.tracker)
	if _, err := reconciler.Reconcile(ctx, blueprint.Roles, registry); err != nil {
		return nil, fmt.Errorf("role stage: %w", err)
	}
	if _, err := reconciler.ReconcileSecurity(ctx, blueprint.Security, registry); err != nil {
		return nil, fmt.Errorf("security stage: %w", err)
	}

	classifier := threat.NewClassifier(r.ledger, r.tracker)
	if _, err := classifier.Reconcile(ctx, blueprint.ThreatFunctions, blueprint.ThreatAddresses, registry); err != nil {
		return nil, fmt.Errorf("threat stage: %w", err)
	}

	verifier := verify.NewVerifier(r.ledger, r.tracker)
	if err := verifier.Run(ctx, verify.Input{
		Registry:        registry,
		Wiring:          blueprint.Wiring,
		Roles:           blueprint.Roles,
		Security:        blueprint.Security,
		ThreatFunctions: blueprint.ThreatFunctions,
		ThreatAddresses: blueprint.ThreatAddresses,
	}); err != nil {
		return nil, err
	}

	r.logger.With("components", len(registry)).Info("run complete")
	return registry, nil
}

// resolveComponents either attaches to the addresses the operator supplied or
// deploys the plan. Partial attachment is rejected: reconciling against a mix
// of live and missing components would produce misleading diffs.
func (r *Runner) resolveComponents(ctx context.Context, blueprint Blueprint, attach map[string]common.Address) (deploy.Registry, error) {
	if len(attach) == 0 {
		orchestrator := deploy.NewOrchestrator(r.ledger, r.tracker, r.profile, r.artifacts)
		registry, err := orchestrator.Execute(ctx, blueprint.Plan)
		if err != nil {
			return nil, fmt.Errorf("deployment stage: %w", err)
		}
		return registry, nil
	}

	registry := make(deploy.Registry, len(blueprint.Plan))
	for _, step := range blueprint.Plan {
		address, ok := attach[string(step.Component)]
		if !ok {
			return nil, fmt.Errorf("attach mode requires an address for every component, %s is missing", step.Component)
		}

		code, err := r.ledger.CodeAt(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("check code of %s at %s: %w", step.Component, address.Hex(), err)
		}
		if len(code) == 0 {
			return nil, fmt.Errorf("attach address for %s has no bytecode: %s", step.Component, address.Hex())
		}

		registry[step.Component] = deploy.Component{
			Name:  step.Component,
			Proxy: address,
			Admin: r.ledger.Sender(),
		}
		r.logger.With("component", string(step.Component)).With("proxy", address.Hex()).Info("attached to deployed component")
	}
	return registry, nil
}

// checkFunds bounds the run's worst-case cost before anything is submitted.
// A run that stalls halfway on an empty account leaves the system in a state
// that is annoying to diagnose, so an explicit precheck refuses to start.
func (r *Runner) checkFunds(ctx context.Context, blueprint Blueprint, attaching bool) error {
	gasPrice := fallbackGasPrice
	quote, err := r.ledger.FeeEstimate(ctx)
	switch {
	case errors.Is(err, ledger.ErrFeeUnavailable):
		r.logger.Warn("fee quote unavailable, falling back to a fixed gas price for the funds precheck")
	case err != nil:
		return fmt.Errorf("fee estimate: %w", err)
	default:
		gasPrice = quote.GasFeeCap
	}

	var gasBudget uint64
	if !attaching {
		gasBudget += uint64(len(blueprint.Plan)) * perComponentGas
	}
	gasBudget += uint64(blueprint.callCount()) * perCallGas

	required := new(big.Int).Mul(new(big.Int).SetUint64(gasBudget), gasPrice)

	sender := r.ledger.Sender()
	balance, err := r.ledger.BalanceAt(ctx, sender)
	if err != nil {
		return fmt.Errorf("read balance of %s: %w", sender.Hex(), err)
	}

	if balance.Cmp(required) < 0 {
		return fmt.Errorf("account %s holds %s wei, worst case needs %s wei: %w",
			sender.Hex(), balance, required, ledger.ErrInsufficientFunds)
	}

	r.logger.
		With("sender", sender.Hex()).
		With("required_wei", required.String()).
		Info("funds precheck passed")
	return nil
}
