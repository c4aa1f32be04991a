package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/governance-deployer/internal/contracts"
	"github.com/compose-network/governance-deployer/internal/ledger"
	"github.com/compose-network/governance-deployer/internal/logger"
	"github.com/compose-network/governance-deployer/internal/network"
)

// StepState tracks one step through the deployment state machine.
type StepState string

const (
	StatePending              StepState = "pending"
	StateSubmitted            StepState = "submitted"
	StateAwaitingConfirmation StepState = "awaiting_confirmation"
	StateAwaitingCodeVisible  StepState = "awaiting_code_visible"
	StateVerified             StepState = "verified"
	StateFailed               StepState = "failed"
)

// Proxy initialization gas is hard to estimate reliably pre-execution, so
// every deployment uses one generous ceiling instead of an estimate.
const deployGasLimit uint64 = 6_000_000

// Orchestrator executes an ordered deployment plan, one component at a time.
// A failed step halts the whole plan: later steps' arguments depend on
// earlier addresses, so there is no partial-success continuation.
type Orchestrator struct {
	ledger    ledger.Ledger
	tracker   *ledger.Tracker
	profile   network.Profile
	artifacts map[contracts.ContractName]contracts.CompiledContract
	logger    *slog.Logger
}

func NewOrchestrator(
	l ledger.Ledger,
	tracker *ledger.Tracker,
	profile network.Profile,
	artifacts map[contracts.ContractName]contracts.CompiledContract,
) *Orchestrator {
	return &Orchestrator{
		ledger:    l,
		tracker:   tracker,
		profile:   profile,
		artifacts: artifacts,
		logger:    logger.Named("deployment_orchestrator"),
	}
}

// Execute validates the plan, then runs every step sequentially. The
// returned registry holds one entry per verified component.
func (o *Orchestrator) Execute(ctx context.Context, plan []Step) (Registry, error) {
	if err := ValidatePlan(plan); err != nil {
		return nil, fmt.Errorf("invalid deployment plan: %w", err)
	}

	registry := make(Registry, len(plan))
	for _, step := range plan {
		component, err := o.executeStep(ctx, step, registry)
		if err != nil {
			o.logger.With("component", string(step.Component)).With("state", string(StateFailed)).Error("deployment step failed")
			return nil, fmt.Errorf("deploy %s: %w", step.Component, err)
		}
		registry[step.Component] = component
	}

	o.logger.With("components", len(registry)).Info("deployment plan executed")
	return registry, nil
}

func (o *Orchestrator) executeStep(ctx context.Context, step Step, registry Registry) (Component, error) {
	log := o.logger.With("component", string(step.Component))
	log.With("state", string(StatePending)).Info("starting deployment step")

	artifact, ok := o.artifacts[step.Component]
	if !ok {
		return Component{}, fmt.Errorf("no compiled artifact for %s", step.Component)
	}
	proxyArtifact, ok := o.artifacts[contracts.ContractNameProxy]
	if !ok {
		return Component{}, fmt.Errorf("no compiled artifact for %s", contracts.ContractNameProxy)
	}

	constructorArgs, err := resolveArgs(step.ConstructorArgs, registry)
	if err != nil {
		return Component{}, err
	}
	initializerArgs, err := resolveArgs(step.InitializerArgs, registry)
	if err != nil {
		return Component{}, err
	}

	implementation, err := o.deploy(ctx, log.With("kind", "implementation"), artifact, constructorArgs)
	if err != nil {
		return Component{}, fmt.Errorf("implementation: %w", err)
	}

	initData, err := artifact.ABI.Pack("initialize", initializerArgs...)
	if err != nil {
		return Component{}, fmt.Errorf("pack initializer: %w", err)
	}

	proxy, err := o.deploy(ctx, log.With("kind", "proxy"), proxyArtifact, []any{implementation, initData})
	if err != nil {
		return Component{}, fmt.Errorf("proxy: %w", err)
	}

	if err := o.settle(ctx); err != nil {
		return Component{}, err
	}

	log.
		With("state", string(StateVerified)).
		With("proxy", proxy.Hex()).
		With("implementation", implementation.Hex()).
		Info("component deployed")

	return Component{
		Name:           step.Component,
		Proxy:          proxy,
		Implementation: implementation,
		Admin:          o.ledger.Sender(),
	}, nil
}

// deploy walks one creation through Submitted → AwaitingConfirmation →
// AwaitingCodeVisible and returns the contract address.
func (o *Orchestrator) deploy(ctx context.Context, log *slog.Logger, artifact contracts.CompiledContract, constructorArgs []any) (common.Address, error) {
	code := artifact.Bytecode
	if len(constructorArgs) > 0 {
		packed, err := artifact.ABI.Pack("", constructorArgs...)
		if err != nil {
			return common.Address{}, fmt.Errorf("pack constructor: %w", err)
		}
		code = append(append([]byte{}, artifact.Bytecode...), packed...)
	}

	record, address, err := o.ledger.SubmitDeploy(ctx, code, deployGasLimit)
	if err != nil {
		return common.Address{}, fmt.Errorf("submit: %w", err)
	}
	log.With("state", string(StateSubmitted)).With("tx_hash", record.Hash.Hex()).Info("deployment transaction sent")

	log.With("state", string(StateAwaitingConfirmation)).Debug("waiting for confirmation")
	if err := o.tracker.AwaitConfirmation(ctx, record); err != nil {
		return common.Address{}, err
	}

	log.With("state", string(StateAwaitingCodeVisible)).Debug("waiting for bytecode")
	if err := o.tracker.AwaitBytecodePresence(ctx, address); err != nil {
		return common.Address{}, err
	}

	return address, nil
}

// settle absorbs eventual-consistency lag of some RPC backends (index
// propagation) that the bytecode check alone does not catch.
func (o *Orchestrator) settle(ctx context.Context) error {
	if o.profile.SettleDelay <= 0 {
		return nil
	}

	o.logger.With("delay", o.profile.SettleDelay.String()).Info("settling before next step")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.profile.SettleDelay):
		return nil
	}
}
