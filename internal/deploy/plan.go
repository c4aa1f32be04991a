package deploy

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/governance-deployer/internal/contracts"
)

type (
	// Ref is a placeholder argument resolved to the proxy address of an
	// earlier component at execution time.
	Ref contracts.ContractName

	// Step deploys one upgradeable component. The plan is a DAG executed in
	// a fixed topological order.
	Step struct {
		Component       contracts.ContractName
		ConstructorArgs []any
		InitializerArgs []any
		DependsOn       []contracts.ContractName
	}

	// Component records a deployed component. Immutable after creation; the
	// proxy address is the join key used by every later step.
	Component struct {
		Name           contracts.ContractName
		Proxy          common.Address
		Implementation common.Address
		Admin          common.Address
	}

	Registry map[contracts.ContractName]Component
)

// ValidatePlan rejects a plan whose dependencies or argument references do
// not resolve to an earlier step. It runs before anything is submitted.
func ValidatePlan(plan []Step) error {
	seen := make(map[contracts.ContractName]struct{}, len(plan))

	for _, step := range plan {
		if _, dup := seen[step.Component]; dup {
			return fmt.Errorf("component %s appears twice in the plan", step.Component)
		}

		for _, dep := range step.DependsOn {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("step %s depends on %s which is not deployed earlier in the plan", step.Component, dep)
			}
		}

		for _, arg := range append(append([]any{}, step.ConstructorArgs...), step.InitializerArgs...) {
			ref, isRef := arg.(Ref)
			if !isRef {
				continue
			}
			if _, ok := seen[contracts.ContractName(ref)]; !ok {
				return fmt.Errorf("step %s references %s which is not deployed earlier in the plan", step.Component, ref)
			}
		}

		seen[step.Component] = struct{}{}
	}

	return nil
}

// resolveArgs substitutes Ref placeholders with recorded proxy addresses.
func resolveArgs(args []any, registry Registry) ([]any, error) {
	resolved := make([]any, len(args))
	for i, arg := range args {
		ref, isRef := arg.(Ref)
		if !isRef {
			resolved[i] = arg
			continue
		}

		component, ok := registry[contracts.ContractName(ref)]
		if !ok {
			return nil, fmt.Errorf("unresolved reference to %s", ref)
		}
		resolved[i] = component.Proxy
	}
	return resolved, nil
}
