// Package run drives a full reconciliation: deploy or attach, wire
// references, converge roles and allowlists, classify threat tiers, then
// verify everything read-only.
package run

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/governance-deployer/internal/contracts"
	"github.com/compose-network/governance-deployer/internal/deploy"
	"github.com/compose-network/governance-deployer/internal/roles"
	"github.com/compose-network/governance-deployer/internal/threat"
	"github.com/compose-network/governance-deployer/internal/wiring"
)

// Blueprint is the complete declarative intent of one run: what to deploy,
// how the components reference each other, who holds which role, what the
// governance allowlist contains and how every guarded surface is tiered.
type Blueprint struct {
	Plan            []deploy.Step
	Wiring          []wiring.Ref
	Roles           []roles.Assignment
	Security        []roles.SecurityEntry
	ThreatFunctions []threat.FunctionRule
	ThreatAddresses []threat.AddressRule
}

// DefaultBlueprint declares the standard four-component governance system
// administered by the given address.
func DefaultBlueprint(admin common.Address) Blueprint {
	return Blueprint{
		Plan: []deploy.Step{
			{
				Component:       contracts.ContractNameTimelock,
				InitializerArgs: []any{admin},
			},
			{
				Component:       contracts.ContractNameToken,
				InitializerArgs: []any{admin, deploy.Ref(contracts.ContractNameTimelock)},
				DependsOn:       []contracts.ContractName{contracts.ContractNameTimelock},
			},
			{
				Component:       contracts.ContractNameGovernance,
				InitializerArgs: []any{admin, deploy.Ref(contracts.ContractNameTimelock), deploy.Ref(contracts.ContractNameToken)},
				DependsOn:       []contracts.ContractName{contracts.ContractNameTimelock, contracts.ContractNameToken},
			},
			{
				Component:       contracts.ContractNameGovernanceViews,
				InitializerArgs: []any{deploy.Ref(contracts.ContractNameGovernance)},
				DependsOn:       []contracts.ContractName{contracts.ContractNameGovernance},
			},
		},

		Wiring: []wiring.Ref{
			{Dependent: contracts.ContractNameToken, Dependency: contracts.ContractNameTimelock, Getter: "timelock", Setter: "setTimelock"},
			{Dependent: contracts.ContractNameToken, Dependency: contracts.ContractNameGovernance, Getter: "governance", Setter: "setGovernance"},
			{Dependent: contracts.ContractNameGovernance, Dependency: contracts.ContractNameTimelock, Getter: "timelock", Setter: "setTimelock"},
			{Dependent: contracts.ContractNameGovernance, Dependency: contracts.ContractNameToken, Getter: "token", Setter: "setToken"},
		},

		Roles: []roles.Assignment{
			// administrative authority on every component
			{Component: contracts.ContractNameTimelock, Role: "DEFAULT_ADMIN_ROLE", Account: roles.AddressAccount(admin), Desired: true, Group: roles.GroupAuthority},
			{Component: contracts.ContractNameToken, Role: "DEFAULT_ADMIN_ROLE", Account: roles.AddressAccount(admin), Desired: true, Group: roles.GroupAuthority},
			{Component: contracts.ContractNameGovernance, Role: "DEFAULT_ADMIN_ROLE", Account: roles.AddressAccount(admin), Desired: true, Group: roles.GroupAuthority},

			// component-to-component capabilities
			{Component: contracts.ContractNameTimelock, Role: "PROPOSER_ROLE", Account: roles.ComponentAccount(contracts.ContractNameGovernance), Desired: true, ViaContract: true, Group: roles.GroupPeer},
			{Component: contracts.ContractNameTimelock, Role: "EXECUTOR_ROLE", Account: roles.ComponentAccount(contracts.ContractNameGovernance), Desired: true, ViaContract: true, Group: roles.GroupPeer},
			{Component: contracts.ContractNameTimelock, Role: "CANCELLER_ROLE", Account: roles.ComponentAccount(contracts.ContractNameGovernance), Desired: true, ViaContract: true, Group: roles.GroupPeer},
			{Component: contracts.ContractNameToken, Role: "GOVERNANCE_ROLE", Account: roles.ComponentAccount(contracts.ContractNameGovernance), Desired: true, ViaContract: true, Group: roles.GroupPeer},
			{Component: contracts.ContractNameToken, Role: "MINTER_ROLE", Account: roles.ComponentAccount(contracts.ContractNameTimelock), Desired: true, ViaContract: true, Group: roles.GroupPeer},

			// the deployer's bootstrap proposer capability must not survive
			{Component: contracts.ContractNameTimelock, Role: "PROPOSER_ROLE", Account: roles.AddressAccount(admin), Desired: false, Group: roles.GroupPeer},
		},

		Security: []roles.SecurityEntry{
			{Signature: "upgradeTo(address)", SelectorAllowed: true, Target: roles.ComponentAccount(contracts.ContractNameTimelock), TargetAllowed: true},
			{Signature: "setMaxSupply(uint256)", SelectorAllowed: true, Target: roles.ComponentAccount(contracts.ContractNameToken), TargetAllowed: true},
			{Signature: "withdrawTreasury(address,uint256)", SelectorAllowed: true, Target: roles.ComponentAccount(contracts.ContractNameGovernance), TargetAllowed: true},
		},

		ThreatFunctions: []threat.FunctionRule{
			{Signature: "upgradeTo(address)", Tier: threat.TierCritical},
			{Signature: "upgradeToAndCall(address,bytes)", Tier: threat.TierCritical},
			{Signature: "pause()", Tier: threat.TierCritical},
			{Signature: "unpause()", Tier: threat.TierCritical},
			{Signature: "setMaxSupply(uint256)", Tier: threat.TierCritical},
			{Signature: "setVotingPeriod(uint256)", Tier: threat.TierCritical},
			{Signature: "setQuorumNumerator(uint256)", Tier: threat.TierCritical},
			{Signature: "grantRole(bytes32,address)", Tier: threat.TierHigh},
			{Signature: "revokeRole(bytes32,address)", Tier: threat.TierHigh},
			{Signature: "withdrawTreasury(address,uint256)", Tier: threat.TierHigh},
			{Signature: "delegate(address)", Tier: threat.TierHigh},
			{Signature: "snapshot()", Tier: threat.TierMedium},
			{Signature: "rescueTokens(address,address,uint256)", Tier: threat.TierMedium},
			{Signature: "setFunctionThreatLevel(bytes4,uint8)", Tier: threat.TierMedium},
			{Signature: "setAddressThreatLevel(address,uint8)", Tier: threat.TierMedium},
		},

		ThreatAddresses: []threat.AddressRule{
			{Target: roles.ComponentAccount(contracts.ContractNameTimelock), Tier: threat.TierCritical},
			{Target: roles.ComponentAccount(contracts.ContractNameToken), Tier: threat.TierHigh},
			{Target: roles.ComponentAccount(contracts.ContractNameGovernance), Tier: threat.TierHigh},
			{Target: roles.ComponentAccount(contracts.ContractNameGovernanceViews), Tier: threat.TierMedium},
		},
	}
}

// callCount is the number of state-changing calls the blueprint could issue
// in the worst case, used by the funds precheck.
func (b Blueprint) callCount() int {
	return len(b.Wiring) + len(b.Roles) + len(b.Security) + len(b.ThreatFunctions) + len(b.ThreatAddresses)
}
