// Package roles converges on-chain role membership to a declarative desired
// table, issuing only the grants and revokes needed.
package roles

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/compose-network/governance-deployer/internal/contracts"
	"github.com/compose-network/governance-deployer/internal/deploy"
)

// Reconciliation groups. Grants that establish administrative capability on a
// downstream component come before grants that depend on that capability, and
// allowlisting comes last so its validation reads make sense to the operator.
const (
	GroupAuthority = 1
	GroupPeer      = 2
	GroupAllowlist = 3
)

// RoleID derives the opaque 32-byte role identifier from a role name. The
// admin role is the zero hash by AccessControl convention.
func RoleID(name string) common.Hash {
	if name == "DEFAULT_ADMIN_ROLE" {
		return common.Hash{}
	}
	return crypto.Keccak256Hash([]byte(name))
}

// Account names either a fixed external address or a deployed component
// whose proxy address is resolved at reconciliation time.
type Account struct {
	Component contracts.ContractName
	Address   common.Address
}

func ComponentAccount(name contracts.ContractName) Account {
	return Account{Component: name}
}

func AddressAccount(address common.Address) Account {
	return Account{Address: address}
}

func (a Account) Resolve(registry deploy.Registry) (common.Address, error) {
	if a.Component == "" {
		return a.Address, nil
	}

	component, ok := registry[a.Component]
	if !ok {
		return common.Address{}, fmt.Errorf("account references %s which is not in the registry", a.Component)
	}
	return component.Proxy, nil
}

func (a Account) String() string {
	if a.Component != "" {
		return string(a.Component)
	}
	return a.Address.Hex()
}

// Assignment is one row of the desired role table.
type Assignment struct {
	Component contracts.ContractName
	Role      string
	Account   Account
	Desired   bool

	// ViaContract selects the grantContractRole variant used for
	// component-to-component grants.
	ViaContract bool

	Group int
}

func (a Assignment) describe() string {
	return fmt.Sprintf("%s on %s for %s", a.Role, a.Component, a.Account)
}
