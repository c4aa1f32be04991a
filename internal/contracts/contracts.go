// Package contracts holds the compiled-artifact loader and the ABI call
// surface of the governance components. The components themselves are
// external collaborators; this package only knows how to talk to them.
package contracts

import "github.com/ethereum/go-ethereum/accounts/abi"

type (
	ContractName string

	CompiledContract struct {
		ABI      abi.ABI
		RawABI   string
		Bytecode []byte
	}
)

const (
	ContractNameTimelock        ContractName = "Timelock"
	ContractNameToken           ContractName = "Token"
	ContractNameGovernance      ContractName = "Governance"
	ContractNameGovernanceViews ContractName = "GovernanceViews"

	// ContractNameProxy is the ERC1967 proxy every component deploys behind.
	ContractNameProxy ContractName = "ERC1967Proxy"
)

// Contracts is the set of artifacts the loader accepts.
var Contracts = map[ContractName]struct{}{
	ContractNameTimelock:        {},
	ContractNameToken:           {},
	ContractNameGovernance:      {},
	ContractNameGovernanceViews: {},
	ContractNameProxy:           {},
}
