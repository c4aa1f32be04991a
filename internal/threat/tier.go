// Package threat assigns risk tiers to timelock-guarded function selectors
// and target addresses, with the same reconcile-and-verify discipline as the
// role table.
package threat

import (
	"github.com/compose-network/governance-deployer/internal/contracts"
	"github.com/compose-network/governance-deployer/internal/roles"
)

// Tier is the risk classification controlling the mandatory delay before a
// guarded operation may execute.
type Tier uint8

const (
	TierNone     Tier = 0
	TierMedium   Tier = 1
	TierHigh     Tier = 2
	TierCritical Tier = 3
)

func (t Tier) String() string {
	switch t {
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	case TierCritical:
		return "critical"
	default:
		return "none"
	}
}

// FunctionRule maps a canonical function signature to its tier. The selector
// is derived from the signature at reconciliation time.
type FunctionRule struct {
	Signature string
	Tier      Tier
}

// AddressRule maps a target address (usually a deployed component) to the
// tier of its blast radius.
type AddressRule struct {
	Target roles.Account
	Tier   Tier
}

// Selector re-exports the canonical selector derivation for callers that
// only import this package.
func Selector(signature string) [4]byte {
	return contracts.Selector(signature)
}
