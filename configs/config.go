package configs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type (
	Config struct {
		Network      string `mapstructure:"network"`
		RPCURL       string `mapstructure:"rpc-url"`
		PrivateKey   string `mapstructure:"private-key"`
		ArtifactsDir string `mapstructure:"artifacts-dir"`
		Attach       Attach `mapstructure:"attach"`
	}

	// Attach carries addresses of already-deployed components. When every
	// address is set the run skips deployment and reconciles in place.
	Attach struct {
		Timelock        string `mapstructure:"timelock"`
		Token           string `mapstructure:"token"`
		Governance      string `mapstructure:"governance"`
		GovernanceViews string `mapstructure:"governance-views"`
	}
)

func (c *Config) Validate() error {
	var errs []error

	if c.Network == "" {
		errs = append(errs, errors.New("network is required"))
	}
	if c.RPCURL == "" {
		errs = append(errs, errors.New("rpc-url is required"))
	}
	if c.PrivateKey == "" {
		errs = append(errs, errors.New("private-key is required"))
	}
	if c.ArtifactsDir == "" && !c.Attach.Complete() {
		errs = append(errs, errors.New("artifacts-dir is required unless attach addresses are provided"))
	}

	for field, value := range map[string]string{
		"attach.timelock":         c.Attach.Timelock,
		"attach.token":            c.Attach.Token,
		"attach.governance":       c.Attach.Governance,
		"attach.governance-views": c.Attach.GovernanceViews,
	} {
		if value != "" && !common.IsHexAddress(value) {
			errs = append(errs, fmt.Errorf("%s is not a valid address: %s", field, value))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// Complete reports whether every component address is present, i.e. the run
// can attach instead of deploying.
func (a *Attach) Complete() bool {
	return a.Timelock != "" && a.Token != "" && a.Governance != "" && a.GovernanceViews != ""
}

// Addresses returns the non-empty attach addresses keyed by the component
// name used in the deployment plan.
func (a *Attach) Addresses() map[string]common.Address {
	out := make(map[string]common.Address)
	for name, value := range map[string]string{
		"Timelock":        a.Timelock,
		"Token":           a.Token,
		"Governance":      a.Governance,
		"GovernanceViews": a.GovernanceViews,
	} {
		if value == "" {
			continue
		}
		out[name] = common.HexToAddress(strings.TrimSpace(value))
	}
	return out
}
