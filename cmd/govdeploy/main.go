package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/compose-network/governance-deployer/configs"
	"github.com/compose-network/governance-deployer/internal/contracts"
	"github.com/compose-network/governance-deployer/internal/deploy"
	"github.com/compose-network/governance-deployer/internal/ledger"
	"github.com/compose-network/governance-deployer/internal/logger"
	"github.com/compose-network/governance-deployer/internal/network"
	"github.com/compose-network/governance-deployer/internal/run"
	"github.com/compose-network/governance-deployer/internal/verify"
)

const (
	appName   = "govdeploy"
	envPrefix = "GOVDEPLOY"
)

var cfg configs.Config

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Declarative deployment and reconciliation of the governance contract family",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Initialize(slog.LevelDebug, logger.FormatJSON)

		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if execPath, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(execPath))
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")

		viper.SetEnvPrefix(envPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
		viper.AutomaticEnv()

		// Registering defaults makes every key known to viper, which is what
		// lets environment-only values reach Unmarshal.
		defaults := configs.MustDefaultConfig()
		viper.SetDefault("network", defaults.Network)
		viper.SetDefault("rpc-url", defaults.RPCURL)
		viper.SetDefault("private-key", defaults.PrivateKey)
		viper.SetDefault("artifacts-dir", defaults.ArtifactsDir)
		viper.SetDefault("attach.timelock", defaults.Attach.Timelock)
		viper.SetDefault("attach.token", defaults.Attach.Token)
		viper.SetDefault("attach.governance", defaults.Attach.Governance)
		viper.SetDefault("attach.governance-views", defaults.Attach.GovernanceViews)

		// A missing config file is fine: environment variables can provide
		// everything.
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				slog.Debug("no config file found, relying on environment and defaults")
			} else {
				const errMsg = "error reading config file"
				slog.With("err", err.Error()).Error(errMsg)
				return errors.Join(err, errors.New(errMsg))
			}
		} else {
			slog.With("config_file", viper.ConfigFileUsed()).Debug("config file loaded")
		}

		if err := viper.Unmarshal(&cfg); err != nil {
			const errMsg = "unable to decode application config"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		slog.With("network", cfg.Network).Debug("configuration loaded")
		return nil
	},
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy (or attach to) the components and converge them to the declared state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, tracker, profile, err := connect(ctx)
		if err != nil {
			return err
		}

		attach, err := attachAddresses()
		if err != nil {
			return err
		}

		var artifacts map[contracts.ContractName]contracts.CompiledContract
		if attach == nil {
			artifacts, err = contracts.LoadCompiledContracts(cfg.ArtifactsDir)
			if err != nil {
				return fmt.Errorf("load artifacts: %w", err)
			}
		}

		runner := run.NewRunner(client, tracker, profile, artifacts)
		registry, err := runner.Run(ctx, run.DefaultBlueprint(client.Sender()), attach)
		if err != nil {
			return err
		}

		for name, component := range registry {
			slog.
				With("component", string(name)).
				With("proxy", component.Proxy.Hex()).
				With("implementation", component.Implementation.Hex()).
				Info("component ready")
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-check every invariant of a deployed system without sending transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, tracker, _, err := connect(ctx)
		if err != nil {
			return err
		}

		attach, err := attachAddresses()
		if err != nil {
			return err
		}
		if attach == nil {
			return errors.New("verify requires attach addresses for every component")
		}

		blueprint := run.DefaultBlueprint(client.Sender())
		registry := make(deploy.Registry, len(blueprint.Plan))
		for _, step := range blueprint.Plan {
			registry[step.Component] = deploy.Component{
				Name:  step.Component,
				Proxy: attach[string(step.Component)],
				Admin: client.Sender(),
			}
		}

		verifier := verify.NewVerifier(client, tracker)
		if err := verifier.Run(ctx, verify.Input{
			Registry:        registry,
			Wiring:          blueprint.Wiring,
			Roles:           blueprint.Roles,
			Security:        blueprint.Security,
			ThreatFunctions: blueprint.ThreatFunctions,
			ThreatAddresses: blueprint.ThreatAddresses,
		}); err != nil {
			return err
		}

		slog.Info("all invariants hold")
		return nil
	},
}

// connect resolves the network profile and binds the signing identity.
func connect(ctx context.Context) (*ledger.Client, *ledger.Tracker, network.Profile, error) {
	profile := network.Resolve(cfg.Network)

	client, err := ledger.Dial(ctx, cfg.RPCURL, cfg.PrivateKey, profile.GasPremiumPercent)
	if err != nil {
		return nil, nil, network.Profile{}, fmt.Errorf("connect to %s: %w", cfg.RPCURL, err)
	}

	return client, ledger.NewTracker(client, profile), profile, nil
}

// attachAddresses returns the operator-supplied component addresses, or nil
// when the run should deploy. A partially filled attach block is an error, not
// a fresh deployment.
func attachAddresses() (map[string]common.Address, error) {
	addresses := cfg.Attach.Addresses()
	if len(addresses) == 0 {
		return nil, nil
	}
	if !cfg.Attach.Complete() {
		return nil, errors.New("attach requires an address for every component")
	}
	return addresses, nil
}

func main() {
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(verifyCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.With("err", err.Error()).Error("command failed")
		os.Exit(1)
	}
}
