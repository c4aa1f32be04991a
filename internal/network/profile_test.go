package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name                  string
		network               string
		requiredConfirmations uint64
		pollInterval          time.Duration
	}{
		{name: "mainnet", network: "mainnet", requiredConfirmations: 3, pollInterval: 15 * time.Second},
		{name: "sepolia", network: "sepolia", requiredConfirmations: 2, pollInterval: 5 * time.Second},
		{name: "case insensitive", network: "Sepolia", requiredConfirmations: 2, pollInterval: 5 * time.Second},
		{name: "localhost", network: "localhost", requiredConfirmations: 1, pollInterval: 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := Resolve(tt.network)
			assert.Equal(t, tt.requiredConfirmations, profile.RequiredConfirmations)
			assert.Equal(t, tt.pollInterval, profile.PollInterval)
			assert.Equal(t, int64(20), profile.GasPremiumPercent)
		})
	}
}

func TestResolveUnknownFallsBackToLocal(t *testing.T) {
	profile := Resolve("some-devnet")

	require.Equal(t, "some-devnet", profile.Name)
	assert.Equal(t, Resolve("localhost").RequiredConfirmations, profile.RequiredConfirmations)
	assert.Equal(t, Resolve("localhost").PollInterval, profile.PollInterval)
	assert.Zero(t, profile.SettleDelay)
}

func TestPublicProfilesCarrySettleDelay(t *testing.T) {
	for _, name := range []string{"mainnet", "sepolia", "holesky"} {
		assert.Equal(t, 30*time.Second, Resolve(name).SettleDelay, name)
	}
	assert.Zero(t, Resolve("localhost").SettleDelay)
}
