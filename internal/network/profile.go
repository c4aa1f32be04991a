// Package network maps a target network identifier to the polling and
// confirmation parameters used by every chain-touching step.
package network

import (
	"strings"
	"time"
)

// Profile is the tuple of timing and fee parameters for one network. It is
// chosen once at the start of a run and never mutated.
type Profile struct {
	Name                  string
	PollInterval          time.Duration
	Timeout               time.Duration
	RequiredConfirmations uint64
	GasPremiumPercent     int64

	// SettleDelay absorbs eventual-consistency lag of RPC backends after a
	// deployment is confirmed and its bytecode is visible. Zero on local
	// profiles so development runs do not sleep.
	SettleDelay time.Duration
}

var profiles = map[string]Profile{
	"mainnet": {
		Name:                  "mainnet",
		PollInterval:          15 * time.Second,
		Timeout:               10 * time.Minute,
		RequiredConfirmations: 3,
		GasPremiumPercent:     20,
		SettleDelay:           30 * time.Second,
	},
	"sepolia": {
		Name:                  "sepolia",
		PollInterval:          5 * time.Second,
		Timeout:               5 * time.Minute,
		RequiredConfirmations: 2,
		GasPremiumPercent:     20,
		SettleDelay:           30 * time.Second,
	},
	"holesky": {
		Name:                  "holesky",
		PollInterval:          5 * time.Second,
		Timeout:               5 * time.Minute,
		RequiredConfirmations: 2,
		GasPremiumPercent:     20,
		SettleDelay:           30 * time.Second,
	},
	"localhost": {
		Name:                  "localhost",
		PollInterval:          500 * time.Millisecond,
		Timeout:               2 * time.Minute,
		RequiredConfirmations: 1,
		GasPremiumPercent:     20,
	},
}

// Resolve returns the profile for the named network. Unknown networks fall
// back to the localhost profile, so the function is total.
func Resolve(name string) Profile {
	if profile, ok := profiles[strings.ToLower(name)]; ok {
		return profile
	}

	fallback := profiles["localhost"]
	fallback.Name = name
	return fallback
}
