package wiring_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/governance-deployer/internal/contracts"
	"github.com/compose-network/governance-deployer/internal/deploy"
	"github.com/compose-network/governance-deployer/internal/ledger"
	"github.com/compose-network/governance-deployer/internal/ledger/ledgertest"
	"github.com/compose-network/governance-deployer/internal/network"
	"github.com/compose-network/governance-deployer/internal/wiring"
)

var (
	timelockProxy = common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenProxy    = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

func testRegistry() deploy.Registry {
	return deploy.Registry{
		contracts.ContractNameTimelock: {Name: contracts.ContractNameTimelock, Proxy: timelockProxy},
		contracts.ContractNameToken:    {Name: contracts.ContractNameToken, Proxy: tokenProxy},
	}
}

func timelockRef() wiring.Ref {
	return wiring.Ref{
		Dependent:  contracts.ContractNameToken,
		Dependency: contracts.ContractNameTimelock,
		Getter:     "timelock",
		Setter:     "setTimelock",
	}
}

// wireFake wires a Fake ledger to a single mutable address slot behind
// timelock()/setTimelock(address) on the token proxy.
func wireFake(fake *ledgertest.Fake, slot *common.Address, applied *common.Address) {
	getter := contracts.Selector("timelock()")
	setter := contracts.Selector("setTimelock(address)")

	fake.Handlers[tokenProxy] = func(data []byte) ([]byte, error) {
		if bytes.Equal(data[:4], getter[:]) {
			return common.LeftPadBytes(slot.Bytes(), 32), nil
		}
		return nil, nil
	}
	fake.Apply = func(to common.Address, data []byte) {
		if to == tokenProxy && bytes.Equal(data[:4], setter[:]) {
			written := common.BytesToAddress(data[16:36])
			if applied != nil {
				written = *applied // simulate a setter that stores something else
			}
			*slot = written
		}
	}
}

func newWirer(fake *ledgertest.Fake) *wiring.Wirer {
	profile := network.Profile{PollInterval: time.Millisecond, Timeout: time.Second, RequiredConfirmations: 1}
	return wiring.NewWirer(fake, ledger.NewTracker(fake, profile))
}

func TestApplySkipsCorrectReference(t *testing.T) {
	fake := ledgertest.NewFake()
	slot := timelockProxy
	wireFake(fake, &slot, nil)

	err := newWirer(fake).Apply(context.Background(), []wiring.Ref{timelockRef()}, testRegistry())
	require.NoError(t, err)
	assert.Empty(t, fake.Submitted, "an already-correct reference must be a no-op")
}

func TestApplySetsAndVerifiesReference(t *testing.T) {
	fake := ledgertest.NewFake()
	var slot common.Address
	wireFake(fake, &slot, nil)

	err := newWirer(fake).Apply(context.Background(), []wiring.Ref{timelockRef()}, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.CallCount(tokenProxy))
	assert.Equal(t, timelockProxy, slot)
}

func TestApplyFailsOnWiringMismatch(t *testing.T) {
	fake := ledgertest.NewFake()
	var slot common.Address
	wrong := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	wireFake(fake, &slot, &wrong)

	err := newWirer(fake).Apply(context.Background(), []wiring.Ref{timelockRef()}, testRegistry())
	require.ErrorIs(t, err, wiring.ErrWiringMismatch)
}

func TestVerifyCollectsAllMismatches(t *testing.T) {
	fake := ledgertest.NewFake()
	var slot common.Address // zero, never wired
	wireFake(fake, &slot, nil)

	refs := []wiring.Ref{timelockRef()}
	err := wiring.Verify(context.Background(), fake, refs, testRegistry())
	require.ErrorIs(t, err, wiring.ErrWiringMismatch)
	assert.Contains(t, err.Error(), "timelock()")
}
