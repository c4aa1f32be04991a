package roles_test

import (
	"bytes"
	"context"
	"fmt"
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
	"github.com/compose-network/governance-deployer/internal/roles"
)

var (
	selHasRole            = contracts.Selector("hasRole(bytes32,address)")
	selGrantRole          = contracts.Selector("grantRole(bytes32,address)")
	selGrantContractRole  = contracts.Selector("grantContractRole(bytes32,address)")
	selRevokeContractRole = contracts.Selector("revokeContractRole(bytes32,address)")
	selSelectorAllowed    = contracts.Selector("selectorAllowed(bytes4)")
	selTargetAllowed      = contracts.Selector("targetAllowed(address)")
	selUpdateSecurity     = contracts.Selector("updateSecurity(bytes4,bool,address,bool)")

	timelockProxy   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenProxy      = common.HexToAddress("0x2000000000000000000000000000000000000002")
	governanceProxy = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

// accessState simulates role membership and the governance allowlist.
type accessState struct {
	roles      map[string]bool
	selAllowed map[[4]byte]bool
	tgtAllowed map[common.Address]bool
}

func newAccessState() *accessState {
	return &accessState{
		roles:      make(map[string]bool),
		selAllowed: make(map[[4]byte]bool),
		tgtAllowed: make(map[common.Address]bool),
	}
}

func roleKey(target common.Address, roleID common.Hash, account common.Address) string {
	return fmt.Sprintf("%s|%s|%s", target.Hex(), roleID.Hex(), account.Hex())
}

func (s *accessState) grant(target common.Address, role string, account common.Address) {
	s.roles[roleKey(target, roles.RoleID(role), account)] = true
}

func (s *accessState) has(target common.Address, role string, account common.Address) bool {
	return s.roles[roleKey(target, roles.RoleID(role), account)]
}

func boolWord(v bool) []byte {
	if v {
		return common.LeftPadBytes([]byte{1}, 32)
	}
	return common.LeftPadBytes([]byte{0}, 32)
}

// bind installs read handlers and the write mutator for the given proxies.
func bind(fake *ledgertest.Fake, state *accessState, proxies ...common.Address) {
	handler := func(target common.Address) func(data []byte) ([]byte, error) {
		return func(data []byte) ([]byte, error) {
			switch {
			case bytes.Equal(data[:4], selHasRole[:]):
				roleID := common.BytesToHash(data[4:36])
				account := common.BytesToAddress(data[48:68])
				return boolWord(state.roles[roleKey(target, roleID, account)]), nil
			case bytes.Equal(data[:4], selSelectorAllowed[:]):
				var sel [4]byte
				copy(sel[:], data[4:8])
				return boolWord(state.selAllowed[sel]), nil
			case bytes.Equal(data[:4], selTargetAllowed[:]):
				return boolWord(state.tgtAllowed[common.BytesToAddress(data[16:36])]), nil
			}
			return nil, fmt.Errorf("unexpected call %x", data[:4])
		}
	}
	for _, proxy := range proxies {
		fake.Handlers[proxy] = handler(proxy)
	}

	fake.Apply = func(to common.Address, data []byte) {
		switch {
		case bytes.Equal(data[:4], selGrantRole[:]), bytes.Equal(data[:4], selGrantContractRole[:]):
			state.roles[roleKey(to, common.BytesToHash(data[4:36]), common.BytesToAddress(data[48:68]))] = true
		case bytes.Equal(data[:4], selRevokeContractRole[:]):
			state.roles[roleKey(to, common.BytesToHash(data[4:36]), common.BytesToAddress(data[48:68]))] = false
		case bytes.Equal(data[:4], selUpdateSecurity[:]):
			var sel [4]byte
			copy(sel[:], data[4:8])
			state.selAllowed[sel] = data[67] == 1
			state.tgtAllowed[common.BytesToAddress(data[80:100])] = data[131] == 1
		}
	}
}

func testRegistry() deploy.Registry {
	return deploy.Registry{
		contracts.ContractNameTimelock:   {Name: contracts.ContractNameTimelock, Proxy: timelockProxy},
		contracts.ContractNameToken:      {Name: contracts.ContractNameToken, Proxy: tokenProxy},
		contracts.ContractNameGovernance: {Name: contracts.ContractNameGovernance, Proxy: governanceProxy},
	}
}

func newReconciler(fake *ledgertest.Fake) *roles.Reconciler {
	profile := network.Profile{PollInterval: time.Millisecond, Timeout: time.Second, RequiredConfirmations: 1}
	return roles.NewReconciler(fake, ledger.NewTracker(fake, profile))
}

func TestReconcileIssuesMinimalDiff(t *testing.T) {
	fake := ledgertest.NewFake()
	state := newAccessState()
	acct1 := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	acct2 := common.HexToAddress("0x00000000000000000000000000000000000000a2")

	// actual: roleA absent (wanted), roleB present (unwanted), roleC correct
	state.grant(timelockProxy, "ROLE_B", acct2)
	state.grant(timelockProxy, "ROLE_C", acct1)
	bind(fake, state, timelockProxy)

	table := []roles.Assignment{
		{Component: contracts.ContractNameTimelock, Role: "ROLE_A", Account: roles.AddressAccount(acct1), Desired: true, Group: roles.GroupAuthority},
		{Component: contracts.ContractNameTimelock, Role: "ROLE_B", Account: roles.AddressAccount(acct2), Desired: false, Group: roles.GroupAuthority},
		{Component: contracts.ContractNameTimelock, Role: "ROLE_C", Account: roles.AddressAccount(acct1), Desired: true, Group: roles.GroupAuthority},
	}

	applied, err := newReconciler(fake).Reconcile(context.Background(), table, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, 2, applied, "exactly one grant and one revoke")
	require.Len(t, fake.Submitted, 2)
	assert.Equal(t, selGrantRole[:], fake.Submitted[0].Data[:4])
	assert.Equal(t, selRevokeContractRole[:], fake.Submitted[1].Data[:4])

	assert.True(t, state.has(timelockProxy, "ROLE_A", acct1))
	assert.False(t, state.has(timelockProxy, "ROLE_B", acct2))
}

func TestReconcileIsIdempotent(t *testing.T) {
	fake := ledgertest.NewFake()
	state := newAccessState()
	bind(fake, state, timelockProxy, tokenProxy)

	table := []roles.Assignment{
		{Component: contracts.ContractNameTimelock, Role: "PROPOSER_ROLE", Account: roles.ComponentAccount(contracts.ContractNameGovernance), Desired: true, ViaContract: true, Group: roles.GroupPeer},
		{Component: contracts.ContractNameToken, Role: "GOVERNANCE_ROLE", Account: roles.ComponentAccount(contracts.ContractNameGovernance), Desired: true, ViaContract: true, Group: roles.GroupPeer},
	}

	reconciler := newReconciler(fake)
	registry := testRegistry()

	applied, err := reconciler.Reconcile(context.Background(), table, registry)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = reconciler.Reconcile(context.Background(), table, registry)
	require.NoError(t, err)
	assert.Zero(t, applied, "second run against converged state issues zero transactions")
	assert.Len(t, fake.Submitted, 2)
}

func TestReconcileAppliesGroupsInOrder(t *testing.T) {
	fake := ledgertest.NewFake()
	state := newAccessState()
	bind(fake, state, timelockProxy, tokenProxy)

	table := []roles.Assignment{
		{Component: contracts.ContractNameToken, Role: "PEER_ROLE", Account: roles.ComponentAccount(contracts.ContractNameGovernance), Desired: true, ViaContract: true, Group: roles.GroupPeer},
		{Component: contracts.ContractNameTimelock, Role: "ADMIN_ROLE", Account: roles.AddressAccount(fake.Sender()), Desired: true, Group: roles.GroupAuthority},
	}

	_, err := newReconciler(fake).Reconcile(context.Background(), table, testRegistry())
	require.NoError(t, err)

	require.Len(t, fake.Submitted, 2)
	assert.Equal(t, timelockProxy, *fake.Submitted[0].To, "authority grants come before peer grants")
	assert.Equal(t, tokenProxy, *fake.Submitted[1].To)
}

func TestVerifyAggregatesAllMismatches(t *testing.T) {
	fake := ledgertest.NewFake()
	state := newAccessState()
	bind(fake, state, timelockProxy, tokenProxy)

	table := []roles.Assignment{
		{Component: contracts.ContractNameTimelock, Role: "ROLE_X", Account: roles.AddressAccount(fake.Sender()), Desired: true},
		{Component: contracts.ContractNameToken, Role: "ROLE_Y", Account: roles.AddressAccount(fake.Sender()), Desired: true},
	}

	err := newReconciler(fake).Verify(context.Background(), table, testRegistry())
	require.ErrorIs(t, err, roles.ErrRoleMismatch)
	assert.Contains(t, err.Error(), "ROLE_X")
	assert.Contains(t, err.Error(), "ROLE_Y")
	assert.Empty(t, fake.Submitted, "verification is read-only")
}

func TestReconcileSecurityIsIdempotent(t *testing.T) {
	fake := ledgertest.NewFake()
	state := newAccessState()
	bind(fake, state, governanceProxy)

	entries := []roles.SecurityEntry{
		{Signature: "upgradeTo(address)", SelectorAllowed: true, Target: roles.ComponentAccount(contracts.ContractNameTimelock), TargetAllowed: true},
		{Signature: "pause()", SelectorAllowed: true, Target: roles.ComponentAccount(contracts.ContractNameToken), TargetAllowed: true},
	}

	reconciler := newReconciler(fake)
	registry := testRegistry()

	applied, err := reconciler.ReconcileSecurity(context.Background(), entries, registry)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	require.NoError(t, reconciler.VerifySecurity(context.Background(), entries, registry))

	applied, err = reconciler.ReconcileSecurity(context.Background(), entries, registry)
	require.NoError(t, err)
	assert.Zero(t, applied)
}
