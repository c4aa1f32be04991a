package contracts

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorMatchesKnownValue(t *testing.T) {
	// well-known ERC20 selector
	assert.Equal(t, [4]byte{0xa9, 0x05, 0x9c, 0xbb}, Selector("transfer(address,uint256)"))
}

func TestEncodeHasRoleCalldata(t *testing.T) {
	role := crypto.Keccak256Hash([]byte("GOVERNANCE_ROLE"))
	account := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	data, err := EncodeHasRole(role, account)
	require.NoError(t, err)

	sel := Selector("hasRole(bytes32,address)")
	require.Len(t, data, 4+32+32)
	assert.Equal(t, sel[:], data[:4])
	assert.Equal(t, role.Bytes(), data[4:36])
	assert.Equal(t, common.LeftPadBytes(account.Bytes(), 32), data[36:68])
}

func TestAddressGetterSetterCalldata(t *testing.T) {
	getter, err := EncodeAddressGetter("timelock")
	require.NoError(t, err)
	sel := Selector("timelock()")
	assert.Equal(t, sel[:], getter)

	address := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	setter, err := EncodeAddressSetter("setTimelock", address)
	require.NoError(t, err)
	setSel := Selector("setTimelock(address)")
	require.Len(t, setter, 4+32)
	assert.Equal(t, setSel[:], setter[:4])
	assert.Equal(t, common.LeftPadBytes(address.Bytes(), 32), setter[4:])
}

func TestDecodeSingleValueReturns(t *testing.T) {
	yes, err := DecodeBool(common.LeftPadBytes([]byte{1}, 32))
	require.NoError(t, err)
	assert.True(t, yes)

	no, err := DecodeBool(common.LeftPadBytes([]byte{0}, 32))
	require.NoError(t, err)
	assert.False(t, no)

	tier, err := DecodeUint8(common.LeftPadBytes([]byte{3}, 32))
	require.NoError(t, err)
	assert.Equal(t, uint8(3), tier)

	address := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	decoded, err := DecodeAddress(common.LeftPadBytes(address.Bytes(), 32))
	require.NoError(t, err)
	assert.Equal(t, address, decoded)
}
