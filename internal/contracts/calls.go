package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lmittmann/w3"
)

// The consumed role/threat/allowlist interface, encoded once.
var (
	funcHasRole            = w3.MustNewFunc("hasRole(bytes32,address)", "bool")
	funcGrantRole          = w3.MustNewFunc("grantRole(bytes32,address)", "")
	funcGrantContractRole  = w3.MustNewFunc("grantContractRole(bytes32,address)", "")
	funcRevokeContractRole = w3.MustNewFunc("revokeContractRole(bytes32,address)", "")

	funcFunctionThreatLevel    = w3.MustNewFunc("functionThreatLevel(bytes4)", "uint8")
	funcSetFunctionThreatLevel = w3.MustNewFunc("setFunctionThreatLevel(bytes4,uint8)", "")
	funcAddressThreatLevel     = w3.MustNewFunc("addressThreatLevel(address)", "uint8")
	funcSetAddressThreatLevel  = w3.MustNewFunc("setAddressThreatLevel(address,uint8)", "")

	funcSelectorAllowed = w3.MustNewFunc("selectorAllowed(bytes4)", "bool")
	funcTargetAllowed   = w3.MustNewFunc("targetAllowed(address)", "bool")
	funcUpdateSecurity  = w3.MustNewFunc("updateSecurity(bytes4,bool,address,bool)", "")

	funcGetTransaction = w3.MustNewFunc("getTransaction(uint256)", "address,bytes,uint256")

	// used only for decoding single-value returns; the name is irrelevant
	retAddress = w3.MustNewFunc("ret()", "address")
	retBool    = w3.MustNewFunc("ret()", "bool")
	retUint8   = w3.MustNewFunc("ret()", "uint8")
)

// Selector returns the first four bytes of the keccak256 hash of the
// canonical UTF-8 signature string. No special cases.
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

func EncodeHasRole(role common.Hash, account common.Address) ([]byte, error) {
	return funcHasRole.EncodeArgs([32]byte(role), account)
}

func EncodeGrantRole(role common.Hash, account common.Address) ([]byte, error) {
	return funcGrantRole.EncodeArgs([32]byte(role), account)
}

func EncodeGrantContractRole(role common.Hash, account common.Address) ([]byte, error) {
	return funcGrantContractRole.EncodeArgs([32]byte(role), account)
}

func EncodeRevokeContractRole(role common.Hash, account common.Address) ([]byte, error) {
	return funcRevokeContractRole.EncodeArgs([32]byte(role), account)
}

func EncodeFunctionThreatLevel(selector [4]byte) ([]byte, error) {
	return funcFunctionThreatLevel.EncodeArgs(selector)
}

func EncodeSetFunctionThreatLevel(selector [4]byte, tier uint8) ([]byte, error) {
	return funcSetFunctionThreatLevel.EncodeArgs(selector, tier)
}

func EncodeAddressThreatLevel(address common.Address) ([]byte, error) {
	return funcAddressThreatLevel.EncodeArgs(address)
}

func EncodeSetAddressThreatLevel(address common.Address, tier uint8) ([]byte, error) {
	return funcSetAddressThreatLevel.EncodeArgs(address, tier)
}

func EncodeSelectorAllowed(selector [4]byte) ([]byte, error) {
	return funcSelectorAllowed.EncodeArgs(selector)
}

func EncodeTargetAllowed(target common.Address) ([]byte, error) {
	return funcTargetAllowed.EncodeArgs(target)
}

func EncodeUpdateSecurity(selector [4]byte, selectorAllowed bool, target common.Address, targetAllowed bool) ([]byte, error) {
	return funcUpdateSecurity.EncodeArgs(selector, selectorAllowed, target, targetAllowed)
}

func EncodeGetTransaction(txID *big.Int) ([]byte, error) {
	return funcGetTransaction.EncodeArgs(txID)
}

// EncodeAddressGetter builds calldata for a zero-argument address getter,
// e.g. "timelock".
func EncodeAddressGetter(method string) ([]byte, error) {
	fn, err := w3.NewFunc(method+"()", "address")
	if err != nil {
		return nil, fmt.Errorf("build getter %s: %w", method, err)
	}
	return fn.EncodeArgs()
}

// EncodeAddressSetter builds calldata for a single-address setter,
// e.g. "setTimelock".
func EncodeAddressSetter(method string, address common.Address) ([]byte, error) {
	fn, err := w3.NewFunc(method+"(address)", "")
	if err != nil {
		return nil, fmt.Errorf("build setter %s: %w", method, err)
	}
	return fn.EncodeArgs(address)
}

func DecodeAddress(output []byte) (common.Address, error) {
	var address common.Address
	if err := retAddress.DecodeReturns(output, &address); err != nil {
		return common.Address{}, fmt.Errorf("decode address return: %w", err)
	}
	return address, nil
}

func DecodeBool(output []byte) (bool, error) {
	var value bool
	if err := retBool.DecodeReturns(output, &value); err != nil {
		return false, fmt.Errorf("decode bool return: %w", err)
	}
	return value, nil
}

func DecodeUint8(output []byte) (uint8, error) {
	var value uint8
	if err := retUint8.DecodeReturns(output, &value); err != nil {
		return 0, fmt.Errorf("decode uint8 return: %w", err)
	}
	return value, nil
}
