package contracts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// LoadCompiledContracts reads hardhat-style artifacts (<Name>.json with "abi"
// and "bytecode" fields) for every known contract from dir.
func LoadCompiledContracts(dir string) (map[ContractName]CompiledContract, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("artifacts directory not found: %s", dir)
	}

	loaded := make(map[ContractName]CompiledContract, len(Contracts))
	for name := range Contracts {
		contract, err := loadArtifact(filepath.Join(dir, string(name)+".json"))
		if err != nil {
			return nil, fmt.Errorf("failed to load artifact for %s: %w", name, err)
		}
		loaded[name] = contract
	}

	return loaded, nil
}

func loadArtifact(path string) (CompiledContract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CompiledContract{}, fmt.Errorf("read %s: %w", path, err)
	}

	var artifact struct {
		ABI      json.RawMessage `json:"abi"`
		Bytecode string          `json:"bytecode"`
	}
	if err := json.Unmarshal(data, &artifact); err != nil {
		return CompiledContract{}, fmt.Errorf("parse %s: %w", path, err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(string(artifact.ABI)))
	if err != nil {
		return CompiledContract{}, fmt.Errorf("parse ABI in %s: %w", path, err)
	}

	bytecode := common.FromHex(artifact.Bytecode)
	if len(bytecode) == 0 {
		return CompiledContract{}, fmt.Errorf("empty bytecode in %s", path)
	}

	return CompiledContract{
		ABI:      parsedABI,
		RawABI:   string(artifact.ABI),
		Bytecode: bytecode,
	}, nil
}
