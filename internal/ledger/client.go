// Package ledger is the only package that talks to the chain. Everything
// above it consumes the Ledger interface and never sees an RPC client.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/compose-network/governance-deployer/internal/logger"
)

// FeeQuote carries the EIP-1559 fee parameters used for a submission.
type FeeQuote struct {
	GasFeeCap *big.Int
	GasTipCap *big.Int
}

// Ledger is the facade over a chain connection and a single signing identity.
// Submissions never retry internally; errors surface unchanged so callers can
// distinguish node rejection from execution failure.
type Ledger interface {
	Sender() common.Address
	FeeEstimate(ctx context.Context) (FeeQuote, error)
	SubmitCall(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*TxRecord, error)
	SubmitDeploy(ctx context.Context, code []byte, gasLimit uint64) (*TxRecord, common.Address, error)
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	CodeAt(ctx context.Context, address common.Address) ([]byte, error)
	BalanceAt(ctx context.Context, address common.Address) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Client implements Ledger on top of go-ethereum's ethclient.
type Client struct {
	eth            *ethclient.Client
	key            *ecdsa.PrivateKey
	sender         common.Address
	chainID        *big.Int
	signer         types.Signer
	premiumPercent int64
	logger         *slog.Logger
}

// Dial connects to the RPC endpoint and binds the signing identity. The
// connection and identity are process-wide singletons scoped to the run.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, premiumPercent int64) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC at %s: %w", rpcURL, err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &Client{
		eth:            eth,
		key:            key,
		sender:         crypto.PubkeyToAddress(key.PublicKey),
		chainID:        chainID,
		signer:         types.LatestSignerForChainID(chainID),
		premiumPercent: premiumPercent,
		logger:         logger.Named("ledger_client"),
	}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) Sender() common.Address {
	return c.sender
}

func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// FeeEstimate biases toward fast inclusion: it takes the higher of the
// EIP-1559 max fee and the legacy gas price and applies the profile premium.
func (c *Client) FeeEstimate(ctx context.Context) (FeeQuote, error) {
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return FeeQuote{}, fmt.Errorf("suggest gas price: %w", errors.Join(ErrFeeUnavailable, err))
	}

	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return FeeQuote{}, fmt.Errorf("suggest gas tip cap: %w", errors.Join(ErrFeeUnavailable, err))
	}

	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return FeeQuote{}, fmt.Errorf("fetch head: %w", errors.Join(ErrFeeUnavailable, err))
	}

	feeCap := new(big.Int).Set(gasPrice)
	if head.BaseFee != nil {
		maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
		maxFee.Add(maxFee, tip)
		if maxFee.Cmp(feeCap) > 0 {
			feeCap = maxFee
		}
	}

	feeCap.Mul(feeCap, big.NewInt(100+c.premiumPercent))
	feeCap.Div(feeCap, big.NewInt(100))

	return FeeQuote{GasFeeCap: feeCap, GasTipCap: tip}, nil
}

// SubmitCall sends a state-changing call. It never retries; the node's error
// comes back unchanged inside the wrap.
func (c *Client) SubmitCall(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*TxRecord, error) {
	nonce, fee, err := c.prepare(ctx)
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		To:        &to,
		Gas:       gasLimit,
		GasFeeCap: fee.GasFeeCap,
		GasTipCap: fee.GasTipCap,
		Data:      data,
	})

	return c.send(ctx, tx)
}

// SubmitDeploy sends contract creation code and returns the address the
// contract will occupy once included.
func (c *Client) SubmitDeploy(ctx context.Context, code []byte, gasLimit uint64) (*TxRecord, common.Address, error) {
	nonce, fee, err := c.prepare(ctx)
	if err != nil {
		return nil, common.Address{}, err
	}

	address := crypto.CreateAddress(c.sender, nonce)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		Gas:       gasLimit,
		GasFeeCap: fee.GasFeeCap,
		GasTipCap: fee.GasTipCap,
		Data:      code,
	})

	record, err := c.send(ctx, tx)
	if err != nil {
		return nil, common.Address{}, err
	}

	return record, address, nil
}

func (c *Client) prepare(ctx context.Context) (uint64, FeeQuote, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.sender)
	if err != nil {
		return 0, FeeQuote{}, fmt.Errorf("get nonce: %w", err)
	}

	fee, err := c.FeeEstimate(ctx)
	if err != nil {
		return 0, FeeQuote{}, err
	}

	return nonce, fee, nil
}

func (c *Client) send(ctx context.Context, tx *types.Transaction) (*TxRecord, error) {
	signed, err := types.SignTx(tx, c.signer, c.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	c.logger.With("tx_hash", signed.Hash().Hex()).With("nonce", signed.Nonce()).Debug("transaction submitted")

	return &TxRecord{
		Hash:        signed.Hash(),
		SubmittedAt: time.Now(),
		Attempt:     1,
		Outcome:     OutcomePending,
	}, nil
}

func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract %s: %w", to, err)
	}
	return result, nil
}

// CodeAt returns the bytecode at an address. An empty result is a valid
// response meaning "not yet observed", not an error.
func (c *Client) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	code, err := c.eth.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("read code at %s: %w", address, err)
	}
	return code, nil
}

func (c *Client) BalanceAt(ctx context.Context, address common.Address) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("read balance of %s: %w", address, err)
	}
	return balance, nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("read block number: %w", err)
	}
	return head, nil
}

// Receipt returns ethereum.NotFound while the transaction is not yet included.
func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.eth.TransactionReceipt(ctx, hash)
}
