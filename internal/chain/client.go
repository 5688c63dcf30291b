// Package chain implements the on-chain collaborator interfaces (tokens,
// outcome markets, the market registry, and the pool oracle) on top of
// go-ethereum. All adapters share one Client, which owns the RPC connection
// and the operator's transaction signer.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Config holds what Dial needs to connect and sign.
type Config struct {
	RPCURL string
	// ChainID is verified against the node at dial time.
	ChainID int64
	// PrivateKeyHex is the operator key, without 0x prefix.
	PrivateKeyHex string
	// CallTimeout bounds each RPC round trip.
	CallTimeout time.Duration
}

// Client wraps an ethclient connection plus the operator's keyed transactor.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address
	timeout time.Duration
	logger  *slog.Logger
}

// Dial connects to the RPC endpoint, verifies the chain id, and prepares the
// operator signer.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}
	if chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("chain: node reports chain id %d, config says %d", chainID.Int64(), cfg.ChainID)
	}

	key, err := ethcrypto.HexToECDSA(cfg.PrivateKeyHex)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: invalid private key: %w", err)
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		eth:     eth,
		chainID: chainID,
		key:     key,
		from:    ethcrypto.PubkeyToAddress(key.PublicKey),
		timeout: timeout,
		logger:  logger.With(slog.String("component", "chain")),
	}, nil
}

// From returns the operator's address, which also serves as the custody
// address collateral is escrowed under.
func (c *Client) From() common.Address {
	return c.from
}

// Close tears down the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// contract builds a bound contract for addr with the given parsed ABI.
func (c *Client) contract(addr common.Address, parsed abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(addr, parsed, c.eth, c.eth, c.eth)
}

// call performs a read-only contract call with the client timeout applied.
func (c *Client) call(ctx context.Context, bc *bind.BoundContract, method string, args ...any) ([]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out []any
	if err := bc.Call(&bind.CallOpts{Context: ctx, From: c.from}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("chain: call %s: %w", method, err)
	}
	return out, nil
}

// transact submits a state-changing call and waits for it to be mined. A
// receipt with a failed status is an error: the ledger relies on transfers
// either landing or reporting failure.
func (c *Client) transact(ctx context.Context, bc *bind.BoundContract, method string, args ...any) (*types.Receipt, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("chain: transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := bc.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: send %s: %w", method, err)
	}

	c.logger.DebugContext(ctx, "transaction sent",
		slog.String("method", method),
		slog.String("tx", tx.Hash().Hex()),
	)

	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("chain: wait %s tx %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("chain: %s tx %s reverted", method, tx.Hash().Hex())
	}
	return receipt, nil
}
