package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
)

// Token returns an adapter for an ERC-20 token at addr. The Client acts as
// the engine's domain.TokenResolver.
func (c *Client) Token(addr common.Address) domain.Token {
	return &token{client: c, addr: addr}
}

type token struct {
	client *Client
	addr   common.Address
}

func (t *token) BalanceOf(ctx context.Context, owner common.Address) (*uint256.Int, error) {
	out, err := t.client.call(ctx, t.client.contract(t.addr, erc20ABI), "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return fromBig(out[0])
}

func (t *token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.client.call(ctx, t.client.contract(t.addr, erc20ABI), "decimals")
	if err != nil {
		return 0, err
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("chain: decimals returned %T", out[0])
	}
	return dec, nil
}

func (t *token) Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error {
	_, err := t.client.transact(ctx, t.client.contract(t.addr, erc20ABI),
		"transfer", to, amount.ToBig())
	return err
}

func (t *token) TransferFrom(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	_, err := t.client.transact(ctx, t.client.contract(t.addr, erc20ABI),
		"transferFrom", from, to, amount.ToBig())
	return err
}

func (t *token) Approve(ctx context.Context, spender common.Address, amount *uint256.Int) error {
	_, err := t.client.transact(ctx, t.client.contract(t.addr, erc20ABI),
		"approve", spender, amount.ToBig())
	return err
}

// fromBig converts an ABI output value into a uint256, rejecting negatives
// and overflow.
func fromBig(v any) (*uint256.Int, error) {
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: expected *big.Int output, got %T", v)
	}
	out, overflow := uint256.FromBig(b)
	if overflow || b.Sign() < 0 {
		return nil, fmt.Errorf("chain: value %s out of uint256 range", b)
	}
	return out, nil
}

var _ domain.TokenResolver = (*Client)(nil)
