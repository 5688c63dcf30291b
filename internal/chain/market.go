package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
)

// Market returns an adapter for the outcome market at addr. The Client acts
// as the engine's domain.MarketResolver.
func (c *Client) Market(addr common.Address) domain.OutcomeMarket {
	return &market{client: c, addr: addr}
}

// Registry returns an adapter for the market registry at addr. The Client
// acts as the engine's domain.RegistryResolver.
func (c *Client) Registry(addr common.Address) domain.MarketRegistry {
	return &registry{client: c, addr: addr}
}

type market struct {
	client *Client
	addr   common.Address
}

func (m *market) PaymentToken(ctx context.Context) (common.Address, error) {
	return m.address(ctx, "paymentToken")
}

func (m *market) YesToken(ctx context.Context) (common.Address, error) {
	return m.address(ctx, "yesToken")
}

func (m *market) NoToken(ctx context.Context) (common.Address, error) {
	return m.address(ctx, "noToken")
}

func (m *market) Pools(ctx context.Context) (common.Address, common.Address, error) {
	out, err := m.client.call(ctx, m.client.contract(m.addr, marketABI), "pools")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	yes, ok1 := out[0].(common.Address)
	no, ok2 := out[1].(common.Address)
	if !ok1 || !ok2 {
		return common.Address{}, common.Address{}, fmt.Errorf("chain: pools returned %T, %T", out[0], out[1])
	}
	return yes, no, nil
}

func (m *market) Status(ctx context.Context) (domain.MarketStatus, error) {
	out, err := m.client.call(ctx, m.client.contract(m.addr, marketABI), "status")
	if err != nil {
		return 0, err
	}
	raw, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("chain: status returned %T", out[0])
	}
	return domain.MarketStatus(raw), nil
}

// Mint converts approved collateral into an outcome-token pair. The minted
// quantity is measured as the balance delta of the YES token, since the
// return value of a state-changing call is not observable from the receipt.
func (m *market) Mint(ctx context.Context, amount *uint256.Int) (*uint256.Int, error) {
	yesAddr, err := m.YesToken(ctx)
	if err != nil {
		return nil, err
	}
	yes := m.client.Token(yesAddr)

	before, err := yes.BalanceOf(ctx, m.client.from)
	if err != nil {
		return nil, err
	}

	if _, err := m.client.transact(ctx, m.client.contract(m.addr, marketABI),
		"mint", amount.ToBig()); err != nil {
		return nil, err
	}

	after, err := yes.BalanceOf(ctx, m.client.from)
	if err != nil {
		return nil, err
	}
	if after.Cmp(before) < 0 {
		return nil, fmt.Errorf("chain: yes token balance decreased across mint")
	}
	return new(uint256.Int).Sub(after, before), nil
}

func (m *market) address(ctx context.Context, method string) (common.Address, error) {
	out, err := m.client.call(ctx, m.client.contract(m.addr, marketABI), method)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: %s returned %T", method, out[0])
	}
	return addr, nil
}

type registry struct {
	client *Client
	addr   common.Address
}

func (r *registry) IsActiveMarket(ctx context.Context, market common.Address) (bool, error) {
	out, err := r.client.call(ctx, r.client.contract(r.addr, registryABI), "isActiveMarket", market)
	if err != nil {
		return false, err
	}
	active, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("chain: isActiveMarket returned %T", out[0])
	}
	return active, nil
}

var (
	_ domain.MarketResolver   = (*Client)(nil)
	_ domain.RegistryResolver = (*Client)(nil)
)
