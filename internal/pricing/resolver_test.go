package pricing

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
	"github.com/mintmatch/mintmatch/internal/fixedmath"
)

var (
	yesPool = common.HexToAddress("0x0000000000000000000000000000000000000aa1")
	noPool  = common.HexToAddress("0x0000000000000000000000000000000000000aa2")
	usdc    = common.HexToAddress("0x0000000000000000000000000000000000000ccc")
)

type poolReading struct {
	price     *uint256.Int
	liquidity *uint256.Int
	err       error
}

type fakeSource struct {
	readings map[common.Address]poolReading
}

func (f *fakeSource) PoolPrice(_ context.Context, pool, _ common.Address) (*uint256.Int, *uint256.Int, error) {
	r, ok := f.readings[pool]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	if r.err != nil {
		return nil, nil, r.err
	}
	return new(uint256.Int).Set(r.price), new(uint256.Int).Set(r.liquidity), nil
}

type fixedTolerance uint64

func (t fixedTolerance) PoolConsistencyToleranceBps() uint64 { return uint64(t) }

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func newResolver(src *fakeSource, tolBps uint64) *Resolver {
	return NewResolver(src, fixedTolerance(tolBps), slog.Default())
}

func source(yesPrice, yesLiq, noPrice, noLiq uint64) *fakeSource {
	return &fakeSource{readings: map[common.Address]poolReading{
		yesPool: {price: u(yesPrice), liquidity: u(yesLiq)},
		noPool:  {price: u(noPrice), liquidity: u(noLiq)},
	}}
}

func TestResolveLiquidityWeighting(t *testing.T) {
	// Direct yes 0.60 with weight 3, implied yes 0.62 with weight 1:
	// normalized yes = (0.60*3 + 0.62*1)/4 = 0.605.
	r := newResolver(source(6e17, 3, 38e16, 1), 500)

	pair, err := r.Resolve(context.Background(), yesPool, noPool, usdc)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if pair.Yes.Cmp(u(605e15)) != 0 {
		t.Fatalf("normalized yes = %s, want 0.605 WAD", pair.Yes.Dec())
	}
	if pair.No.Cmp(u(395e15)) != 0 {
		t.Fatalf("normalized no = %s, want 0.395 WAD", pair.No.Dec())
	}
}

func TestResolvePairSumsToWad(t *testing.T) {
	cases := []struct {
		name                     string
		yesPrice, yesLiq, noPrice, noLiq uint64
	}{
		{"balanced", 5e17, 100, 5e17, 100},
		{"skewed liquidity", 645e15, 7919, 355e15, 13},
		{"small deviation inside tolerance", 646e15, 500, 357e15, 700},
		{"extreme probability", 999e15 - 1, 42, 1e15, 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newResolver(source(tc.yesPrice, tc.yesLiq, tc.noPrice, tc.noLiq), 50)
			pair, err := r.Resolve(context.Background(), yesPool, noPool, usdc)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			sum := new(uint256.Int).Add(pair.Yes, pair.No)
			if sum.Cmp(fixedmath.Wad()) != 0 {
				t.Fatalf("yes+no = %s, want exactly 1 WAD", sum.Dec())
			}
		})
	}
}

func TestResolveRejectsInconsistentPools(t *testing.T) {
	// yes+no = 1.01 WAD, a 100 bps deviation against a 50 bps tolerance.
	r := newResolver(source(65e16, 100, 36e16, 100), 50)

	_, err := r.Resolve(context.Background(), yesPool, noPool, usdc)
	if !errors.Is(err, domain.ErrInconsistentPrices) {
		t.Fatalf("Resolve err = %v, want ErrInconsistentPrices", err)
	}
}

func TestResolveRejectsOutOfBoundsPrices(t *testing.T) {
	cases := []struct {
		name             string
		yesPrice, noPrice uint64
	}{
		{"zero yes", 0, 5e17},
		{"zero no", 5e17, 0},
		{"yes at full value", 1e18, 5e17},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newResolver(source(tc.yesPrice, 10, tc.noPrice, 10), 10_000)
			_, err := r.Resolve(context.Background(), yesPool, noPool, usdc)
			if !errors.Is(err, domain.ErrPriceOutOfBounds) {
				t.Fatalf("Resolve err = %v, want ErrPriceOutOfBounds", err)
			}
		})
	}
}

func TestResolveRejectsZeroLiquidity(t *testing.T) {
	r := newResolver(source(5e17, 0, 5e17, 0), 50)

	_, err := r.Resolve(context.Background(), yesPool, noPool, usdc)
	if !errors.Is(err, domain.ErrZeroLiquidity) {
		t.Fatalf("Resolve err = %v, want ErrZeroLiquidity", err)
	}
}

func TestResolvePropagatesSourceFailure(t *testing.T) {
	src := source(5e17, 10, 5e17, 10)
	src.readings[noPool] = poolReading{err: domain.ErrDegenerateSample}
	r := newResolver(src, 50)

	_, err := r.Resolve(context.Background(), yesPool, noPool, usdc)
	if !errors.Is(err, domain.ErrDegenerateSample) {
		t.Fatalf("Resolve err = %v, want ErrDegenerateSample", err)
	}
}

func TestCounterpartySpecExample(t *testing.T) {
	pair := domain.PricePair{Yes: u(645e15), No: u(355e15)}

	got, err := Counterparty(u(1000), domain.SideYes, pair)
	if err != nil {
		t.Fatalf("Counterparty: %v", err)
	}
	// 1000 * 0.645/0.355 = 1816.9..., floored.
	if got.Cmp(u(1816)) != 0 {
		t.Fatalf("counterparty = %s, want 1816", got.Dec())
	}
}

func TestCounterpartyApproximateInverse(t *testing.T) {
	cases := []struct {
		name   string
		yes    uint64
		amount uint64
	}{
		{"even", 5e17, 1000},
		{"skewed", 645e15, 1000},
		{"long shot", 1e16, 990},
		{"near certainty", 99e16, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pair := domain.PricePair{
				Yes: u(tc.yes),
				No:  new(uint256.Int).Sub(fixedmath.Wad(), u(tc.yes)),
			}
			amount := u(tc.amount)

			there, err := Counterparty(amount, domain.SideYes, pair)
			if err != nil {
				t.Fatalf("Counterparty yes: %v", err)
			}
			back, err := Counterparty(there, domain.SideNo, pair)
			if err != nil {
				t.Fatalf("Counterparty no: %v", err)
			}

			diff := fixedmath.AbsDiff(back, amount)
			if diff.Cmp(u(1)) > 0 {
				t.Fatalf("round trip %s -> %s -> %s, drift %s > 1 unit",
					amount.Dec(), there.Dec(), back.Dec(), diff.Dec())
			}
		})
	}
}

func TestCounterpartyRejectsBadInputs(t *testing.T) {
	pair := domain.PricePair{Yes: u(5e17), No: u(5e17)}

	if _, err := Counterparty(u(0), domain.SideYes, pair); !errors.Is(err, domain.ErrZeroAmount) {
		t.Fatalf("zero amount err = %v", err)
	}
	bad := domain.PricePair{Yes: u(0), No: u(5e17)}
	if _, err := Counterparty(u(10), domain.SideYes, bad); !errors.Is(err, domain.ErrPriceOutOfBounds) {
		t.Fatalf("zero price err = %v", err)
	}
	full := domain.PricePair{Yes: fixedmath.Wad(), No: u(5e17)}
	if _, err := Counterparty(u(10), domain.SideYes, full); !errors.Is(err, domain.ErrPriceOutOfBounds) {
		t.Fatalf("full value price err = %v", err)
	}
}
