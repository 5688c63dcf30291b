package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintmatch/mintmatch/internal/domain"
	"github.com/mintmatch/mintmatch/internal/params"
	"github.com/mintmatch/mintmatch/internal/store/memory"
)

var (
	ownerAddr    = common.HexToAddress("0x0000000000000000000000000000000000000011")
	registryAddr = common.HexToAddress("0x0000000000000000000000000000000000000022")
	custodyAddr  = common.HexToAddress("0x0000000000000000000000000000000000000033")
	marketAddr   = common.HexToAddress("0x0000000000000000000000000000000000000044")
	initiator    = common.HexToAddress("0x0000000000000000000000000000000000000055")
	acceptor     = common.HexToAddress("0x0000000000000000000000000000000000000066")
	stranger     = common.HexToAddress("0x0000000000000000000000000000000000000077")

	collateralAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	yesTokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	noTokenAddr    = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	yesPoolAddr    = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	noPoolAddr     = common.HexToAddress("0x00000000000000000000000000000000000000d2")
)

// bank tracks token balances across all fake tokens and serves as the
// ledger's TokenResolver.
type bank struct {
	mu           sync.Mutex
	custody      common.Address
	balances     map[common.Address]map[common.Address]*uint256.Int
	failDeposit  bool
	failTransfer map[common.Address]bool
	approvals    []approval
}

type approval struct {
	token   common.Address
	spender common.Address
	amount  *uint256.Int
}

func newBank(custody common.Address) *bank {
	return &bank{
		custody:      custody,
		balances:     make(map[common.Address]map[common.Address]*uint256.Int),
		failTransfer: make(map[common.Address]bool),
	}
}

func (b *bank) Token(addr common.Address) domain.Token {
	return &bankToken{bank: b, addr: addr}
}

func (b *bank) set(token, holder common.Address, amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[token] == nil {
		b.balances[token] = make(map[common.Address]*uint256.Int)
	}
	b.balances[token][holder] = uint256.NewInt(amount)
}

func (b *bank) bal(token, holder common.Address) *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.balances[token][holder]; ok {
		return new(uint256.Int).Set(v)
	}
	return uint256.NewInt(0)
}

func (b *bank) move(token, from, to common.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	have, ok := b.balances[token][from]
	if !ok || have.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance of %s", token.Hex())
	}
	have.Sub(have, amount)
	if b.balances[token] == nil {
		b.balances[token] = make(map[common.Address]*uint256.Int)
	}
	if b.balances[token][to] == nil {
		b.balances[token][to] = uint256.NewInt(0)
	}
	b.balances[token][to].Add(b.balances[token][to], amount)
	return nil
}

type bankToken struct {
	bank *bank
	addr common.Address
}

func (t *bankToken) BalanceOf(_ context.Context, owner common.Address) (*uint256.Int, error) {
	return t.bank.bal(t.addr, owner), nil
}

func (t *bankToken) Transfer(_ context.Context, to common.Address, amount *uint256.Int) error {
	if t.bank.failTransfer[t.addr] {
		return errors.New("transfer reverted")
	}
	return t.bank.move(t.addr, t.bank.custody, to, amount)
}

func (t *bankToken) TransferFrom(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	if t.bank.failDeposit {
		return errors.New("transferFrom reverted")
	}
	return t.bank.move(t.addr, from, to, amount)
}

func (t *bankToken) Approve(_ context.Context, spender common.Address, amount *uint256.Int) error {
	t.bank.mu.Lock()
	defer t.bank.mu.Unlock()
	t.bank.approvals = append(t.bank.approvals, approval{
		token:   t.addr,
		spender: spender,
		amount:  new(uint256.Int).Set(amount),
	})
	return nil
}

func (t *bankToken) Decimals(context.Context) (uint8, error) { return 6, nil }

// fakeMarket implements both OutcomeMarket and MarketResolver. Mint pulls the
// approved collateral from custody and credits equal outcome-token balances
// back to custody, one-to-one.
type fakeMarket struct {
	status   domain.MarketStatus
	mintErr  error
	mintZero bool
	bank     *bank
}

func (m *fakeMarket) Market(common.Address) domain.OutcomeMarket { return m }

func (m *fakeMarket) PaymentToken(context.Context) (common.Address, error) {
	return collateralAddr, nil
}
func (m *fakeMarket) YesToken(context.Context) (common.Address, error) { return yesTokenAddr, nil }
func (m *fakeMarket) NoToken(context.Context) (common.Address, error)  { return noTokenAddr, nil }
func (m *fakeMarket) Pools(context.Context) (common.Address, common.Address, error) {
	return yesPoolAddr, noPoolAddr, nil
}
func (m *fakeMarket) Status(context.Context) (domain.MarketStatus, error) { return m.status, nil }

func (m *fakeMarket) Mint(_ context.Context, amount *uint256.Int) (*uint256.Int, error) {
	if m.mintErr != nil {
		return nil, m.mintErr
	}
	if m.mintZero {
		return uint256.NewInt(0), nil
	}
	if err := m.bank.move(collateralAddr, m.bank.custody, marketAddr, amount); err != nil {
		return nil, err
	}
	m.bank.mu.Lock()
	for _, tok := range []common.Address{yesTokenAddr, noTokenAddr} {
		if m.bank.balances[tok] == nil {
			m.bank.balances[tok] = make(map[common.Address]*uint256.Int)
		}
		if m.bank.balances[tok][m.bank.custody] == nil {
			m.bank.balances[tok][m.bank.custody] = uint256.NewInt(0)
		}
		m.bank.balances[tok][m.bank.custody].Add(m.bank.balances[tok][m.bank.custody], amount)
	}
	m.bank.mu.Unlock()
	return new(uint256.Int).Set(amount), nil
}

type fakeRegistry struct {
	active map[common.Address]bool
}

func (f *fakeRegistry) Registry(common.Address) domain.MarketRegistry { return f }
func (f *fakeRegistry) IsActiveMarket(_ context.Context, m common.Address) (bool, error) {
	return f.active[m], nil
}

type fakeResolver struct {
	pair domain.PricePair
	err  error
}

func (f *fakeResolver) Resolve(context.Context, common.Address, common.Address, common.Address) (domain.PricePair, error) {
	if f.err != nil {
		return domain.PricePair{}, f.err
	}
	return domain.PricePair{
		Yes: new(uint256.Int).Set(f.pair.Yes),
		No:  new(uint256.Int).Set(f.pair.No),
	}, nil
}

func pair(yes, no uint64) domain.PricePair {
	return domain.PricePair{Yes: uint256.NewInt(yes), No: uint256.NewInt(no)}
}

type env struct {
	ledger   *Ledger
	store    *memory.BetStore
	events   *memory.EventStore
	bank     *bank
	market   *fakeMarket
	registry *fakeRegistry
	resolver *fakeResolver
	params   *params.Params
}

func newEnv(t *testing.T) *env {
	t.Helper()

	b := newBank(custodyAddr)
	b.set(collateralAddr, initiator, 1_000_000)
	b.set(collateralAddr, acceptor, 1_000_000)

	market := &fakeMarket{status: domain.MarketActive, bank: b}
	registry := &fakeRegistry{active: map[common.Address]bool{marketAddr: true}}
	resolver := &fakeResolver{pair: pair(5e17, 5e17)}
	store := memory.NewBetStore()
	events := memory.NewEventStore()

	p, err := params.New(ownerAddr, registryAddr, events, slog.Default())
	if err != nil {
		t.Fatalf("params.New: %v", err)
	}

	l := New(Deps{
		Store:    store,
		Events:   events,
		Markets:  market,
		Registry: registry,
		Tokens:   b,
		Resolver: resolver,
		Params:   p,
		Custody:  custodyAddr,
	}, slog.Default())

	return &env{
		ledger:   l,
		store:    store,
		events:   events,
		bank:     b,
		market:   market,
		registry: registry,
		resolver: resolver,
		params:   p,
	}
}

func (e *env) create(t *testing.T, amount, reward uint64, toleranceBps uint64) domain.Bet {
	t.Helper()
	bet, _, err := e.ledger.CreateBet(context.Background(), initiator, marketAddr,
		domain.SideYes, uint256.NewInt(amount), toleranceBps, uint256.NewInt(reward))
	if err != nil {
		t.Fatalf("CreateBet: %v", err)
	}
	return bet
}

func (e *env) lastEvent(t *testing.T) domain.Event {
	t.Helper()
	events, err := e.events.List(context.Background(), domain.ListOpts{Limit: 1})
	if err != nil || len(events) == 0 {
		t.Fatalf("no events recorded (err=%v)", err)
	}
	return events[0]
}

func TestCreateBetEscrowsAndOpens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	bet, suggested, err := e.ledger.CreateBet(ctx, initiator, marketAddr,
		domain.SideYes, uint256.NewInt(1000), 300, uint256.NewInt(50))
	if err != nil {
		t.Fatalf("CreateBet: %v", err)
	}

	if bet.ID != 1 {
		t.Fatalf("id = %d, want 1", bet.ID)
	}
	if bet.Status != domain.BetStatusOpen {
		t.Fatalf("status = %s, want open", bet.Status)
	}
	if bet.InitialPrice.Cmp(uint256.NewInt(5e17)) != 0 {
		t.Fatalf("initial price = %s, want 0.5 WAD", bet.InitialPrice.Dec())
	}
	// Even prices: the fair counterparty deposit equals the stake.
	if suggested.Cmp(uint256.NewInt(1000)) != 0 {
		t.Fatalf("suggested = %s, want 1000", suggested.Dec())
	}

	// Stake plus reward are escrowed before the bet is visible.
	if got := e.bank.bal(collateralAddr, custodyAddr); got.Cmp(uint256.NewInt(1050)) != 0 {
		t.Fatalf("custody balance = %s, want 1050", got.Dec())
	}
	if got := e.bank.bal(collateralAddr, initiator); got.Cmp(uint256.NewInt(998_950)) != 0 {
		t.Fatalf("initiator balance = %s, want 998950", got.Dec())
	}

	if ev := e.lastEvent(t); ev.Event != domain.EventBetCreated {
		t.Fatalf("event = %q, want %q", ev.Event, domain.EventBetCreated)
	}
}

func TestCreateBetRejectsBadInput(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		caller common.Address
		amount *uint256.Int
		tol    uint64
		want   error
	}{
		{"zero caller", common.Address{}, uint256.NewInt(1), 100, domain.ErrZeroAddress},
		{"nil amount", initiator, nil, 100, domain.ErrZeroAmount},
		{"zero amount", initiator, uint256.NewInt(0), 100, domain.ErrZeroAmount},
		{"zero tolerance", initiator, uint256.NewInt(1), 0, domain.ErrBadTolerance},
		{"tolerance over 100%", initiator, uint256.NewInt(1), 10_001, domain.ErrBadTolerance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := e.ledger.CreateBet(ctx, tc.caller, marketAddr,
				domain.SideYes, tc.amount, tc.tol, nil)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreateBetMarketGates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.registry.active[marketAddr] = false
	_, _, err := e.ledger.CreateBet(ctx, initiator, marketAddr,
		domain.SideYes, uint256.NewInt(1000), 300, nil)
	if !errors.Is(err, domain.ErrMarketInactive) {
		t.Fatalf("inactive err = %v", err)
	}

	e.registry.active[marketAddr] = true
	e.market.status = domain.MarketFinalized
	_, _, err = e.ledger.CreateBet(ctx, initiator, marketAddr,
		domain.SideYes, uint256.NewInt(1000), 300, nil)
	if !errors.Is(err, domain.ErrMarketFinalized) {
		t.Fatalf("finalized err = %v", err)
	}
}

func TestCreateBetDepositFailure(t *testing.T) {
	e := newEnv(t)
	e.bank.failDeposit = true

	_, _, err := e.ledger.CreateBet(context.Background(), initiator, marketAddr,
		domain.SideYes, uint256.NewInt(1000), 300, nil)
	if !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}
	if n, _ := e.store.Count(context.Background()); n != 0 {
		t.Fatalf("bets stored = %d, want 0", n)
	}
}

func TestAcceptBetSettlesAndDistributes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if err := e.params.SetPlatformFee(ctx, ownerAddr, 200); err != nil {
		t.Fatalf("SetPlatformFee: %v", err)
	}
	bet := e.create(t, 825, 0, 300)

	got, err := e.ledger.AcceptBet(ctx, acceptor, bet.ID, nil, time.Time{})
	if err != nil {
		t.Fatalf("AcceptBet: %v", err)
	}

	if got.Status != domain.BetStatusSettled {
		t.Fatalf("status = %s, want settled", got.Status)
	}
	if got.Acceptor != acceptor {
		t.Fatalf("acceptor = %s", got.Acceptor.Hex())
	}
	if got.AcceptorAmount.Cmp(uint256.NewInt(825)) != 0 {
		t.Fatalf("acceptor amount = %s, want 825", got.AcceptorAmount.Dec())
	}

	// Pool of 1650 at 200 bps leaves a 33 unit fee; 1617 of collateral is
	// converted and each side receives 1617 outcome tokens.
	if got := e.bank.bal(yesTokenAddr, initiator); got.Cmp(uint256.NewInt(1617)) != 0 {
		t.Fatalf("initiator yes tokens = %s, want 1617", got.Dec())
	}
	if got := e.bank.bal(noTokenAddr, acceptor); got.Cmp(uint256.NewInt(1617)) != 0 {
		t.Fatalf("acceptor no tokens = %s, want 1617", got.Dec())
	}
	if got := e.bank.bal(collateralAddr, custodyAddr); got.Cmp(uint256.NewInt(33)) != 0 {
		t.Fatalf("retained fee = %s, want 33", got.Dec())
	}

	ev := e.lastEvent(t)
	if ev.Event != domain.EventBetSettled {
		t.Fatalf("event = %q, want %q", ev.Event, domain.EventBetSettled)
	}
	if ev.Detail["fee_amount"] != "33" {
		t.Fatalf("fee in event = %v, want \"33\"", ev.Detail["fee_amount"])
	}
}

func TestAcceptBetPaysReward(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bet := e.create(t, 1000, 50, 300)

	before := e.bank.bal(collateralAddr, acceptor)
	if _, err := e.ledger.AcceptBet(ctx, acceptor, bet.ID, nil, time.Time{}); err != nil {
		t.Fatalf("AcceptBet: %v", err)
	}

	// Deposit of 1000 out, reward of 50 back in.
	want := new(uint256.Int).Sub(before, uint256.NewInt(950))
	if got := e.bank.bal(collateralAddr, acceptor); got.Cmp(want) != 0 {
		t.Fatalf("acceptor balance = %s, want %s", got.Dec(), want.Dec())
	}
}

func TestAcceptBetDeadlineExpired(t *testing.T) {
	e := newEnv(t)
	bet := e.create(t, 1000, 0, 300)

	_, err := e.ledger.AcceptBet(context.Background(), acceptor, bet.ID,
		nil, time.Now().Add(-time.Minute))
	if !errors.Is(err, domain.ErrDeadlineExpired) {
		t.Fatalf("err = %v, want ErrDeadlineExpired", err)
	}
}

func TestAcceptBetSlippageCeiling(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bet := e.create(t, 1000, 0, 300)

	// Even prices require a 1000 deposit; a ceiling one unit below fails.
	_, err := e.ledger.AcceptBet(ctx, acceptor, bet.ID, uint256.NewInt(999), time.Time{})
	if !errors.Is(err, domain.ErrSlippageExceeded) {
		t.Fatalf("err = %v, want ErrSlippageExceeded", err)
	}
	got, err := e.ledger.GetBet(ctx, bet.ID)
	if err != nil || got.Status != domain.BetStatusOpen {
		t.Fatalf("bet after failed accept: %+v, %v", got.Status, err)
	}

	if _, err := e.ledger.AcceptBet(ctx, acceptor, bet.ID, uint256.NewInt(1000), time.Time{}); err != nil {
		t.Fatalf("accept at exact ceiling: %v", err)
	}
}

func TestAcceptBetPriceMoved(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.resolver.pair = pair(645e15, 355e15)
	bet := e.create(t, 1000, 0, 300)

	// 300 bps of 0.645 allows 0.01935 of drift; 0.665 is 0.020 away.
	e.resolver.pair = pair(665e15, 335e15)
	_, err := e.ledger.AcceptBet(ctx, acceptor, bet.ID, nil, time.Time{})
	if !errors.Is(err, domain.ErrPriceMoved) {
		t.Fatalf("err = %v, want ErrPriceMoved", err)
	}

	// 0.664 is 0.019 away and passes.
	e.resolver.pair = pair(664e15, 336e15)
	if _, err := e.ledger.AcceptBet(ctx, acceptor, bet.ID, nil, time.Time{}); err != nil {
		t.Fatalf("accept inside tolerance: %v", err)
	}
}

func TestAcceptBetClosedBets(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	canceled := e.create(t, 1000, 0, 300)
	if _, err := e.ledger.CancelBet(ctx, initiator, canceled.ID); err != nil {
		t.Fatalf("CancelBet: %v", err)
	}
	if _, err := e.ledger.AcceptBet(ctx, acceptor, canceled.ID, nil, time.Time{}); !errors.Is(err, domain.ErrBetClosed) {
		t.Fatalf("accept canceled err = %v", err)
	}

	settled := e.create(t, 1000, 0, 300)
	if _, err := e.ledger.AcceptBet(ctx, acceptor, settled.ID, nil, time.Time{}); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if _, err := e.ledger.AcceptBet(ctx, stranger, settled.ID, nil, time.Time{}); !errors.Is(err, domain.ErrBetClosed) {
		t.Fatalf("double accept err = %v", err)
	}
}

func TestAcceptBetMintFailureUnwinds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bet := e.create(t, 1000, 0, 300)

	e.market.mintErr = errors.New("mint reverted")
	before := e.bank.bal(collateralAddr, acceptor)

	_, err := e.ledger.AcceptBet(ctx, acceptor, bet.ID, nil, time.Time{})
	if !errors.Is(err, domain.ErrMintFailed) {
		t.Fatalf("err = %v, want ErrMintFailed", err)
	}

	// The acceptor is made whole and the bet is open again.
	if got := e.bank.bal(collateralAddr, acceptor); got.Cmp(before) != 0 {
		t.Fatalf("acceptor balance = %s, want %s", got.Dec(), before.Dec())
	}
	got, err := e.ledger.GetBet(ctx, bet.ID)
	if err != nil {
		t.Fatalf("GetBet: %v", err)
	}
	if got.Status != domain.BetStatusOpen || got.Accepted() {
		t.Fatalf("bet not unwound: status=%s acceptor=%s", got.Status, got.Acceptor.Hex())
	}

	// The initiator's escrow is untouched.
	if got := e.bank.bal(collateralAddr, custodyAddr); got.Cmp(uint256.NewInt(1000)) != 0 {
		t.Fatalf("custody balance = %s, want 1000", got.Dec())
	}

	// A retry after the market recovers succeeds.
	e.market.mintErr = nil
	if _, err := e.ledger.AcceptBet(ctx, acceptor, bet.ID, nil, time.Time{}); err != nil {
		t.Fatalf("retry accept: %v", err)
	}
}

func TestAcceptBetZeroMintUnwinds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bet := e.create(t, 1000, 0, 300)

	e.market.mintZero = true
	_, err := e.ledger.AcceptBet(ctx, acceptor, bet.ID, nil, time.Time{})
	if !errors.Is(err, domain.ErrZeroMint) {
		t.Fatalf("err = %v, want ErrZeroMint", err)
	}
	got, _ := e.ledger.GetBet(ctx, bet.ID)
	if got.Status != domain.BetStatusOpen {
		t.Fatalf("status = %s, want open", got.Status)
	}
}

func TestAcceptBetPostMintFaultKeepsSettlement(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bet := e.create(t, 1000, 0, 300)

	// Outcome tokens exist once the mint lands; a delivery failure must not
	// reopen the bet.
	e.bank.failTransfer[noTokenAddr] = true
	_, err := e.ledger.AcceptBet(ctx, acceptor, bet.ID, nil, time.Time{})
	if err == nil {
		t.Fatal("expected delivery failure")
	}
	got, _ := e.ledger.GetBet(ctx, bet.ID)
	if got.Status != domain.BetStatusSettled {
		t.Fatalf("status = %s, want settled", got.Status)
	}
}

func TestBetBusyRejectsConcurrentOps(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bet := e.create(t, 1000, 0, 300)

	e.ledger.mu.Lock()
	e.ledger.inflight[bet.ID] = struct{}{}
	e.ledger.mu.Unlock()

	if _, err := e.ledger.AcceptBet(ctx, acceptor, bet.ID, nil, time.Time{}); !errors.Is(err, domain.ErrBetBusy) {
		t.Fatalf("accept err = %v, want ErrBetBusy", err)
	}
	if _, err := e.ledger.CancelBet(ctx, initiator, bet.ID); !errors.Is(err, domain.ErrBetBusy) {
		t.Fatalf("cancel err = %v, want ErrBetBusy", err)
	}
}

func TestCancelBetRefunds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bet := e.create(t, 1000, 50, 300)

	got, err := e.ledger.CancelBet(ctx, initiator, bet.ID)
	if err != nil {
		t.Fatalf("CancelBet: %v", err)
	}
	if got.Status != domain.BetStatusCanceled {
		t.Fatalf("status = %s, want canceled", got.Status)
	}

	// Stake and reward both come back.
	if bal := e.bank.bal(collateralAddr, initiator); bal.Cmp(uint256.NewInt(1_000_000)) != 0 {
		t.Fatalf("initiator balance = %s, want 1000000", bal.Dec())
	}

	if _, err := e.ledger.CancelBet(ctx, initiator, bet.ID); !errors.Is(err, domain.ErrBetClosed) {
		t.Fatalf("second cancel err = %v", err)
	}
}

func TestCancelBetOnlyInitiator(t *testing.T) {
	e := newEnv(t)
	bet := e.create(t, 1000, 0, 300)

	_, err := e.ledger.CancelBet(context.Background(), stranger, bet.ID)
	if !errors.Is(err, domain.ErrNotInitiator) {
		t.Fatalf("err = %v, want ErrNotInitiator", err)
	}
}

func TestGetFairCounterpartyAmount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.resolver.pair = pair(645e15, 355e15)
	bet := e.create(t, 1000, 0, 300)

	quote, err := e.ledger.GetFairCounterpartyAmount(ctx, bet.ID)
	if err != nil {
		t.Fatalf("GetFairCounterpartyAmount: %v", err)
	}
	// floor(1000 * 0.645 / 0.355) = 1816.
	if quote.Cmp(uint256.NewInt(1816)) != 0 {
		t.Fatalf("quote = %s, want 1816", quote.Dec())
	}

	if _, err := e.ledger.CancelBet(ctx, initiator, bet.ID); err != nil {
		t.Fatalf("CancelBet: %v", err)
	}
	if _, err := e.ledger.GetFairCounterpartyAmount(ctx, bet.ID); !errors.Is(err, domain.ErrBetClosed) {
		t.Fatalf("quote on closed err = %v", err)
	}
}

func TestGetPoolPrices(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.resolver.pair = pair(7e17, 3e17)
	prices, err := e.ledger.GetPoolPrices(ctx, marketAddr)
	if err != nil {
		t.Fatalf("GetPoolPrices: %v", err)
	}
	if prices.Yes.Cmp(uint256.NewInt(7e17)) != 0 || prices.No.Cmp(uint256.NewInt(3e17)) != 0 {
		t.Fatalf("prices = %s/%s", prices.Yes.Dec(), prices.No.Dec())
	}

	e.resolver.err = domain.ErrInconsistentPrices
	if _, err := e.ledger.GetPoolPrices(ctx, marketAddr); !errors.Is(err, domain.ErrInconsistentPrices) {
		t.Fatalf("resolver error not propagated: %v", err)
	}
}

func TestGetBetNotFound(t *testing.T) {
	e := newEnv(t)
	if _, err := e.ledger.GetBet(context.Background(), 404); !errors.Is(err, domain.ErrBetNotFound) {
		t.Fatalf("err = %v, want ErrBetNotFound", err)
	}
}
