package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/landledger/internal/assets"
	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
	"github.com/roach88/landledger/internal/store"
	"github.com/roach88/landledger/internal/testutil"
)

const (
	engineAddr = ledger.Address("engine")
	ownerAddr  = ledger.Address("owner")
	tokenAddr  = ledger.Address("lords")
	landAddr   = ledger.Address("deeds")

	alice = ledger.Address("alice")
	bob   = ledger.Address("bob")
	carol = ledger.Address("carol")

	parcelX = ledger.LandID(631272015026578401)
	parcelY = ledger.LandID(631272015026578402)
)

var (
	tenLords    = ledger.MustAmount("10e18")
	twentyLords = ledger.MustAmount("20e18")
)

// fixture is an engine over a fresh store with reference assets and a
// manual clock.
type fixture struct {
	t      *testing.T
	ctx    context.Context
	path   string
	store  *store.Store
	token  *assets.Token
	deed   *assets.Deed
	clock  *testutil.ManualClock
	engine *Engine
	cfg    Config
}

func setupTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func newFixture(t *testing.T, configure ...func(*fixture, *Config)) *fixture {
	t.Helper()
	s, path := setupTestStore(t)
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		path:  path,
		store: s,
		token: assets.NewToken(tokenAddr),
		deed:  assets.NewDeed(landAddr),
		clock: testutil.NewManualClock(time.Time{}),
	}
	f.cfg = Config{
		Address:        engineAddr,
		Owner:          ownerAddr,
		TokenAddress:   tokenAddr,
		Token:          f.token.Bind(engineAddr),
		LandAddress:    landAddr,
		Land:           f.deed.Bind(engineAddr),
		InitialLandBid: tenLords,
	}
	for _, c := range configure {
		c(f, &f.cfg)
	}

	e, err := New(f.ctx, s, f.cfg,
		WithClock(f.clock),
		WithTxIDGenerator(NewSequentialGenerator("tx")))
	require.NoError(t, err)
	f.engine = e
	return f
}

// fund mints amount to addr and lets the engine spend addr's whole balance.
func (f *fixture) fund(addr ledger.Address, amount decimal.Decimal) {
	f.t.Helper()
	require.NoError(f.t, f.token.Mint(addr, amount))
	require.NoError(f.t, f.token.Approve(addr, engineAddr, f.token.BalanceOf(addr)))
}

func (f *fixture) balance(addr ledger.Address) string {
	return ledger.FormatAmount(f.token.BalanceOf(addr))
}

func (f *fixture) land(id ledger.LandID) ledger.Land {
	f.t.Helper()
	land, err := f.engine.Land(f.ctx, id)
	require.NoError(f.t, err)
	return land
}

func (f *fixture) deedOwner(id ledger.LandID) ledger.Address {
	f.t.Helper()
	owner, err := f.deed.OwnerOf(id)
	require.NoError(f.t, err)
	return owner
}

// redeemed runs a single-bid auction on id for owner and redeems it.
func (f *fixture) redeemed(owner ledger.Address, id ledger.LandID) {
	f.t.Helper()
	f.fund(owner, tenLords)
	require.NoError(f.t, f.engine.ParticipateInAuction(f.ctx, owner, id, tenLords))
	f.clock.Advance(25 * time.Hour)
	require.NoError(f.t, f.engine.RedeemWonLand(f.ctx, owner, id))
}

func (f *fixture) journal() []store.Entry {
	f.t.Helper()
	entries, err := f.store.ReadJournal(f.ctx)
	require.NoError(f.t, err)
	return entries
}

// reopen builds a second engine over the same database.
func (f *fixture) reopen() *Engine {
	f.t.Helper()
	e, err := New(f.ctx, f.store, f.cfg, WithClock(f.clock))
	require.NoError(f.t, err)
	return e
}

func TestNew_RequiresCollaborators(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := New(context.Background(), s, Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine address is required")
	assert.Contains(t, err.Error(), "owner is required")
	assert.Contains(t, err.Error(), "fungible token")
	assert.Contains(t, err.Error(), "land token")
}

func TestNew_Defaults(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, ledger.DefaultAuctionDuration, f.engine.AuctionDuration())
	assert.Equal(t, ownerAddr, f.engine.Owner())
	assert.False(t, f.engine.Paused())
	assert.True(t, f.engine.Delegate().IsZero())
	assert.True(t, f.engine.InitialLandBid().Equal(tenLords))
	assert.Equal(t, engineAddr, f.engine.Address())
	assert.Equal(t, tokenAddr, f.engine.TokenAddress())
	assert.Equal(t, landAddr, f.engine.LandAddress())
}

func TestNew_RejectsNegativeDuration(t *testing.T) {
	s, _ := setupTestStore(t)
	deed := assets.NewDeed(landAddr)
	tok := assets.NewToken(tokenAddr)

	_, err := New(context.Background(), s, Config{
		Address:         engineAddr,
		Owner:           ownerAddr,
		TokenAddress:    tokenAddr,
		Token:           tok.Bind(engineAddr),
		LandAddress:     landAddr,
		Land:            deed.Bind(engineAddr),
		AuctionDuration: -time.Hour,
	})
	assert.ErrorContains(t, err, "auction duration must be positive")
}

func TestEngine_JournalsEveryOperation(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, tenLords)

	require.NoError(t, f.engine.ParticipateInAuction(f.ctx, alice, parcelX, tenLords))
	err := f.engine.RedeemWonLand(f.ctx, alice, parcelX)
	require.ErrorIs(t, err, ErrAuctionNotEnded)

	entries := f.journal()
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, OpParticipateInAuction, first.Invocation.Operation)
	assert.Equal(t, "tx-1", first.Invocation.TxID)
	assert.Equal(t, string(alice), first.Invocation.Caller)
	assert.Equal(t, int64(1), first.Invocation.Seq)
	assert.Equal(t, int64(2), first.Completion.Seq)
	assert.Equal(t, testutil.Epoch.UnixNano(), first.Invocation.At)
	assert.Equal(t, ir.OutcomeSuccess, first.Completion.Outcome)
	assert.Equal(t, parcelX.String(), first.Invocation.Args.Str("land_id"))
	assert.Equal(t, "10000000000000000000", first.Completion.Result.Str("paid"))

	second := entries[1]
	assert.Equal(t, OpRedeemWonLand, second.Invocation.Operation)
	assert.Equal(t, string(CodeAuctionNotEnded), second.Completion.Outcome)
	assert.Equal(t, ErrAuctionNotEnded.Message, second.Completion.Message)
	assert.Empty(t, second.Completion.Result)
}

func TestEngine_JournalIDsAreContentAddressed(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, tenLords)
	require.NoError(t, f.engine.ParticipateInAuction(f.ctx, alice, parcelX, tenLords))

	entry := f.journal()[0]
	inv := entry.Invocation
	want := ir.MustInvocationID(inv.TxID, inv.Operation, inv.Caller, inv.Args, inv.At, inv.Seq)
	assert.Equal(t, want, inv.ID)

	comp := entry.Completion
	assert.Equal(t, inv.ID, comp.InvocationID)
	assert.Equal(t, ir.MustCompletionID(comp.InvocationID, comp.Outcome, comp.Result, comp.Seq), comp.ID)
}

func TestEngine_SequencerResumesAfterRestart(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, tenLords)
	require.NoError(t, f.engine.ParticipateInAuction(f.ctx, alice, parcelX, tenLords))

	e2 := f.reopen()
	assert.Equal(t, int64(2), e2.seq.Current())

	require.NoError(t, e2.Pause(f.ctx, ownerAddr))
	entries := f.journal()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(3), entries[1].Invocation.Seq)
}

func TestEngine_SettingsPersistAcrossRestart(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.Pause(f.ctx, ownerAddr))
	require.NoError(t, f.engine.SetApproved(f.ctx, ownerAddr, carol))
	require.NoError(t, f.engine.SetAuctionLandDuration(f.ctx, ownerAddr, 48*time.Hour))
	require.NoError(t, f.engine.TransferOwnership(f.ctx, ownerAddr, bob))

	e2 := f.reopen()
	assert.True(t, e2.Paused())
	assert.Equal(t, carol, e2.Delegate())
	assert.Equal(t, 48*time.Hour, e2.AuctionDuration())
	assert.Equal(t, bob, e2.Owner())
}

// failingDeed wraps the reference registry and fails deed transfers.
type failingDeed struct {
	*assets.BoundDeed
	err error
}

func (d failingDeed) TransferFrom(context.Context, ledger.Address, ledger.Address, ledger.LandID) error {
	return d.err
}

func TestEngine_InteractionFailureRollsBackEverything(t *testing.T) {
	offline := errors.New("registry offline")
	f := newFixture(t, func(f *fixture, cfg *Config) {
		cfg.Land = failingDeed{BoundDeed: f.deed.Bind(engineAddr), err: offline}
	})
	f.redeemed(alice, parcelX)
	require.NoError(t, f.deed.Approve(alice, engineAddr, parcelX))
	require.NoError(t, f.engine.PutLandOnSale(f.ctx, alice, parcelX, tenLords, true))
	f.fund(carol, tenLords)

	err := f.engine.BuyLand(f.ctx, carol, parcelX)
	require.ErrorIs(t, err, offline)
	assert.Empty(t, CodeOf(err))

	// The payment leg ran before the deed leg failed and was undone.
	assert.Equal(t, "10000000000000000000", f.balance(carol))
	assert.Equal(t, "0", f.balance(alice))
	assert.Equal(t, "10000000000000000000", ledger.FormatAmount(f.token.Allowance(carol, engineAddr)))

	land := f.land(parcelX)
	assert.Equal(t, alice, land.Owner)
	assert.True(t, land.OnSale)
	assert.Equal(t, alice, f.deedOwner(parcelX))

	entries := f.journal()
	last := entries[len(entries)-1]
	assert.Equal(t, OpBuyLand, last.Invocation.Operation)
	assert.Equal(t, string(CodeInternal), last.Completion.Outcome)
	assert.Contains(t, last.Completion.Message, "registry offline")
}

func TestEngine_CollaboratorErrorsMapToCodes(t *testing.T) {
	f := newFixture(t, func(f *fixture, cfg *Config) {
		cfg.Land = failingDeed{BoundDeed: f.deed.Bind(engineAddr), err: ledger.ErrNotApproved}
	})
	f.redeemed(alice, parcelX)
	require.NoError(t, f.deed.Approve(alice, engineAddr, parcelX))
	require.NoError(t, f.engine.PutLandOnSale(f.ctx, alice, parcelX, tenLords, true))
	f.fund(carol, tenLords)

	err := f.engine.BuyLand(f.ctx, carol, parcelX)
	assert.Equal(t, CodeNotApproved, CodeOf(err))
	assert.Equal(t, alice, f.land(parcelX).Owner)
}

func TestEngine_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, tenLords)

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	err := f.engine.ParticipateInAuction(ctx, alice, parcelX, tenLords)
	require.ErrorIs(t, err, context.Canceled)

	_, err = f.engine.Land(f.ctx, parcelX)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "10000000000000000000", f.balance(alice))
}

func TestEngine_FailedBeginConsumesNoSequence(t *testing.T) {
	f := newFixture(t)
	f.fund(alice, tenLords)

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	require.Error(t, f.engine.Pause(ctx, ownerAddr))
	assert.Equal(t, int64(0), f.engine.seq.Current())

	require.NoError(t, f.engine.ParticipateInAuction(f.ctx, alice, parcelX, tenLords))
	entries := f.journal()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].Invocation.Seq)
	assert.Equal(t, int64(2), entries[0].Completion.Seq)
	assert.Equal(t, "tx-1", entries[0].Invocation.TxID)
}

type recordingObserver struct {
	mu     sync.Mutex
	ops    []string
	active []int
	paused []bool
}

func (o *recordingObserver) ObserveOperation(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, op+":"+outcome)
}

func (o *recordingObserver) ObserveState(active int, paused bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = append(o.active, active)
	o.paused = append(o.paused, paused)
}

func TestEngine_Observer(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(t)
	e, err := New(f.ctx, f.store, f.cfg, WithClock(f.clock), WithObserver(obs))
	require.NoError(t, err)
	f.fund(alice, tenLords)

	require.NoError(t, e.ParticipateInAuction(f.ctx, alice, parcelX, tenLords))
	require.Error(t, e.Pause(f.ctx, alice))
	require.NoError(t, e.Pause(f.ctx, ownerAddr))

	assert.Equal(t, []string{
		"ParticipateInAuction:Success",
		"Pause:NOT_CONTRACT_OWNER",
		"Pause:Success",
	}, obs.ops)
	assert.Equal(t, []int{1, 1, 1}, obs.active)
	assert.Equal(t, []bool{false, false, true}, obs.paused)
}

func TestEngine_ConcurrentBidsSerialize(t *testing.T) {
	f := newFixture(t)
	bidders := []ledger.Address{"b1", "b2", "b3", "b4", "b5", "b6", "b7", "b8"}
	for _, b := range bidders {
		f.fund(b, ledger.MustAmount("100e18"))
	}

	var wg sync.WaitGroup
	for i, b := range bidders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			amount := tenLords.Add(decimal.NewFromInt(int64(i)))
			_ = f.engine.ParticipateInAuction(f.ctx, b, parcelX, amount)
		}()
	}
	wg.Wait()

	// Whatever the interleaving, exactly one bid is escrowed.
	land := f.land(parcelX)
	assert.Equal(t, ledger.FormatAmount(land.Paid), f.balance(engineAddr))

	entries := f.journal()
	assert.Len(t, entries, len(bidders))
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].Invocation.Seq, entries[i-1].Completion.Seq)
	}
}
