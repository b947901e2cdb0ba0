package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/landledger/internal/assets"
	"github.com/roach88/landledger/internal/config"
	"github.com/roach88/landledger/internal/engine"
	"github.com/roach88/landledger/internal/ledger"
	"github.com/roach88/landledger/internal/store"
	"github.com/roach88/landledger/internal/testutil"
)

const (
	testOwner = "admin"
	alice     = ledger.Address("alice")
	bob       = ledger.Address("bob")
	carol     = ledger.Address("carol")
	parcel    = ledger.LandID(42)
)

// setLedgerEnv configures the ledger through the environment the way
// serve and replay read it.
func setLedgerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LANDLEDGER_OWNER", testOwner)
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

// seedLedger is a database written by a real engine with default
// configuration and a manual clock.
type seedLedger struct {
	t      *testing.T
	ctx    context.Context
	path   string
	store  *store.Store
	engine *engine.Engine
	token  *assets.Token
	deed   *assets.Deed
	clock  *testutil.ManualClock
	cfg    config.Config
}

func newSeedLedger(t *testing.T) *seedLedger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")

	cfg, err := config.Parse(map[string]string{
		"LANDLEDGER_OWNER":   testOwner,
		"LANDLEDGER_DB_PATH": path,
	})
	require.NoError(t, err)

	st, err := store.Open(path)
	require.NoError(t, err)

	s := &seedLedger{
		t:     t,
		ctx:   context.Background(),
		path:  path,
		store: st,
		token: assets.NewToken(cfg.TokenAddress),
		deed:  assets.NewDeed(cfg.LandAddress),
		clock: testutil.NewManualClock(time.Time{}),
		cfg:   cfg,
	}
	ecfg, err := engineConfig(cfg, s.token, s.deed.Bind(cfg.Address))
	require.NoError(t, err)

	s.engine, err = engine.New(s.ctx, st, ecfg,
		engine.WithClock(s.clock),
		engine.WithTxIDGenerator(engine.NewSequentialGenerator("tx")))
	require.NoError(t, err)
	return s
}

func (s *seedLedger) fund(addr ledger.Address, amount string) {
	s.t.Helper()
	require.NoError(s.t, s.token.Mint(addr, ledger.MustAmount(amount)))
	require.NoError(s.t, s.token.Approve(addr, s.cfg.Address, s.token.BalanceOf(addr)))
}

// close flushes the database so commands can open it.
func (s *seedLedger) close() string {
	s.t.Helper()
	require.NoError(s.t, s.store.Close())
	return s.path
}

// seedHistory journals an outbid auction, a redemption, a listing and a
// purchase, plus one rejected low bid. Six operations, one failed.
func seedHistory(t *testing.T) string {
	t.Helper()
	s := newSeedLedger(t)
	s.fund(alice, "50e18")
	s.fund(bob, "20e18")

	require.NoError(t, s.engine.ParticipateInAuction(s.ctx, alice, parcel, ledger.MustAmount("10e18")))
	require.Error(t, s.engine.ParticipateInAuction(s.ctx, bob, parcel, ledger.MustAmount("10e18")))
	require.NoError(t, s.engine.ParticipateInAuction(s.ctx, bob, parcel, ledger.MustAmount("20e18")))

	s.clock.Advance(25 * time.Hour)
	require.NoError(t, s.engine.RedeemWonLand(s.ctx, bob, parcel))

	require.NoError(t, s.deed.Approve(bob, s.cfg.Address, parcel))
	require.NoError(t, s.engine.PutLandOnSale(s.ctx, bob, parcel, ledger.MustAmount("30e18"), true))
	require.NoError(t, s.engine.BuyLand(s.ctx, alice, parcel))

	return s.close()
}

// emptyDatabase creates a database with schema and no journal.
func emptyDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	return path
}
