package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/landledger/internal/assets"
	"github.com/roach88/landledger/internal/engine"
	"github.com/roach88/landledger/internal/epoch"
	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
	"github.com/roach88/landledger/internal/store"
	"github.com/roach88/landledger/internal/testutil"
)

// Fixed addresses of a scenario engine.
const (
	EngineAddress = ledger.Address("engine")
	TokenAddress  = ledger.Address("lords")
	LandAddress   = ledger.Address("deeds")
	DefaultOwner  = ledger.Address("owner")
)

// DefaultInitialBid is the opening bid when a scenario does not set one.
const DefaultInitialBid = "10e18"

// Harness is the test execution engine for one scenario.
// It runs on a manual clock with sequential transaction ids.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	token  *assets.Token
	deed   *assets.Deed
	clock  *testutil.ManualClock
	logger *slog.Logger
}

// Option configures a harness run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes harness and engine logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The
// returned error reports infrastructure failures only; failed expectations
// are recorded in the Result.
//
// Execution flow:
//  1. Create fresh in-memory database, assets and engine
//  2. Execute setup steps
//  3. Execute flow steps with expect validation
//  4. Evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	h, err := newHarness(ctx, st, scenario.Config, o.logger)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	if err := h.executeSetup(scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Ctx:    ctx,
		Store:  st,
		Engine: h.engine,
		Token:  h.token,
		Deed:   h.deed,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

func newHarness(ctx context.Context, st *store.Store, cfg Config, logger *slog.Logger) (*Harness, error) {
	start := time.Time{}
	if cfg.Start != "" {
		t, err := time.Parse(time.RFC3339, cfg.Start)
		if err != nil {
			return nil, fmt.Errorf("config start: %w", err)
		}
		start = t
	}

	h := &Harness{
		store:  st,
		token:  assets.NewToken(TokenAddress),
		deed:   assets.NewDeed(LandAddress),
		clock:  testutil.NewManualClock(start),
		logger: logger,
	}

	ecfg := engine.Config{
		Address:        EngineAddress,
		Owner:          DefaultOwner,
		TokenAddress:   TokenAddress,
		Token:          h.token.Bind(EngineAddress),
		LandAddress:    LandAddress,
		Land:           h.deed.Bind(EngineAddress),
		InitialLandBid: ledger.MustAmount(DefaultInitialBid),
	}
	if cfg.Owner != "" {
		ecfg.Owner = ledger.Address(cfg.Owner)
	}
	if cfg.InitialBid != "" {
		bid, err := ledger.ParseAmount(cfg.InitialBid)
		if err != nil {
			return nil, fmt.Errorf("config initial_bid: %w", err)
		}
		ecfg.InitialLandBid = bid
	}
	if cfg.AuctionDuration != "" {
		d, err := time.ParseDuration(cfg.AuctionDuration)
		if err != nil {
			return nil, fmt.Errorf("config auction_duration: %w", err)
		}
		ecfg.AuctionDuration = d
	}
	if len(cfg.Epochs) > 0 {
		schedule, err := buildSchedule(cfg.Epochs)
		if err != nil {
			return nil, fmt.Errorf("config epochs: %w", err)
		}
		ecfg.Epochs = schedule
	}

	eng, err := engine.New(ctx, st, ecfg,
		engine.WithClock(h.clock),
		engine.WithTxIDGenerator(engine.NewSequentialGenerator("tx")),
		engine.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	h.engine = eng
	return h, nil
}

func buildSchedule(specs []EpochSpec) (*epoch.Schedule, error) {
	epochs := make([]epoch.Epoch, len(specs))
	for i, s := range specs {
		start, err := time.Parse(time.RFC3339, s.Start)
		if err != nil {
			return nil, fmt.Errorf("epochs[%d].start: %w", i, err)
		}
		ranges := make([]epoch.Range, len(s.Ranges))
		for j, r := range s.Ranges {
			ranges[j] = epoch.Range{From: ledger.LandID(r.From), To: ledger.LandID(r.To)}
		}
		epochs[i] = epoch.Epoch{Name: s.Name, Start: start.UTC(), Ranges: ranges}
	}
	return epoch.NewSchedule(epochs)
}

// executeSetup runs all setup steps. Setup steps must succeed.
func (h *Harness) executeSetup(setup []AssetStep, result *Result) error {
	for i, step := range setup {
		if err := h.applyAsset(step, result); err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		switch {
		case step.Advance != "":
			d, err := time.ParseDuration(step.Advance)
			if err != nil {
				return fmt.Errorf("flow step %d: %w", i, err)
			}
			now := h.clock.Advance(d)
			result.AddAdvanceTrace(now.Format(time.RFC3339Nano))

		case step.Asset != nil:
			if err := h.applyAsset(*step.Asset, result); err != nil {
				result.AddError(fmt.Sprintf("flow[%d] asset %s: %v", i, step.Asset.Action, err))
			}

		default:
			if err := h.invoke(ctx, i, step, result); err != nil {
				return fmt.Errorf("flow step %d: %w", i, err)
			}
		}
	}
	return nil
}

// invoke dispatches one operation and checks its outcome. Typed failures
// are outcomes; anything else aborts the run.
func (h *Harness) invoke(ctx context.Context, index int, step FlowStep, result *Result) error {
	args, err := toObject(step.Args)
	if err != nil {
		return fmt.Errorf("failed to convert args: %w", err)
	}
	result.AddInvocationTrace(step.Invoke, step.Caller, plain(args))

	out, err := h.engine.Dispatch(ctx, step.Invoke, ledger.Address(step.Caller), args)
	outcome := ir.OutcomeSuccess
	if err != nil {
		code := engine.CodeOf(err)
		if code == "" {
			return err
		}
		outcome = string(code)
	}
	result.AddCompletionTrace(outcome, plain(out))

	h.logger.Info("flow step completed",
		"step", index,
		"operation", step.Invoke,
		"caller", step.Caller,
		"outcome", outcome,
	)

	want := ir.OutcomeSuccess
	if step.Expect != nil {
		want = step.Expect.Outcome
	}
	if outcome != want {
		msg := fmt.Sprintf("flow[%d] %s: outcome %s, want %s", index, step.Invoke, outcome, want)
		if err != nil {
			msg += ": " + err.Error()
		}
		result.AddError(msg)
		return nil
	}

	if step.Expect != nil && step.Expect.Result != nil {
		expected, err := normalize(step.Expect.Result)
		if err != nil {
			return fmt.Errorf("failed to convert expected result: %w", err)
		}
		if !matchArgs(plain(out), expected) {
			result.AddError(fmt.Sprintf("flow[%d] %s: result %v does not contain %v",
				index, step.Invoke, plain(out), expected))
		}
	}
	return nil
}

// applyAsset performs a reference asset action.
func (h *Harness) applyAsset(step AssetStep, result *Result) error {
	args, err := normalize(step.Args)
	if err != nil {
		return err
	}
	result.AddAssetTrace(step.Action, args)

	switch step.Action {
	case AssetMint:
		to, amount, err := addressAndAmount(args, "to")
		if err != nil {
			return err
		}
		return h.token.Mint(to, amount)

	case AssetApprove:
		owner, amount, err := addressAndAmount(args, "owner")
		if err != nil {
			return err
		}
		spender := EngineAddress
		if s, ok := args["spender"].(string); ok && s != "" {
			spender = ledger.Address(s)
		}
		return h.token.Approve(owner, spender, amount)

	case AssetApproveDeed:
		owner, err := stringArg(args, "owner")
		if err != nil {
			return err
		}
		raw, err := stringArg(args, "land_id")
		if err != nil {
			return err
		}
		id, err := ledger.ParseLandID(raw)
		if err != nil {
			return err
		}
		return h.deed.Approve(ledger.Address(owner), EngineAddress, id)
	}
	return fmt.Errorf("unknown asset action %q", step.Action)
}

func addressAndAmount(args map[string]any, key string) (ledger.Address, decimal.Decimal, error) {
	addr, err := stringArg(args, key)
	if err != nil {
		return "", decimal.Zero, err
	}
	raw, err := stringArg(args, "amount")
	if err != nil {
		return "", decimal.Zero, err
	}
	amount, err := ledger.ParseAmount(raw)
	if err != nil {
		return "", decimal.Zero, err
	}
	return ledger.Address(addr), amount, nil
}

// stringArg reads a string argument. YAML integers are accepted for ids.
func stringArg(args map[string]any, key string) (string, error) {
	switch v := args[key].(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("%s: must not be empty", key)
		}
		return v, nil
	case int64:
		return fmt.Sprint(v), nil
	case nil:
		return "", fmt.Errorf("%s: required", key)
	default:
		return "", fmt.Errorf("%s: must be a string, got %T", key, v)
	}
}

// toObject converts YAML-decoded arguments into a journal argument object.
func toObject(args map[string]any) (ir.Object, error) {
	if args == nil {
		return ir.Object{}, nil
	}
	v, err := ir.FromAny(args)
	if err != nil {
		return nil, err
	}
	return v.(ir.Object), nil
}

// normalize converts YAML values into the plain forms ir.ToAny produces,
// so ints compare as int64.
func normalize(m map[string]any) (map[string]any, error) {
	obj, err := toObject(m)
	if err != nil {
		return nil, err
	}
	return plain(obj), nil
}

func plain(obj ir.Object) map[string]any {
	if obj == nil {
		return nil
	}
	return ir.ToAny(obj).(map[string]any)
}
