package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/landledger/internal/epoch"
	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
	"github.com/roach88/landledger/internal/store"
)

// Setting keys persisted in the store.
const (
	settingOwner           = "owner"
	settingPaused          = "paused"
	settingDelegate        = "delegate"
	settingAuctionDuration = "auction_duration"
)

// Config holds the engine's initialization parameters.
type Config struct {
	// Address is the engine's own principal. Bidders approve it on the
	// token and it holds escrowed bids.
	Address ledger.Address

	// Owner may run the administrative operations.
	Owner ledger.Address

	TokenAddress ledger.Address
	Token        FungibleToken

	LandAddress ledger.Address
	Land        NonFungibleToken

	// InitialLandBid is the minimum first bid on a parcel.
	InitialLandBid decimal.Decimal

	// AuctionDuration is the bidding window. Zero means
	// ledger.DefaultAuctionDuration.
	AuctionDuration time.Duration

	// Epochs decides which parcels may be auctioned. Nil releases all.
	Epochs epoch.Policy
}

func (c *Config) validate() error {
	var errs []error
	if c.Address.IsZero() {
		errs = append(errs, errors.New("engine address is required"))
	}
	if c.Owner.IsZero() {
		errs = append(errs, errors.New("owner is required"))
	}
	if c.Token == nil || c.TokenAddress.IsZero() {
		errs = append(errs, errors.New("fungible token and its address are required"))
	}
	if c.Land == nil || c.LandAddress.IsZero() {
		errs = append(errs, errors.New("land token and its address are required"))
	}
	if err := ledger.ValidateAmount(c.InitialLandBid); err != nil {
		errs = append(errs, fmt.Errorf("initial land bid: %w", err))
	}
	if c.AuctionDuration < 0 {
		errs = append(errs, errors.New("auction duration must be positive"))
	}
	if c.AuctionDuration == 0 {
		c.AuctionDuration = ledger.DefaultAuctionDuration
	}
	if c.Epochs == nil {
		c.Epochs = epoch.AllowAll
	}
	return errors.Join(errs...)
}

// Engine is the land auction ledger.
//
// Every mutating operation runs as one serialized transaction: checks first,
// then staged ledger mutations, then calls to the token collaborators. Any
// failure leaves no observable effect. Each operation, successful or not,
// is journaled as an invocation and its completion.
//
// Thread-safety: all methods are safe for concurrent use. Mutating
// operations are serialized by a single writer lock.
type Engine struct {
	store    *store.Store
	cfg      Config
	clock    Clock
	seq      *Sequencer
	txIDs    TxIDGenerator
	logger   *slog.Logger
	observer Observer

	mu sync.Mutex // single writer

	settingsMu sync.RWMutex
	owner      ledger.Address
	delegate   ledger.Address
	paused     bool
	duration   time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTxIDGenerator sets the transaction id source. Default: UUIDv7Generator.
func WithTxIDGenerator(g TxIDGenerator) Option {
	return func(e *Engine) { e.txIDs = g }
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithObserver registers an operation observer, typically a metrics
// collector.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an engine over s. Administrative settings already persisted
// in s take precedence over cfg, and journal sequencing resumes after the
// highest recorded seq.
func New(ctx context.Context, s *store.Store, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	e := &Engine{
		store:    s,
		cfg:      cfg,
		clock:    SystemClock{},
		txIDs:    UUIDv7Generator{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		owner:    cfg.Owner,
		duration: cfg.AuctionDuration,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.loadSettings(ctx); err != nil {
		return nil, err
	}
	maxSeq, err := s.MaxSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume sequencer: %w", err)
	}
	e.seq = NewSequencerAt(maxSeq)

	e.logger.Info("engine starting",
		"address", cfg.Address,
		"owner", e.owner,
		"paused", e.paused,
		"auction_duration", e.duration,
		"seq", maxSeq)
	return e, nil
}

func (e *Engine) loadSettings(ctx context.Context) error {
	settings, err := e.store.Settings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if v, ok := settings[settingOwner]; ok {
		e.owner = ledger.Address(v)
	}
	if v, ok := settings[settingDelegate]; ok {
		e.delegate = ledger.Address(v)
	}
	if v, ok := settings[settingPaused]; ok {
		if e.paused, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("load setting %s: %w", settingPaused, err)
		}
	}
	if v, ok := settings[settingAuctionDuration]; ok {
		if e.duration, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("load setting %s: %w", settingAuctionDuration, err)
		}
	}
	return nil
}

// Address returns the engine's own principal.
func (e *Engine) Address() ledger.Address { return e.cfg.Address }

// TokenAddress returns the payment token's address.
func (e *Engine) TokenAddress() ledger.Address { return e.cfg.TokenAddress }

// LandAddress returns the deed registry's address.
func (e *Engine) LandAddress() ledger.Address { return e.cfg.LandAddress }

// InitialLandBid returns the minimum first bid.
func (e *Engine) InitialLandBid() decimal.Decimal { return e.cfg.InitialLandBid }

// Owner returns the administrative owner.
func (e *Engine) Owner() ledger.Address {
	e.settingsMu.RLock()
	defer e.settingsMu.RUnlock()
	return e.owner
}

// Delegate returns the address allowed to bid on behalf of others, if any.
func (e *Engine) Delegate() ledger.Address {
	e.settingsMu.RLock()
	defer e.settingsMu.RUnlock()
	return e.delegate
}

// Paused reports whether auction participation is suspended.
func (e *Engine) Paused() bool {
	e.settingsMu.RLock()
	defer e.settingsMu.RUnlock()
	return e.paused
}

// AuctionDuration returns the bidding window opened by a first bid.
func (e *Engine) AuctionDuration() time.Duration {
	e.settingsMu.RLock()
	defer e.settingsMu.RUnlock()
	return e.duration
}

// opContext carries one operation through its check, effect and
// interaction phases.
type opContext struct {
	ctx    context.Context
	tx     *store.Tx
	now    time.Time
	seq    int64
	caller ledger.Address

	calls    []func(context.Context) error
	onCommit []func()
	result   ir.Object
}

// interact queues an external call. Calls run in order once every ledger
// mutation is staged.
func (c *opContext) interact(fn func(context.Context) error) {
	c.calls = append(c.calls, fn)
}

// afterCommit queues an in-memory update applied once the transaction is
// durable.
func (c *opContext) afterCommit(fn func()) {
	c.onCommit = append(c.onCommit, fn)
}

// execute runs fn as one journaled, atomic operation.
func (e *Engine) execute(
	ctx context.Context,
	op string,
	caller ledger.Address,
	land ledger.LandID,
	args ir.Object,
	fn func(*opContext) error,
) (ir.Object, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	started := time.Now()

	now, txID := e.clock.Now().UTC(), ""
	if in, ok := replayInputFrom(ctx); ok {
		now, txID = in.at, in.txID
	}
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	// Sequence numbers are drawn only once the operation can be journaled.
	inv, err := e.invocation(op, caller, args, now, txID)
	if err != nil {
		return nil, err
	}

	oc := &opContext{
		ctx:    ctx,
		tx:     tx,
		now:    now,
		seq:    inv.Seq,
		caller: caller,
		result: ir.Object{},
	}

	err = fn(oc)
	if err == nil {
		err = ctx.Err()
	}
	restore := func() {}
	if err == nil {
		restore, err = e.interact(ctx, op, land, oc)
	}
	if err == nil {
		if err = e.commit(ctx, tx, inv, oc.result); err != nil {
			restore()
		}
	}

	outcome := ir.OutcomeSuccess
	if err != nil {
		outcome = outcomeOf(err)
		if rbErr := tx.Rollback(); rbErr != nil {
			e.logger.Error("rollback failed", "op", op, "error", rbErr)
		}
		e.journalFailure(ctx, inv, outcome, err)
		e.logger.Warn("operation rejected",
			"op", op,
			"caller", caller,
			"land", land,
			"outcome", outcome,
			"error", err)
	} else {
		for _, fn := range oc.onCommit {
			fn()
		}
		e.logger.Debug("operation applied",
			"op", op,
			"caller", caller,
			"land", land,
			"seq", inv.Seq)
	}

	e.observe(ctx, op, outcome, time.Since(started))
	if err != nil {
		return nil, err
	}
	return oc.result, nil
}

func (e *Engine) invocation(op string, caller ledger.Address, args ir.Object, now time.Time, txID string) (ir.Invocation, error) {
	if txID == "" {
		txID = e.txIDs.Generate()
	}
	inv := ir.Invocation{
		TxID:           txID,
		Operation:      op,
		Caller:         string(caller),
		Args:           args,
		At:             now.UnixNano(),
		Seq:            e.seq.Next(),
		EngineVersion:  ir.EngineVersion,
		JournalVersion: ir.JournalVersion,
	}
	id, err := ir.InvocationID(inv.TxID, inv.Operation, inv.Caller, inv.Args, inv.At, inv.Seq)
	if err != nil {
		return ir.Invocation{}, fmt.Errorf("%s: invocation id: %w", op, err)
	}
	inv.ID = id
	return inv, nil
}

func (e *Engine) completion(inv ir.Invocation, outcome, message string, result ir.Object) (ir.Completion, error) {
	comp := ir.Completion{
		InvocationID: inv.ID,
		Outcome:      outcome,
		Message:      message,
		Result:       result,
		Seq:          e.seq.Next(),
	}
	id, err := ir.CompletionID(comp.InvocationID, comp.Outcome, comp.Result, comp.Seq)
	if err != nil {
		return ir.Completion{}, fmt.Errorf("%s: completion id: %w", inv.Operation, err)
	}
	comp.ID = id
	return comp, nil
}

// interact checkpoints the collaborators and runs the queued calls. On
// failure the collaborators are already restored. On success the returned
// function undoes the calls if the commit fails.
func (e *Engine) interact(ctx context.Context, op string, land ledger.LandID, oc *opContext) (func(), error) {
	if len(oc.calls) == 0 {
		return func() {}, nil
	}
	restore := e.checkpoint()
	for _, call := range oc.calls {
		if err := call(ctx); err != nil {
			restore()
			return nil, collaboratorError(op, land, err)
		}
	}
	return restore, nil
}

func (e *Engine) checkpoint() func() {
	var undo []func()
	for _, c := range []any{e.cfg.Token, e.cfg.Land} {
		if cp, ok := c.(Checkpointer); ok {
			undo = append(undo, cp.Checkpoint())
		}
	}
	return func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}
}

func (e *Engine) commit(ctx context.Context, tx *store.Tx, inv ir.Invocation, result ir.Object) error {
	comp, err := e.completion(inv, ir.OutcomeSuccess, "", result)
	if err != nil {
		return err
	}
	if err := tx.WriteJournal(ctx, inv, comp); err != nil {
		return fmt.Errorf("%s: %w", inv.Operation, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", inv.Operation, err)
	}
	return nil
}

// journalFailure records a rejected operation. The record is written even
// when ctx is already cancelled.
func (e *Engine) journalFailure(ctx context.Context, inv ir.Invocation, outcome string, cause error) {
	message := cause.Error()
	var typed *Error
	if errors.As(cause, &typed) {
		message = typed.Message
	}
	comp, err := e.completion(inv, outcome, message, ir.Object{})
	if err == nil {
		err = e.store.WriteJournal(context.WithoutCancel(ctx), inv, comp)
	}
	if err != nil {
		e.logger.Error("journal write failed", "op", inv.Operation, "seq", inv.Seq, "error", err)
	}
}

func (e *Engine) observe(ctx context.Context, op, outcome string, d time.Duration) {
	if e.observer == nil {
		return
	}
	e.observer.ObserveOperation(op, outcome, d)
	active, err := e.store.ActiveLands(context.WithoutCancel(ctx))
	if err != nil {
		e.logger.Error("observe active lands", "error", err)
		return
	}
	e.observer.ObserveState(len(active), e.Paused())
}

// checkLandID rejects ids the store cannot key.
func checkLandID(id ledger.LandID) error {
	if uint64(id) > math.MaxInt64 {
		return newError(CodeInvalidArgument, 0, "land id %s out of range", id)
	}
	return nil
}

// checkAmount rejects negative and fractional amounts.
func checkAmount(field string, land ledger.LandID, d decimal.Decimal) error {
	if err := ledger.ValidateAmount(d); err != nil {
		return newError(CodeInvalidArgument, land, "%s: %v", field, err)
	}
	return nil
}

// allowance reads owner's allowance to the engine.
func (e *Engine) allowance(ctx context.Context, owner ledger.Address) (decimal.Decimal, error) {
	return e.cfg.Token.Allowance(ctx, owner, e.cfg.Address)
}

// requireAllowance fails with INSUFFICIENT_ALLOWANCE unless owner allows the
// engine to move at least amount.
func (e *Engine) requireAllowance(oc *opContext, op string, land ledger.LandID, owner ledger.Address, amount decimal.Decimal) error {
	allowed, err := e.allowance(oc.ctx, owner)
	if err != nil {
		return collaboratorError(op, land, err)
	}
	if allowed.LessThan(amount) {
		return failLand(ErrInsufficientAllow, land)
	}
	return nil
}

// requireApproval fails with NOT_APPROVED unless the engine may transfer
// the parcel's deed.
func (e *Engine) requireApproval(oc *opContext, op string, land ledger.LandID) error {
	ok, err := e.cfg.Land.IsApproved(oc.ctx, land)
	if err != nil {
		return collaboratorError(op, land, err)
	}
	if !ok {
		return failLand(ErrNotApproved, land)
	}
	return nil
}
