package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
)

// requireOwner fails with NOT_CONTRACT_OWNER unless caller is the owner.
func (e *Engine) requireOwner(caller ledger.Address) error {
	if caller != e.Owner() {
		return ErrNotContractOwner
	}
	return nil
}

// putSetting persists a setting in the operation's transaction and applies
// it in memory once committed.
func (e *Engine) putSetting(oc *opContext, key, value string, apply func()) error {
	if err := oc.tx.PutSetting(oc.ctx, key, value); err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	oc.afterCommit(func() {
		e.settingsMu.Lock()
		defer e.settingsMu.Unlock()
		apply()
	})
	return nil
}

// Pause suspends auction participation. Redemption and the marketplace are
// unaffected. Pausing a paused engine succeeds.
func (e *Engine) Pause(ctx context.Context, caller ledger.Address) error {
	_, err := e.setPaused(ctx, OpPause, caller, true)
	return err
}

// Unpause resumes auction participation.
func (e *Engine) Unpause(ctx context.Context, caller ledger.Address) error {
	_, err := e.setPaused(ctx, OpUnpause, caller, false)
	return err
}

func (e *Engine) setPaused(ctx context.Context, op string, caller ledger.Address, paused bool) (ir.Object, error) {
	return e.execute(ctx, op, caller, 0, ir.Object{}, func(oc *opContext) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := e.putSetting(oc, settingPaused, strconv.FormatBool(paused), func() {
			e.paused = paused
		}); err != nil {
			return err
		}
		oc.result = ir.Object{"paused": ir.Bool(paused)}
		return nil
	})
}

// ExtractTokens sweeps amount of the engine's balance of token to the owner.
func (e *Engine) ExtractTokens(ctx context.Context, caller, token ledger.Address, amount decimal.Decimal) error {
	_, err := e.extractTokens(ctx, caller, token, amount)
	return err
}

func (e *Engine) extractTokens(ctx context.Context, caller, token ledger.Address, amount decimal.Decimal) (ir.Object, error) {
	args := ir.Object{
		"token":  ir.String(token),
		"amount": ir.String(ledger.FormatAmount(amount)),
	}

	return e.execute(ctx, OpExtractTokens, caller, 0, args, func(oc *opContext) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if token != e.cfg.TokenAddress {
			return newError(CodeInvalidArgument, 0, "unknown token %s", token)
		}
		if err := checkAmount("amount", 0, amount); err != nil {
			return err
		}
		balance, err := e.cfg.Token.BalanceOf(oc.ctx, e.cfg.Address)
		if err != nil {
			return collaboratorError(OpExtractTokens, 0, err)
		}
		if balance.LessThan(amount) {
			return newError(CodeInsufficientBal, 0, "%s: holding %s, requested %s",
				ErrInsufficientBal.Message, ledger.FormatAmount(balance), ledger.FormatAmount(amount))
		}

		owner := caller
		oc.interact(func(ctx context.Context) error {
			return e.cfg.Token.Transfer(ctx, owner, amount)
		})

		oc.result = ir.Object{
			"token":  ir.String(token),
			"amount": ir.String(ledger.FormatAmount(amount)),
		}
		return nil
	})
}

// SetApproved sets the delegate allowed to bid on behalf of others. The
// zero address revokes it.
func (e *Engine) SetApproved(ctx context.Context, caller, delegate ledger.Address) error {
	_, err := e.setApproved(ctx, caller, delegate)
	return err
}

func (e *Engine) setApproved(ctx context.Context, caller, delegate ledger.Address) (ir.Object, error) {
	args := ir.Object{"delegate": ir.String(delegate)}

	return e.execute(ctx, OpSetApproved, caller, 0, args, func(oc *opContext) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := e.putSetting(oc, settingDelegate, string(delegate), func() {
			e.delegate = delegate
		}); err != nil {
			return err
		}
		oc.result = ir.Object{"delegate": ir.String(delegate)}
		return nil
	})
}

// SetAuctionLandDuration changes the bidding window of auctions opened from
// now on. Running auctions keep their end time.
func (e *Engine) SetAuctionLandDuration(ctx context.Context, caller ledger.Address, d time.Duration) error {
	_, err := e.setAuctionLandDuration(ctx, caller, d)
	return err
}

func (e *Engine) setAuctionLandDuration(ctx context.Context, caller ledger.Address, d time.Duration) (ir.Object, error) {
	args := ir.Object{"duration": ir.String(d.String())}

	return e.execute(ctx, OpSetAuctionLandDuration, caller, 0, args, func(oc *opContext) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if d <= 0 {
			return newError(CodeInvalidArgument, 0, "auction duration must be positive, got %s", d)
		}
		if !ledger.InstantInRange(oc.now.Add(d)) {
			return newError(CodeInvalidArgument, 0, "auction duration %s ends out of range", d)
		}
		if err := e.putSetting(oc, settingAuctionDuration, d.String(), func() {
			e.duration = d
		}); err != nil {
			return err
		}
		oc.result = ir.Object{"duration": ir.String(d.String())}
		return nil
	})
}

// TransferOwnership hands the administrative role to newOwner.
func (e *Engine) TransferOwnership(ctx context.Context, caller, newOwner ledger.Address) error {
	_, err := e.transferOwnership(ctx, caller, newOwner)
	return err
}

func (e *Engine) transferOwnership(ctx context.Context, caller, newOwner ledger.Address) (ir.Object, error) {
	args := ir.Object{"new_owner": ir.String(newOwner)}

	return e.execute(ctx, OpTransferOwnership, caller, 0, args, func(oc *opContext) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if newOwner.IsZero() {
			return newError(CodeInvalidArgument, 0, "Ownable: new owner is the zero address")
		}
		if err := e.putSetting(oc, settingOwner, string(newOwner), func() {
			e.owner = newOwner
		}); err != nil {
			return err
		}
		oc.result = ir.Object{"owner": ir.String(newOwner)}
		return nil
	})
}
