package engine

import (
	"context"
	"fmt"
	"iter"

	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
)

// RedeemWonLand closes the caller's won auction, fixes the cashback and
// hands over the deed.
func (e *Engine) RedeemWonLand(ctx context.Context, caller ledger.Address, id ledger.LandID) error {
	_, err := e.redeemWonLand(ctx, caller, id)
	return err
}

func (e *Engine) redeemWonLand(ctx context.Context, caller ledger.Address, id ledger.LandID) (ir.Object, error) {
	args := ir.Object{"land_id": ir.String(id.String())}

	return e.execute(ctx, OpRedeemWonLand, caller, id, args, func(oc *opContext) error {
		if err := checkLandID(id); err != nil {
			return err
		}
		land, exists, err := oc.tx.Land(oc.ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", OpRedeemWonLand, err)
		}
		if !exists || land.Owner != caller {
			return failLand(ErrNotWinner, id)
		}
		if !land.AuctionEnded(oc.now) {
			return failLand(ErrAuctionNotEnded, id)
		}
		if land.State != ledger.InAuction {
			return failLand(ErrAlreadyRedeemed, id)
		}

		land.State = ledger.Redeemed
		land.RedeemedAt = oc.now
		land.CashbackAmount = ledger.Cashback(land.Paid)
		if err := oc.tx.PutLand(oc.ctx, land); err != nil {
			return fmt.Errorf("%s: %w", OpRedeemWonLand, err)
		}
		if err := oc.tx.RemoveActive(oc.ctx, id); err != nil {
			return fmt.Errorf("%s: %w", OpRedeemWonLand, err)
		}

		oc.interact(func(ctx context.Context) error {
			return e.cfg.Land.MintOrTransfer(ctx, caller, id)
		})

		oc.result = ir.Object{
			"land_id":         ir.String(id.String()),
			"owner":           ir.String(caller),
			"cashback_amount": ir.String(ledger.FormatAmount(land.CashbackAmount)),
			"cashback_vests":  ir.Int(land.CashbackVestsAt().UnixNano()),
		}
		return nil
	})
}

// RedeemCashback pays the owner of a redeemed parcel its cashback, once,
// after the vesting period.
func (e *Engine) RedeemCashback(ctx context.Context, caller ledger.Address, id ledger.LandID) error {
	_, err := e.redeemCashback(ctx, caller, id)
	return err
}

func (e *Engine) redeemCashback(ctx context.Context, caller ledger.Address, id ledger.LandID) (ir.Object, error) {
	args := ir.Object{"land_id": ir.String(id.String())}

	return e.execute(ctx, OpRedeemCashback, caller, id, args, func(oc *opContext) error {
		if err := checkLandID(id); err != nil {
			return err
		}
		land, exists, err := oc.tx.Land(oc.ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", OpRedeemCashback, err)
		}
		if !exists || land.State != ledger.Redeemed {
			return failLand(ErrNotRedeemed, id)
		}
		if land.Owner != caller {
			return failLand(ErrNotOwner, id)
		}
		if oc.now.Before(land.CashbackVestsAt()) {
			return failLand(ErrVestingNotElapsed, id)
		}
		if land.CashbackRedeemed {
			return failLand(ErrAlreadyRedeemed, id)
		}

		land.CashbackRedeemed = true
		if err := oc.tx.PutLand(oc.ctx, land); err != nil {
			return fmt.Errorf("%s: %w", OpRedeemCashback, err)
		}

		amount := land.CashbackAmount
		oc.interact(func(ctx context.Context) error {
			return e.cfg.Token.Transfer(ctx, caller, amount)
		})

		oc.result = ir.Object{
			"land_id": ir.String(id.String()),
			"amount":  ir.String(ledger.FormatAmount(amount)),
		}
		return nil
	})
}

// CheckWonLands yields the caller's parcels whose auction has ended,
// redeemed or not, ordered by id. The clock is read when the sequence is
// ranged.
func (e *Engine) CheckWonLands(ctx context.Context, caller ledger.Address) iter.Seq2[ledger.Land, error] {
	return func(yield func(ledger.Land, error) bool) {
		for land, err := range e.store.LandsWonBy(ctx, caller, e.clock.Now()) {
			if !yield(land, err) {
				return
			}
		}
	}
}
