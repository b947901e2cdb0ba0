package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
)

// Operation names as recorded in the journal.
const (
	OpParticipateInAuction    = "ParticipateInAuction"
	OpParticipateInAuctionFor = "ParticipateInAuctionFor"
	OpRedeemWonLand           = "RedeemWonLand"
	OpRedeemCashback          = "RedeemCashback"
	OpPutLandOnSale           = "PutLandOnSale"
	OpBuyLand                 = "BuyLand"
	OpOfferToBuyLand          = "OfferToBuyLand"
	OpRespondToBuyOffer       = "RespondToBuyOffer"
	OpPause                   = "Pause"
	OpUnpause                 = "Unpause"
	OpExtractTokens           = "ExtractTokens"
	OpSetApproved             = "SetApproved"
	OpSetAuctionLandDuration  = "SetAuctionLandDuration"
	OpTransferOwnership       = "TransferOwnership"
)

// ParticipateInAuction places a bid of amount on the parcel. The first bid
// opens the auction; later bids must exceed the standing one, whose bidder
// is refunded.
func (e *Engine) ParticipateInAuction(ctx context.Context, caller ledger.Address, id ledger.LandID, amount decimal.Decimal) error {
	_, err := e.participate(ctx, OpParticipateInAuction, caller, caller, id, amount)
	return err
}

// ParticipateInAuctionFor places a bid on behalf of bidder. Only the
// configured delegate may call it.
func (e *Engine) ParticipateInAuctionFor(ctx context.Context, caller, bidder ledger.Address, id ledger.LandID, amount decimal.Decimal) error {
	_, err := e.participate(ctx, OpParticipateInAuctionFor, caller, bidder, id, amount)
	return err
}

func (e *Engine) participate(ctx context.Context, op string, caller, bidder ledger.Address, id ledger.LandID, amount decimal.Decimal) (ir.Object, error) {
	args := ir.Object{
		"land_id": ir.String(id.String()),
		"amount":  ir.String(ledger.FormatAmount(amount)),
	}
	if op == OpParticipateInAuctionFor {
		args["bidder"] = ir.String(bidder)
	}

	return e.execute(ctx, op, caller, id, args, func(oc *opContext) error {
		if op == OpParticipateInAuctionFor {
			if delegate := e.Delegate(); delegate.IsZero() || caller != delegate {
				return failLand(ErrNotDelegate, id)
			}
		}
		if e.Paused() {
			return failLand(ErrPaused, id)
		}
		if err := checkLandID(id); err != nil {
			return err
		}
		if err := checkAmount("amount", id, amount); err != nil {
			return err
		}
		if !e.cfg.Epochs.Released(id, oc.now) {
			return failLand(ErrEpoch, id)
		}

		land, exists, err := oc.tx.Land(oc.ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if exists {
			if land.State != ledger.InAuction || land.AuctionEnded(oc.now) {
				return failLand(ErrAuctionEnded, id)
			}
			if !amount.GreaterThan(land.Paid) {
				return failLand(ErrInsufficientBid, id)
			}
		} else if amount.LessThan(e.cfg.InitialLandBid) {
			return failLand(ErrInsufficientBid, id)
		}
		if err := e.requireAllowance(oc, op, id, bidder, amount); err != nil {
			return err
		}

		prior, priorPaid := land.Owner, land.Paid
		if !exists {
			end := oc.now.Add(e.AuctionDuration())
			if !ledger.InstantInRange(end) {
				return newError(CodeInvalidArgument, id, "auction end %s out of range", end.Format(time.RFC3339))
			}
			land = ledger.Land{
				ID:         id,
				State:      ledger.InAuction,
				AuctionEnd: end,
			}
		}
		land.Owner = bidder
		land.Paid = amount
		if err := oc.tx.PutLand(oc.ctx, land); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		// The active set references lands, so the record must exist first.
		if !exists {
			if err := oc.tx.AddActive(oc.ctx, id, oc.seq); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}

		oc.interact(func(ctx context.Context) error {
			return e.cfg.Token.TransferFrom(ctx, bidder, e.cfg.Address, amount)
		})
		if exists {
			oc.interact(func(ctx context.Context) error {
				return e.cfg.Token.Transfer(ctx, prior, priorPaid)
			})
		}

		oc.result = ir.Object{
			"land_id":     ir.String(id.String()),
			"owner":       ir.String(bidder),
			"paid":        ir.String(ledger.FormatAmount(amount)),
			"auction_end": ir.Int(land.AuctionEnd.UnixNano()),
		}
		return nil
	})
}

// GetActiveLands returns the parcels under auction, in the order their
// auctions opened.
func (e *Engine) GetActiveLands(ctx context.Context) ([]ledger.LandID, error) {
	ids, err := e.store.ActiveLands(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active lands: %w", err)
	}
	return ids, nil
}
