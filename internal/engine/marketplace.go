package engine

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
)

// LandSale is one entry of the public sale listing.
type LandSale struct {
	LandID ledger.LandID   `json:"land_id"`
	OnSale bool            `json:"on_sale"`
	Price  decimal.Decimal `json:"price"`
}

// PutLandOnSale lists (onSale) or delists the caller's redeemed parcel at
// price. Every call is appended to the sale log.
func (e *Engine) PutLandOnSale(ctx context.Context, caller ledger.Address, id ledger.LandID, price decimal.Decimal, onSale bool) error {
	_, err := e.putLandOnSale(ctx, caller, id, price, onSale)
	return err
}

func (e *Engine) putLandOnSale(ctx context.Context, caller ledger.Address, id ledger.LandID, price decimal.Decimal, onSale bool) (ir.Object, error) {
	args := ir.Object{
		"land_id": ir.String(id.String()),
		"price":   ir.String(ledger.FormatAmount(price)),
		"on_sale": ir.Bool(onSale),
	}

	return e.execute(ctx, OpPutLandOnSale, caller, id, args, func(oc *opContext) error {
		if err := checkLandID(id); err != nil {
			return err
		}
		if err := checkAmount("price", id, price); err != nil {
			return err
		}
		land, exists, err := oc.tx.Land(oc.ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", OpPutLandOnSale, err)
		}
		if !exists || land.State != ledger.Redeemed {
			return failLand(ErrAuctionNotFinished, id)
		}
		holder, err := e.cfg.Land.OwnerOf(oc.ctx, id)
		if err != nil {
			return collaboratorError(OpPutLandOnSale, id, err)
		}
		if holder != caller {
			return failLand(ErrNotOwner, id)
		}
		if onSale {
			if err := e.requireApproval(oc, OpPutLandOnSale, id); err != nil {
				return err
			}
		}

		land.OnSale = onSale
		land.SellPrice = price
		if err := oc.tx.PutLand(oc.ctx, land); err != nil {
			return fmt.Errorf("%s: %w", OpPutLandOnSale, err)
		}
		if err := oc.tx.AppendSaleEvent(oc.ctx, ledger.SaleEvent{
			Seq:    oc.seq,
			LandID: id,
			OnSale: onSale,
			Price:  price,
			Caller: caller,
			At:     oc.now,
		}); err != nil {
			return fmt.Errorf("%s: %w", OpPutLandOnSale, err)
		}

		oc.result = ir.Object{
			"land_id": ir.String(id.String()),
			"on_sale": ir.Bool(onSale),
			"price":   ir.String(ledger.FormatAmount(price)),
		}
		return nil
	})
}

// BuyLand buys a listed parcel at its asking price.
func (e *Engine) BuyLand(ctx context.Context, caller ledger.Address, id ledger.LandID) error {
	_, err := e.buyLand(ctx, caller, id)
	return err
}

func (e *Engine) buyLand(ctx context.Context, caller ledger.Address, id ledger.LandID) (ir.Object, error) {
	args := ir.Object{"land_id": ir.String(id.String())}

	return e.execute(ctx, OpBuyLand, caller, id, args, func(oc *opContext) error {
		if err := checkLandID(id); err != nil {
			return err
		}
		land, exists, err := oc.tx.Land(oc.ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", OpBuyLand, err)
		}
		if !exists || !land.OnSale {
			return failLand(ErrNotOnSale, id)
		}
		if err := e.requireAllowance(oc, OpBuyLand, id, caller, land.SellPrice); err != nil {
			return err
		}
		if err := e.requireApproval(oc, OpBuyLand, id); err != nil {
			return err
		}
		if err := e.requireDeedHolder(oc, OpBuyLand, land, 0); err != nil {
			return err
		}

		return e.transferLand(oc, land, land.Owner, caller, land.SellPrice)
	})
}

// requireDeedHolder fails with NOT_OWNER when the deed has moved away from
// the recorded owner, who is the one paid in a sale.
func (e *Engine) requireDeedHolder(oc *opContext, op string, land ledger.Land, offer ledger.OfferID) error {
	holder, err := e.cfg.Land.OwnerOf(oc.ctx, land.ID)
	if err != nil {
		return collaboratorError(op, land.ID, err)
	}
	if holder == land.Owner {
		return nil
	}
	if offer != 0 {
		return failOffer(ErrNotOwner, land.ID, offer)
	}
	return failLand(ErrNotOwner, land.ID)
}

// transferLand stages a sale of land from seller to buyer at price: the
// record changes hands and is delisted, then payment and deed move.
func (e *Engine) transferLand(oc *opContext, land ledger.Land, seller, buyer ledger.Address, price decimal.Decimal) error {
	land.Owner = buyer
	land.OnSale = false
	if err := oc.tx.PutLand(oc.ctx, land); err != nil {
		return fmt.Errorf("transfer land %s: %w", land.ID, err)
	}

	oc.interact(func(ctx context.Context) error {
		return e.cfg.Token.TransferFrom(ctx, buyer, seller, price)
	})
	oc.interact(func(ctx context.Context) error {
		return e.cfg.Land.TransferFrom(ctx, seller, buyer, land.ID)
	})

	oc.result = ir.Object{
		"land_id": ir.String(land.ID.String()),
		"seller":  ir.String(seller),
		"buyer":   ir.String(buyer),
		"price":   ir.String(ledger.FormatAmount(price)),
	}
	return nil
}

// OfferToBuyLand proposes to buy a parcel for amount until expiration.
func (e *Engine) OfferToBuyLand(ctx context.Context, caller ledger.Address, id ledger.LandID, amount decimal.Decimal, expiration time.Time) (ledger.OfferID, error) {
	result, err := e.offerToBuyLand(ctx, caller, id, amount, expiration)
	if err != nil {
		return 0, err
	}
	return ledger.ParseOfferID(result.Str("offer_id"))
}

func (e *Engine) offerToBuyLand(ctx context.Context, caller ledger.Address, id ledger.LandID, amount decimal.Decimal, expiration time.Time) (ir.Object, error) {
	args := ir.Object{
		"land_id":    ir.String(id.String()),
		"amount":     ir.String(ledger.FormatAmount(amount)),
		"expiration": instantArg(expiration),
	}

	return e.execute(ctx, OpOfferToBuyLand, caller, id, args, func(oc *opContext) error {
		if err := checkLandID(id); err != nil {
			return err
		}
		if err := checkAmount("amount", id, amount); err != nil {
			return err
		}
		land, exists, err := oc.tx.Land(oc.ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", OpOfferToBuyLand, err)
		}
		if !exists {
			return newError(CodeNotFound, id, "land %s not found", id)
		}
		if land.State == ledger.InAuction {
			return failLand(ErrActiveAuction, id)
		}
		if !expiration.After(oc.now) {
			return failLand(ErrInvalidExpiration, id)
		}
		if !ledger.InstantInRange(expiration) {
			return newError(CodeInvalidExpiration, id, "offer expiration %s is out of range", expiration.UTC().Format(time.RFC3339))
		}
		if err := e.requireAllowance(oc, OpOfferToBuyLand, id, caller, amount); err != nil {
			return err
		}

		offerID, err := oc.tx.NextOfferID(oc.ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", OpOfferToBuyLand, err)
		}
		if err := oc.tx.InsertOffer(oc.ctx, ledger.Offer{
			ID:         offerID,
			LandID:     id,
			Buyer:      caller,
			Amount:     amount,
			Expiration: expiration.UTC(),
			Status:     ledger.OfferPending,
		}); err != nil {
			return fmt.Errorf("%s: %w", OpOfferToBuyLand, err)
		}

		oc.result = ir.Object{
			"offer_id": ir.String(offerID.String()),
			"land_id":  ir.String(id.String()),
		}
		return nil
	})
}

// RespondToBuyOffer accepts or rejects a pending offer on the caller's
// parcel. Accepting executes the sale at the offered amount.
func (e *Engine) RespondToBuyOffer(ctx context.Context, caller ledger.Address, offerID ledger.OfferID, accept bool) error {
	_, err := e.respondToBuyOffer(ctx, caller, offerID, accept)
	return err
}

func (e *Engine) respondToBuyOffer(ctx context.Context, caller ledger.Address, offerID ledger.OfferID, accept bool) (ir.Object, error) {
	args := ir.Object{
		"offer_id": ir.String(offerID.String()),
		"accept":   ir.Bool(accept),
	}

	return e.execute(ctx, OpRespondToBuyOffer, caller, 0, args, func(oc *opContext) error {
		offer, exists, err := oc.tx.Offer(oc.ctx, offerID)
		if err != nil {
			return fmt.Errorf("%s: %w", OpRespondToBuyOffer, err)
		}
		if !exists || offer.Status != ledger.OfferPending {
			return offerNotFound(offerID)
		}
		land, _, err := oc.tx.Land(oc.ctx, offer.LandID)
		if err != nil {
			return fmt.Errorf("%s: %w", OpRespondToBuyOffer, err)
		}
		if land.Owner != caller {
			return failOffer(ErrNotOwner, offer.LandID, offerID)
		}
		if offer.Expired(oc.now) {
			return failOffer(ErrExpired, offer.LandID, offerID)
		}
		if land.State == ledger.InAuction {
			return failOffer(ErrActiveAuction, offer.LandID, offerID)
		}

		status := ledger.OfferRejected
		if accept {
			status = ledger.OfferAccepted
			if err := e.requireAllowance(oc, OpRespondToBuyOffer, offer.LandID, offer.Buyer, offer.Amount); err != nil {
				return err
			}
			if err := e.requireApproval(oc, OpRespondToBuyOffer, offer.LandID); err != nil {
				return err
			}
			if err := e.requireDeedHolder(oc, OpRespondToBuyOffer, land, offerID); err != nil {
				return err
			}
			if err := e.transferLand(oc, land, caller, offer.Buyer, offer.Amount); err != nil {
				return err
			}
		}
		if err := oc.tx.SetOfferStatus(oc.ctx, offerID, status); err != nil {
			return fmt.Errorf("%s: %w", OpRespondToBuyOffer, err)
		}

		if len(oc.result) == 0 {
			oc.result = ir.Object{"land_id": ir.String(offer.LandID.String())}
		}
		oc.result["offer_id"] = ir.String(offerID.String())
		oc.result["status"] = ir.String(status.String())
		return nil
	})
}

// CheckMyLandOffer yields the offers placed on parcels the caller currently
// owns, ordered by offer id.
func (e *Engine) CheckMyLandOffer(ctx context.Context, caller ledger.Address) iter.Seq2[ledger.Offer, error] {
	return e.store.OffersOnOwnedLands(ctx, caller)
}

// Land returns the parcel record.
func (e *Engine) Land(ctx context.Context, id ledger.LandID) (ledger.Land, error) {
	if err := checkLandID(id); err != nil {
		return ledger.Land{}, err
	}
	land, ok, err := e.store.Land(ctx, id)
	if err != nil {
		return ledger.Land{}, fmt.Errorf("get land %s: %w", id, err)
	}
	if !ok {
		return ledger.Land{}, newError(CodeNotFound, id, "land %s not found", id)
	}
	return land, nil
}

// Offer returns an offer in any status.
func (e *Engine) Offer(ctx context.Context, id ledger.OfferID) (ledger.Offer, error) {
	offer, ok, err := e.store.Offer(ctx, id)
	if err != nil {
		return ledger.Offer{}, fmt.Errorf("get offer %s: %w", id, err)
	}
	if !ok {
		return ledger.Offer{}, offerNotFound(id)
	}
	return offer, nil
}

// GetLandsOnSaleOrSold returns the sale log as listings, oldest first. A
// parcel appears once per listing change.
func (e *Engine) GetLandsOnSaleOrSold(ctx context.Context) ([]LandSale, error) {
	events, err := e.SaleEvents(ctx)
	if err != nil {
		return nil, err
	}
	sales := make([]LandSale, len(events))
	for i, ev := range events {
		sales[i] = LandSale{LandID: ev.LandID, OnSale: ev.OnSale, Price: ev.Price}
	}
	return sales, nil
}

// SaleEvents returns the full sale log, oldest first.
func (e *Engine) SaleEvents(ctx context.Context) ([]ledger.SaleEvent, error) {
	events, err := e.store.SaleEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("get sale events: %w", err)
	}
	return events, nil
}

func offerNotFound(id ledger.OfferID) *Error {
	err := newError(CodeNotFound, 0, "offer %s not found", id)
	err.OfferID = id
	return err
}
