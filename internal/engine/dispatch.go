package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
)

// Dispatch runs the journaled operation op with journal-form args: ids,
// amounts and addresses as strings, flags as booleans, expiration as unix
// nanoseconds or RFC 3339, duration as a Go duration string.
//
// Dispatch is the entry point for replay, scenario files and the HTTP
// transport. Argument errors are INVALID_ARGUMENT failures and are not
// journaled.
func (e *Engine) Dispatch(ctx context.Context, op string, caller ledger.Address, args ir.Object) (ir.Object, error) {
	a := argReader{args: args}

	switch op {
	case OpParticipateInAuction:
		id, amount := a.land("land_id"), a.amount("amount")
		if a.err != nil {
			return nil, a.err
		}
		return e.participate(ctx, op, caller, caller, id, amount)

	case OpParticipateInAuctionFor:
		bidder, id, amount := a.address("bidder"), a.land("land_id"), a.amount("amount")
		if a.err != nil {
			return nil, a.err
		}
		return e.participate(ctx, op, caller, bidder, id, amount)

	case OpRedeemWonLand:
		id := a.land("land_id")
		if a.err != nil {
			return nil, a.err
		}
		return e.redeemWonLand(ctx, caller, id)

	case OpRedeemCashback:
		id := a.land("land_id")
		if a.err != nil {
			return nil, a.err
		}
		return e.redeemCashback(ctx, caller, id)

	case OpPutLandOnSale:
		id, price, onSale := a.land("land_id"), a.amount("price"), a.boolean("on_sale")
		if a.err != nil {
			return nil, a.err
		}
		return e.putLandOnSale(ctx, caller, id, price, onSale)

	case OpBuyLand:
		id := a.land("land_id")
		if a.err != nil {
			return nil, a.err
		}
		return e.buyLand(ctx, caller, id)

	case OpOfferToBuyLand:
		id, amount, exp := a.land("land_id"), a.amount("amount"), a.instant("expiration")
		if a.err != nil {
			return nil, a.err
		}
		return e.offerToBuyLand(ctx, caller, id, amount, exp)

	case OpRespondToBuyOffer:
		offerID, accept := a.offer("offer_id"), a.boolean("accept")
		if a.err != nil {
			return nil, a.err
		}
		return e.respondToBuyOffer(ctx, caller, offerID, accept)

	case OpPause:
		return e.setPaused(ctx, op, caller, true)

	case OpUnpause:
		return e.setPaused(ctx, op, caller, false)

	case OpExtractTokens:
		token, amount := a.address("token"), a.amount("amount")
		if a.err != nil {
			return nil, a.err
		}
		return e.extractTokens(ctx, caller, token, amount)

	case OpSetApproved:
		delegate := a.optionalAddress("delegate")
		if a.err != nil {
			return nil, a.err
		}
		return e.setApproved(ctx, caller, delegate)

	case OpSetAuctionLandDuration:
		d := a.duration("duration")
		if a.err != nil {
			return nil, a.err
		}
		return e.setAuctionLandDuration(ctx, caller, d)

	case OpTransferOwnership:
		newOwner := a.optionalAddress("new_owner")
		if a.err != nil {
			return nil, a.err
		}
		return e.transferOwnership(ctx, caller, newOwner)
	}

	return nil, newError(CodeInvalidArgument, 0, "unknown operation %q", op)
}

// Operations lists every journaled operation name.
func Operations() []string {
	return []string{
		OpParticipateInAuction,
		OpParticipateInAuctionFor,
		OpRedeemWonLand,
		OpRedeemCashback,
		OpPutLandOnSale,
		OpBuyLand,
		OpOfferToBuyLand,
		OpRespondToBuyOffer,
		OpPause,
		OpUnpause,
		OpExtractTokens,
		OpSetApproved,
		OpSetAuctionLandDuration,
		OpTransferOwnership,
	}
}

// argReader decodes journal-form arguments, keeping the first error.
type argReader struct {
	args ir.Object
	err  error
}

func (a *argReader) fail(key, format string, args ...any) {
	if a.err == nil {
		a.err = newError(CodeInvalidArgument, 0, key+": "+format, args...)
	}
}

func (a *argReader) str(key string) (string, bool) {
	v, ok := a.args[key]
	if !ok {
		a.fail(key, "required")
		return "", false
	}
	s, ok := v.(ir.String)
	if !ok {
		a.fail(key, "must be a string, got %T", v)
		return "", false
	}
	return string(s), true
}

func (a *argReader) land(key string) ledger.LandID {
	s, ok := a.str(key)
	if !ok {
		return 0
	}
	id, err := ledger.ParseLandID(s)
	if err != nil {
		a.fail(key, "%v", err)
	}
	return id
}

func (a *argReader) offer(key string) ledger.OfferID {
	s, ok := a.str(key)
	if !ok {
		return 0
	}
	id, err := ledger.ParseOfferID(s)
	if err != nil {
		a.fail(key, "%v", err)
	}
	return id
}

func (a *argReader) amount(key string) decimal.Decimal {
	s, ok := a.str(key)
	if !ok {
		return decimal.Zero
	}
	d, err := ledger.ParseAmount(s)
	if err != nil {
		a.fail(key, "%v", err)
	}
	return d
}

func (a *argReader) address(key string) ledger.Address {
	s, ok := a.str(key)
	if ok && s == "" {
		a.fail(key, "must not be empty")
	}
	return ledger.Address(s)
}

func (a *argReader) optionalAddress(key string) ledger.Address {
	if _, ok := a.args[key]; !ok {
		return ""
	}
	s, _ := a.str(key)
	return ledger.Address(s)
}

func (a *argReader) boolean(key string) bool {
	v, ok := a.args[key]
	if !ok {
		a.fail(key, "required")
		return false
	}
	b, ok := v.(ir.Bool)
	if !ok {
		a.fail(key, "must be a boolean, got %T", v)
		return false
	}
	return bool(b)
}

func (a *argReader) instant(key string) time.Time {
	switch v := a.args[key].(type) {
	case ir.Int:
		return time.Unix(0, int64(v)).UTC()
	case ir.String:
		t, err := time.Parse(time.RFC3339Nano, string(v))
		if err != nil {
			a.fail(key, "%v", err)
		}
		return t.UTC()
	case nil:
		a.fail(key, "required")
	default:
		a.fail(key, "must be unix nanoseconds or RFC 3339, got %T", v)
	}
	return time.Time{}
}

// instantArg records t as unix nanoseconds, or as RFC 3339 text when it has
// no nanosecond form. instant reads both back.
func instantArg(t time.Time) ir.Value {
	if ledger.InstantInRange(t) {
		return ir.Int(t.UnixNano())
	}
	return ir.String(t.UTC().Format(time.RFC3339Nano))
}

func (a *argReader) duration(key string) time.Duration {
	s, ok := a.str(key)
	if !ok {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		a.fail(key, "%v", err)
	}
	return d
}
