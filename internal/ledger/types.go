package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Address identifies a principal: a bidder, a land owner, the engine itself
// or a token contract.
type Address string

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == "" }

func (a Address) String() string { return string(a) }

// LandID identifies a parcel.
type LandID uint64

func (id LandID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseLandID parses a decimal parcel id.
func ParseLandID(s string) (LandID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid land id %q: %w", s, err)
	}
	return LandID(n), nil
}

// OfferID identifies an offer. Ids are assigned sequentially from 1.
type OfferID uint64

func (id OfferID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseOfferID parses a decimal offer id.
func ParseOfferID(s string) (OfferID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offer id %q: %w", s, err)
	}
	return OfferID(n), nil
}

// LandState is the lifecycle stage of a parcel.
type LandState int

const (
	NoAuction LandState = iota
	InAuction
	Redeemed
)

var landStateNames = map[LandState]string{
	NoAuction: "NoAuction",
	InAuction: "InAuction",
	Redeemed:  "Redeemed",
}

func (s LandState) String() string {
	if name, ok := landStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("LandState(%d)", int(s))
}

// ParseLandState is the inverse of LandState.String.
func ParseLandState(s string) (LandState, error) {
	for state, name := range landStateNames {
		if name == s {
			return state, nil
		}
	}
	return NoAuction, fmt.Errorf("unknown land state %q", s)
}

// OfferStatus is the resolution of an offer.
type OfferStatus int

const (
	OfferPending OfferStatus = iota
	OfferAccepted
	OfferRejected
)

var offerStatusNames = map[OfferStatus]string{
	OfferPending:  "Pending",
	OfferAccepted: "Accepted",
	OfferRejected: "Rejected",
}

func (s OfferStatus) String() string {
	if name, ok := offerStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("OfferStatus(%d)", int(s))
}

// ParseOfferStatus is the inverse of OfferStatus.String.
func ParseOfferStatus(s string) (OfferStatus, error) {
	for status, name := range offerStatusNames {
		if name == s {
			return status, nil
		}
	}
	return OfferPending, fmt.Errorf("unknown offer status %q", s)
}

// Land is the ledger record for one parcel.
// A record is created on the parcel's first bid and never deleted.
type Land struct {
	ID               LandID          `json:"id"`
	Owner            Address         `json:"owner"`
	Paid             decimal.Decimal `json:"paid"`
	State            LandState       `json:"state"`
	AuctionEnd       time.Time       `json:"auction_end"`
	RedeemedAt       time.Time       `json:"redeemed_at"`
	CashbackAmount   decimal.Decimal `json:"cashback_amount"`
	CashbackRedeemed bool            `json:"cashback_redeemed"`
	OnSale           bool            `json:"on_sale"`
	SellPrice        decimal.Decimal `json:"sell_price"`
}

// AuctionEnded reports whether bidding on the parcel is closed at now.
func (l Land) AuctionEnded(now time.Time) bool {
	return !now.Before(l.AuctionEnd)
}

// CashbackVestsAt is the earliest instant the cashback may be claimed.
// Only meaningful once the parcel is Redeemed.
func (l Land) CashbackVestsAt() time.Time {
	return l.RedeemedAt.Add(CashbackVesting)
}

// Offer is a time-limited private purchase proposal on a redeemed parcel.
type Offer struct {
	ID         OfferID         `json:"id"`
	LandID     LandID          `json:"land_id"`
	Buyer      Address         `json:"buyer"`
	Amount     decimal.Decimal `json:"amount"`
	Expiration time.Time       `json:"expiration"`
	Status     OfferStatus     `json:"status"`
}

// Expired reports whether the offer can no longer be answered at now.
func (o Offer) Expired(now time.Time) bool {
	return !now.Before(o.Expiration)
}

// SaleEvent is one entry of the append-only sale log. Every listing toggle,
// on or off, produces an entry.
type SaleEvent struct {
	Seq    int64           `json:"seq"`
	LandID LandID          `json:"land_id"`
	OnSale bool            `json:"on_sale"`
	Price  decimal.Decimal `json:"price"`
	Caller Address         `json:"caller"`
	At     time.Time       `json:"at"`
}
