package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/roach88/landledger/internal/ledger"
)

const landColumns = `id, owner, paid, state, auction_end, redeemed_at, cashback_amount, cashback_redeemed, on_sale, sell_price`

const offerColumns = `id, land_id, buyer, amount, expiration, status`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Land returns the committed parcel record. ok is false if no bid was ever
// placed on it.
func (s *Store) Land(ctx context.Context, id ledger.LandID) (ledger.Land, bool, error) {
	return readLand(ctx, s.db, id)
}

// Offer returns a committed offer. ok is false if it does not exist.
func (s *Store) Offer(ctx context.Context, id ledger.OfferID) (ledger.Offer, bool, error) {
	return readOffer(ctx, s.db, id)
}

// ActiveLands returns parcels currently in auction, in first-bid order.
// Returns an empty slice (not nil) when no auction is running.
func (s *Store) ActiveLands(ctx context.Context) ([]ledger.LandID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT land_id FROM active_auctions
		ORDER BY seq ASC, land_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query active lands: %w", err)
	}
	defer rows.Close()

	ids := []ledger.LandID{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan active land: %w", err)
		}
		ids = append(ids, ledger.LandID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active lands: %w", err)
	}
	return ids, nil
}

// SaleEvents returns the full sale log in append order.
func (s *Store) SaleEvents(ctx context.Context) ([]ledger.SaleEvent, error) {
	return s.saleEvents(ctx, `
		SELECT seq, land_id, on_sale, price, caller, at FROM sale_events
		ORDER BY id ASC
	`)
}

// SaleEventsForLand returns the sale log entries of one parcel.
func (s *Store) SaleEventsForLand(ctx context.Context, id ledger.LandID) ([]ledger.SaleEvent, error) {
	key, err := landKey(id)
	if err != nil {
		return nil, err
	}
	return s.saleEvents(ctx, `
		SELECT seq, land_id, on_sale, price, caller, at FROM sale_events
		WHERE land_id = ?
		ORDER BY id ASC
	`, key)
}

func (s *Store) saleEvents(ctx context.Context, query string, args ...any) ([]ledger.SaleEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sale events: %w", err)
	}
	defer rows.Close()

	events := []ledger.SaleEvent{}
	for rows.Next() {
		var (
			ev     ledger.SaleEvent
			landID int64
			onSale int
			price  string
			caller string
			at     int64
		)
		if err := rows.Scan(&ev.Seq, &landID, &onSale, &price, &caller, &at); err != nil {
			return nil, fmt.Errorf("scan sale event: %w", err)
		}
		ev.LandID = ledger.LandID(landID)
		ev.OnSale = onSale != 0
		ev.Caller = ledger.Address(caller)
		ev.At = fromNanos(at)
		if ev.Price, err = unmarshalAmount(price); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale events: %w", err)
	}
	return events, nil
}

// OffersOnOwnedLands yields every offer placed on a parcel currently owned
// by owner, ordered by offer id. The query runs when the sequence is ranged
// and again on every new range.
func (s *Store) OffersOnOwnedLands(ctx context.Context, owner ledger.Address) iter.Seq2[ledger.Offer, error] {
	return func(yield func(ledger.Offer, error) bool) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT o.id, o.land_id, o.buyer, o.amount, o.expiration, o.status
			FROM offers o
			JOIN lands l ON o.land_id = l.id
			WHERE l.owner = ?
			ORDER BY o.id ASC
		`, string(owner))
		if err != nil {
			yield(ledger.Offer{}, fmt.Errorf("query offers for %s: %w", owner, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			o, err := scanOffer(rows)
			if !yield(o, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(ledger.Offer{}, fmt.Errorf("iterate offers: %w", err))
		}
	}
}

// LandsWonBy yields parcels owned by owner whose auction has ended at now,
// ordered by parcel id. Like OffersOnOwnedLands it queries lazily.
func (s *Store) LandsWonBy(ctx context.Context, owner ledger.Address, now time.Time) iter.Seq2[ledger.Land, error] {
	return func(yield func(ledger.Land, error) bool) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+landColumns+` FROM lands
			WHERE owner = ? AND auction_end <= ?
			ORDER BY id ASC
		`, string(owner), toNanos(now))
		if err != nil {
			yield(ledger.Land{}, fmt.Errorf("query lands for %s: %w", owner, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			land, err := scanLand(rows)
			if !yield(land, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(ledger.Land{}, fmt.Errorf("iterate lands: %w", err))
		}
	}
}

// Settings returns all administrative settings.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	settings := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return settings, nil
}

func readLand(ctx context.Context, q querier, id ledger.LandID) (ledger.Land, bool, error) {
	key, err := landKey(id)
	if err != nil {
		return ledger.Land{}, false, err
	}
	row := q.QueryRowContext(ctx, `SELECT `+landColumns+` FROM lands WHERE id = ?`, key)
	land, err := scanLand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Land{}, false, nil
	}
	if err != nil {
		return ledger.Land{}, false, fmt.Errorf("read land %s: %w", id, err)
	}
	return land, true, nil
}

func readOffer(ctx context.Context, q querier, id ledger.OfferID) (ledger.Offer, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = ?`, int64(id))
	o, err := scanOffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Offer{}, false, nil
	}
	if err != nil {
		return ledger.Offer{}, false, fmt.Errorf("read offer %s: %w", id, err)
	}
	return o, true, nil
}

func scanLand(row rowScanner) (ledger.Land, error) {
	var (
		land                             ledger.Land
		id                               int64
		owner, paid, cashback, sellPrice string
		state, cashbackRedeemed, onSale  int
		auctionEnd, redeemedAt           int64
	)
	if err := row.Scan(&id, &owner, &paid, &state, &auctionEnd, &redeemedAt,
		&cashback, &cashbackRedeemed, &onSale, &sellPrice); err != nil {
		return ledger.Land{}, err
	}

	land.ID = ledger.LandID(id)
	land.Owner = ledger.Address(owner)
	land.State = ledger.LandState(state)
	land.AuctionEnd = fromNanos(auctionEnd)
	land.RedeemedAt = fromNanos(redeemedAt)
	land.CashbackRedeemed = cashbackRedeemed != 0
	land.OnSale = onSale != 0

	var err error
	if land.Paid, err = unmarshalAmount(paid); err != nil {
		return ledger.Land{}, err
	}
	if land.CashbackAmount, err = unmarshalAmount(cashback); err != nil {
		return ledger.Land{}, err
	}
	if land.SellPrice, err = unmarshalAmount(sellPrice); err != nil {
		return ledger.Land{}, err
	}
	return land, nil
}

func scanOffer(row rowScanner) (ledger.Offer, error) {
	var (
		o             ledger.Offer
		id, landID    int64
		buyer, amount string
		expiration    int64
		status        int
	)
	if err := row.Scan(&id, &landID, &buyer, &amount, &expiration, &status); err != nil {
		return ledger.Offer{}, err
	}
	o.ID = ledger.OfferID(id)
	o.LandID = ledger.LandID(landID)
	o.Buyer = ledger.Address(buyer)
	o.Expiration = fromNanos(expiration)
	o.Status = ledger.OfferStatus(status)

	var err error
	if o.Amount, err = unmarshalAmount(amount); err != nil {
		return ledger.Offer{}, err
	}
	return o, nil
}
