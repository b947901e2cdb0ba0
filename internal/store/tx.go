package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is one atomic ledger operation. Reads through a Tx observe its own
// uncommitted writes.
type Tx struct {
	tx   *sql.Tx
	done bool
}

// Commit makes every write of the transaction durable.
func (t *Tx) Commit() error {
	if t.done {
		return fmt.Errorf("commit: transaction already finished")
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Safe to call after Commit.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Land returns the parcel record. ok is false if no bid was ever placed.
func (t *Tx) Land(ctx context.Context, id ledger.LandID) (ledger.Land, bool, error) {
	return readLand(ctx, t.tx, id)
}

// PutLand inserts or replaces the parcel record.
func (t *Tx) PutLand(ctx context.Context, land ledger.Land) error {
	key, err := landKey(land.ID)
	if err != nil {
		return fmt.Errorf("put land: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO lands
		(id, owner, paid, state, auction_end, redeemed_at, cashback_amount, cashback_redeemed, on_sale, sell_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			paid = excluded.paid,
			state = excluded.state,
			auction_end = excluded.auction_end,
			redeemed_at = excluded.redeemed_at,
			cashback_amount = excluded.cashback_amount,
			cashback_redeemed = excluded.cashback_redeemed,
			on_sale = excluded.on_sale,
			sell_price = excluded.sell_price
	`,
		key,
		string(land.Owner),
		marshalAmount(land.Paid),
		int(land.State),
		toNanos(land.AuctionEnd),
		toNanos(land.RedeemedAt),
		marshalAmount(land.CashbackAmount),
		boolToInt(land.CashbackRedeemed),
		boolToInt(land.OnSale),
		marshalAmount(land.SellPrice),
	)
	if err != nil {
		return fmt.Errorf("put land %s: %w", land.ID, err)
	}
	return nil
}

// AddActive inserts the parcel into the active-auction set. Re-adding an
// active parcel keeps its original position.
func (t *Tx) AddActive(ctx context.Context, id ledger.LandID, seq int64) error {
	key, err := landKey(id)
	if err != nil {
		return fmt.Errorf("add active: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO active_auctions (land_id, seq) VALUES (?, ?)
		ON CONFLICT(land_id) DO NOTHING
	`, key, seq)
	if err != nil {
		return fmt.Errorf("add active %s: %w", id, err)
	}
	return nil
}

// RemoveActive drops the parcel from the active-auction set.
func (t *Tx) RemoveActive(ctx context.Context, id ledger.LandID) error {
	key, err := landKey(id)
	if err != nil {
		return fmt.Errorf("remove active: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM active_auctions WHERE land_id = ?`, key); err != nil {
		return fmt.Errorf("remove active %s: %w", id, err)
	}
	return nil
}

// AppendSaleEvent adds one entry to the sale log.
func (t *Tx) AppendSaleEvent(ctx context.Context, ev ledger.SaleEvent) error {
	key, err := landKey(ev.LandID)
	if err != nil {
		return fmt.Errorf("append sale event: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO sale_events (seq, land_id, on_sale, price, caller, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.Seq, key, boolToInt(ev.OnSale), marshalAmount(ev.Price), string(ev.Caller), toNanos(ev.At))
	if err != nil {
		return fmt.Errorf("append sale event %s: %w", ev.LandID, err)
	}
	return nil
}

// NextOfferID returns the id the next inserted offer should use.
// Ids start at 1 and are never reused.
func (t *Tx) NextOfferID(ctx context.Context) (ledger.OfferID, error) {
	var maxID int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM offers`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("next offer id: %w", err)
	}
	return ledger.OfferID(maxID + 1), nil
}

// InsertOffer stores a new offer. The id must not exist yet.
func (t *Tx) InsertOffer(ctx context.Context, o ledger.Offer) error {
	key, err := landKey(o.LandID)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO offers (id, land_id, buyer, amount, expiration, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, int64(o.ID), key, string(o.Buyer), marshalAmount(o.Amount), toNanos(o.Expiration), int(o.Status))
	if err != nil {
		return fmt.Errorf("insert offer %s: %w", o.ID, err)
	}
	return nil
}

// Offer returns an offer by id. ok is false if it does not exist.
func (t *Tx) Offer(ctx context.Context, id ledger.OfferID) (ledger.Offer, bool, error) {
	return readOffer(ctx, t.tx, id)
}

// SetOfferStatus resolves an offer.
func (t *Tx) SetOfferStatus(ctx context.Context, id ledger.OfferID, status ledger.OfferStatus) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE offers SET status = ? WHERE id = ?`, int(status), int64(id))
	if err != nil {
		return fmt.Errorf("set offer status %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set offer status %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("set offer status %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// PutSetting stores an administrative setting.
func (t *Tx) PutSetting(ctx context.Context, key, value string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("put setting %q: %w", key, err)
	}
	return nil
}

// WriteJournal records an invocation and its completion as part of the
// transaction.
func (t *Tx) WriteJournal(ctx context.Context, inv ir.Invocation, comp ir.Completion) error {
	return writeJournal(ctx, t.tx, inv, comp)
}
