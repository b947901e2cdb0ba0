package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore opens a fresh database under t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// inTx runs fn in a transaction and commits it.
func inTx(t *testing.T, s *Store, fn func(tx *Tx) error) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		t.Fatalf("tx body failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
}

// testLand is a parcel in auction with a single 10e18 bid.
func testLand(id ledger.LandID, owner ledger.Address) ledger.Land {
	return ledger.Land{
		ID:         id,
		Owner:      owner,
		Paid:       ledger.MustAmount("10e18"),
		State:      ledger.InAuction,
		AuctionEnd: t0.Add(ledger.DefaultAuctionDuration),
	}
}

// createTestEntry builds a journal pair with minimal required fields.
func createTestEntry(txID, operation string, args ir.Object, seq int64) (ir.Invocation, ir.Completion) {
	inv := ir.Invocation{
		TxID:           txID,
		Operation:      operation,
		Caller:         "alice",
		Args:           args,
		At:             t0.UnixNano(),
		Seq:            seq,
		EngineVersion:  ir.EngineVersion,
		JournalVersion: ir.JournalVersion,
	}
	inv.ID = ir.MustInvocationID(inv.TxID, inv.Operation, inv.Caller, inv.Args, inv.At, inv.Seq)
	comp := ir.Completion{
		InvocationID: inv.ID,
		Outcome:      ir.OutcomeSuccess,
		Result:       ir.Object{},
		Seq:          seq + 1,
	}
	comp.ID = ir.MustCompletionID(comp.InvocationID, comp.Outcome, comp.Result, comp.Seq)
	return inv, comp
}
