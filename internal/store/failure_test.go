package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/roach88/landledger/internal/ir"
)

var errDisk = errors.New("disk I/O error")

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestWriteJournal_InvocationInsertFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invocations").WillReturnError(errDisk)
	mock.ExpectRollback()

	inv, comp := createTestEntry("tx-1", "Pause", ir.Object{}, 1)
	err := s.WriteJournal(context.Background(), inv, comp)
	if !errors.Is(err, errDisk) {
		t.Fatalf("WriteJournal() error = %v, want %v", err, errDisk)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWriteJournal_CompletionInsertFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invocations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO completions").WillReturnError(errDisk)
	mock.ExpectRollback()

	inv, comp := createTestEntry("tx-1", "Pause", ir.Object{}, 1)
	if err := s.WriteJournal(context.Background(), inv, comp); !errors.Is(err, errDisk) {
		t.Fatalf("WriteJournal() error = %v, want %v", err, errDisk)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWriteJournal_CommitFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO invocations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO completions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errDisk)

	inv, comp := createTestEntry("tx-1", "Pause", ir.Object{}, 1)
	if err := s.WriteJournal(context.Background(), inv, comp); !errors.Is(err, errDisk) {
		t.Fatalf("WriteJournal() error = %v, want %v", err, errDisk)
	}
}

func TestBegin_Fails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin().WillReturnError(errDisk)

	if _, err := s.Begin(context.Background()); !errors.Is(err, errDisk) {
		t.Fatalf("Begin() error = %v, want %v", err, errDisk)
	}
}

func TestPutLand_ExecFails(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO lands").WillReturnError(errDisk)
	mock.ExpectRollback()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	if err := tx.PutLand(ctx, testLand(1, "alice")); !errors.Is(err, errDisk) {
		t.Errorf("PutLand() error = %v, want %v", err, errDisk)
	}
	if err := tx.Rollback(); err != nil {
		t.Errorf("Rollback() failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestActiveLands_QueryFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT land_id FROM active_auctions").WillReturnError(errDisk)

	if _, err := s.ActiveLands(context.Background()); !errors.Is(err, errDisk) {
		t.Fatalf("ActiveLands() error = %v, want %v", err, errDisk)
	}
}

func TestLandsWonBy_QueryErrorIsYielded(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM lands").WillReturnError(errDisk)

	var got error
	for _, err := range s.LandsWonBy(context.Background(), "alice", t0) {
		got = err
	}
	if !errors.Is(got, errDisk) {
		t.Fatalf("LandsWonBy() yielded %v, want %v", got, errDisk)
	}
}

func TestLand_CorruptAmount(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "owner", "paid", "state", "auction_end", "redeemed_at",
		"cashback_amount", "cashback_redeemed", "on_sale", "sell_price"}).
		AddRow(1, "alice", "not-a-number", 1, 0, 0, "0", 0, 0, "0")
	mock.ExpectQuery("SELECT (.+) FROM lands WHERE id").WillReturnRows(rows)

	if _, _, err := s.Land(context.Background(), 1); err == nil {
		t.Fatal("Land() accepted a corrupt amount")
	}
}
