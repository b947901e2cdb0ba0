package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
)

// Entry pairs a journaled invocation with its completion.
type Entry struct {
	Invocation ir.Invocation `json:"invocation"`
	Completion ir.Completion `json:"completion"`
}

// WriteJournal records an invocation and its completion outside of any
// ledger transaction. Used for operations that failed and rolled back.
func (s *Store) WriteJournal(ctx context.Context, inv ir.Invocation, comp ir.Completion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write journal: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := writeJournal(ctx, tx, inv, comp); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write journal: commit: %w", err)
	}
	return nil
}

// writeJournal uses ON CONFLICT DO NOTHING for idempotency - rewriting the
// same content-addressed records is silently ignored.
func writeJournal(ctx context.Context, q querier, inv ir.Invocation, comp ir.Completion) error {
	argsJSON, err := marshalObject(inv.Args)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}
	resultJSON, err := marshalObject(comp.Result)
	if err != nil {
		return fmt.Errorf("write completion: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO invocations
		(id, tx_id, operation, caller, args, at, seq, engine_version, journal_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		inv.ID,
		inv.TxID,
		inv.Operation,
		inv.Caller,
		argsJSON,
		inv.At,
		inv.Seq,
		inv.EngineVersion,
		inv.JournalVersion,
	)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO completions
		(id, invocation_id, outcome, message, result, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		comp.ID,
		comp.InvocationID,
		comp.Outcome,
		comp.Message,
		resultJSON,
		comp.Seq,
	)
	if err != nil {
		return fmt.Errorf("write completion: %w", err)
	}
	return nil
}

const journalQuery = `
	SELECT i.id, i.tx_id, i.operation, i.caller, i.args, i.at, i.seq, i.engine_version, i.journal_version,
	       c.id, c.invocation_id, c.outcome, c.message, c.result, c.seq
	FROM invocations i
	JOIN completions c ON c.invocation_id = i.id
`

// ReadJournal returns every journal entry in seq order.
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ReadJournal(ctx context.Context) ([]Entry, error) {
	return s.readEntries(ctx, journalQuery+`ORDER BY i.seq ASC, i.id COLLATE BINARY ASC`)
}

// ReadLandJournal returns the journal entries whose arguments name the
// parcel, in seq order.
func (s *Store) ReadLandJournal(ctx context.Context, id ledger.LandID) ([]Entry, error) {
	return s.readEntries(ctx, journalQuery+`
		WHERE json_extract(i.args, '$.land_id') = ?
		ORDER BY i.seq ASC, i.id COLLATE BINARY ASC
	`, id.String())
}

// ReadInvocation retrieves a single invocation by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadInvocation(ctx context.Context, id string) (ir.Invocation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tx_id, operation, caller, args, at, seq, engine_version, journal_version
		FROM invocations
		WHERE id = ?
	`, id)

	var inv ir.Invocation
	var argsJSON string
	if err := row.Scan(&inv.ID, &inv.TxID, &inv.Operation, &inv.Caller, &argsJSON,
		&inv.At, &inv.Seq, &inv.EngineVersion, &inv.JournalVersion); err != nil {
		return ir.Invocation{}, err
	}
	args, err := unmarshalObject(argsJSON)
	if err != nil {
		return ir.Invocation{}, err
	}
	inv.Args = args
	return inv, nil
}

// JournalCount returns the number of journaled operations.
func (s *Store) JournalCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invocations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}

// MaxSeq returns the highest seq recorded in the journal, or 0.
// The engine resumes its clock from here after a restart.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM invocations
			UNION ALL
			SELECT seq FROM completions
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

func (s *Store) readEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                    Entry
			argsJSON, resultJSON string
		)
		inv, comp := &e.Invocation, &e.Completion
		if err := rows.Scan(
			&inv.ID, &inv.TxID, &inv.Operation, &inv.Caller, &argsJSON, &inv.At, &inv.Seq,
			&inv.EngineVersion, &inv.JournalVersion,
			&comp.ID, &comp.InvocationID, &comp.Outcome, &comp.Message, &resultJSON, &comp.Seq,
		); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if inv.Args, err = unmarshalObject(argsJSON); err != nil {
			return nil, err
		}
		if comp.Result, err = unmarshalObject(resultJSON); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}
