package engine

// # Replay
//
// Every journaled operation records its inputs: operation name, caller,
// args, the ledger clock reading (At) and the transaction id. Replay feeds
// those inputs, in seq order, to a target engine built with the same
// configuration and fresh collaborators, with the clock pinned to each
// recorded At and the recorded transaction id reused.
//
// Since every operation is a pure function of ledger state, collaborator
// state, inputs and the clock reading, the target must reproduce each
// recorded outcome and result. Any difference is reported as a divergence.
//
// When the target store starts empty, sequence numbers line up too and the
// target journal is byte-identical to the source: invocation and completion
// ids match.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
	"github.com/roach88/landledger/internal/store"
)

// replayKey carries recorded inputs through the context of a replayed
// operation.
type replayKey struct{}

type replayInput struct {
	at   time.Time
	txID string
}

func withReplayInput(ctx context.Context, at time.Time, txID string) context.Context {
	return context.WithValue(ctx, replayKey{}, replayInput{at: at, txID: txID})
}

func replayInputFrom(ctx context.Context) (replayInput, bool) {
	in, ok := ctx.Value(replayKey{}).(replayInput)
	return in, ok
}

// Divergence is a journaled operation whose replay produced a different
// outcome or result.
type Divergence struct {
	Seq         int64  `json:"seq"`
	Operation   string `json:"operation"`
	TxID        string `json:"tx_id"`
	WantOutcome string `json:"want_outcome"`
	GotOutcome  string `json:"got_outcome"`
	WantResult  string `json:"want_result"`
	GotResult   string `json:"got_result"`
}

func (d Divergence) String() string {
	if d.WantOutcome != d.GotOutcome {
		return fmt.Sprintf("seq %d %s: outcome %s, want %s", d.Seq, d.Operation, d.GotOutcome, d.WantOutcome)
	}
	return fmt.Sprintf("seq %d %s: result %s, want %s", d.Seq, d.Operation, d.GotResult, d.WantResult)
}

// ReplayReport summarizes a replay.
type ReplayReport struct {
	Replayed    int          `json:"replayed"`
	Divergences []Divergence `json:"divergences"`
}

// OK reports whether every operation reproduced its recorded completion.
func (r ReplayReport) OK() bool { return len(r.Divergences) == 0 }

// Replay re-executes journal on target and compares each completion with
// the recorded one. An error is returned only when replay cannot proceed;
// differences are reported in the ReplayReport.
func Replay(ctx context.Context, journal []store.Entry, target *Engine) (ReplayReport, error) {
	report := ReplayReport{Divergences: []Divergence{}}

	for _, entry := range journal {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		inv, want := entry.Invocation, entry.Completion

		rctx := withReplayInput(ctx, time.Unix(0, inv.At).UTC(), inv.TxID)
		result, err := target.Dispatch(rctx, inv.Operation, ledger.Address(inv.Caller), inv.Args)

		got := ir.OutcomeSuccess
		if err != nil {
			got = outcomeOf(err)
			result = ir.Object{}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
		}
		report.Replayed++

		wantResult, err := ir.MarshalCanonical(want.Result)
		if err != nil {
			return report, fmt.Errorf("replay seq %d: recorded result: %w", inv.Seq, err)
		}
		gotResult, err := ir.MarshalCanonical(result)
		if err != nil {
			return report, fmt.Errorf("replay seq %d: result: %w", inv.Seq, err)
		}

		if got != want.Outcome || !bytes.Equal(gotResult, wantResult) {
			report.Divergences = append(report.Divergences, Divergence{
				Seq:         inv.Seq,
				Operation:   inv.Operation,
				TxID:        inv.TxID,
				WantOutcome: want.Outcome,
				GotOutcome:  got,
				WantResult:  string(wantResult),
				GotResult:   string(gotResult),
			})
			target.logger.Warn("replay divergence",
				"seq", inv.Seq,
				"op", inv.Operation,
				"want", want.Outcome,
				"got", got)
		}
	}
	return report, nil
}
