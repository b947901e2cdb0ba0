package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/landledger/internal/assets"
	"github.com/roach88/landledger/internal/config"
	"github.com/roach88/landledger/internal/engine"
	"github.com/roach88/landledger/internal/ledger"
	"github.com/roach88/landledger/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	EnvFiles []string
	Fund     string
}

// ReplayResult holds the replay outcome.
type ReplayResult struct {
	Journaled   int                 `json:"journaled"`
	Replayed    int                 `json:"replayed"`
	Funded      []ledger.Address    `json:"funded"`
	Divergences []engine.Divergence `json:"divergences"`
	OK          bool                `json:"ok"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify it reproduces",
		Long: `Re-execute every journaled operation, in order, on a fresh in-memory
engine with the recorded clock readings and transaction ids, and report any
operation whose outcome or result differs.

The target engine is configured from LANDLEDGER_* variables like serve.
Reference asset balances are not journaled, so before replay every caller
and delegated bidder is minted --fund tokens and approves the engine, and
deed holders are taken to have approved the engine. Operations that
originally failed for lack of allowance or deed approval therefore show up
as divergences; pass --fund 0 to skip funding.

Exit codes:
  0 - The journal reproduced exactly
  1 - Divergences detected
  2 - Command error (database not found, bad configuration, etc.)

Examples:
  landledger replay --db ./landledger.db
  landledger replay --db ./landledger.db --fund 1e24 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringSliceVar(&opts.EnvFiles, "env-file", nil, "env files to load instead of .env")
	cmd.Flags().StringVar(&opts.Fund, "fund", "1e30", "tokens minted to each journaled caller before replay")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fund, err := ledger.ParseAmount(opts.Fund)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --fund", err)
	}
	cfg, err := config.Load(opts.EnvFiles...)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	journal, err := readJournal(ctx, opts.Database, nil)
	if err != nil {
		return err
	}
	if len(journal) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{Funded: []ledger.Address{}, Divergences: []engine.Divergence{}, OK: true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No operations journaled.")
		return nil
	}

	target, err := store.Open(":memory:")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open replay store", err)
	}
	defer target.Close()

	token := assets.NewToken(cfg.TokenAddress)
	deed := assets.NewDeed(cfg.LandAddress)
	ecfg, err := engineConfig(cfg, token, replayDeed{BoundDeed: deed.Bind(cfg.Address), deed: deed, operator: cfg.Address})
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr(), cfg.LogLevel)
	eng, err := engine.New(ctx, target, ecfg, engine.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start replay engine", err)
	}

	funded, err := fundPayers(token, cfg.Address, journal, fund)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to fund callers", err)
	}

	report, err := engine.Replay(ctx, journal, eng)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay aborted", err)
	}

	result := ReplayResult{
		Journaled:   len(journal),
		Replayed:    report.Replayed,
		Funded:      funded,
		Divergences: report.Divergences,
		OK:          report.OK(),
	}
	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// readJournal returns the journal of an existing database, or the journal
// of one parcel when land is set.
func readJournal(ctx context.Context, path string, land *ledger.LandID) ([]store.Entry, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var journal []store.Entry
	if land != nil {
		journal, err = st.ReadLandJournal(ctx, *land)
	} else {
		journal, err = st.ReadJournal(ctx)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	return journal, nil
}

// fundPayers mints amount to every address that may pay in journal and
// approves spender for it. Returns the funded addresses in first-seen order.
func fundPayers(token *assets.Token, spender ledger.Address, journal []store.Entry, amount decimal.Decimal) ([]ledger.Address, error) {
	funded := []ledger.Address{}
	if amount.IsZero() {
		return funded, nil
	}

	seen := make(map[ledger.Address]bool)
	for _, entry := range journal {
		inv := entry.Invocation
		payers := []ledger.Address{ledger.Address(inv.Caller)}
		if bidder := inv.Args.Str("bidder"); bidder != "" {
			payers = append(payers, ledger.Address(bidder))
		}
		for _, p := range payers {
			if p.IsZero() || p == spender || seen[p] {
				continue
			}
			seen[p] = true
			if err := token.Mint(p, amount); err != nil {
				return nil, err
			}
			if err := token.Approve(p, spender, amount); err != nil {
				return nil, err
			}
			funded = append(funded, p)
		}
	}
	return funded, nil
}

// replayDeed is the reference deed registry used during replay. Deed
// approvals are granted outside the journal, so every holder is taken to
// have approved the operator.
type replayDeed struct {
	*assets.BoundDeed
	deed     *assets.Deed
	operator ledger.Address
}

func (d replayDeed) IsApproved(ctx context.Context, id ledger.LandID) (bool, error) {
	if _, err := d.OwnerOf(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

func (d replayDeed) TransferFrom(ctx context.Context, from, to ledger.Address, id ledger.LandID) error {
	if err := d.deed.Approve(from, d.operator, id); err != nil {
		return err
	}
	return d.BoundDeed.TransferFrom(ctx, from, to, id)
}

func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.OK {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeDivergence,
			Message: fmt.Sprintf("%d divergence(s)", len(result.Divergences)),
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(response); err != nil {
		return err
	}
	if !result.OK {
		return NewExitError(ExitFailure, "replay diverged")
	}
	return nil
}

func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replayed %d of %d journaled operation(s)\n", result.Replayed, result.Journaled)
	if verbose {
		fmt.Fprintf(w, "Funded: %v\n", result.Funded)
	}
	fmt.Fprintln(w)

	for _, d := range result.Divergences {
		fmt.Fprintf(w, "✗ %s\n", d)
		if verbose {
			fmt.Fprintf(w, "  tx: %s\n", d.TxID)
			fmt.Fprintf(w, "  want: %s %s\n", d.WantOutcome, d.WantResult)
			fmt.Fprintf(w, "  got:  %s %s\n", d.GotOutcome, d.GotResult)
		}
	}

	if result.OK {
		fmt.Fprintln(w, "✓ Journal reproduced")
		return nil
	}
	fmt.Fprintf(w, "✗ %d divergence(s)\n", len(result.Divergences))
	return NewExitError(ExitFailure, "replay diverged")
}
