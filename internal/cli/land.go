package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/landledger/internal/ledger"
	"github.com/roach88/landledger/internal/store"
)

// LandOptions holds flags for the land command.
type LandOptions struct {
	*RootOptions
	Database string
}

// LandReport is the stored record of one parcel and its sale log.
type LandReport struct {
	ID               string      `json:"id"`
	Owner            string      `json:"owner"`
	Paid             string      `json:"paid"`
	State            string      `json:"state"`
	AuctionEnd       time.Time   `json:"auction_end"`
	RedeemedAt       time.Time   `json:"redeemed_at,omitzero"`
	CashbackAmount   string      `json:"cashback_amount"`
	CashbackRedeemed bool        `json:"cashback_redeemed"`
	OnSale           bool        `json:"on_sale"`
	SellPrice        string      `json:"sell_price"`
	Sales            []SaleEntry `json:"sales"`
}

// SaleEntry is one sale-log entry of a parcel.
type SaleEntry struct {
	Seq    int64     `json:"seq"`
	OnSale bool      `json:"on_sale"`
	Price  string    `json:"price"`
	Caller string    `json:"caller"`
	At     time.Time `json:"at"`
}

func newLandReport(l ledger.Land, events []ledger.SaleEvent) LandReport {
	r := LandReport{
		ID:               l.ID.String(),
		Owner:            l.Owner.String(),
		Paid:             ledger.FormatAmount(l.Paid),
		State:            l.State.String(),
		AuctionEnd:       l.AuctionEnd,
		RedeemedAt:       l.RedeemedAt,
		CashbackAmount:   ledger.FormatAmount(l.CashbackAmount),
		CashbackRedeemed: l.CashbackRedeemed,
		OnSale:           l.OnSale,
		SellPrice:        ledger.FormatAmount(l.SellPrice),
		Sales:            make([]SaleEntry, 0, len(events)),
	}
	for _, ev := range events {
		r.Sales = append(r.Sales, SaleEntry{
			Seq:    ev.Seq,
			OnSale: ev.OnSale,
			Price:  ledger.FormatAmount(ev.Price),
			Caller: ev.Caller.String(),
			At:     ev.At,
		})
	}
	return r
}

func (r LandReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Land %s\n", r.ID)
	fmt.Fprintf(&b, "  State:       %s\n", r.State)
	fmt.Fprintf(&b, "  Owner:       %s\n", r.Owner)
	fmt.Fprintf(&b, "  Paid:        %s\n", r.Paid)
	fmt.Fprintf(&b, "  Auction end: %s\n", r.AuctionEnd.Format(time.RFC3339))
	if !r.RedeemedAt.IsZero() {
		fmt.Fprintf(&b, "  Redeemed at: %s\n", r.RedeemedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "  Cashback:    %s (redeemed: %v)\n", r.CashbackAmount, r.CashbackRedeemed)
	}
	if r.OnSale {
		fmt.Fprintf(&b, "  On sale at:  %s\n", r.SellPrice)
	}
	fmt.Fprintf(&b, "  Sale log:    %d entr(ies)", len(r.Sales))
	for _, s := range r.Sales {
		fmt.Fprintf(&b, "\n    [%d] on_sale=%v price=%s by %s", s.Seq, s.OnSale, s.Price, s.Caller)
	}
	return b.String()
}

// NewLandCommand creates the land command.
func NewLandCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LandOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "land <id>",
		Short: "Show a parcel's stored record",
		Long: `Read one parcel's record and sale log straight from the database.

Exit codes:
  0 - Parcel found
  1 - No record for the parcel
  2 - Command error (invalid id, database not found)

Examples:
  landledger land --db ./landledger.db 631272015026578401
  landledger land --db ./landledger.db 42 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runLand(opts *LandOptions, arg string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	id, err := ledger.ParseLandID(arg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid land id", err)
	}
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	land, ok, err := st.Land(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read land", err)
	}
	if !ok {
		if outErr := out.Error(ErrCodeNotFound, fmt.Sprintf("no record for land %s", id), nil); outErr != nil {
			return outErr
		}
		return NewExitError(ExitFailure, fmt.Sprintf("land %s not found", id))
	}

	events, err := st.SaleEventsForLand(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sale log", err)
	}
	return out.Success(newLandReport(land, events))
}
