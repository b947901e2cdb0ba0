package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/landledger/internal/epoch"
	"github.com/roach88/landledger/internal/ledger"
)

// EpochOptions holds flags for the epoch validate command.
type EpochOptions struct {
	*RootOptions
	Land string // optional - report whether this parcel is released
	At   string // RFC 3339 instant for --land, default now
}

// EpochSummary describes a valid schedule.
type EpochSummary struct {
	File     string        `json:"file"`
	Epochs   []epoch.Epoch `json:"epochs"`
	Land     string        `json:"land,omitempty"`
	At       string        `json:"at,omitempty"`
	Released *bool         `json:"released,omitempty"`
	Current  string        `json:"current,omitempty"`
}

func (s EpochSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ %s: %d epoch(s)\n", s.File, len(s.Epochs))
	for _, ep := range s.Epochs {
		ranges := make([]string, len(ep.Ranges))
		for i, r := range ep.Ranges {
			ranges[i] = fmt.Sprintf("%s..%s", r.From, r.To)
		}
		fmt.Fprintf(&b, "  %s from %s: %s\n", ep.Name, ep.Start.Format(time.RFC3339), strings.Join(ranges, ", "))
	}
	if s.Released != nil {
		verdict := "not released"
		if *s.Released {
			verdict = "released"
		}
		fmt.Fprintf(&b, "land %s at %s: %s", s.Land, s.At, verdict)
		if s.Current != "" {
			fmt.Fprintf(&b, " (current epoch %s)", s.Current)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewEpochCommand creates the epoch command group.
func NewEpochCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epoch",
		Short: "Work with epoch release schedules",
	}
	cmd.AddCommand(newEpochValidateCommand(rootOpts))
	return cmd
}

func newEpochValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EpochOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a CUE epoch schedule",
		Long: `Compile a CUE epoch schedule against the schedule schema and list its
epochs. With --land, also report whether the parcel is released at --at.

Exit codes:
  0 - Schedule is valid
  1 - Schedule is invalid
  2 - Command error (unreadable file, bad flags)

Examples:
  landledger epoch validate ./epochs.cue
  landledger epoch validate ./epochs.cue --land 42 --at 2030-06-01T00:00:00Z`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEpochValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Land, "land", "", "parcel id to check")
	cmd.Flags().StringVar(&opts.At, "at", "", "instant to check --land at (RFC 3339, default now)")

	return cmd
}

func runEpochValidate(opts *EpochOptions, file string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	at := time.Now().UTC()
	if opts.At != "" {
		t, err := time.Parse(time.RFC3339, opts.At)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --at", err)
		}
		at = t.UTC()
	}

	if _, err := os.Stat(file); err != nil {
		return WrapExitError(ExitCommandError, "schedule not found", err)
	}

	out.VerboseLog("compiling %s", file)
	sched, err := epoch.LoadFile(file)
	if err != nil {
		if outErr := out.Error(ErrCodeSchedule, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "invalid schedule", err)
	}

	summary := EpochSummary{File: file, Epochs: sched.Epochs()}
	if opts.Land != "" {
		id, err := ledger.ParseLandID(opts.Land)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --land", err)
		}
		released := sched.Released(id, at)
		summary.Land = id.String()
		summary.At = at.Format(time.RFC3339)
		summary.Released = &released
		if cur, ok := sched.Current(at); ok {
			summary.Current = cur.Name
		}
	}
	return out.Success(summary)
}
