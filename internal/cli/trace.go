package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
	"github.com/roach88/landledger/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	Land      string // optional - one parcel's operations
	Operation string // optional - filter to one operation
}

// TraceEvent is one journaled operation in the timeline.
type TraceEvent struct {
	Seq          int64          `json:"seq"`
	TxID         string         `json:"tx_id"`
	Operation    string         `json:"operation"`
	Caller       string         `json:"caller"`
	At           string         `json:"at"`
	Args         map[string]any `json:"args"`
	Outcome      string         `json:"outcome"`
	Message      string         `json:"message,omitempty"`
	Result       map[string]any `json:"result,omitempty"`
	InvocationID string         `json:"invocation_id"`
	CompletionID string         `json:"completion_id"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Outcomes  map[string]int `json:"outcomes"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Land     string       `json:"land,omitempty"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the operation journal",
		Long: `Show journaled operations in seq order: who invoked what, at which ledger
clock reading, and how it completed. Failed operations appear with their
error code as outcome.

Examples:
  landledger trace --db ./landledger.db
  landledger trace --db ./landledger.db --land 631272015026578401
  landledger trace --db ./landledger.db --operation BuyLand --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Land, "land", "", "only operations naming this parcel")
	cmd.Flags().StringVar(&opts.Operation, "operation", "", "filter to one operation name")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var land *ledger.LandID
	if opts.Land != "" {
		id, err := ledger.ParseLandID(opts.Land)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --land", err)
		}
		land = &id
	}

	journal, err := readJournal(ctx, opts.Database, land)
	if err != nil {
		return err
	}

	result := TraceResult{
		Land:     opts.Land,
		Timeline: buildTimeline(journal, opts.Operation),
	}
	result.Stats = traceStats(result.Timeline)

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTimeline converts journal entries to trace events, keeping only
// operation when it is set.
func buildTimeline(journal []store.Entry, operation string) []TraceEvent {
	timeline := []TraceEvent{}
	for _, entry := range journal {
		inv, comp := entry.Invocation, entry.Completion
		if operation != "" && inv.Operation != operation {
			continue
		}

		event := TraceEvent{
			Seq:          inv.Seq,
			TxID:         inv.TxID,
			Operation:    inv.Operation,
			Caller:       inv.Caller,
			At:           time.Unix(0, inv.At).UTC().Format(time.RFC3339Nano),
			Args:         objectToMap(inv.Args),
			Outcome:      comp.Outcome,
			Message:      comp.Message,
			InvocationID: inv.ID,
			CompletionID: comp.ID,
		}
		if len(comp.Result) > 0 {
			event.Result = objectToMap(comp.Result)
		}
		timeline = append(timeline, event)
	}
	return timeline
}

func objectToMap(obj ir.Object) map[string]any {
	if obj == nil {
		return map[string]any{}
	}
	return ir.ToAny(obj).(map[string]any)
}

func traceStats(timeline []TraceEvent) TraceStats {
	stats := TraceStats{Total: len(timeline), Outcomes: map[string]int{}}
	for _, e := range timeline {
		stats.Outcomes[e.Outcome]++
		if e.Outcome == ir.OutcomeSuccess {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	return stats
}

func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(CLIResponse{Status: "ok", Data: result})
}

func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.Land != "" {
		fmt.Fprintf(w, "Trace for land %s\n", result.Land)
	} else {
		fmt.Fprintln(w, "Trace")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no operations)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Operations: %d\n", result.Stats.Total)
	fmt.Fprintf(w, "  Succeeded:  %d\n", result.Stats.Succeeded)
	fmt.Fprintf(w, "  Failed:     %d\n", result.Stats.Failed)
	if verbose && result.Stats.Failed > 0 {
		codes := make([]string, 0, len(result.Stats.Outcomes))
		for code := range result.Stats.Outcomes {
			if code != ir.OutcomeSuccess {
				codes = append(codes, code)
			}
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "    %s: %d\n", code, result.Stats.Outcomes[code])
		}
	}
	return nil
}

func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s by %s -> %s\n", event.Seq, event.Operation, event.Caller, event.Outcome)
	if !verbose {
		return
	}
	fmt.Fprintf(w, "       At:     %s\n", event.At)
	fmt.Fprintf(w, "       Args:   %s\n", formatArgs(event.Args))
	if event.Message != "" {
		fmt.Fprintf(w, "       Error:  %s\n", event.Message)
	}
	if len(event.Result) > 0 {
		fmt.Fprintf(w, "       Result: %s\n", formatArgs(event.Result))
	}
	fmt.Fprintf(w, "       Tx:     %s\n", event.TxID)
	fmt.Fprintf(w, "       ID:     %s\n", truncateID(event.InvocationID))
}

// formatArgs formats a map with sorted keys for deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID shortens a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
