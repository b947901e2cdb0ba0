package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/landledger/internal/assets"
	"github.com/roach88/landledger/internal/engine"
	"github.com/roach88/landledger/internal/ledger"
	"github.com/roach88/landledger/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			if event.Type == EventInvocation {
				fmt.Fprintf(&buf, "  [%d] %s by %s %v\n", i+1, event.Operation, event.Caller, event.Args)
			}
		}
	}
	return buf.String()
}

// AssertionContext provides the state assertions read.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Engine *engine.Engine
	Token  *assets.Token
	Deed   *assets.Deed
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertLand, AssertBalance, AssertNFTOwner, AssertActiveCount, AssertSaleLogCount, AssertJournalCount:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: %s requires engine context", i, assertion.Type)
			} else {
				err = assertState(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

func assertState(actx *AssertionContext, a Assertion) error {
	switch a.Type {
	case AssertLand:
		return assertLand(actx, a)
	case AssertBalance:
		return assertBalance(actx, a)
	case AssertNFTOwner:
		return assertNFTOwner(actx, a)
	}

	var (
		got int
		err error
	)
	switch a.Type {
	case AssertActiveCount:
		var ids []ledger.LandID
		ids, err = actx.Engine.GetActiveLands(actx.Ctx)
		got = len(ids)
	case AssertSaleLogCount:
		var events []ledger.SaleEvent
		events, err = actx.Engine.SaleEvents(actx.Ctx)
		got = len(events)
	case AssertJournalCount:
		got, err = actx.Store.JournalCount(actx.Ctx)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", a.Type, err)
	}
	if got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d", a.Count),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// landFields is the assertable view of a parcel. Amounts are integer
// strings and instants are unix nanoseconds, as in the journal.
func landFields(l ledger.Land) map[string]any {
	fields := map[string]any{
		"land_id":           l.ID.String(),
		"owner":             l.Owner.String(),
		"paid":              ledger.FormatAmount(l.Paid),
		"state":             l.State.String(),
		"auction_end":       l.AuctionEnd.UnixNano(),
		"cashback_amount":   ledger.FormatAmount(l.CashbackAmount),
		"cashback_redeemed": l.CashbackRedeemed,
		"on_sale":           l.OnSale,
		"sell_price":        ledger.FormatAmount(l.SellPrice),
	}
	if !l.RedeemedAt.IsZero() {
		fields["redeemed_at"] = l.RedeemedAt.UnixNano()
	}
	return fields
}

func assertLand(actx *AssertionContext, a Assertion) error {
	id, err := ledger.ParseLandID(a.LandID)
	if err != nil {
		return fmt.Errorf("land: %w", err)
	}
	land, err := actx.Engine.Land(actx.Ctx, id)
	if err != nil {
		return &AssertionError{
			Type:     AssertLand,
			Expected: fmt.Sprintf("land %s to exist", a.LandID),
			Actual:   err.Error(),
		}
	}
	expected, err := normalize(a.Expect)
	if err != nil {
		return fmt.Errorf("land: %w", err)
	}

	actual := landFields(land)
	for _, key := range sortedKeys(expected) {
		got, ok := actual[key]
		if !ok {
			return &AssertionError{
				Type:     AssertLand,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("fields: %v", sortedKeys(actual)),
			}
		}
		if !valuesEqual(got, expected[key]) {
			return &AssertionError{
				Type:     AssertLand,
				Expected: fmt.Sprintf("land %s %s = %v", a.LandID, key, expected[key]),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

func assertBalance(actx *AssertionContext, a Assertion) error {
	want, err := ledger.ParseAmount(a.Amount)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	if actx.Token == nil {
		return fmt.Errorf("balance: no token in context")
	}
	got := actx.Token.BalanceOf(ledger.Address(a.Address))
	if !got.Equal(want) {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s holds %s", a.Address, ledger.FormatAmount(want)),
			Actual:   ledger.FormatAmount(got),
		}
	}
	return nil
}

func assertNFTOwner(actx *AssertionContext, a Assertion) error {
	id, err := ledger.ParseLandID(a.LandID)
	if err != nil {
		return fmt.Errorf("nft_owner: %w", err)
	}
	if actx.Deed == nil {
		return fmt.Errorf("nft_owner: no deed in context")
	}
	owner, err := actx.Deed.OwnerOf(id)
	actual := owner.String()
	if err != nil {
		actual = err.Error()
	}
	if actual != a.Owner {
		return &AssertionError{
			Type:     AssertNFTOwner,
			Expected: fmt.Sprintf("deed %s held by %s", a.LandID, a.Owner),
			Actual:   actual,
		}
	}
	return nil
}

// assertTraceContains checks if the trace contains an invocation of the
// operation with matching args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	expected, err := normalize(assertion.Args)
	if err != nil {
		return fmt.Errorf("trace_contains: %w", err)
	}
	for _, event := range trace {
		if event.Type == EventInvocation && event.Operation == assertion.Operation {
			if matchArgs(event.Args, expected) {
				return nil
			}
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("operation %s with args %v", assertion.Operation, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if operations appear in the specified order.
// Operations don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)

	for i, event := range trace {
		if event.Type == EventInvocation {
			for _, expected := range assertion.Operations {
				if event.Operation == expected && positions[expected] == 0 {
					positions[expected] = i + 1 // 1-indexed for readability
				}
			}
		}
	}

	for _, op := range assertion.Operations {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all operations present: %v", assertion.Operations),
				Actual:   fmt.Sprintf("missing operation: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Operations); i++ {
		prev := assertion.Operations[i-1]
		curr := assertion.Operations[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("operations in order: %v", assertion.Operations),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the operation is invoked exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventInvocation && event.Operation == assertion.Operation {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d invocations of %s", assertion.Count, assertion.Operation),
			Actual:   fmt.Sprintf("%d invocations", count),
			Trace:    trace,
		}
	}
	return nil
}

// matchArgs checks if actual contains all expected keys (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two normalized values for equality.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
