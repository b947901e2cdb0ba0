package store

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/landledger/internal/ir"
	"github.com/roach88/landledger/internal/ledger"
)

// ErrLandIDRange is returned when a parcel id does not fit SQLite's signed
// INTEGER column.
var ErrLandIDRange = fmt.Errorf("land id exceeds %d", int64(math.MaxInt64))

func landKey(id ledger.LandID) (int64, error) {
	if uint64(id) > math.MaxInt64 {
		return 0, ErrLandIDRange
	}
	return int64(id), nil
}

// toNanos maps the zero time to 0 so unset timestamps round-trip.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func marshalAmount(d decimal.Decimal) string {
	return ledger.FormatAmount(d)
}

func unmarshalAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unmarshal amount %q: %w", s, err)
	}
	return d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// marshalObject converts an ir.Object to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalObject(obj ir.Object) (string, error) {
	if obj == nil {
		obj = ir.Object{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return string(data), nil
}

// unmarshalObject parses canonical JSON TEXT to ir.Object.
// ir.Object.UnmarshalJSON decodes numbers through json.Number so integers
// beyond 2^53 keep their precision.
func unmarshalObject(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	var obj ir.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	return obj, nil
}
