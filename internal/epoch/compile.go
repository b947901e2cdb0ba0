package epoch

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/landledger/internal/ledger"
)

//go:embed schema.cue
var schemaCUE string

// CompileError reports an invalid schedule document.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads and compiles a CUE schedule file.
func LoadFile(path string) (*Schedule, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	return Compile(src, path)
}

// Compile parses a CUE schedule document, unifies it with the #Schedule
// schema and builds the Schedule.
//
// Example document:
//
//	epochs: [{
//		name:  "genesis"
//		start: "2020-01-01T00:00:00Z"
//		ranges: [{from: 1, to: 100}]
//	}]
func Compile(src []byte, filename string) (*Schedule, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	doc := ctx.CompileBytes(src, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Schedule")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var raw struct {
		Epochs []struct {
			Name   string `json:"name"`
			Start  string `json:"start"`
			Ranges []struct {
				From uint64 `json:"from"`
				To   uint64 `json:"to"`
			} `json:"ranges"`
		} `json:"epochs"`
	}
	if err := v.Decode(&raw); err != nil {
		return nil, formatCUEError(err)
	}

	epochs := make([]Epoch, 0, len(raw.Epochs))
	for i, re := range raw.Epochs {
		start, err := time.Parse(time.RFC3339, re.Start)
		if err != nil {
			return nil, &CompileError{Field: fmt.Sprintf("epochs[%d].start", i), Message: err.Error()}
		}
		ep := Epoch{Name: re.Name, Start: start.UTC()}
		for _, r := range re.Ranges {
			ep.Ranges = append(ep.Ranges, Range{From: ledger.LandID(r.From), To: ledger.LandID(r.To)})
		}
		epochs = append(epochs, ep)
	}
	return NewSchedule(epochs)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
