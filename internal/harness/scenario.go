package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/landledger/internal/engine"
	"github.com/roach88/landledger/internal/ledger"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides engine defaults.
	Config Config `yaml:"config,omitempty"`

	// Setup contains asset actions run before the flow. They must succeed.
	Setup []AssetStep `yaml:"setup,omitempty"`

	// Flow contains the main test flow.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Config is the engine configuration of a scenario. Zero fields take the
// harness defaults.
type Config struct {
	Owner           string      `yaml:"owner,omitempty"`
	InitialBid      string      `yaml:"initial_bid,omitempty"`
	AuctionDuration string      `yaml:"auction_duration,omitempty"`
	Start           string      `yaml:"start,omitempty"`
	Epochs          []EpochSpec `yaml:"epochs,omitempty"`
}

// EpochSpec is one release window of an epoch schedule.
type EpochSpec struct {
	Name   string      `yaml:"name"`
	Start  string      `yaml:"start"`
	Ranges []RangeSpec `yaml:"ranges"`
}

// RangeSpec is an inclusive span of parcel ids.
type RangeSpec struct {
	From uint64 `yaml:"from"`
	To   uint64 `yaml:"to"`
}

// AssetStep acts on the reference token or deed ledger.
type AssetStep struct {
	Action string         `yaml:"action"`
	Args   map[string]any `yaml:"args"`
}

// FlowStep is one step of the main flow. Exactly one of Invoke, Advance or
// Asset is set.
type FlowStep struct {
	// Invoke is the engine operation name.
	Invoke string         `yaml:"invoke,omitempty"`
	Caller string         `yaml:"caller,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`

	// Expect validates the operation's outcome. If nil, the operation must
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Advance moves the clock forward by a Go duration.
	Advance string `yaml:"advance,omitempty"`

	// Asset performs a reference asset action mid-flow.
	Asset *AssetStep `yaml:"asset,omitempty"`
}

// ExpectClause specifies expected operation behavior.
type ExpectClause struct {
	// Outcome is "Success" or an error code such as "INSUFFICIENT_BID".
	Outcome string `yaml:"outcome"`

	// Result is a subset match on the operation result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Operation and Args are used by trace_contains and trace_count;
	// Operations by trace_order.
	Operation  string         `yaml:"operation,omitempty"`
	Operations []string       `yaml:"operations,omitempty"`
	Args       map[string]any `yaml:"args,omitempty"`

	// LandID selects the parcel for land and nft_owner.
	LandID string `yaml:"land_id,omitempty"`

	// Address and Amount are used by balance.
	Address string `yaml:"address,omitempty"`
	Amount  string `yaml:"amount,omitempty"`

	// Owner is the expected deed holder for nft_owner.
	Owner string `yaml:"owner,omitempty"`

	// Expect is the field subset for land.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is used by the *_count assertions.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertLand          = "land"
	AssertBalance       = "balance"
	AssertNFTOwner      = "nft_owner"
	AssertActiveCount   = "active_count"
	AssertSaleLogCount  = "sale_log_count"
	AssertJournalCount  = "journal_count"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// Asset action constants.
const (
	AssetMint        = "mint"
	AssetApprove     = "approve"
	AssetApproveDeed = "approve_deed"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if err := validateConfig(s.Config); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for i, step := range s.Setup {
		if err := validateAssetStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	operations := make(map[string]bool)
	for _, op := range engine.Operations() {
		operations[op] = true
	}
	for i, step := range s.Flow {
		if err := validateFlowStep(step, operations); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateConfig(c Config) error {
	if c.InitialBid != "" {
		if _, err := ledger.ParseAmount(c.InitialBid); err != nil {
			return fmt.Errorf("initial_bid: %w", err)
		}
	}
	if c.AuctionDuration != "" {
		if _, err := time.ParseDuration(c.AuctionDuration); err != nil {
			return fmt.Errorf("auction_duration: %w", err)
		}
	}
	if c.Start != "" {
		if _, err := time.Parse(time.RFC3339, c.Start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	for i, ep := range c.Epochs {
		if _, err := time.Parse(time.RFC3339, ep.Start); err != nil {
			return fmt.Errorf("epochs[%d].start: %w", i, err)
		}
	}
	return nil
}

func validateAssetStep(step AssetStep) error {
	switch step.Action {
	case AssetMint, AssetApprove, AssetApproveDeed:
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown asset action %q", step.Action)
	}
	if step.Args == nil {
		return fmt.Errorf("args is required")
	}
	return nil
}

func validateFlowStep(step FlowStep, operations map[string]bool) error {
	set := 0
	if step.Invoke != "" {
		set++
	}
	if step.Advance != "" {
		set++
	}
	if step.Asset != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of invoke, advance or asset is required")
	}

	switch {
	case step.Invoke != "":
		if !operations[step.Invoke] {
			return fmt.Errorf("unknown operation %q", step.Invoke)
		}
		if step.Caller == "" {
			return fmt.Errorf("caller is required")
		}
		if step.Expect != nil && step.Expect.Outcome == "" {
			return fmt.Errorf("expect: outcome is required")
		}
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("advance must be positive")
		}
	default:
		if err := validateAssetStep(*step.Asset); err != nil {
			return fmt.Errorf("asset: %w", err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertLand:
		if a.LandID == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: land_id and expect are required for land", index)
		}
	case AssertBalance:
		if a.Address == "" || a.Amount == "" {
			return fmt.Errorf("assertions[%d]: address and amount are required for balance", index)
		}
	case AssertNFTOwner:
		if a.LandID == "" || a.Owner == "" {
			return fmt.Errorf("assertions[%d]: land_id and owner are required for nft_owner", index)
		}
	case AssertActiveCount, AssertSaleLogCount, AssertJournalCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertTraceContains:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Operations) == 0 {
			return fmt.Errorf("assertions[%d]: operations list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
