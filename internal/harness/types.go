package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
	EventAdvance    = "advance"
	EventAsset      = "asset"
)

// TraceEvent is one entry of a scenario trace. Invocations and completions
// mirror the engine journal; advances and asset actions record what the
// harness did between operations.
type TraceEvent struct {
	Type      string         `json:"type"`
	Operation string         `json:"operation,omitempty"`
	Caller    string         `json:"caller,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Outcome   string         `json:"outcome,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	At        string         `json:"at,omitempty"`
	Seq       int64          `json:"seq"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains every harness event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}

// AddInvocationTrace adds an operation invocation to the trace.
func (r *Result) AddInvocationTrace(operation, caller string, args map[string]any) {
	r.add(TraceEvent{Type: EventInvocation, Operation: operation, Caller: caller, Args: args})
}

// AddCompletionTrace adds an operation outcome to the trace.
func (r *Result) AddCompletionTrace(outcome string, result map[string]any) {
	r.add(TraceEvent{Type: EventCompletion, Outcome: outcome, Result: result})
}

// AddAdvanceTrace records a clock advance and the new reading.
func (r *Result) AddAdvanceTrace(at string) {
	r.add(TraceEvent{Type: EventAdvance, At: at})
}

// AddAssetTrace records a reference asset action.
func (r *Result) AddAssetTrace(action string, args map[string]any) {
	r.add(TraceEvent{Type: EventAsset, Operation: action, Args: args})
}
