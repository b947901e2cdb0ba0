package ir

// OutcomeSuccess is the Completion.Outcome of an operation that committed.
// Failed operations record their error code instead.
const OutcomeSuccess = "Success"

// Invocation is the journal record of one requested operation.
type Invocation struct {
	ID             string `json:"id"` // Content-addressed hash
	TxID           string `json:"tx_id"`
	Operation      string `json:"operation"` // "ParticipateInAuction", "BuyLand", ...
	Caller         string `json:"caller"`
	Args           Object `json:"args"`
	At             int64  `json:"at"`  // Ledger clock reading, unix nanoseconds
	Seq            int64  `json:"seq"` // Journal order
	EngineVersion  string `json:"engine_version"`
	JournalVersion string `json:"journal_version"`
}

// Completion is the journal record of how an invocation ended.
type Completion struct {
	ID           string `json:"id"` // Content-addressed hash
	InvocationID string `json:"invocation_id"`
	Outcome      string `json:"outcome"` // OutcomeSuccess or an error code
	Message      string `json:"message,omitempty"`
	Result       Object `json:"result"`
	Seq          int64  `json:"seq"`
}

// Succeeded reports whether the completion records a committed operation.
func (c Completion) Succeeded() bool { return c.Outcome == OutcomeSuccess }
