package ledger

import "errors"

// Sentinel errors returned by token collaborators. The engine translates
// them into typed ledger failures.
var (
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("transfer amount exceeds allowance")
	ErrNotTokenOwner         = errors.New("caller is not the token owner")
	ErrNotApproved           = errors.New("operator is not approved for token")
	ErrNonexistentToken      = errors.New("token does not exist")
)
