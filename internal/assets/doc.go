// Package assets provides in-memory reference implementations of the token
// collaborators the ledger engine consumes.
//
// Token is a fungible balance/allowance ledger. Deed is a non-fungible
// ownership registry with per-token approvals. Both are bound to a
// principal with Bind, which yields the capability view the engine calls:
// the view acts as that principal (spender or operator).
//
// Both support Checkpoint so the engine can undo collaborator effects when a
// later step of the same operation fails.
package assets
