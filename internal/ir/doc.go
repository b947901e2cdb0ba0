// Package ir provides the canonical record representation for the ledger
// journal.
//
// Every engine operation is journaled as an Invocation (what was asked, by
// whom, at which clock reading) and a Completion (the outcome). Both carry
// content-addressed IDs computed over RFC 8785 canonical JSON, so a replayed
// journal can be compared byte for byte with the original.
//
// Key design constraints:
//   - NO float types anywhere - amounts travel as decimal strings
//   - Journal ordering uses Seq only; At is an input to the operation, not
//     an ordering key
//   - All JSON tags use snake_case
//
// ir imports nothing internal.
package ir
