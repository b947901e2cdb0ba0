// Package ledger defines the records held by the land ledger and the amount
// arithmetic shared by every engine operation.
//
// This package contains type definitions and pure helpers only. It imports
// nothing internal, so store, engine and transport packages can all depend on
// it without cycles.
//
// Key constraints:
//   - Amounts are non-negative integers of the token's smallest unit, carried
//     as decimal.Decimal so 10e18-scale values never overflow
//   - LandState only moves forward: NoAuction -> InAuction -> Redeemed
//   - CashbackAmount is fixed once, at redemption
//   - All JSON tags use snake_case
package ledger
