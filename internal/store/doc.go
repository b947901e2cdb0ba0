// Package store provides SQLite-backed durable storage for the land ledger.
//
// Two groups of tables live in one database:
//   - Ledger state: lands, active_auctions, offers, sale_events, settings
//   - Journal: invocations and completions, one pair per engine operation
//
// Every ledger mutation happens inside a Tx so an operation either commits
// all of its effects or none of them.
//
// # Conventions
//
// Amounts are stored as canonical decimal TEXT (never REAL), so values such
// as 10e18 survive without precision loss.
//
// Timestamps are stored as INTEGER unix nanoseconds; 0 means unset.
//
// Every multi-row query has a total order: ledger tables by id, journal
// tables by seq ASC, id COLLATE BINARY ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
