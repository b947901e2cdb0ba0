// Package harness runs conformance scenarios against the ledger engine.
//
// A scenario configures an engine over a fresh in-memory store with the
// reference assets, funds accounts, drives a flow of operations and clock
// advances, and checks the outcome of every step and the final state.
//
// # Scenario Format
//
//	name: outbid_refund
//	description: "A second bid refunds the first bidder"
//	config:
//	  initial_bid: "10e18"
//	  auction_duration: 24h
//	setup:
//	  - action: mint
//	    args: { to: alice, amount: "10e18" }
//	  - action: approve
//	    args: { owner: alice, amount: "10e18" }
//	flow:
//	  - invoke: ParticipateInAuction
//	    caller: alice
//	    args: { land_id: "42", amount: "10e18" }
//	    expect:
//	      outcome: Success
//	      result: { owner: alice }
//	  - advance: 25h
//	  - asset: { action: approve_deed, args: { owner: alice, land_id: "42" } }
//	assertions:
//	  - type: land
//	    land_id: "42"
//	    expect: { owner: alice, state: InAuction }
//	  - type: balance
//	    address: alice
//	    amount: "0"
//
// # Asset Actions
//
//   - mint: credit {to, amount} on the token
//   - approve: set the allowance of {owner} for {spender} (default: the engine)
//   - approve_deed: {owner} approves the engine for deed {land_id}
//
// # Assertion Types
//
//   - land: subset match on the parcel record
//   - balance: exact token balance of an address
//   - nft_owner: current holder of a deed
//   - active_count, sale_log_count, journal_count: row counts
//   - trace_contains, trace_order, trace_count: checks over invoked operations
//
// # Deterministic Testing
//
// Scenarios run on a manual clock starting at testutil.Epoch (or
// config.start) with sequential transaction ids, so traces and journals are
// identical across runs and can be compared with golden files.
package harness
