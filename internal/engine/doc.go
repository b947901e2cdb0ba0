// Package engine implements the land auction ledger.
//
// The engine runs three groups of operations over one ledger:
//
//   - auctions: ParticipateInAuction and ParticipateInAuctionFor open and
//     raise English auctions on parcels, escrowing bids and refunding the
//     outbid bidder
//   - redemption: RedeemWonLand hands the deed to the winner and fixes a
//     95% cashback, claimable once with RedeemCashback after 30 days
//   - marketplace: PutLandOnSale, BuyLand, OfferToBuyLand and
//     RespondToBuyOffer trade redeemed parcels
//
// Owner-only operations (Pause, ExtractTokens, SetApproved, ...) manage the
// engine itself.
//
// # Execution model
//
// Each operation is one serialized transaction (single writer):
//
//  1. checks, failing fast with a typed *Error
//  2. ledger mutations, staged in a store transaction
//  3. calls to the token collaborators, in order
//  4. journal write and commit
//
// A failure at any step rolls the store transaction back and restores every
// collaborator implementing Checkpointer, so no partial effect is
// observable. Deadlines are evaluated against the injected Clock only.
//
// # Journal
//
// Every operation, accepted or rejected, appends an ir.Invocation and an
// ir.Completion with content-addressed ids. Replay re-executes a journal and
// reports divergences.
package engine
