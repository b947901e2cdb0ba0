// Package httpapi exposes the ledger engine over HTTP.
//
// The caller of every request is the address in the X-Caller header, set by
// a trusted proxy in front of the server. Amounts travel as decimal strings.
// Mutating routes map one-to-one onto journaled engine operations.
package httpapi
