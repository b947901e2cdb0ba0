package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the hashing scheme to change later.
const (
	DomainInvocation = "landledger/invocation/v1"
	DomainCompletion = "landledger/completion/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InvocationID computes the content-addressed ID of a journaled request.
// Caller and At are included: the same call made by someone else, or at a
// different clock reading, is a different request.
func InvocationID(txID, operation, caller string, args Object, at, seq int64) (string, error) {
	obj := Object{
		"tx_id":     String(txID),
		"operation": String(operation),
		"caller":    String(caller),
		"args":      args,
		"at":        Int(at),
		"seq":       Int(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("InvocationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainInvocation, canonical), nil
}

// CompletionID computes the content-addressed ID of an outcome.
// Links to the invocation it completes via invocationID.
func CompletionID(invocationID, outcome string, result Object, seq int64) (string, error) {
	obj := Object{
		"invocation_id": String(invocationID),
		"outcome":       String(outcome),
		"result":        result,
		"seq":           Int(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CompletionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCompletion, canonical), nil
}

// MustInvocationID is like InvocationID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustInvocationID(txID, operation, caller string, args Object, at, seq int64) string {
	id, err := InvocationID(txID, operation, caller, args, at, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// MustCompletionID is like CompletionID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCompletionID(invocationID, outcome string, result Object, seq int64) string {
	id, err := CompletionID(invocationID, outcome, result, seq)
	if err != nil {
		panic(err)
	}
	return id
}
