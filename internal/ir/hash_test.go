package ir

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bidArgs() Object {
	return Object{
		"land_id": String("631272015026578401"),
		"amount":  String("10000000000000000000"),
	}
}

func TestInvocationIDDeterminism(t *testing.T) {
	id1, err := InvocationID("tx-1", "ParticipateInAuction", "alice", bidArgs(), 1000, 1)
	require.NoError(t, err)
	id2, err := InvocationID("tx-1", "ParticipateInAuction", "alice", bidArgs(), 1000, 1)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)
	_, err = hex.DecodeString(id1)
	assert.NoError(t, err)
}

func TestInvocationIDChangesWithInput(t *testing.T) {
	base := MustInvocationID("tx-1", "ParticipateInAuction", "alice", bidArgs(), 1000, 1)

	variants := map[string]string{
		"tx":        MustInvocationID("tx-2", "ParticipateInAuction", "alice", bidArgs(), 1000, 1),
		"operation": MustInvocationID("tx-1", "RedeemWonLand", "alice", bidArgs(), 1000, 1),
		"caller":    MustInvocationID("tx-1", "ParticipateInAuction", "bob", bidArgs(), 1000, 1),
		"at":        MustInvocationID("tx-1", "ParticipateInAuction", "alice", bidArgs(), 1001, 1),
		"seq":       MustInvocationID("tx-1", "ParticipateInAuction", "alice", bidArgs(), 1000, 2),
		"args": MustInvocationID("tx-1", "ParticipateInAuction", "alice",
			Object{"land_id": String("1"), "amount": String("10")}, 1000, 1),
	}

	for name, id := range variants {
		assert.NotEqual(t, base, id, "changing %s must change the id", name)
	}
}

func TestCompletionIDLinksToInvocation(t *testing.T) {
	inv := MustInvocationID("tx-1", "ParticipateInAuction", "alice", bidArgs(), 1000, 1)

	c1 := MustCompletionID(inv, OutcomeSuccess, Object{}, 2)
	c2 := MustCompletionID(inv, OutcomeSuccess, Object{}, 2)
	assert.Equal(t, c1, c2)

	assert.NotEqual(t, c1, MustCompletionID("other", OutcomeSuccess, Object{}, 2))
	assert.NotEqual(t, c1, MustCompletionID(inv, "AUCTION_ENDED", Object{}, 2))
	assert.NotEqual(t, c1, MustCompletionID(inv, OutcomeSuccess, Object{"x": Int(1)}, 2))
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t,
		hashWithDomain(DomainInvocation, data),
		hashWithDomain(DomainCompletion, data))
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "ab" + "c" must not collide with "a" + "bc".
	assert.NotEqual(t,
		hashWithDomain("ab", []byte("c")),
		hashWithDomain("a", []byte("bc")))
}

func TestInvocationIDArgsKeyOrderIrrelevant(t *testing.T) {
	a := Object{"land_id": String("1"), "amount": String("2")}
	b := Object{"amount": String("2"), "land_id": String("1")}

	assert.Equal(t,
		MustInvocationID("tx", "op", "c", a, 0, 1),
		MustInvocationID("tx", "op", "c", b, 0, 1))
}

func TestMustFunctionsPanic(t *testing.T) {
	bad := Object{"x": nil}
	assert.Panics(t, func() { MustInvocationID("tx", "op", "c", bad, 0, 1) })
	assert.Panics(t, func() { MustCompletionID("inv", OutcomeSuccess, bad, 1) })
}
