package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortFuncOrdering(t *testing.T) {
	a := &Transaction{ID: "b", Type: Send, Timestamp: 100, Amount: 10}
	b := &Transaction{ID: "a", Type: Send, Timestamp: 50, Amount: 5}

	trs := []*Transaction{a, b}
	SortTransactions(trs)

	assert.Equal(t, []*Transaction{b, a}, trs, "earlier timestamp sorts first")
}

func TestSortFuncAmountTieBreak(t *testing.T) {
	a := &Transaction{ID: "a", Type: Send, Timestamp: 100, Amount: 5}
	b := &Transaction{ID: "b", Type: Send, Timestamp: 100, Amount: 10}

	trs := []*Transaction{a, b}
	SortTransactions(trs)

	assert.Equal(t, []*Transaction{b, a}, trs, "larger amount sorts first on a timestamp tie")
}

func TestSortFuncIDTieBreak(t *testing.T) {
	a := &Transaction{ID: "z", Type: Send, Timestamp: 100, Amount: 10}
	b := &Transaction{ID: "a", Type: Send, Timestamp: 100, Amount: 10}

	trs := []*Transaction{a, b}
	SortTransactions(trs)

	assert.Equal(t, []*Transaction{b, a}, trs, "smaller id sorts first once type/timestamp/amount tie")
}

func TestLastEmpty(t *testing.T) {
	assert.Nil(t, Last(nil))
}

func TestLastPicksHighestOrder(t *testing.T) {
	a := &Transaction{ID: "a", Type: Send, Timestamp: 50, Amount: 10}
	b := &Transaction{ID: "b", Type: Send, Timestamp: 100, Amount: 10}

	assert.Same(t, b, Last([]*Transaction{a, b}))
}

func TestDeriveSenderIDDeterministic(t *testing.T) {
	key := []byte("a-test-public-key")

	first := DeriveSenderID(key)
	second := DeriveSenderID(key)

	assert.Equal(t, first, second)
	assert.Contains(t, first, AddressPrefix)
}

func TestBlockIDRing(t *testing.T) {
	ring := NewBlockIDRing(3)
	assert.Equal(t, 0, ring.Len())

	ring.Append("a")
	ring.Append("b")
	ring.Append("c")
	ring.Append("d")

	assert.Equal(t, 3, ring.Len())
	assert.False(t, ring.Contains("a"), "oldest entry evicted once capacity is exceeded")
	assert.True(t, ring.Contains("d"))
}

func TestBlockIDRingSeed(t *testing.T) {
	ring := NewBlockIDRing(2)
	ring.Seed([]string{"x", "y", "z"})

	assert.Equal(t, 2, ring.Len())
	assert.True(t, ring.Contains("y"))
	assert.True(t, ring.Contains("z"))
}
