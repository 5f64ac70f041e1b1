package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateProportional(t *testing.T) {
	entries := []Entry{
		{RecordID: 1, Base: 4500},
		{RecordID: 2, Base: 5500},
	}

	result, err := Allocate(entries, 9000)
	require.NoError(t, err)

	assert.InDelta(t, 0.90, result.Multiplier, 0.0001)
	assert.Equal(t, 4050.0, result.Shares[0].Allocated)
	assert.Equal(t, 4950.0, result.Shares[1].Allocated)
	assert.Equal(t, 9000.0, result.TotalAllocated)
}

func TestAllocateRoundingGoesToLargestShare(t *testing.T) {
	// 100 / 3 = 33.333... per entry; the cent left over after rounding
	// lands on the largest share so the total always equals received
	entries := []Entry{
		{RecordID: 1, Base: 100},
		{RecordID: 2, Base: 100},
		{RecordID: 3, Base: 100.01},
	}

	result, err := Allocate(entries, 100)
	require.NoError(t, err)

	var total float64
	for _, s := range result.Shares {
		total += s.Allocated
	}
	assert.InDelta(t, 100.0, total, 0.001)
	assert.Equal(t, 100.0, result.TotalAllocated)
}

func TestAllocateSingleEntry(t *testing.T) {
	result, err := Allocate([]Entry{{RecordID: 7, Base: 1000}}, 900)
	require.NoError(t, err)

	assert.Equal(t, 900.0, result.Shares[0].Allocated)
	assert.Equal(t, int64(7), result.Shares[0].RecordID)
}

func TestAllocateErrors(t *testing.T) {
	_, err := Allocate(nil, 100)
	assert.Error(t, err)

	_, err = Allocate([]Entry{{RecordID: 1, Base: 100}}, -1)
	assert.Error(t, err)

	_, err = Allocate([]Entry{{RecordID: 1, Base: 0}}, 100)
	assert.Error(t, err)

	_, err = Allocate([]Entry{{RecordID: 1, Base: -5}}, 100)
	assert.Error(t, err)
}
