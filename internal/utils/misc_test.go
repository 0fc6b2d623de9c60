package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchKeepsOrderAndTail(t *testing.T) {
	got := Batch([]int{1, 2, 3, 4, 5}, 2)

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, got)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, Flatten(got))
	assert.Empty(t, Batch([]int{}, 3))
}

func TestSplitUserFullName(t *testing.T) {
	first, last, err := SplitUserFullName("Maxime Labonne")
	require.NoError(t, err)
	assert.Equal(t, "Maxime", first)
	assert.Equal(t, "Labonne", last)

	first, last, err = SplitUserFullName("Jean Claude Van Damme")
	require.NoError(t, err)
	assert.Equal(t, "Jean Claude Van", first)
	assert.Equal(t, "Damme", last)

	first, last, err = SplitUserFullName("Cher")
	require.NoError(t, err)
	assert.Equal(t, "Cher", first)
	assert.Equal(t, "Cher", last)

	_, _, err = SplitUserFullName("   ")
	assert.ErrorIs(t, err, ErrEmptyUserName)
}
