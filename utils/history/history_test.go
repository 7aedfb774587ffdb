package history_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FrenchMajesty/cluster-curation/utils/history"
)

func TestHistory_Seed(t *testing.T) {
	h := history.New("base")

	assert.Equal(t, "base", h.CurrentItem())
	assert.Equal(t, 1, h.CurrentPosition())
	assert.Equal(t, 1, h.Len())
	assert.True(t, h.IsFirst())
	assert.True(t, h.IsLast())

	item, ok := h.Back()
	assert.False(t, ok, "Back on the seed must be a no-op")
	assert.Equal(t, "", item)

	item, ok = h.Forward()
	assert.False(t, ok, "Forward on the last item must be a no-op")
	assert.Equal(t, "", item)
	assert.Equal(t, 1, h.CurrentPosition())
}

// TestHistory_PositionAfterAdds tests that n adds leave the cursor at n+1
func TestHistory_PositionAfterAdds(t *testing.T) {
	h := history.New(0)
	for n := 1; n <= 5; n++ {
		h.Add(n)
		assert.Equal(t, n+1, h.CurrentPosition())
		assert.Equal(t, n, h.CurrentItem())
		assert.True(t, h.IsLast())
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, h.Items())
}

func TestHistory_BackForwardIdentity(t *testing.T) {
	h := history.New(0)
	h.Add(1)
	h.Add(2)
	h.Add(3)

	_, ok := h.Back()
	require.True(t, ok)
	before := h.CurrentItem()

	_, ok = h.Back()
	require.True(t, ok)
	item, ok := h.Forward()
	require.True(t, ok)
	assert.Equal(t, before, item)
	assert.Equal(t, before, h.CurrentItem())
}

func TestHistory_Navigation(t *testing.T) {
	h := history.New(0)
	h.Add(1)
	h.Add(2)

	item, ok := h.Back()
	require.True(t, ok)
	assert.Equal(t, 1, item)
	assert.False(t, h.IsLast())

	item, ok = h.Back()
	require.True(t, ok)
	assert.Equal(t, 0, item)
	assert.True(t, h.IsFirst())

	_, ok = h.Back()
	assert.False(t, ok)
	assert.Equal(t, 0, h.CurrentItem())

	item, ok = h.Forward()
	require.True(t, ok)
	assert.Equal(t, 1, item)
	item, ok = h.Forward()
	require.True(t, ok)
	assert.Equal(t, 2, item)
	_, ok = h.Forward()
	assert.False(t, ok)
	assert.Equal(t, 3, h.CurrentPosition())
}

// TestHistory_AddDiscardsRedoBranch tests that adding after Back drops the forward items
func TestHistory_AddDiscardsRedoBranch(t *testing.T) {
	h := history.New(0)
	h.Add(1)
	h.Add(2)
	h.Add(3)

	h.Back()
	h.Back()
	h.Add(10)

	assert.Equal(t, []int{0, 1, 10}, h.Items())
	assert.True(t, h.IsLast())
	_, ok := h.Forward()
	assert.False(t, ok, "redo after a fresh add must be a no-op")
	assert.Equal(t, 10, h.CurrentItem())
}

func TestHistory_Clear(t *testing.T) {
	h := history.New(0)
	h.Add(1)
	h.Add(2)

	h.Clear(7)
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 7, h.CurrentItem())
	assert.True(t, h.IsFirst())
}

func TestHistory_ItemsIsACopy(t *testing.T) {
	h := history.New(0)
	h.Add(1)

	items := h.Items()
	items[1] = 42
	assert.Equal(t, 1, h.CurrentItem())
}
