package history

// History is a linear undo/redo sequence of items with a cursor.
//
// The first slot holds the seed item given at construction. Adding an item
// after moving back discards everything past the cursor.
//
// History is not safe for concurrent use.
type History[T any] struct {
	items []T
	index int
}

// New creates a History seeded with the given base item.
func New[T any](seed T) *History[T] {
	h := &History[T]{}
	h.Clear(seed)
	return h
}

// Clear drops every item and resets the history to a single seed item.
func (h *History[T]) Clear(seed T) {
	h.items = []T{seed}
	h.index = 0
}

// CurrentItem returns the item at the cursor without moving it.
func (h *History[T]) CurrentItem() T {
	return h.items[h.index]
}

// CurrentPosition returns the 1-based position of the cursor. The seed is at position 1.
func (h *History[T]) CurrentPosition() int {
	return h.index + 1
}

// Len returns the number of items, seed included.
func (h *History[T]) Len() int {
	return len(h.items)
}

// IsFirst reports whether the cursor is on the seed item.
func (h *History[T]) IsFirst() bool {
	return h.index == 0
}

// IsLast reports whether the cursor is on the most recent item.
func (h *History[T]) IsLast() bool {
	return h.index == len(h.items)-1
}

// Add truncates the redo branch, appends the item and moves the cursor onto it.
func (h *History[T]) Add(item T) {
	h.items = append(h.items[:h.index+1], item)
	h.index = len(h.items) - 1
}

// Back moves the cursor one step back and returns the new current item.
// It returns false, without moving, when the cursor is already on the seed.
func (h *History[T]) Back() (T, bool) {
	if h.index <= 0 {
		var zero T
		return zero, false
	}
	h.index--
	return h.items[h.index], true
}

// Forward moves the cursor one step forward and returns the new current item.
// It returns false, without moving, when the cursor is already on the last item.
func (h *History[T]) Forward() (T, bool) {
	if h.index >= len(h.items)-1 {
		var zero T
		return zero, false
	}
	h.index++
	return h.items[h.index], true
}

// Items returns a copy of all items, seed first.
func (h *History[T]) Items() []T {
	out := make([]T, len(h.items))
	copy(out, h.items)
	return out
}
