package suggest

import "container/heap"

// TopK keeps the K best suggestions seen so far without holding the whole
// candidate pool. It is backed by a min-heap whose root is the weakest kept
// suggestion, so inserting into a full selector is a single compare against
// the root plus an O(log K) sift. Not safe for concurrent use; each query
// builds its own selector.
type TopK struct {
	capacity int
	heap     suggestionHeap
}

// NewTopK returns a selector that retains at most capacity suggestions under
// the default ordering (score descending, text ascending).
func NewTopK(capacity int) *TopK {
	return NewTopKFunc(capacity, Suggestion.Before)
}

// NewTopKFunc returns a selector using before as the ranking relation, where
// before(a, b) reports that a outranks b. The relation must be a strict
// total order or the retained set is unspecified on ties.
func NewTopKFunc(capacity int, before func(a, b Suggestion) bool) *TopK {
	if capacity < 0 {
		capacity = 0
	}
	return &TopK{
		capacity: capacity,
		heap: suggestionHeap{
			items:  make([]Suggestion, 0, capacity),
			before: before,
		},
	}
}

// Insert offers s to the selector. Below capacity it is always kept; at
// capacity it replaces the current minimum only when it outranks it, so the
// heap never grows past K.
func (t *TopK) Insert(s Suggestion) {
	if t.capacity == 0 {
		return
	}
	if t.heap.Len() < t.capacity {
		heap.Push(&t.heap, s)
		return
	}
	if t.heap.before(s, t.heap.items[0]) {
		t.heap.items[0] = s
		heap.Fix(&t.heap, 0)
	}
}

// PeekMin returns the weakest retained suggestion without removing it.
func (t *TopK) PeekMin() (Suggestion, bool) {
	if t.heap.Len() == 0 {
		return Suggestion{}, false
	}
	return t.heap.items[0], true
}

// Drain returns the retained suggestions ordered best-first. The selector
// keeps its contents; call Clear to reuse it for an unrelated query.
func (t *TopK) Drain() []Suggestion {
	out := make([]Suggestion, len(t.heap.items))
	copy(out, t.heap.items)
	sortByBefore(out, t.heap.before)
	return out
}

// Clear discards all retained suggestions but keeps the capacity.
func (t *TopK) Clear() {
	t.heap.items = t.heap.items[:0]
}

// Len reports how many suggestions are currently retained.
func (t *TopK) Len() int {
	return t.heap.Len()
}

// Cap reports the configured capacity K.
func (t *TopK) Cap() int {
	return t.capacity
}

func sortByBefore(items []Suggestion, before func(a, b Suggestion) bool) {
	// insertion sort is fine here: K is small (tens) and often nearly sorted
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && before(items[j], items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// suggestionHeap is a min-heap under before: the root is the suggestion that
// every other retained suggestion outranks.
type suggestionHeap struct {
	items  []Suggestion
	before func(a, b Suggestion) bool
}

func (h suggestionHeap) Len() int { return len(h.items) }

func (h suggestionHeap) Less(i, j int) bool {
	return h.before(h.items[j], h.items[i])
}

func (h suggestionHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *suggestionHeap) Push(x any) {
	h.items = append(h.items, x.(Suggestion))
}

func (h *suggestionHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
