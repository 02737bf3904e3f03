package merge

// cursorHeap is an explicit binary min-heap over active cursors, ordered by
// cursor.less: a plain array-backed heap with heapify/sift-down, rather than
// a balanced tournament tree or container/heap.Interface adapter.
type cursorHeap struct {
	cursors []*cursor
}

func newCursorHeap(cursors []*cursor) *cursorHeap {
	h := &cursorHeap{cursors: cursors}
	h.heapify()
	return h
}

// heapify establishes the heap invariant in place, O(n).
func (h *cursorHeap) heapify() {
	n := len(h.cursors)
	for i := n/2 - 1; i >= 0; i-- {
		h.siftDown(i)
	}
}

func (h *cursorHeap) len() int { return len(h.cursors) }

// top returns the current minimum cursor without removing it.
func (h *cursorHeap) top() *cursor {
	if len(h.cursors) == 0 {
		return nil
	}
	return h.cursors[0]
}

// fixTop re-establishes the heap invariant after the root cursor's key has
// changed in place (the usual case: it was just advanced to its next
// record). This is the hot path of the merge loop, called once per emitted
// record, and avoids the pop/push pair a naive implementation would pay.
func (h *cursorHeap) fixTop() {
	h.siftDown(0)
}

// siftDown restores the heap invariant rooted at i by repeatedly swapping
// with the smaller child until the local invariant holds.
func (h *cursorHeap) siftDown(i int) {
	n := len(h.cursors)
	for {
		left := 2*i + 1
		if left >= n {
			return
		}
		smallest := left
		if right := left + 1; right < n && h.cursors[right].less(h.cursors[left]) {
			smallest = right
		}
		if !h.cursors[smallest].less(h.cursors[i]) {
			return
		}
		h.cursors[i], h.cursors[smallest] = h.cursors[smallest], h.cursors[i]
		i = smallest
	}
}
