package queue

// priorityHeap is a min-heap of *Entry ordered by Priority, with
// EntryTime as the tie-break (lowest Priority, then earliest EntryTime,
// dequeues first; entries equal on both come out in no defined order) —
// LowAttribute and HighAttribute are both implemented
// against this by storing the already-signed priority (derivePriority
// negates the raw attribute for HighAttribute).
type priorityHeap []*Entry

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].EntryTime < h[j].EntryTime
}

func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityHeap) Push(x any) {
	*h = append(*h, x.(*Entry))
}

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
