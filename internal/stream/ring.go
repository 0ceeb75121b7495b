package stream

// ringBuffer keeps the newest capacity events in arrival order.
type ringBuffer struct {
	items []Event
	start int
	size  int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ringBuffer{items: make([]Event, capacity)}
}

// append reports whether an older event was overwritten.
func (r *ringBuffer) append(evt Event) bool {
	if r.size < len(r.items) {
		r.items[(r.start+r.size)%len(r.items)] = evt
		r.size++
		return false
	}
	r.items[r.start] = evt
	r.start = (r.start + 1) % len(r.items)
	return true
}

func (r *ringBuffer) snapshot() []Event {
	out := make([]Event, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.start+i)%len(r.items)]
	}
	return out
}
