package mqtt

// ringBuffer is a fixed-capacity FIFO that stores messages while disconnected.
// Not safe for concurrent use; caller must synchronize.
type ringBuffer struct {
	buf      []Message
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any message was dropped since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{
		buf:      make([]Message, capacity),
		capacity: capacity,
	}
}

// push appends msg, overwriting the oldest message when full. It returns true
// the first time a message is dropped since the last drain.
func (r *ringBuffer) push(msg Message) bool {
	if r.count == r.capacity {
		first := !r.overflow
		r.overflow = true
		// head already points at the oldest
		r.buf[r.head] = msg
		r.head = (r.head + 1) % r.capacity
		return first
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	r.count++
	return false
}

func (r *ringBuffer) drainAll() []Message {
	if r.count == 0 {
		return nil
	}

	result := make([]Message, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}

	r.count = 0
	r.head = 0
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}
