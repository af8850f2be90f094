package internal

import (
	"container/heap"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// queuedRequest is a validated CaptureRequest with settings resolved.
type queuedRequest struct {
	pipeline *pipeline
	buffers  []OutputBuffer
	settings metadata.Controls
}

// pendingFrame is every request submitted under one frame number.
type pendingFrame struct {
	number      uint32
	requests    []queuedRequest
	submittedAt time.Time
}

// frameHeap orders pending frames by ascending frame number.
type frameHeap []*pendingFrame

func (h frameHeap) Len() int           { return len(h) }
func (h frameHeap) Less(i, j int) bool { return h[i].number < h[j].number }
func (h frameHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *frameHeap) Push(x any) {
	*h = append(*h, x.(*pendingFrame))
}

func (h *frameHeap) Pop() any {
	old := *h
	n := len(old)
	f := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return f
}

// requestQueue holds unclaimed frames and the submission watermark.
// Guarded by the session lock.
type requestQueue struct {
	frames frameHeap

	highest   uint32
	submitted bool
}

// admits reports whether n is above every frame number seen so far.
func (q *requestQueue) admits(n uint32) bool {
	return !q.submitted || n > q.highest
}

func (q *requestQueue) push(f *pendingFrame) {
	heap.Push(&q.frames, f)
	if !q.submitted || f.number > q.highest {
		q.highest = f.number
		q.submitted = true
	}
}

// pop removes the lowest-numbered frame.
func (q *requestQueue) pop() *pendingFrame {
	if len(q.frames) == 0 {
		return nil
	}
	return heap.Pop(&q.frames).(*pendingFrame)
}

// drain removes every frame in ascending order.
func (q *requestQueue) drain() []*pendingFrame {
	out := make([]*pendingFrame, 0, len(q.frames))
	for len(q.frames) > 0 {
		out = append(out, heap.Pop(&q.frames).(*pendingFrame))
	}
	return out
}

func (q *requestQueue) len() int {
	return len(q.frames)
}
