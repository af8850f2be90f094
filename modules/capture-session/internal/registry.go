package internal

import (
	"sort"

	bufferadapter "github.com/e7canasta/orion-care-sensor/modules/buffer-adapter"
	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// pipeline is one registry entry. Everything except lastSettings is
// immutable once the session is built; lastSettings is guarded by the
// session lock.
type pipeline struct {
	id       uint32
	deviceID uint32
	chars    *metadata.Characteristics
	streams  []Stream
	hal      []HalStream
	callback Callback
	notifier Notifier

	// scratch is allocated by build and used only by the worker.
	scratch map[uint32]*bufferadapter.Scratch

	lastSettings *metadata.Controls
}

func (p *pipeline) halStream(streamID uint32) (HalStream, bool) {
	for _, h := range p.hal {
		if h.ID == streamID {
			return h, true
		}
	}
	return HalStream{}, false
}

func (p *pipeline) streamByUsage(u metadata.StreamUsage) (HalStream, bool) {
	for _, h := range p.hal {
		if h.ProducerUsage == u {
			return h, true
		}
	}
	return HalStream{}, false
}

// registry maps pipeline id → pipeline. Guarded by the session lock.
type registry struct {
	nextID    uint32
	pipelines map[uint32]*pipeline
}

func newRegistry() *registry {
	return &registry{pipelines: make(map[uint32]*pipeline)}
}

func (r *registry) add(p *pipeline) uint32 {
	p.id = r.nextID
	r.nextID++
	r.pipelines[p.id] = p
	return p.id
}

func (r *registry) get(id uint32) (*pipeline, bool) {
	p, ok := r.pipelines[id]
	return p, ok
}

func (r *registry) len() int {
	return len(r.pipelines)
}

// ordered returns pipelines by ascending id.
func (r *registry) ordered() []*pipeline {
	out := make([]*pipeline, 0, len(r.pipelines))
	for _, p := range r.pipelines {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (r *registry) clear() {
	r.pipelines = make(map[uint32]*pipeline)
}
