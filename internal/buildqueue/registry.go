package buildqueue

import "sync"

// Registry maps build id → live build for the span between admission and
// completion. Holders of the lock perform only map operations under it.
type Registry struct {
	mu     sync.RWMutex
	builds map[uint64]*LiveBuild
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builds: make(map[uint64]*LiveBuild)}
}

// Add inserts a live build.
func (r *Registry) Add(lb *LiveBuild) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builds[lb.Record.ID] = lb
}

// Remove deletes a build by id.
func (r *Registry) Remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.builds, id)
}

// Get returns the live build for id, if present.
func (r *Registry) Get(id uint64) (*LiveBuild, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lb, ok := r.builds[id]
	return lb, ok
}

// Len returns the number of in-flight builds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.builds)
}

// Snapshot returns the current live builds in unspecified order.
func (r *Registry) Snapshot() []*LiveBuild {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*LiveBuild, 0, len(r.builds))
	for _, lb := range r.builds {
		out = append(out, lb)
	}
	return out
}
