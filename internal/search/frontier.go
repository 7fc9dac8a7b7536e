package search

// Frontier is the work queue of pending units. Expansion children go to the
// front so subdivided prefixes finish depth-first before the queue moves on;
// retried units go to the back. Not safe for concurrent use; the discovery
// loop is single-threaded.
type Frontier struct {
	units []Unit
}

// NewFrontier seeds a frontier with the plan units in order.
func NewFrontier(plan []Unit) *Frontier {
	f := &Frontier{units: make([]Unit, len(plan))}
	copy(f.units, plan)
	return f
}

// Len returns the number of queued units.
func (f *Frontier) Len() int {
	return len(f.units)
}

// Pop removes and returns the next unit whose key is not in completed.
// Completed units can appear here when an expansion and the original plan
// both queued them; they are dropped silently.
func (f *Frontier) Pop(completed map[string]struct{}) (Unit, bool) {
	for len(f.units) > 0 {
		u := f.units[0]
		f.units = f.units[1:]
		if _, done := completed[u.Key()]; done {
			continue
		}
		return u, true
	}
	return Unit{}, false
}

// PushFront inserts units at the head of the queue, preserving their order.
func (f *Frontier) PushFront(units []Unit) {
	if len(units) == 0 {
		return
	}
	merged := make([]Unit, 0, len(units)+len(f.units))
	merged = append(merged, units...)
	merged = append(merged, f.units...)
	f.units = merged
}

// PushBack appends a unit at the tail, used for retries.
func (f *Frontier) PushBack(u Unit) {
	f.units = append(f.units, u)
}

// Promote moves the unit with the given key to the head of the queue, so a
// resumed run picks up the unit that was in progress when the last run
// stopped. No-op when the key is not queued.
func (f *Frontier) Promote(key string) {
	for i, u := range f.units {
		if u.Key() != key {
			continue
		}
		if i > 0 {
			copy(f.units[1:i+1], f.units[:i])
			f.units[0] = u
		}
		return
	}
}
