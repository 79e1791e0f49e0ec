package spanz

// Slot carries the active ThreadContext of one logical flow.
// It holds at most one occupant and is not synchronized: each goroutine or
// continuation owns its own Slot.
type Slot struct {
	tc *ThreadContext
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Get returns the occupant, or nil.
func (s *Slot) Get() *ThreadContext {
	return s.tc
}

// Set installs tc, replacing any occupant.
// Starts go through Agent.StartTransaction and AuxThreadContext.Start, which
// never overwrite.
func (s *Slot) Set(tc *ThreadContext) {
	s.tc = tc
}

// Clear empties the slot.
func (s *Slot) Clear() {
	s.tc = nil
}

// Occupied reports whether a ThreadContext is installed.
func (s *Slot) Occupied() bool {
	return s.tc != nil
}
