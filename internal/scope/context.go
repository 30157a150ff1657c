package scope

// Run is the run-wide context: one GC run, or the whole trace when the trace
// carries no run boundary.
type Run struct {
	// Seq numbers runs in stream order, starting at 1. Zero is the implicit
	// trace-wide run that exists before the first boundary.
	Seq       int
	ThreadID  int64
	Begin     int64
	Resources Bag // resource name -> fields
}

// NewRun creates an empty run context.
func NewRun(seq int, threadID, begin int64) *Run {
	return &Run{
		Seq:       seq,
		ThreadID:  threadID,
		Begin:     begin,
		Resources: NewBag(),
	}
}

// Resource returns the field bag of a named resource, creating it on first use.
func (r *Run) Resource(name string) Bag {
	return r.Resources.Sub(name)
}

// WorkPacket is the context of one active unit of GC work.
type WorkPacket struct {
	ThreadID int64
	Name     string
	Begin    int64
	Args     Bag
}

// NewWorkPacket creates an empty work packet context.
func NewWorkPacket(threadID int64, name string, begin int64) *WorkPacket {
	return &WorkPacket{
		ThreadID: threadID,
		Name:     name,
		Begin:    begin,
		Args:     NewBag(),
	}
}
