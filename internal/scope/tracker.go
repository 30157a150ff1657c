package scope

import "slices"

// Tracker manages the work packets that are active on each thread.
// It provides command-query separation for packet access.
//
// Packets on a thread form a stack; the innermost one is current.
type Tracker struct {
	active map[int64][]*WorkPacket // thread id -> open packets, innermost last
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		active: make(map[int64][]*WorkPacket),
	}
}

// Current returns the innermost packet on a thread (query).
// Returns nil if no packet is active there.
func (t *Tracker) Current(threadID int64) *WorkPacket {
	stack := t.active[threadID]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

// Active returns the number of open packets across all threads (query).
func (t *Tracker) Active() int {
	n := 0
	for _, stack := range t.active {
		n += len(stack)
	}
	return n
}

// Above returns the packets opened on a thread after the innermost packet
// with the given name, outermost first (query). Close discards them.
// Returns nil when no such packet is open or nothing is above it.
func (t *Tracker) Above(threadID int64, name string) []*WorkPacket {
	stack := t.active[threadID]
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].Name == name {
			if i == len(stack)-1 {
				return nil
			}
			return slices.Clone(stack[i+1:])
		}
	}
	return nil
}

// Open starts a packet on a thread (command).
func (t *Tracker) Open(threadID int64, name string, begin int64) *WorkPacket {
	wp := NewWorkPacket(threadID, name, begin)
	t.active[threadID] = append(t.active[threadID], wp)
	return wp
}

// Close ends the innermost packet with the given name on a thread (command).
// Packets opened above it on the same thread are discarded with it, since
// their End events can no longer be matched. Returns false when no such
// packet is open.
func (t *Tracker) Close(threadID int64, name string) (*WorkPacket, bool) {
	stack := t.active[threadID]
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].Name != name {
			continue
		}
		wp := stack[i]
		if i == 0 {
			delete(t.active, threadID)
		} else {
			t.active[threadID] = stack[:i]
		}
		return wp, true
	}
	return nil, false
}

// CloseCurrent ends the innermost packet on a thread (command), for End
// events that do not name their packet.
func (t *Tracker) CloseCurrent(threadID int64) (*WorkPacket, bool) {
	wp := t.Current(threadID)
	if wp == nil {
		return nil, false
	}
	stack := t.active[threadID]
	if len(stack) == 1 {
		delete(t.active, threadID)
	} else {
		t.active[threadID] = stack[:len(stack)-1]
	}
	return wp, true
}
