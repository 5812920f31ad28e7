// Package eventlog implements the zone's fixed-capacity replicated event
// ring buffer. Entries are appended once per tick by the zone orchestrator
// and read by the websocket session layer and the event stream client's
// resync protocol.
package eventlog

import (
	"sync"

	"zonecore/server/internal/model"
	"zonecore/server/logging"
)

// SourceLocation names what caused a replicated event and where it
// happened, carried by events whose category is combat. The zero value
// (empty CauseType) means an entry has no location — lifecycle and
// simulation events typically don't set one.
type SourceLocation struct {
	CauseType string // "ability", "status", "projectile"
	CauseID   string // the originating ability id, status id, or similar
	Position  model.Vec3
}

// Entry is one replicated event record, carrying the sequence id assigned by
// Append and the category/type/payload produced by a subsystem (ability,
// combat, lifecycle, simulation).
type Entry struct {
	Seq      uint64
	Tick     uint64
	Type     logging.EventType
	Payload  any
	Location SourceLocation
}

// Log is a fixed-capacity ring buffer of Entry, strictly increasing by Seq.
// The zero value is not usable; construct with New.
type Log struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry // ring, len == capacity once full
	nextSeq  uint64
	count    int   // entries currently held, <= capacity
	head     int   // index of the oldest entry when count == capacity
	dropped  uint64
}

// New constructs a Log with the given fixed capacity. Capacity must be at
// least 1.
func New(capacity int) *Log {
	if capacity < 1 {
		capacity = 1
	}
	return &Log{
		capacity: capacity,
		entries:  make([]Entry, capacity),
	}
}

// Append assigns the next sequence id (starting at 1), overwriting the
// oldest slot once the buffer is full, and returns the assigned seq.
func (l *Log) Append(tick uint64, typ logging.EventType, payload any) uint64 {
	return l.append(tick, typ, payload, SourceLocation{})
}

// AppendLocated is Append plus a SourceLocation, for the combat-category
// events that usually carry one (AbilityCastStart/Finish/Interrupt,
// AbilityEffectApplied, MobEnterCombat, MobExitCombat).
func (l *Log) AppendLocated(tick uint64, typ logging.EventType, payload any, loc SourceLocation) uint64 {
	return l.append(tick, typ, payload, loc)
}

func (l *Log) append(tick uint64, typ logging.EventType, payload any, loc SourceLocation) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	seq := l.nextSeq
	entry := Entry{Seq: seq, Tick: tick, Type: typ, Payload: payload, Location: loc}

	if l.count < l.capacity {
		l.entries[l.count] = entry
		l.count++
		return seq
	}

	l.entries[l.head] = entry
	l.head = (l.head + 1) % l.capacity
	l.dropped++
	return seq
}

// Bounds returns the oldest and latest sequence ids currently retained.
// Both are 0 when the log is empty.
func (l *Log) Bounds() (oldest, latest uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.boundsLocked()
}

func (l *Log) boundsLocked() (oldest, latest uint64) {
	if l.count == 0 {
		return 0, 0
	}
	latest = l.nextSeq
	oldest = latest - uint64(l.count) + 1
	return oldest, latest
}

// Since returns every entry with seq in (afterSeq, latest]. ok is false when
// afterSeq predates the oldest retained entry (evicted); callers should fall
// back to a full resync using Bounds.
func (l *Log) Since(afterSeq uint64) (entries []Entry, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	oldest, latest := l.boundsLocked()
	if l.count == 0 {
		return nil, true
	}
	if afterSeq+1 < oldest {
		return nil, false
	}
	if afterSeq >= latest {
		return nil, true
	}
	return l.sliceLocked(afterSeq+1, latest), true
}

// Range returns entries with seq in [lo, hi]. ok is false when the request
// falls outside [oldest, latest].
func (l *Log) Range(lo, hi uint64) (entries []Entry, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	oldest, latest := l.boundsLocked()
	if l.count == 0 || lo > hi || lo < oldest || hi > latest {
		return nil, false
	}
	return l.sliceLocked(lo, hi), true
}

// sliceLocked returns entries with seq in [lo, hi]; caller holds l.mu and has
// already validated the range is within bounds.
func (l *Log) sliceLocked(lo, hi uint64) []Entry {
	oldest, _ := l.boundsLocked()
	start := int(lo - oldest)
	end := int(hi-oldest) + 1
	out := make([]Entry, 0, end-start)
	base := l.head
	if l.count < l.capacity {
		base = 0
	}
	for i := start; i < end; i++ {
		idx := (base + i) % l.capacity
		out = append(out, l.entries[idx])
	}
	return out
}

// Dropped reports how many entries have been evicted over the log's
// lifetime, exposed for telemetry.
func (l *Log) Dropped() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}
