package kumitate

import "fmt"

// CommandLog is a deferred execution context. Every mutation routed through
// it is recorded instead of applied; nothing is visible in the world until
// Playback runs the log. Entity handles are reserved eagerly from the
// world's ID allocator, so strategies, steps, and callers hold real handles
// before playback; the handles are simply empty until then.
//
// A CommandLog is single-threaded; for concurrent production use
// ParallelCommandLog.
type CommandLog struct {
	w        *World
	cmds     []func(*World) error
	reserved []Entity
}

// NewCommandLog creates a deferred command log for the world.
func NewCommandLog(w *World) *CommandLog {
	return &CommandLog{w: w}
}

// World returns the world this log will play back into.
func (l *CommandLog) World() *World {
	return l.w
}

func (l *CommandLog) apply(cmd func(*World) error) error {
	l.cmds = append(l.cmds, cmd)
	return nil
}

func (l *CommandLog) newEntity() Entity {
	e := l.w.reserveEntity()
	l.reserved = append(l.reserved, e)
	l.cmds = append(l.cmds, func(w *World) error {
		return w.placeReserved(e, w.emptyArchetype())
	})
	return e
}

func (l *CommandLog) newFromBlueprint(bp *Blueprint) Entity {
	e := l.w.reserveEntity()
	l.reserved = append(l.reserved, e)
	l.cmds = append(l.cmds, func(_ *World) error {
		return bp.place(e)
	})
	return e
}

func (l *CommandLog) instantiate(prefab Entity) (Entity, error) {
	if !l.w.isValidLocked(prefab) {
		return Entity{}, ErrInvalidPrefab
	}
	e := l.w.reserveEntity()
	l.reserved = append(l.reserved, e)
	l.cmds = append(l.cmds, func(w *World) error {
		return w.cloneReserved(prefab, e)
	})
	return e, nil
}

// Len returns the number of recorded commands.
func (l *CommandLog) Len() int {
	return len(l.cmds)
}

// Playback applies every recorded command to the world, in record order,
// then clears the log. The first failing command stops playback and is
// returned; commands already applied are not rolled back.
func (l *CommandLog) Playback() error {
	for i, cmd := range l.cmds {
		if err := cmd(l.w); err != nil {
			return fmt.Errorf("kumitate: playback command %d: %w", i, err)
		}
	}
	l.clear()
	return nil
}

// Discard drops all recorded commands without applying them and releases
// every entity handle the log reserved, invalidating those handles.
func (l *CommandLog) Discard() {
	for _, e := range l.reserved {
		l.w.releaseReserved(e)
	}
	l.clear()
}

func (l *CommandLog) clear() {
	l.cmds = l.cmds[:0]
	l.reserved = l.reserved[:0]
}

// ParallelCommandLog is a thread-indexed deferred log. Each lane is an
// independent Context safe to drive from its own goroutine; lanes never
// contend except on entity ID reservation and prefab validation, which the
// world serializes.
// Playback replays lanes in index order, each lane in record order, on the
// calling goroutine.
type ParallelCommandLog struct {
	w     *World
	lanes []*CommandLog
}

// NewParallelCommandLog creates a deferred log with the given number of
// lanes, one per producing worker. lanes must be at least 1.
func NewParallelCommandLog(w *World, lanes int) *ParallelCommandLog {
	if lanes < 1 {
		panic("kumitate: parallel command log needs at least one lane")
	}
	p := &ParallelCommandLog{w: w, lanes: make([]*CommandLog, lanes)}
	for i := range p.lanes {
		p.lanes[i] = NewCommandLog(w)
	}
	return p
}

// World returns the world this log will play back into.
func (p *ParallelCommandLog) World() *World {
	return p.w
}

// Lanes returns the number of lanes.
func (p *ParallelCommandLog) Lanes() int {
	return len(p.lanes)
}

// Lane returns the Context bound to lane i. The caller must ensure each
// lane is driven by at most one goroutine at a time.
func (p *ParallelCommandLog) Lane(i int) Context {
	return p.lanes[i]
}

// Playback applies every lane's commands to the world: lanes in index
// order, commands within a lane in record order. The first failing command
// stops playback and is returned.
func (p *ParallelCommandLog) Playback() error {
	for i, lane := range p.lanes {
		if err := lane.Playback(); err != nil {
			return fmt.Errorf("kumitate: lane %d: %w", i, err)
		}
	}
	return nil
}

// Discard drops all lanes' recorded commands and releases their reserved
// entity handles.
func (p *ParallelCommandLog) Discard() {
	for _, lane := range p.lanes {
		lane.Discard()
	}
}
