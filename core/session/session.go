// Package session implements the transactional undo/commit scope: a
// write-ahead log of (undo-entry) closures, nested as a stack, where
// commit concatenates into the parent and discard reverses in reverse
// order. One transaction runs inside one session; one block wraps a
// commit of all its transactions' sessions at the outermost scope.
package session

// undo is a single log entry: applying it reverses one mutation.
type undo func()

// Session is a nested transactional scope over core state. It holds no
// domain knowledge of what it is undoing — callers record an undo
// closure for each mutation via Record, and Session replays them in
// reverse on Discard.
type Session struct {
	parent *Session
	log    []undo
	done   bool
}

// New starts a top-level (block-boundary) session.
func New() *Session {
	return &Session{}
}

// Begin starts a nested session scoped to one operation within the
// parent's transaction or block.
func (s *Session) Begin() *Session {
	return &Session{parent: s}
}

// Record appends an undo closure to the session's write-ahead log. It
// must be called by the mutator immediately before (or as) each mutation
// is applied, with a closure that exactly reverses that one mutation.
func (s *Session) Record(u undo) {
	if s == nil || s.done {
		return
	}
	s.log = append(s.log, u)
}

// Commit concatenates this session's log into its parent's, or — if this
// is the outermost session — simply finalizes it (there is no further
// parent to propagate to; the mutations already happened in place).
func (s *Session) Commit() {
	if s == nil || s.done {
		return
	}
	s.done = true
	if s.parent != nil {
		s.parent.log = append(s.parent.log, s.log...)
	}
	s.log = nil
}

// Discard reverses every recorded mutation, in reverse order, undoing
// this session's effects entirely. A discarded session's parent is left
// untouched, since none of this session's mutations were ever propagated
// to it.
func (s *Session) Discard() {
	if s == nil || s.done {
		return
	}
	s.done = true
	for i := len(s.log) - 1; i >= 0; i-- {
		s.log[i]()
	}
	s.log = nil
}

// Depth reports how many sessions deep s is nested (0 = outermost).
func (s *Session) Depth() int {
	depth := 0
	for p := s.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}
