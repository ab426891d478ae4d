package coordinator

import (
	"sync"
	"time"

	"github.com/lokutor-ai/boardroom-runtime/pkg/session"
)

// queueEntry is one agent's raised hand awaiting selection.
type queueEntry struct {
	AgentID   string
	Candidate session.CandidateQuestion
	RaisedAt  time.Time
}

// HandRaiseQueue is the single point of mutual exclusion over who is
// waiting for the floor. All mutation and selection happens under one
// lock so Add/Remove/Select are each atomic with respect to each other.
type HandRaiseQueue struct {
	mu      sync.Mutex
	entries []queueEntry
}

// NewHandRaiseQueue returns an empty queue.
func NewHandRaiseQueue() *HandRaiseQueue {
	return &HandRaiseQueue{}
}

// Add enqueues a candidate. Returns false without modifying the queue if
// the agent already has an entry queued.
func (q *HandRaiseQueue) Add(agentID string, candidate session.CandidateQuestion, raisedAt time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.AgentID == agentID {
			return false
		}
	}
	q.entries = append(q.entries, queueEntry{AgentID: agentID, Candidate: candidate, RaisedAt: raisedAt})
	return true
}

// Remove drops an agent's queued entry, e.g. on HAND_LOWERED. A no-op if
// the agent isn't queued.
func (q *HandRaiseQueue) Remove(agentID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.AgentID == agentID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// Len reports the current queue size.
func (q *HandRaiseQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns a copy of the queue for Sink telemetry.
func (q *HandRaiseQueue) Snapshot() []queueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Select picks and removes the winning entry: the sole entry if the
// queue holds one, otherwise the highest-scoring entry per
// SPEC_FULL.md §4.5's fairness-weighted formula. totalQuestions supplies
// each candidate's running question count for the fairness term.
func (q *HandRaiseQueue) Select(now time.Time, totalQuestions func(agentID string) int) (queueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return queueEntry{}, false
	}
	if len(q.entries) == 1 {
		winner := q.entries[0]
		q.entries = nil
		return winner, true
	}

	bestIdx := 0
	bestScore := score(q.entries[0], now, totalQuestions)
	for i := 1; i < len(q.entries); i++ {
		s := score(q.entries[i], now, totalQuestions)
		if s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}
	winner := q.entries[bestIdx]
	q.entries = append(q.entries[:bestIdx], q.entries[bestIdx+1:]...)
	return winner, true
}

func score(e queueEntry, now time.Time, totalQuestions func(agentID string) int) float64 {
	waited := now.Sub(e.RaisedAt).Seconds()
	fairness := 0.3 * float64(totalQuestions(e.AgentID))
	tiebreak := 1 / (waited + 1)
	return e.Candidate.RelevanceScore - fairness + tiebreak
}
