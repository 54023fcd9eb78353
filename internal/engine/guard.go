package engine

import "sync"

// SubmissionGuard arbitrates the race between a manual submission and timer
// expiry for each question index. The first caller wins the single accept slot;
// every later caller for the same index is rejected, so exactly one answer can
// ever be recorded per question.
type SubmissionGuard struct {
	mu       sync.Mutex
	resolved map[int]bool
}

func NewSubmissionGuard() *SubmissionGuard {
	return &SubmissionGuard{resolved: make(map[int]bool)}
}

// TrySubmit claims the accept slot for index. Returns true for the winner.
func (g *SubmissionGuard) TrySubmit(index int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resolved[index] {
		return false
	}
	g.resolved[index] = true
	return true
}

// Resolved reports whether an index has already accepted a submission.
func (g *SubmissionGuard) Resolved(index int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolved[index]
}

// MarkResolved pre-claims an index. Used when rehydrating a session whose
// earlier questions were already answered.
func (g *SubmissionGuard) MarkResolved(index int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resolved[index] = true
}
