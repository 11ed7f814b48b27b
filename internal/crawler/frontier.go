package crawler

import (
	"sync"
)

// VisitState is the lifecycle state of a URL in the frontier.
// States only move forward: Pending, then Fetching, then one of the
// terminal Visited states.
type VisitState int

const (
	// StateUnknown means the URL has never been offered to the frontier.
	StateUnknown VisitState = iota

	// StatePending means the URL is queued and not yet dequeued.
	StatePending

	// StateFetching means the URL was dequeued and is being processed.
	StateFetching

	// StateVisitedSuccess means the URL was fetched and parsed as HTML.
	StateVisitedSuccess

	// StateVisitedNonHTML means the URL was fetched but is not HTML.
	StateVisitedNonHTML

	// StateVisitedFailed means the fetch failed or timed out.
	StateVisitedFailed
)

// String returns a human-readable representation of the state.
func (s VisitState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StateVisitedSuccess:
		return "visited_success"
	case StateVisitedNonHTML:
		return "visited_non_html"
	case StateVisitedFailed:
		return "visited_failed"
	default:
		return "unknown"
	}
}

// IsVisited reports whether the URL has been dequeued.
func (s VisitState) IsVisited() bool {
	return s >= StateFetching
}

// isTerminal reports whether the state can no longer change.
func (s VisitState) isTerminal() bool {
	return s >= StateVisitedSuccess
}

// Frontier is the bounded breadth-first crawl state: a FIFO queue of
// pending URLs plus the set of URLs already dequeued.
//
// A URL is enqueued at most once. Once dequeued it stays visited, even if
// its fetch fails. The sum of visited and queued URLs never exceeds the
// page budget.
type Frontier struct {
	// budget is the maximum number of URLs that will ever be dequeued.
	budget int

	// queue holds pending URLs in FIFO order.
	queue []string

	// states tracks every URL ever offered.
	states map[string]VisitState

	// visited is the number of dequeued URLs.
	visited int

	// mutex protects all fields. The frontier is single-writer in the
	// crawl loop; the lock makes Stats safe from other goroutines.
	mutex sync.Mutex
}

// NewFrontier creates an empty frontier with the given page budget.
func NewFrontier(budget int) *Frontier {
	return &Frontier{
		budget: budget,
		queue:  make([]string, 0),
		states: make(map[string]VisitState),
	}
}

// Offer enqueues u if it has never been offered before and the budget
// still has room for it. It reports whether u was enqueued.
func (f *Frontier) Offer(u string) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.states[u] != StateUnknown {
		return false
	}
	if f.visited+len(f.queue) >= f.budget {
		return false
	}
	f.queue = append(f.queue, u)
	f.states[u] = StatePending
	return true
}

// Next dequeues the oldest pending URL and marks it as fetching.
// It returns false when the queue is empty or the budget is exhausted.
func (f *Frontier) Next() (string, bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if len(f.queue) == 0 || f.visited >= f.budget {
		return "", false
	}
	u := f.queue[0]
	f.queue = f.queue[1:]
	f.states[u] = StateFetching
	f.visited++
	return u, true
}

// Complete records the terminal state of a dequeued URL. States never
// revert: completing a URL that is not being fetched has no effect.
func (f *Frontier) Complete(u string, state VisitState) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if !state.isTerminal() || f.states[u] != StateFetching {
		return
	}
	f.states[u] = state
}

// State returns the current state of u.
func (f *Frontier) State(u string) VisitState {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.states[u]
}

// Visited returns the number of dequeued URLs.
func (f *Frontier) Visited() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.visited
}

// Len returns the number of pending URLs.
func (f *Frontier) Len() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.queue)
}

// Pending returns a copy of the pending queue in FIFO order.
func (f *Frontier) Pending() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	out := make([]string, len(f.queue))
	copy(out, f.queue)
	return out
}
