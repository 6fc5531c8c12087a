package research

import "sync"

// tracker owns the Progress of one top-level Research call. Every branch of
// the tree updates it through update, and the observer sees each update in
// the order it was applied.
type tracker struct {
	mu         sync.Mutex
	progress   Progress
	onProgress func(Progress)
}

func newTracker(breadth, depth int, onProgress func(Progress)) *tracker {
	return &tracker{
		progress: Progress{
			CurrentDepth:   depth,
			TotalDepth:     depth,
			CurrentBreadth: breadth,
			TotalBreadth:   breadth,
		},
		onProgress: onProgress,
	}
}

func (t *tracker) update(fn func(p *Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&t.progress)
	if t.progress.CompletedQueries > t.progress.TotalQueries {
		t.progress.CompletedQueries = t.progress.TotalQueries
	}
	if t.onProgress != nil {
		t.onProgress(t.progress)
	}
}

func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}
