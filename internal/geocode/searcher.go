package geocode

import (
	"context"
	"strings"
	"sync"
	"time"

	"accizard/internal/domain"
)

type Suggester interface {
	Search(ctx context.Context, query string) []domain.Suggestion
}

// SearchResult is one suggestion list. Open is false when the suggestion
// dropdown should be closed.
type SearchResult struct {
	Seq         uint64              `json:"seq"`
	Query       string              `json:"query"`
	Suggestions []domain.Suggestion `json:"suggestions"`
	Open        bool                `json:"open"`
}

// Searcher debounces keystrokes and delivers suggestions. Each keystroke
// cancels the pending and in-flight request; a result is delivered only if
// no later keystroke arrived, so an older list never replaces a newer one.
type Searcher struct {
	base    context.Context
	source  Suggester
	delay   time.Duration
	deliver func(SearchResult)

	mu       sync.Mutex
	outMu    sync.Mutex
	seq      uint64
	applied  uint64
	timer    *time.Timer
	inflight context.CancelFunc
	latest   SearchResult
	closed   bool
}

// NewSearcher builds a Searcher; deliver must not call back into it.
func NewSearcher(ctx context.Context, source Suggester, delay time.Duration, deliver func(SearchResult)) *Searcher {
	return &Searcher{
		base:    ctx,
		source:  source,
		delay:   delay,
		deliver: deliver,
		latest:  SearchResult{Suggestions: []domain.Suggestion{}},
	}
}

// Input registers a keystroke with the full current query.
func (s *Searcher) Input(query string) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	n := s.seq
	s.stopLocked()

	q := strings.TrimSpace(query)
	if len([]rune(q)) < MinQueryLength {
		s.publishLocked(SearchResult{Seq: n, Query: q, Suggestions: []domain.Suggestion{}})
		return
	}

	s.timer = time.AfterFunc(s.delay, func() { s.run(n, q) })
	s.mu.Unlock()
}

// Latest returns the most recently delivered result.
func (s *Searcher) Latest() SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.stopLocked()
}

func (s *Searcher) run(n uint64, q string) {
	ctx, cancel := context.WithCancel(s.base)
	defer cancel()

	s.mu.Lock()
	if s.closed || n != s.seq {
		s.mu.Unlock()
		return
	}
	s.inflight = cancel
	s.mu.Unlock()

	suggestions := s.source.Search(ctx, q)

	s.mu.Lock()
	if s.closed || n != s.seq || n <= s.applied {
		s.mu.Unlock()
		return
	}
	s.inflight = nil
	s.publishLocked(SearchResult{Seq: n, Query: q, Suggestions: suggestions, Open: true})
}

// publishLocked records r and delivers it. It is entered with mu held and
// releases it; outMu keeps deliveries in sequence order.
func (s *Searcher) publishLocked(r SearchResult) {
	s.applied = r.Seq
	s.latest = r
	s.outMu.Lock()
	s.mu.Unlock()
	defer s.outMu.Unlock()

	if s.deliver != nil {
		s.deliver(r)
	}
}

func (s *Searcher) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
}
