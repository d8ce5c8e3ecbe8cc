package geocode

import (
	"context"
	"sync"
	"testing"
	"time"

	"accizard/internal/domain"
)

// slowSuggester answers each query after the configured delay.
type slowSuggester struct {
	mu     sync.Mutex
	delays map[string]time.Duration
	calls  []string
}

func (s *slowSuggester) Search(ctx context.Context, q string) []domain.Suggestion {
	s.mu.Lock()
	s.calls = append(s.calls, q)
	d := s.delays[q]
	s.mu.Unlock()

	select {
	case <-time.After(d):
	case <-ctx.Done():
		return []domain.Suggestion{}
	}
	return []domain.Suggestion{{ID: q, Label: q}}
}

func (s *slowSuggester) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func collect() (func(SearchResult), func() []SearchResult) {
	var mu sync.Mutex
	var got []SearchResult
	return func(r SearchResult) {
			mu.Lock()
			got = append(got, r)
			mu.Unlock()
		}, func() []SearchResult {
			mu.Lock()
			defer mu.Unlock()
			return append([]SearchResult(nil), got...)
		}
}

func TestSearcher_DebounceOnlyLastKeystroke(t *testing.T) {
	t.Parallel()

	src := &slowSuggester{delays: map[string]time.Duration{}}
	deliver, results := collect()
	s := NewSearcher(context.Background(), src, 30*time.Millisecond, deliver)
	defer s.Close()

	for _, q := range []string{"luc", "lucb", "lucba", "lucban"} {
		s.Input(q)
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	if calls := src.Calls(); len(calls) != 1 || calls[0] != "lucban" {
		t.Fatalf("expected a single request for the last query, got %v", calls)
	}
	got := results()
	if len(got) != 1 || got[0].Query != "lucban" || !got[0].Open {
		t.Fatalf("unexpected deliveries: %+v", got)
	}
}

func TestSearcher_StaleResultDiscarded(t *testing.T) {
	t.Parallel()

	src := &slowSuggester{delays: map[string]time.Duration{
		"manila": 120 * time.Millisecond,
		"lucban": 5 * time.Millisecond,
	}}
	deliver, results := collect()
	s := NewSearcher(context.Background(), src, 10*time.Millisecond, deliver)
	defer s.Close()

	s.Input("manila")
	time.Sleep(40 * time.Millisecond) // debounce fired, request in flight
	s.Input("lucban")
	time.Sleep(250 * time.Millisecond)

	got := results()
	if len(got) != 1 || got[0].Query != "lucban" {
		t.Fatalf("expected only the newer result, got %+v", got)
	}
	if latest := s.Latest(); latest.Query != "lucban" {
		t.Fatalf("latest overwritten by stale result: %+v", latest)
	}
}

func TestSearcher_ShortQueryClosesImmediately(t *testing.T) {
	t.Parallel()

	src := &slowSuggester{delays: map[string]time.Duration{}}
	deliver, results := collect()
	s := NewSearcher(context.Background(), src, 20*time.Millisecond, deliver)
	defer s.Close()

	s.Input("lucban")
	s.Input("lu")
	time.Sleep(80 * time.Millisecond)

	if calls := src.Calls(); len(calls) != 0 {
		t.Fatalf("expected pending request cancelled, got %v", calls)
	}
	got := results()
	if len(got) != 1 || got[0].Open || len(got[0].Suggestions) != 0 {
		t.Fatalf("expected one closed empty result, got %+v", got)
	}
}
