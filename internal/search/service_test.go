package search

import (
	"errors"
	"testing"
)

type fakeSearcher struct {
	healthy bool
	results []Result
	total   int
	err     error
	calls   int
}

func (f *fakeSearcher) Search(q Query) ([]Result, int, error) {
	f.calls++
	return f.results, f.total, f.err
}

func (f *fakeSearcher) Healthy() bool { return f.healthy }

func TestServiceUsesPrimaryWhenHealthy(t *testing.T) {
	primary := &fakeSearcher{
		healthy: true,
		results: []Result{{VerseID: "jn-3-16", Snippet: "For God so <mark>loved</mark>"}},
		total:   1,
	}
	fallback := &fakeSearcher{healthy: true}
	svc := &Service{primary: primary, fallback: fallback}

	resp := svc.Search(Query{Text: "loved"})
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Results[0].VerseID != "jn-3-16" {
		t.Fatalf("wrong verse: %s", resp.Results[0].VerseID)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback should not be queried, got %d calls", fallback.calls)
	}
}

func TestServiceFallsBackWhenPrimaryUnhealthy(t *testing.T) {
	primary := &fakeSearcher{healthy: false}
	fallback := &fakeSearcher{
		healthy: true,
		results: []Result{{VerseID: "ps-23-1"}},
		total:   1,
	}
	svc := &Service{primary: primary, fallback: fallback}

	resp := svc.Search(Query{Text: "shepherd"})
	if primary.calls != 0 {
		t.Fatalf("unhealthy primary should be skipped, got %d calls", primary.calls)
	}
	if fallback.calls != 1 || resp.Total != 1 {
		t.Fatalf("fallback not used: calls=%d resp=%+v", fallback.calls, resp)
	}
}

func TestServiceFallsBackWhenPrimaryErrors(t *testing.T) {
	primary := &fakeSearcher{healthy: true, err: errors.New("connection refused")}
	fallback := &fakeSearcher{
		healthy: true,
		results: []Result{{VerseID: "gen-1-1"}},
		total:   1,
	}
	svc := &Service{primary: primary, fallback: fallback}

	resp := svc.Search(Query{Text: "beginning"})
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("expected both backends queried, primary=%d fallback=%d", primary.calls, fallback.calls)
	}
	if resp.Total != 1 || resp.Results[0].VerseID != "gen-1-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestServiceNeverReturnsNilResults(t *testing.T) {
	fallback := &fakeSearcher{healthy: true, err: errors.New("db down")}
	svc := &Service{fallback: fallback}

	resp := svc.Search(Query{Text: "anything"})
	if resp.Results == nil {
		t.Fatal("results must be an empty slice, not nil")
	}
	if resp.Total != 0 {
		t.Fatalf("total should be 0 on error, got %d", resp.Total)
	}
}

func TestServiceNoPrimaryConfigured(t *testing.T) {
	svc := NewService(nil, &PgFTS{})
	if svc.primary != nil {
		t.Fatal("nil meili must leave primary unset")
	}
}
