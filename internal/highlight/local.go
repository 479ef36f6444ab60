package highlight

import (
	"sort"
	"sync"
)

// LocalStore is the authoritative in-memory copy of a session's highlights,
// grouped by verse. It is populated once after sign-in and mutated by every
// local edit and every received remote event, independent of whether the
// coordinator has persisted it yet. Operations never block on I/O.
type LocalStore struct {
	mu      sync.RWMutex
	byVerse map[string][]Highlight
}

func NewLocalStore() *LocalStore {
	return &LocalStore{byVerse: make(map[string][]Highlight)}
}

// Load replaces the entire map with the given highlights grouped by verse.
func (s *LocalStore) Load(highlights []Highlight) {
	grouped := make(map[string][]Highlight)
	for _, h := range highlights {
		grouped[h.VerseID] = append(grouped[h.VerseID], h)
	}
	for verseID := range grouped {
		sortBucket(grouped[verseID])
	}

	s.mu.Lock()
	s.byVerse = grouped
	s.mu.Unlock()
}

// Upsert applies replace-on-overlap for the verse's bucket and returns the
// updated bucket.
func (s *LocalStore) Upsert(verseID string, newHighlight Highlight) []Highlight {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := ReplaceOverlapping(s.byVerse[verseID], newHighlight)
	sortBucket(bucket)
	s.byVerse[verseID] = bucket
	return append([]Highlight(nil), bucket...)
}

// Remove deletes the highlight matching the exact range. Identity is by
// range because a not-yet-persisted highlight has no ID.
func (s *LocalStore) Remove(verseID string, startIndex, endIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.byVerse[verseID]
	for i, h := range bucket {
		if h.StartIndex == startIndex && h.EndIndex == endIndex {
			s.byVerse[verseID] = append(bucket[:i:i], bucket[i+1:]...)
			if len(s.byVerse[verseID]) == 0 {
				delete(s.byVerse, verseID)
			}
			return true
		}
	}
	return false
}

// UpdateColor mutates the color of the highlight matching the exact range,
// preserving its identity.
func (s *LocalStore) UpdateColor(verseID string, startIndex, endIndex int, color string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.byVerse[verseID]
	for i, h := range bucket {
		if h.StartIndex == startIndex && h.EndIndex == endIndex {
			bucket[i].Color = color
			return true
		}
	}
	return false
}

// ApplyRemote inserts a highlight received over the propagation channel.
// The insert is idempotent: a highlight with the same verse, range and owner
// is dropped. Remote highlights are appended as-is, without replace-on-
// overlap against local state.
func (s *LocalStore) ApplyRemote(incoming Highlight) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.byVerse[incoming.VerseID]
	for _, h := range bucket {
		if h.sameSpan(incoming) {
			return false
		}
	}
	bucket = append(bucket, incoming)
	sortBucket(bucket)
	s.byVerse[incoming.VerseID] = bucket
	return true
}

// Bucket returns a copy of one verse's highlights sorted by start index.
func (s *LocalStore) Bucket(verseID string) []Highlight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Highlight(nil), s.byVerse[verseID]...)
}

// All returns every bucket keyed by verse.
func (s *LocalStore) All() map[string][]Highlight {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]Highlight, len(s.byVerse))
	for verseID, bucket := range s.byVerse {
		out[verseID] = append([]Highlight(nil), bucket...)
	}
	return out
}

// AllFlattened returns every highlight across every verse bucket.
func (s *LocalStore) AllFlattened() []Highlight {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Highlight
	for _, bucket := range s.byVerse {
		out = append(out, bucket...)
	}
	return out
}

// AllOwnedBy returns every highlight belonging to userID. Highlights
// received over the channel from collaborators stay out of the owner's
// persistence batch.
func (s *LocalStore) AllOwnedBy(userID string) []Highlight {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Highlight
	for _, bucket := range s.byVerse {
		for _, h := range bucket {
			if h.UserID == userID {
				out = append(out, h)
			}
		}
	}
	return out
}

// adoptPersisted copies storage-assigned ids onto the local highlights that
// match the persisted rows by owner and exact span. Matching, rather than
// swapping the owner's set for the persisted one, keeps edits that landed
// while the batch write was in flight: a highlight created mid-flight has no
// persisted row and stays put, and a span removed mid-flight matches nothing
// and is not resurrected. The next persist reconciles storage.
func (s *LocalStore) adoptPersisted(userID string, persisted []Highlight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range persisted {
		bucket := s.byVerse[p.VerseID]
		for i := range bucket {
			if bucket[i].UserID == userID &&
				bucket[i].StartIndex == p.StartIndex &&
				bucket[i].EndIndex == p.EndIndex {
				bucket[i].ID = p.ID
				break
			}
		}
	}
}

func sortBucket(bucket []Highlight) {
	sort.Slice(bucket, func(i, j int) bool {
		return bucket[i].StartIndex < bucket[j].StartIndex
	})
}
