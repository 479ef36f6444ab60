package highlight

import "testing"

func TestLoadGroupsByVerseAndSorts(t *testing.T) {
	s := NewLocalStore()
	s.Load([]Highlight{
		{ID: "hl_3", VerseID: "v2", StartIndex: 0, EndIndex: 4, UserID: "u1"},
		{ID: "hl_1", VerseID: "v1", StartIndex: 8, EndIndex: 12, UserID: "u1"},
		{ID: "hl_2", VerseID: "v1", StartIndex: 0, EndIndex: 5, UserID: "u1"},
	})

	bucket := s.Bucket("v1")
	if len(bucket) != 2 {
		t.Fatalf("expected 2 highlights in v1, got %d", len(bucket))
	}
	if bucket[0].ID != "hl_2" || bucket[1].ID != "hl_1" {
		t.Errorf("bucket not sorted by start index: %+v", bucket)
	}
	if len(s.Bucket("v2")) != 1 {
		t.Errorf("expected 1 highlight in v2")
	}
}

// After any sequence of upserts, no two highlights in a bucket may overlap.
func TestUpsertMaintainsNoSelfOverlap(t *testing.T) {
	s := NewLocalStore()
	spans := [][2]int{{0, 5}, {3, 8}, {7, 9}, {1, 2}, {0, 20}, {4, 6}, {15, 18}}

	for _, span := range spans {
		s.Upsert("v1", Highlight{VerseID: "v1", StartIndex: span[0], EndIndex: span[1], UserID: "u1"})
		bucket := s.Bucket("v1")
		for i := range bucket {
			for j := i + 1; j < len(bucket); j++ {
				if bucket[i].Overlaps(bucket[j].StartIndex, bucket[j].EndIndex) {
					t.Fatalf("after upsert %v bucket contains overlapping %+v and %+v", span, bucket[i], bucket[j])
				}
			}
		}
	}
}

func TestRemoveMatchesExactRange(t *testing.T) {
	s := NewLocalStore()
	s.Upsert("v1", Highlight{VerseID: "v1", StartIndex: 0, EndIndex: 5, UserID: "u1"})
	s.Upsert("v1", Highlight{VerseID: "v1", StartIndex: 8, EndIndex: 12, UserID: "u1"})

	if s.Remove("v1", 0, 4) {
		t.Error("remove with a near-miss range should not match")
	}
	if !s.Remove("v1", 0, 5) {
		t.Error("remove with the exact range should match")
	}
	if len(s.Bucket("v1")) != 1 {
		t.Errorf("expected 1 highlight left, got %d", len(s.Bucket("v1")))
	}
}

func TestUpdateColorPreservesIdentity(t *testing.T) {
	s := NewLocalStore()
	s.Load([]Highlight{{ID: "hl_1", VerseID: "v1", StartIndex: 2, EndIndex: 6, Color: "#FFEB3B", UserID: "u1"}})

	if !s.UpdateColor("v1", 2, 6, "#90CAF9") {
		t.Fatal("expected color update to match")
	}
	bucket := s.Bucket("v1")
	if bucket[0].ID != "hl_1" {
		t.Errorf("identity lost on color update: %+v", bucket[0])
	}
	if bucket[0].Color != "#90CAF9" {
		t.Errorf("color not updated: %+v", bucket[0])
	}
}

func TestApplyRemoteIsIdempotent(t *testing.T) {
	s := NewLocalStore()
	remote := Highlight{VerseID: "v1", StartIndex: 3, EndIndex: 9, Color: "#FFEB3B", UserID: "u2"}

	if !s.ApplyRemote(remote) {
		t.Fatal("first receipt should apply")
	}
	if s.ApplyRemote(remote) {
		t.Error("second receipt of the same event should be dropped")
	}
	if len(s.Bucket("v1")) != 1 {
		t.Errorf("expected exactly one entry, got %d", len(s.Bucket("v1")))
	}
}

// Remote receipt appends without replace-on-overlap; overlapping spans from
// different sessions may coexist until the next full reload.
func TestApplyRemoteDoesNotMerge(t *testing.T) {
	s := NewLocalStore()
	s.Upsert("v1", Highlight{VerseID: "v1", StartIndex: 0, EndIndex: 10, UserID: "u1"})

	s.ApplyRemote(Highlight{VerseID: "v1", StartIndex: 5, EndIndex: 15, UserID: "u1"})
	if len(s.Bucket("v1")) != 2 {
		t.Errorf("remote receipt should append, not merge: %+v", s.Bucket("v1"))
	}
}

func TestAllFlattenedAndOwnership(t *testing.T) {
	s := NewLocalStore()
	s.Upsert("v1", Highlight{VerseID: "v1", StartIndex: 0, EndIndex: 5, UserID: "u1"})
	s.Upsert("v2", Highlight{VerseID: "v2", StartIndex: 1, EndIndex: 3, UserID: "u1"})
	s.ApplyRemote(Highlight{VerseID: "v1", StartIndex: 6, EndIndex: 9, UserID: "u2"})

	if got := len(s.AllFlattened()); got != 3 {
		t.Errorf("AllFlattened: expected 3, got %d", got)
	}
	owned := s.AllOwnedBy("u1")
	if len(owned) != 2 {
		t.Errorf("AllOwnedBy(u1): expected 2, got %d", len(owned))
	}
	for _, h := range owned {
		if h.UserID != "u1" {
			t.Errorf("foreign highlight in owned set: %+v", h)
		}
	}
}

func TestBucketReturnsCopy(t *testing.T) {
	s := NewLocalStore()
	s.Upsert("v1", Highlight{VerseID: "v1", StartIndex: 0, EndIndex: 5, Color: "#FFEB3B", UserID: "u1"})

	bucket := s.Bucket("v1")
	bucket[0].Color = "#000000"
	if s.Bucket("v1")[0].Color != "#FFEB3B" {
		t.Error("mutating a returned bucket leaked into the store")
	}
}
