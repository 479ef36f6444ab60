package highlight

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Store is the document-store contract the coordinator persists against.
// ReplaceUserHighlights must be atomic: delete every persisted highlight
// owned by the user and insert the given set as one all-or-nothing batch,
// returning the inserted rows with their storage-assigned ids.
type Store interface {
	HighlightsByUser(ctx context.Context, userID string) ([]Highlight, error)
	ReplaceUserHighlights(ctx context.Context, userID string, highlights []Highlight) ([]Highlight, error)
	DeleteHighlight(ctx context.Context, highlightID, userID string) error
	UpdateHighlightColor(ctx context.Context, highlightID, userID, color string) error
}

// Channel is the live propagation side. Send is best-effort: failures are
// logged and never affect local state or the dirty flag, because the
// channel is a latency optimization, not the durability path.
type Channel interface {
	Send(h Highlight) error
}

// Coordinator owns one session's local highlight state and moves it into
// durable storage with a full-replace protocol. All entry points are safe
// for concurrent use; the needsSync/isSyncing flags are guarded by mu and
// the storage round trip itself runs outside the lock.
type Coordinator struct {
	store   Store
	channel Channel // may be nil
	userID  string
	local   *LocalStore

	mu        sync.Mutex
	needsSync bool
	isSyncing bool
	edits     uint64 // bumped on every local mutation, guards the dirty-flag clear
}

func NewCoordinator(store Store, channel Channel, userID string) *Coordinator {
	return &Coordinator{
		store:   store,
		channel: channel,
		userID:  userID,
		local:   NewLocalStore(),
	}
}

// Local exposes the in-memory store for read paths (rendering, export).
func (c *Coordinator) Local() *LocalStore {
	return c.local
}

func (c *Coordinator) UserID() string {
	return c.userID
}

func (c *Coordinator) NeedsSync() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.needsSync
}

func (c *Coordinator) Syncing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isSyncing
}

// Load replaces local state with the user's persisted highlights.
func (c *Coordinator) Load(ctx context.Context) error {
	highlights, err := c.store.HighlightsByUser(ctx, c.userID)
	if err != nil {
		return fmt.Errorf("load highlights: %w", err)
	}
	c.local.Load(highlights)

	c.mu.Lock()
	c.needsSync = false
	c.mu.Unlock()
	return nil
}

// Create builds a highlight from a raw selection and applies it with
// replace-on-overlap. An empty selection (a == b after normalizing) is a
// user-input no-op, not an error: nothing is created and no state changes.
// On success the highlight is emitted over the channel.
func (c *Coordinator) Create(verseID string, a, b int, color string) (Highlight, bool) {
	start, end := Normalize(a, b)
	if start == end || start < 0 {
		return Highlight{}, false
	}

	h := Highlight{
		VerseID:    verseID,
		StartIndex: start,
		EndIndex:   end,
		Color:      color,
		UserID:     c.userID,
	}
	c.local.Upsert(verseID, h)
	c.markDirty()

	if c.channel != nil {
		if err := c.channel.Send(h); err != nil {
			log.Printf("highlight: channel send failed: %v", err)
		}
	}
	return h, true
}

// Remove deletes the highlight matching the exact range from local state.
func (c *Coordinator) Remove(verseID string, startIndex, endIndex int) bool {
	removed := c.local.Remove(verseID, startIndex, endIndex)
	if removed {
		c.markDirty()
	}
	return removed
}

// UpdateColor recolors the highlight matching the exact range in local state.
func (c *Coordinator) UpdateColor(verseID string, startIndex, endIndex int, color string) bool {
	updated := c.local.UpdateColor(verseID, startIndex, endIndex, color)
	if updated {
		c.markDirty()
	}
	return updated
}

// ApplyRemote applies a highlight received over the channel. Receipt never
// marks the session dirty: the originating session owns persistence.
func (c *Coordinator) ApplyRemote(h Highlight) bool {
	return c.local.ApplyRemote(h)
}

// Persist moves local state into durable storage.
//
// The protocol: a no-op without a known user or while another persist is in
// flight; an empty local set clears the dirty flag without a storage round
// trip; otherwise one atomic batch replaces every persisted highlight the
// user owns with the current local set. On success the storage-assigned ids
// are adopted in memory and the dirty flag clears, unless an edit landed
// while the batch write was in flight: then the flag stays set so the caller
// re-triggers and the follow-up persist carries the newer state. On failure
// local state and the dirty flag are left exactly as they were for a retry.
func (c *Coordinator) Persist(ctx context.Context) error {
	c.mu.Lock()
	if c.userID == "" || c.isSyncing {
		c.mu.Unlock()
		return nil
	}
	c.isSyncing = true
	snapshot := c.edits
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.isSyncing = false
		c.mu.Unlock()
	}()

	owned := c.local.AllOwnedBy(c.userID)
	if len(owned) == 0 {
		c.clearDirtyIfUnedited(snapshot)
		return nil
	}

	persisted, err := c.store.ReplaceUserHighlights(ctx, c.userID, owned)
	if err != nil {
		return fmt.Errorf("persist highlights: %w", err)
	}

	c.local.adoptPersisted(c.userID, persisted)
	c.clearDirtyIfUnedited(snapshot)
	return nil
}

// clearDirtyIfUnedited drops the dirty flag only when no mutation landed
// after the persist snapshot was taken.
func (c *Coordinator) clearDirtyIfUnedited(snapshot uint64) {
	c.mu.Lock()
	if c.edits == snapshot {
		c.needsSync = false
	}
	c.mu.Unlock()
}

// DeleteSingle is the responsiveness fast path for one highlight: a direct
// single-document delete when a persisted id exists, an immediate local
// removal either way, then an opportunistic full Persist to reconcile.
func (c *Coordinator) DeleteSingle(ctx context.Context, h Highlight) error {
	if h.ID != "" {
		if err := c.store.DeleteHighlight(ctx, h.ID, c.userID); err != nil {
			log.Printf("highlight: single delete %s failed, full sync will reconcile: %v", h.ID, err)
		}
	}
	if c.local.Remove(h.VerseID, h.StartIndex, h.EndIndex) {
		c.markDirty()
	}
	return c.Persist(ctx)
}

// UpdateColorSingle is the fast path for a color change, same shape as
// DeleteSingle.
func (c *Coordinator) UpdateColorSingle(ctx context.Context, h Highlight, color string) error {
	if h.ID != "" {
		if err := c.store.UpdateHighlightColor(ctx, h.ID, c.userID, color); err != nil {
			log.Printf("highlight: single color update %s failed, full sync will reconcile: %v", h.ID, err)
		}
	}
	if c.local.UpdateColor(h.VerseID, h.StartIndex, h.EndIndex, color) {
		c.markDirty()
	}
	return c.Persist(ctx)
}

func (c *Coordinator) markDirty() {
	c.mu.Lock()
	c.needsSync = true
	c.edits++
	c.mu.Unlock()
}
