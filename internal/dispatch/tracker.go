package dispatch

import (
	"sync"
	"time"

	"github.com/foxzi/alumnet/internal/models"
)

// Tracker keeps the latest BatchProgress per campaign for polling.
// Finished entries are dropped after ttl; at most maxEntries are kept.
type Tracker struct {
	mu         sync.RWMutex
	entries    map[string]models.BatchProgress
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewTracker creates a progress tracker
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tracker{
		entries:    make(map[string]models.BatchProgress),
		ttl:        ttl,
		maxEntries: 1000,
		now:        time.Now,
	}
}

// Publish records p, replacing the previous snapshot of the same campaign
func (t *Tracker) Publish(p models.BatchProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[p.CampaignID] = p
	t.pruneLocked()
}

// Get returns the latest snapshot for a campaign
func (t *Tracker) Get(campaignID string) (models.BatchProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.entries[campaignID]
	if ok && p.Done && t.now().Sub(p.UpdatedAt) > t.ttl {
		return models.BatchProgress{}, false
	}
	return p, ok
}

// Len returns the number of tracked campaigns
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *Tracker) pruneLocked() {
	cutoff := t.now().Add(-t.ttl)
	for id, p := range t.entries {
		if p.Done && p.UpdatedAt.Before(cutoff) {
			delete(t.entries, id)
		}
	}

	// drop the oldest finished entries when still over capacity
	for len(t.entries) > t.maxEntries {
		oldestID := ""
		var oldest time.Time
		for id, p := range t.entries {
			if !p.Done {
				continue
			}
			if oldestID == "" || p.UpdatedAt.Before(oldest) {
				oldestID, oldest = id, p.UpdatedAt
			}
		}
		if oldestID == "" {
			return
		}
		delete(t.entries, oldestID)
	}
}
