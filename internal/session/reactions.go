package session

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/auxroom/auxcast/internal/domain"
)

// Board holds the currently visible reactions. Each entry schedules its own
// removal, so duplicates and reorders are harmless. Expiry timers fire off
// the session loop, hence the lock.
type Board struct {
	ttl time.Duration

	mu      sync.Mutex
	visible map[string]domain.Reaction
}

func NewBoard(ttl time.Duration) *Board {
	return &Board{
		ttl:     ttl,
		visible: make(map[string]domain.Reaction),
	}
}

// Add records a reaction with a fresh id and a random origin and schedules
// its removal after the display window. The same path serves local sends
// and remote receipts; the position is chosen independently on every screen.
func (b *Board) Add(symbol string, sender domain.ParticipantID) domain.Reaction {
	r := domain.Reaction{
		ID:      uuid.NewString(),
		Symbol:  symbol,
		OriginX: rand.Float64(),
		Sender:  sender,
	}
	b.mu.Lock()
	b.visible[r.ID] = r
	b.mu.Unlock()

	time.AfterFunc(b.ttl, func() {
		b.mu.Lock()
		delete(b.visible, r.ID)
		b.mu.Unlock()
	})
	return r
}

// Visible snapshots the reactions currently on screen, in no defined order.
func (b *Board) Visible() []domain.Reaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Reaction, 0, len(b.visible))
	for _, r := range b.visible {
		out = append(out, r)
	}
	return out
}
