package bot

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tazhate/reminderbot/internal/domain"
)

// pendingReminder is a parsed sentence waiting for the user's yes/no
type pendingReminder struct {
	OwnerID    int64
	ChannelID  int64
	Recurrence domain.Recurrence
	Text       string
}

// Pending holds unconfirmed reminders under random tokens. Entries expire
// after ttl and the oldest are evicted once size is reached.
type Pending struct {
	cache *expirable.LRU[string, pendingReminder]
}

func NewPending(size int, ttl time.Duration) *Pending {
	return &Pending{cache: expirable.NewLRU[string, pendingReminder](size, nil, ttl)}
}

// Put stores p and returns its confirmation token
func (p *Pending) Put(r pendingReminder) string {
	token := uuid.NewString()
	p.cache.Add(token, r)
	return token
}

// Take removes and returns the reminder under token if ownerID created it.
// Of two concurrent takes only one succeeds.
func (p *Pending) Take(token string, ownerID int64) (pendingReminder, bool) {
	r, ok := p.cache.Peek(token)
	if !ok || r.OwnerID != ownerID {
		return pendingReminder{}, false
	}
	if !p.cache.Remove(token) {
		return pendingReminder{}, false
	}
	return r, true
}

// Discard drops token; it reports whether anything was pending
func (p *Pending) Discard(token string, ownerID int64) bool {
	_, ok := p.Take(token, ownerID)
	return ok
}

func (p *Pending) Len() int {
	return p.cache.Len()
}
