package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Link points the browser at one produced file.
type Link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type outboxEntry struct {
	name    string
	data    []byte
	created time.Time
}

// Outbox keeps produced files until the browser fetches them. Each file can be
// downloaded once. Files nobody fetched within ttl are dropped; a ttl of zero
// keeps them until Reset.
type Outbox struct {
	mu      sync.Mutex
	entries map[string]outboxEntry
	fresh   []Link
	ttl     time.Duration
	now     func() time.Time
}

func NewOutbox(ttl time.Duration) *Outbox {
	return &Outbox{entries: map[string]outboxEntry{}, ttl: ttl, now: time.Now}
}

func (o *Outbox) Deliver(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	token := uuid.NewString()
	o.mu.Lock()
	o.expire()
	o.entries[token] = outboxEntry{name: name, data: data, created: o.now()}
	o.fresh = append(o.fresh, Link{Name: name, URL: "/download/" + token})
	o.mu.Unlock()
	log.Debug().Str("file", name).Str("token", token).Msg("queued for download")
	return nil
}

// Announce returns the links added since the previous call.
func (o *Outbox) Announce() []Link {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.fresh
	o.fresh = nil
	if out == nil {
		out = []Link{}
	}
	return out
}

// Take hands out a file and forgets it.
func (o *Outbox) Take(token string) (string, []byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.expire()
	e, ok := o.entries[token]
	if !ok {
		return "", nil, false
	}
	delete(o.entries, token)
	return e.name, e.data, true
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.expire()
	return len(o.entries)
}

// expire drops stale entries. Callers hold mu.
func (o *Outbox) expire() {
	if o.ttl <= 0 {
		return
	}
	cutoff := o.now().Add(-o.ttl)
	for token, e := range o.entries {
		if e.created.Before(cutoff) {
			delete(o.entries, token)
			log.Debug().Str("file", e.name).Str("token", token).Msg("download expired")
		}
	}
}

// Reset drops every pending file.
func (o *Outbox) Reset() {
	o.mu.Lock()
	o.entries = map[string]outboxEntry{}
	o.fresh = nil
	o.mu.Unlock()
}
