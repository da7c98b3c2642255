// Package tracker keeps the delivery state of messages sent during the
// lifetime of the process.
package tracker

import (
	"sync"
	"time"

	"github.com/RiosWesley/whatsapp-mkauth/internal/model"
)

// Record is the tracked state of one outbound message.
type Record struct {
	ID   string
	To   string // recipient as the caller sent it
	JID  string // chat address reported by the latest ack
	Kind model.Kind

	Ack       model.AckState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMonotonicAcks makes ApplyAck ignore acks that would move a record
// backwards. AckFailed is always accepted.
func WithMonotonicAcks() Option {
	return func(t *Tracker) { t.monotonic = true }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker is an in-memory table of records keyed by message id. Records are
// never evicted.
type Tracker struct {
	mu        sync.RWMutex
	records   map[string]*Record
	monotonic bool
	now       func() time.Time
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		records: make(map[string]*Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordPending registers a freshly sent message. If an ack for id already
// arrived, its state is kept and only the missing recipient and kind are
// filled in.
func (t *Tracker) RecordPending(id, to string, kind model.Kind) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.records[id]; ok {
		if r.To == "" {
			r.To = to
		}
		if r.Kind == "" {
			r.Kind = kind
		}
		r.UpdatedAt = now
		return
	}
	t.records[id] = &Record{
		ID:        id,
		To:        to,
		Kind:      kind,
		Ack:       model.AckPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ApplyAck records an acknowledgment for id, creating the record when the ack
// beats the send response. Empty jid and kind mean "not supplied" and leave
// the current values alone. The caller's recipient is never overwritten. It
// reports whether the ack was applied.
func (t *Tracker) ApplyAck(id string, ack model.AckState, jid string, kind model.Kind) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[id]
	if !ok {
		t.records[id] = &Record{
			ID:        id,
			JID:       jid,
			Kind:      kind,
			Ack:       ack,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return true
	}

	if t.monotonic && ack != model.AckFailed && ack < r.Ack {
		return false
	}
	r.Ack = ack
	if jid != "" {
		r.JID = jid
	}
	if kind != "" {
		r.Kind = kind
	}
	r.UpdatedAt = now
	return true
}

// Get returns a copy of the record for id.
func (t *Tracker) Get(id string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Len returns the number of tracked messages.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
