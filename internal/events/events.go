// Package events publishes session and workflow lifecycle notifications to
// a message broker so other tools can follow what this client did.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Subjects follow the pattern {domain}.{resource}.{action}.
const (
	SubjectSessionLogin     = "compras.session.login"
	SubjectSessionLogout    = "compras.session.logout"
	SubjectSessionRefreshed = "compras.session.refreshed"
	SubjectSessionExpired   = "compras.session.expired"

	SubjectSolicitationCreated       = "compras.solicitations.created"
	SubjectSolicitationStatusChanged = "compras.solicitations.status_changed"
	SubjectSolicitationApproval      = "compras.solicitations.approval"
	SubjectQuotationSelected         = "compras.quotations.selected"
)

// Event is the JSON envelope published on every subject.
type Event struct {
	Subject        string    `json:"subject"`
	Username       string    `json:"username,omitempty"`
	SolicitationID int64     `json:"solicitation_id,omitempty"`
	From           string    `json:"from,omitempty"`
	To             string    `json:"to,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher sends raw payloads to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Emit marshals ev and publishes it on ev.Subject. A zero timestamp is set
// to now.
func Emit(ctx context.Context, p Publisher, ev Event) error {
	if p == nil {
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.Publish(ctx, ev.Subject, data)
}

// Noop discards everything. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, []byte) error {
	return nil
}

func (Noop) Close() error {
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, subject string, data []byte) error {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode event on %s: %w", subject, err)
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Subjects lists the subject of each recorded event in order.
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Subject
	}
	return out
}
