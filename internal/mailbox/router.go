package mailbox

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kestrelrun/genie/internal/log"
	"github.com/kestrelrun/genie/internal/worker"
)

// OperatorSender is the literal "from" value used for operator-originated
// messages (as opposed to a worker id).
const OperatorSender = "operator"

// Deliver injects a message's body into the recipient's live pane. Router
// never talks to the multiplexer itself — flushPending calls this injected
// capability, which callers typically implement via worker.Resolver +
// tmux.Multiplexer.SendKeys.
type Deliver func(ctx context.Context, workerID string, msg Message) error

// Router implements send/inbox/unread/pending/markRead/markDelivered/
// flushPending against a file-backed per-worker store, fuzzy-matching
// recipients against the worker registry.
type Router struct {
	store    *store
	registry *worker.Registry
	seq      atomic.Int64
}

// NewRouter returns a Router persisting mailboxes under dir and resolving
// recipients against registry.
func NewRouter(dir string, registry *worker.Registry) *Router {
	return &Router{store: newStore(dir), registry: registry}
}

// nextID generates "msg-<epoch-millis>-<counter>". The counter is process-
// wide and resets across restarts; combined with the millisecond timestamp
// this keeps ids unique per host within millisecond resolution.
func (r *Router) nextID() string {
	n := r.seq.Add(1)
	return fmt.Sprintf("msg-%d-%d", time.Now().UnixMilli(), n)
}

// Send appends a new message to to's mailbox. If to does not name a
// registered worker, it is fuzzy-matched against id, role and team:role
// (case-insensitive exact match, no edit-distance fuzziness); if nothing
// matches, the message
// is not persisted and SendResult.Delivered is false.
func (r *Router) Send(_ context.Context, from, to, body string) (SendResult, error) {
	target, ok := r.resolveRecipient(to)
	if !ok {
		log.Warn(log.CatMailbox, "mailbox send: no recipient match", "to", to)
		return SendResult{Delivered: false, Reason: fmt.Sprintf("no worker, role, or team:role matches %q", to)}, nil
	}

	msg := Message{
		ID:        r.nextID(),
		From:      from,
		To:        target.ID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := r.store.mutate(target.ID, func(b *Box) {
		b.Messages = append(b.Messages, msg)
	}); err != nil {
		return SendResult{}, fmt.Errorf("persisting mailbox message: %w", err)
	}

	return SendResult{Delivered: true, Message: &msg}, nil
}

// resolveRecipient implements the mailbox's fuzzy-match fallback: exact
// worker id, then id, role and "team:role", each compared
// case-insensitively.
func (r *Router) resolveRecipient(to string) (worker.Worker, bool) {
	if w, ok := r.registry.Get(to); ok {
		return w, true
	}

	for _, w := range r.registry.List() {
		if strings.EqualFold(w.ID, to) {
			return w, true
		}
	}

	for _, w := range r.registry.List() {
		if w.Role != "" && strings.EqualFold(w.Role, to) {
			return w, true
		}
	}

	if team, role, found := strings.Cut(to, ":"); found {
		for _, w := range r.registry.List() {
			if strings.EqualFold(w.Team, team) && strings.EqualFold(w.Role, role) {
				return w, true
			}
		}
	}

	return worker.Worker{}, false
}

// Inbox returns all messages for workerID in insertion order.
func (r *Router) Inbox(workerID string) ([]Message, error) {
	b, err := r.store.read(workerID)
	if err != nil {
		return nil, err
	}
	return b.Messages, nil
}

// Unread returns workerID's messages with Read == false.
func (r *Router) Unread(workerID string) ([]Message, error) {
	all, err := r.Inbox(workerID)
	if err != nil {
		return nil, err
	}
	var out []Message
	for _, m := range all {
		if !m.Read {
			out = append(out, m)
		}
	}
	return out, nil
}

// Pending returns workerID's messages with DeliveredAt == nil.
func (r *Router) Pending(workerID string) ([]Message, error) {
	all, err := r.Inbox(workerID)
	if err != nil {
		return nil, err
	}
	var out []Message
	for _, m := range all {
		if m.DeliveredAt == nil {
			out = append(out, m)
		}
	}
	return out, nil
}

// MarkRead flips a message's Read flag false->true. It is a no-op if the
// message is already read.
func (r *Router) MarkRead(workerID, msgID string) error {
	_, err := r.store.mutate(workerID, func(b *Box) {
		for i := range b.Messages {
			if b.Messages[i].ID == msgID {
				b.Messages[i].Read = true
				return
			}
		}
	})
	return err
}

// MarkDelivered stamps a message's DeliveredAt if unset. Once set it never
// reverts to nil (monotonic, spec invariant 11).
func (r *Router) MarkDelivered(workerID, msgID string) error {
	_, err := r.store.mutate(workerID, func(b *Box) {
		for i := range b.Messages {
			if b.Messages[i].ID == msgID {
				if b.Messages[i].DeliveredAt == nil {
					now := time.Now().UTC()
					b.Messages[i].DeliveredAt = &now
				}
				return
			}
		}
	})
	return err
}

// FlushPending marks every pending message of workerID delivered, invoking
// deliver for each one first. Callers must only invoke this while the
// worker is idle or done — never while working, awaiting permission, or
// mid-question — to avoid interrupting an in-progress turn; the router
// itself does not check worker state.
func (r *Router) FlushPending(ctx context.Context, workerID string, deliver Deliver) error {
	pending, err := r.Pending(workerID)
	if err != nil {
		return err
	}

	for _, msg := range pending {
		if err := deliver(ctx, workerID, msg); err != nil {
			log.ErrorErr(log.CatMailbox, "mailbox flush delivery failed", err, "worker", workerID, "message", msg.ID)
			continue
		}
		if err := r.MarkDelivered(workerID, msg.ID); err != nil {
			log.ErrorErr(log.CatMailbox, "failed to persist delivered state", err, "worker", workerID, "message", msg.ID)
		}
	}
	return nil
}
