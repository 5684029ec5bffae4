package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jordanmellermagic/Sensus-API/internal/domain"
)

// Channel is a category of field change that can trigger a push.
type Channel string

const (
	ChannelNoteName   Channel = "note_name"
	ChannelNoteBody   Channel = "note_body"
	ChannelScreenshot Channel = "screenshot"
)

// Channels returns all channels in emission priority order. A patch touching
// several tracked fields emits its events in this order, always.
func Channels() []Channel {
	return []Channel{ChannelNoteName, ChannelNoteBody, ChannelScreenshot}
}

// ValidChannel reports whether name is a known channel; preference endpoints
// use it to reject unknown channel names.
func ValidChannel(name string) bool {
	switch Channel(name) {
	case ChannelNoteName, ChannelNoteBody, ChannelScreenshot:
		return true
	}
	return false
}

// Event is an ephemeral notification produced from one field change. It is
// handed to the deliverer immediately and never persisted.
type Event struct {
	Channel Channel `json:"channel"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
}

// Snapshot captures the tracked fields of a record at one point in time.
type Snapshot struct {
	NoteName   string
	NoteBody   string
	Screenshot string
}

// SnapshotOf reads the tracked fields out of a user record.
func SnapshotOf(u *domain.User) Snapshot {
	return Snapshot{
		NoteName:   u.Note.Name,
		NoteBody:   u.Note.Body,
		Screenshot: u.Screen.Screenshot,
	}
}

func (s Snapshot) field(ch Channel) string {
	switch ch {
	case ChannelNoteName:
		return s.NoteName
	case ChannelNoteBody:
		return s.NoteBody
	case ChannelScreenshot:
		return s.Screenshot
	}
	return ""
}

// Target describes the notification state of the user whose record changed:
// which channels they keep enabled and where their pushes go.
type Target struct {
	Enabled       map[Channel]bool // missing key means enabled (default true)
	Subscriptions []domain.Subscription
}

func (t Target) enabled(ch Channel) bool {
	v, ok := t.Enabled[ch]
	return !ok || v
}

// Deliverer sends one notification to one subscription. It may fail per
// subscription; the notifier never retries and never propagates the error.
type Deliverer interface {
	Deliver(ctx context.Context, sub domain.Subscription, title, body string) error
}

// DeliverFunc adapts a function to the Deliverer interface.
type DeliverFunc func(ctx context.Context, sub domain.Subscription, title, body string) error

func (f DeliverFunc) Deliver(ctx context.Context, sub domain.Subscription, title, body string) error {
	return f(ctx, sub, title, body)
}

// Notifier turns before/after snapshots of a patched record into push
// notifications. Delivery is best-effort and at-most-once: a failed
// subscription is logged through the observe hook and skipped, never blocking
// the other subscriptions or the update that produced the change.
type Notifier struct {
	deliver Deliverer
	log     *zap.Logger
	observe func(sub domain.Subscription, ev Event, err error)
}

func New(deliver Deliverer, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	n := &Notifier{deliver: deliver, log: log}
	n.observe = n.logFailure
	return n
}

// OnFailure replaces the delivery-failure hook. The default hook logs at warn.
func (n *Notifier) OnFailure(fn func(sub domain.Subscription, ev Event, err error)) {
	if fn != nil {
		n.observe = fn
	}
}

func (n *Notifier) logFailure(sub domain.Subscription, ev Event, err error) {
	n.log.Warn("push delivery failed",
		zap.String("user_id", sub.UserID),
		zap.String("subscription_id", sub.ID),
		zap.String("channel", string(ev.Channel)),
		zap.Error(err))
}

// Events computes the notifications a patch should emit, without delivering
// anything. A field counts as changed only when it was actually assigned by
// the patch (listed in touched) and its value differs from before; patching a
// field to the value it already held emits nothing. Text channels are also
// suppressed when the new value is empty after trimming, so clearing a note
// never announces itself.
func (n *Notifier) Events(target Target, before, after Snapshot, touched []Channel) []Event {
	if len(target.Subscriptions) == 0 {
		return nil
	}

	wasTouched := make(map[Channel]bool, len(touched))
	for _, ch := range touched {
		wasTouched[ch] = true
	}

	var events []Event
	for _, ch := range Channels() {
		if !wasTouched[ch] || !target.enabled(ch) {
			continue
		}
		if before.field(ch) == after.field(ch) {
			continue
		}
		switch ch {
		case ChannelNoteName:
			name := strings.TrimSpace(after.NoteName)
			if name == "" {
				continue
			}
			events = append(events, Event{Channel: ch, Title: "Note Updated", Body: name})
		case ChannelNoteBody:
			if strings.TrimSpace(after.NoteBody) == "" {
				continue
			}
			// Context uses the current note name, which the same patch may
			// have just rewritten.
			name := strings.TrimSpace(after.NoteName)
			if name == "" {
				name = "Note"
			}
			events = append(events, Event{
				Channel: ch,
				Title:   "Note Body Updated",
				Body:    name + " body updated",
			})
		case ChannelScreenshot:
			// Removing a screenshot is not a new screenshot.
			if after.Screenshot == "" {
				continue
			}
			events = append(events, Event{Channel: ch, Title: "New screenshot", Body: "A new screenshot was uploaded"})
		}
	}
	return events
}

// Notify computes the qualifying events and delivers each one to every
// subscription of the target, in channel priority order. Per-subscription
// failures are observed and discarded. The returned events describe what was
// attempted, regardless of delivery outcome.
func (n *Notifier) Notify(ctx context.Context, target Target, before, after Snapshot, touched []Channel) []Event {
	events := n.Events(target, before, after, touched)
	for _, ev := range events {
		for _, sub := range target.Subscriptions {
			if err := n.deliver.Deliver(ctx, sub, ev.Title, ev.Body); err != nil {
				n.observe(sub, ev, err)
			}
		}
	}
	return events
}
