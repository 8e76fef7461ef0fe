package live

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/guardianview/monitor-server-go/internal/errors"
	"github.com/guardianview/monitor-server-go/internal/model"
	redisclient "github.com/guardianview/monitor-server-go/internal/redis"
)

// State of one monitoring session's live subscription.
type State int

const (
	StateDetached State = iota
	StateAttaching
	StateAttached
	StateDetaching
)

func (s State) String() string {
	switch s {
	case StateAttaching:
		return "attaching"
	case StateAttached:
		return "attached"
	case StateDetaching:
		return "detaching"
	default:
		return "detached"
	}
}

// The categories carried live. Everything else arrives only via bulk fetch.
var liveCategories = []model.Category{
	model.CategoryLocation,
	model.CategoryAudioClip,
	model.CategoryNotification,
}

// Snapshot holds the last-seen record per live category. Never persisted.
type Snapshot struct {
	Location     *model.Location     `json:"location,omitempty"`
	Audio        *model.AudioClip    `json:"audio,omitempty"`
	Notification *model.Notification `json:"notification,omitempty"`
}

// Alert is one human-readable entry in the bounded session log.
type Alert struct {
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Aggregator folds change events for one selected device into a snapshot and
// a bounded, insertion-ordered alert log. It is owned by a single monitoring
// session. Every attach carries a generation number; events delivered by a
// superseded generation are discarded, so a late arrival from a previous
// device can never land in the current snapshot.
type Aggregator struct {
	subscriber Subscriber
	capacity   int

	mu         sync.Mutex
	state      State
	deviceID   string
	generation uint64
	sub        Subscription
	snapshot   Snapshot
	alerts     []Alert
	listeners  map[chan Alert]struct{}
}

func NewAggregator(subscriber Subscriber, capacity int) *Aggregator {
	return &Aggregator{
		subscriber: subscriber,
		capacity:   capacity,
		listeners:  make(map[chan Alert]struct{}),
	}
}

func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Snapshot returns a copy of the current last-seen state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// Alerts returns the log newest first, at most capacity entries.
func (a *Aggregator) Alerts() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Alert, len(a.alerts))
	copy(out, a.alerts)
	return out
}

// Attach subscribes to the device's live channels. Any existing subscription
// is fully released first so events from two devices never overlap. A failed
// subscribe is retried once; a second failure leaves the aggregator Detached
// and returns the error so the caller can surface live mode as off.
func (a *Aggregator) Attach(ctx context.Context, deviceID string) error {
	a.mu.Lock()
	if a.sub != nil {
		a.detachLocked()
	}
	a.generation++
	gen := a.generation
	a.state = StateAttaching
	a.deviceID = deviceID
	a.snapshot = Snapshot{}
	a.mu.Unlock()

	channels := make([]string, 0, len(liveCategories))
	for _, c := range liveCategories {
		channels = append(channels, redisclient.TelemetryChannel(string(c), deviceID))
	}

	sub, err := a.subscribe(ctx, channels)
	if err != nil {
		log.Warn().Err(err).Str("deviceId", deviceID).Msg("live subscribe failed, retrying once")
		sub, err = a.subscribe(ctx, channels)
	}
	if err != nil {
		a.mu.Lock()
		if a.generation == gen {
			a.state = StateDetached
		}
		a.mu.Unlock()
		log.Error().Err(err).Str("deviceId", deviceID).Msg("live subscribe failed")
		return apperrors.SubscriptionError(err)
	}

	a.mu.Lock()
	if a.generation != gen {
		// superseded while attaching
		a.mu.Unlock()
		sub.Close()
		return nil
	}
	a.sub = sub
	a.state = StateAttached
	a.mu.Unlock()

	log.Info().Str("deviceId", deviceID).Uint64("generation", gen).Msg("live aggregation attached")

	go a.pump(gen, sub)
	return nil
}

func (a *Aggregator) subscribe(ctx context.Context, channels []string) (Subscription, error) {
	sub, err := a.subscriber.Subscribe(ctx, channels...)
	if err != nil {
		return nil, err
	}
	if err := sub.Confirm(ctx); err != nil {
		sub.Close()
		return nil, err
	}
	return sub, nil
}

// Detach releases the subscription. Safe to call in any state.
func (a *Aggregator) Detach() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detachLocked()
}

func (a *Aggregator) detachLocked() {
	// bump the generation so in-flight events from the old subscription are
	// discarded even if its pump has not observed the close yet
	a.generation++
	if a.sub != nil {
		a.state = StateDetaching
		if err := a.sub.Close(); err != nil {
			log.Warn().Err(err).Msg("close live subscription")
		}
		a.sub = nil
	}
	a.state = StateDetached
	log.Debug().Str("deviceId", a.deviceID).Msg("live aggregation detached")
}

func (a *Aggregator) pump(gen uint64, sub Subscription) {
	for msg := range sub.Messages() {
		a.handleMessage(gen, msg)
	}

	// Stream ended. If this generation is still current the transport dropped
	// us rather than an explicit detach; fall back to Detached instead of
	// pretending to be live.
	a.mu.Lock()
	if a.generation == gen {
		a.sub = nil
		a.state = StateDetached
		a.mu.Unlock()
		log.Warn().Str("deviceId", a.deviceID).Msg("live subscription dropped by transport")
		a.SystemAlert("Live monitoring disconnected")
		return
	}
	a.mu.Unlock()
}

func (a *Aggregator) handleMessage(gen uint64, msg Message) {
	var event model.ChangeEvent
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		log.Error().Err(err).Str("channel", msg.Channel).Msg("unmarshal change event")
		return
	}

	alert, ok := a.decode(event)
	if !ok {
		return
	}

	a.mu.Lock()
	if gen != a.generation || event.DeviceID != a.deviceID {
		// stale generation or foreign device
		a.mu.Unlock()
		return
	}
	a.applyLocked(event)
	a.appendAlertLocked(alert)
	a.mu.Unlock()
}

// decode turns the untyped payload into its per-category record and builds
// the alert message. Unknown categories and malformed payloads are logged
// and dropped rather than propagated into the snapshot.
func (a *Aggregator) decode(event model.ChangeEvent) (Alert, bool) {
	now := time.Now()
	switch event.Category {
	case model.CategoryLocation:
		var loc model.Location
		if err := json.Unmarshal(event.Payload, &loc); err != nil {
			log.Error().Err(err).Msg("decode location event")
			return Alert{}, false
		}
		return Alert{
			Category:  "location",
			Message:   fmt.Sprintf("Location updated: %.4f, %.4f", loc.Lat, loc.Lng),
			Timestamp: now,
		}, true
	case model.CategoryAudioClip:
		var clip model.AudioClip
		if err := json.Unmarshal(event.Payload, &clip); err != nil {
			log.Error().Err(err).Msg("decode audio event")
			return Alert{}, false
		}
		return Alert{
			Category:  "audio",
			Message:   fmt.Sprintf("New audio recording: %gs", clip.DurationS),
			Timestamp: now,
		}, true
	case model.CategoryNotification:
		var n model.Notification
		if err := json.Unmarshal(event.Payload, &n); err != nil {
			log.Error().Err(err).Msg("decode notification event")
			return Alert{}, false
		}
		return Alert{
			Category:  "notification",
			Message:   fmt.Sprintf("New notification from %s: %s", n.App, n.Title),
			Timestamp: now,
		}, true
	default:
		log.Warn().Str("category", string(event.Category)).Msg("change event for unknown category dropped")
		return Alert{}, false
	}
}

// applyLocked merges the event into the snapshot, replacing any prior value
// for its category. Caller holds a.mu.
func (a *Aggregator) applyLocked(event model.ChangeEvent) {
	switch event.Category {
	case model.CategoryLocation:
		var loc model.Location
		if json.Unmarshal(event.Payload, &loc) == nil {
			a.snapshot.Location = &loc
		}
	case model.CategoryAudioClip:
		var clip model.AudioClip
		if json.Unmarshal(event.Payload, &clip) == nil {
			a.snapshot.Audio = &clip
		}
	case model.CategoryNotification:
		var n model.Notification
		if json.Unmarshal(event.Payload, &n) == nil {
			a.snapshot.Notification = &n
		}
	}
}

// SystemAlert appends an operator-facing entry, e.g. on live-mode toggle.
func (a *Aggregator) SystemAlert(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.appendAlertLocked(Alert{
		Category:  "system",
		Message:   message,
		Timestamp: time.Now(),
	})
}

// appendAlertLocked inserts newest-first and trims in the same step, so the
// log can never exceed capacity between insert and trim. Caller holds a.mu.
func (a *Aggregator) appendAlertLocked(alert Alert) {
	a.alerts = append([]Alert{alert}, a.alerts...)
	if len(a.alerts) > a.capacity {
		a.alerts = a.alerts[:a.capacity]
	}
	for ch := range a.listeners {
		select {
		case ch <- alert:
		default:
			log.Warn().Msg("alert listener buffer full, dropping alert")
		}
	}
}

// Listen registers a consumer for alerts as they arrive. The returned cancel
// removes the listener and closes the channel.
func (a *Aggregator) Listen() (<-chan Alert, func()) {
	ch := make(chan Alert, 100)
	a.mu.Lock()
	a.listeners[ch] = struct{}{}
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		if _, ok := a.listeners[ch]; ok {
			delete(a.listeners, ch)
			close(ch)
		}
		a.mu.Unlock()
	}
	return ch, cancel
}
