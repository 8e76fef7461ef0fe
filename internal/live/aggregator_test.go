package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/guardianview/monitor-server-go/internal/errors"
	"github.com/guardianview/monitor-server-go/internal/model"
)

type stubSubscription struct {
	msgs   chan Message
	mu     sync.Mutex
	closed bool
}

func newStubSubscription() *stubSubscription {
	return &stubSubscription{msgs: make(chan Message, 64)}
}

func (s *stubSubscription) Confirm(ctx context.Context) error { return nil }

func (s *stubSubscription) Messages() <-chan Message { return s.msgs }

func (s *stubSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.msgs)
	}
	return nil
}

func (s *stubSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type stubSubscriber struct {
	mu       sync.Mutex
	failures int
	subs     []*stubSubscription
}

func (f *stubSubscriber) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("subscribe refused")
	}
	sub := newStubSubscription()
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *stubSubscriber) last() *stubSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}

func changeEvent(t *testing.T, category model.Category, deviceID string, payload any) Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	event, err := json.Marshal(model.ChangeEvent{Category: category, DeviceID: deviceID, Payload: raw})
	require.NoError(t, err)
	return Message{Channel: "telemetry", Payload: string(event)}
}

func TestAggregatorAttach(t *testing.T) {
	t.Run("attaches and reaches Attached state", func(t *testing.T) {
		subscriber := &stubSubscriber{}
		a := NewAggregator(subscriber, 50)
		defer a.Detach()

		require.NoError(t, a.Attach(context.Background(), "device-1"))
		assert.Equal(t, StateAttached, a.State())
	})

	t.Run("one failed subscribe is retried", func(t *testing.T) {
		subscriber := &stubSubscriber{failures: 1}
		a := NewAggregator(subscriber, 50)
		defer a.Detach()

		require.NoError(t, a.Attach(context.Background(), "device-1"))
		assert.Equal(t, StateAttached, a.State())
	})

	t.Run("two failed subscribes leave the aggregator detached", func(t *testing.T) {
		subscriber := &stubSubscriber{failures: 2}
		a := NewAggregator(subscriber, 50)

		err := a.Attach(context.Background(), "device-1")
		assert.Equal(t, apperrors.ErrCodeSubscriptionError, apperrors.GetCode(err))
		assert.Equal(t, StateDetached, a.State())
	})

	t.Run("re-attach releases the previous subscription", func(t *testing.T) {
		subscriber := &stubSubscriber{}
		a := NewAggregator(subscriber, 50)
		defer a.Detach()

		require.NoError(t, a.Attach(context.Background(), "device-1"))
		first := subscriber.last()
		require.NoError(t, a.Attach(context.Background(), "device-2"))

		assert.True(t, first.isClosed())
		assert.Equal(t, StateAttached, a.State())
	})

	t.Run("attach resets the snapshot", func(t *testing.T) {
		subscriber := &stubSubscriber{}
		a := NewAggregator(subscriber, 50)
		defer a.Detach()

		require.NoError(t, a.Attach(context.Background(), "device-1"))
		subscriber.last().msgs <- changeEvent(t, model.CategoryLocation, "device-1", model.Location{DeviceID: "device-1", Lat: 1, Lng: 2})
		require.Eventually(t, func() bool {
			return a.Snapshot().Location != nil
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, a.Attach(context.Background(), "device-2"))
		assert.Nil(t, a.Snapshot().Location)
	})
}

func TestAggregatorDetach(t *testing.T) {
	t.Run("closes the subscription and ends in Detached", func(t *testing.T) {
		subscriber := &stubSubscriber{}
		a := NewAggregator(subscriber, 50)

		require.NoError(t, a.Attach(context.Background(), "device-1"))
		a.Detach()

		assert.Equal(t, StateDetached, a.State())
		assert.True(t, subscriber.last().isClosed())
	})

	t.Run("safe to call when already detached", func(t *testing.T) {
		a := NewAggregator(&stubSubscriber{}, 50)
		a.Detach()
		a.Detach()
		assert.Equal(t, StateDetached, a.State())
	})
}

func TestAggregatorEvents(t *testing.T) {
	attach := func(t *testing.T) (*stubSubscriber, *Aggregator) {
		subscriber := &stubSubscriber{}
		a := NewAggregator(subscriber, 50)
		t.Cleanup(a.Detach)
		require.NoError(t, a.Attach(context.Background(), "device-1"))
		return subscriber, a
	}

	t.Run("location event updates snapshot and alert log", func(t *testing.T) {
		subscriber, a := attach(t)

		subscriber.last().msgs <- changeEvent(t, model.CategoryLocation, "device-1", model.Location{DeviceID: "device-1", Lat: 37.5665, Lng: 126.978})
		require.Eventually(t, func() bool {
			return a.Snapshot().Location != nil
		}, time.Second, 5*time.Millisecond)

		alerts := a.Alerts()
		require.Len(t, alerts, 1)
		assert.Equal(t, "location", alerts[0].Category)
		assert.Equal(t, "Location updated: 37.5665, 126.9780", alerts[0].Message)
	})

	t.Run("later event replaces the snapshot for its category", func(t *testing.T) {
		subscriber, a := attach(t)

		subscriber.last().msgs <- changeEvent(t, model.CategoryNotification, "device-1", model.Notification{App: "KakaoTalk", Title: "first"})
		subscriber.last().msgs <- changeEvent(t, model.CategoryNotification, "device-1", model.Notification{App: "KakaoTalk", Title: "second"})

		require.Eventually(t, func() bool {
			n := a.Snapshot().Notification
			return n != nil && n.Title == "second"
		}, time.Second, 5*time.Millisecond)
		assert.Len(t, a.Alerts(), 2)
	})

	t.Run("audio event formats duration", func(t *testing.T) {
		subscriber, a := attach(t)

		subscriber.last().msgs <- changeEvent(t, model.CategoryAudioClip, "device-1", model.AudioClip{DurationS: 12.5})
		require.Eventually(t, func() bool {
			return a.Snapshot().Audio != nil
		}, time.Second, 5*time.Millisecond)

		assert.Equal(t, "New audio recording: 12.5s", a.Alerts()[0].Message)
	})

	t.Run("event for another device is dropped", func(t *testing.T) {
		subscriber, a := attach(t)

		subscriber.last().msgs <- changeEvent(t, model.CategoryLocation, "device-2", model.Location{DeviceID: "device-2", Lat: 1, Lng: 2})
		subscriber.last().msgs <- changeEvent(t, model.CategoryNotification, "device-1", model.Notification{App: "a", Title: "b"})

		require.Eventually(t, func() bool {
			return a.Snapshot().Notification != nil
		}, time.Second, 5*time.Millisecond)
		assert.Nil(t, a.Snapshot().Location)
		assert.Len(t, a.Alerts(), 1)
	})

	t.Run("unknown category is dropped", func(t *testing.T) {
		subscriber, a := attach(t)

		subscriber.last().msgs <- changeEvent(t, model.CategoryAppUsage, "device-1", model.AppUsage{AppName: "x"})
		subscriber.last().msgs <- changeEvent(t, model.CategoryNotification, "device-1", model.Notification{App: "a", Title: "b"})

		require.Eventually(t, func() bool {
			return a.Snapshot().Notification != nil
		}, time.Second, 5*time.Millisecond)
		assert.Len(t, a.Alerts(), 1)
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		subscriber, a := attach(t)

		subscriber.last().msgs <- Message{Channel: "telemetry", Payload: "not json"}
		subscriber.last().msgs <- changeEvent(t, model.CategoryNotification, "device-1", model.Notification{App: "a", Title: "b"})

		require.Eventually(t, func() bool {
			return a.Snapshot().Notification != nil
		}, time.Second, 5*time.Millisecond)
		assert.Len(t, a.Alerts(), 1)
	})

	t.Run("event from a superseded generation is discarded", func(t *testing.T) {
		_, a := attach(t)
		staleGen := a.generation

		require.NoError(t, a.Attach(context.Background(), "device-1"))

		// late delivery from the old subscription's pump, same device id
		a.handleMessage(staleGen, changeEvent(t, model.CategoryNotification, "device-1", model.Notification{App: "a", Title: "stale"}))

		assert.Nil(t, a.Snapshot().Notification)
		assert.Empty(t, a.Alerts())
	})

	t.Run("transport drop falls back to Detached with a system alert", func(t *testing.T) {
		subscriber, a := attach(t)

		// the transport closes the stream without an explicit Detach
		subscriber.last().Close()

		require.Eventually(t, func() bool {
			return a.State() == StateDetached
		}, time.Second, 5*time.Millisecond)

		alerts := a.Alerts()
		require.NotEmpty(t, alerts)
		assert.Equal(t, "Live monitoring disconnected", alerts[0].Message)
		assert.Equal(t, "system", alerts[0].Category)
	})
}

func TestAggregatorAlertLog(t *testing.T) {
	t.Run("holds newest first and never exceeds capacity", func(t *testing.T) {
		a := NewAggregator(&stubSubscriber{}, 50)

		for i := 0; i < 51; i++ {
			a.SystemAlert(fmt.Sprintf("alert %d", i))
		}

		alerts := a.Alerts()
		require.Len(t, alerts, 50)
		assert.Equal(t, "alert 50", alerts[0].Message)
		assert.Equal(t, "alert 1", alerts[49].Message)
	})

	t.Run("small capacity trims immediately", func(t *testing.T) {
		a := NewAggregator(&stubSubscriber{}, 2)

		a.SystemAlert("one")
		a.SystemAlert("two")
		a.SystemAlert("three")

		alerts := a.Alerts()
		require.Len(t, alerts, 2)
		assert.Equal(t, "three", alerts[0].Message)
		assert.Equal(t, "two", alerts[1].Message)
	})
}

func TestAggregatorListen(t *testing.T) {
	t.Run("delivers alerts to listeners", func(t *testing.T) {
		a := NewAggregator(&stubSubscriber{}, 50)
		ch, cancel := a.Listen()
		defer cancel()

		a.SystemAlert("hello")

		select {
		case alert := <-ch:
			assert.Equal(t, "hello", alert.Message)
		case <-time.After(time.Second):
			t.Fatal("expected an alert")
		}
	})

	t.Run("cancel closes the channel", func(t *testing.T) {
		a := NewAggregator(&stubSubscriber{}, 50)
		ch, cancel := a.Listen()
		cancel()

		_, open := <-ch
		assert.False(t, open)
	})
}
