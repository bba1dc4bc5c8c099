package eventbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/logging"
)

type appChanged struct{ AppID string }
type batchDone struct{ Count int }

func TestPublish_DispatchesByType(t *testing.T) {
	t.Parallel()

	bus := NewEventPublisher(logging.Discard())
	var changed []string
	var done int
	bus.Subscribe(func(e *appChanged) { changed = append(changed, e.AppID) })
	bus.Subscribe(func(e *batchDone) { done += e.Count })

	bus.Publish(&appChanged{AppID: "a"})
	bus.Publish(&appChanged{AppID: "b"})
	bus.Publish(&batchDone{Count: 3})
	bus.Publish("unmatched")

	assert.Equal(t, []string{"a", "b"}, changed)
	assert.Equal(t, 3, done)
}

func TestPublish_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	bus := NewEventPublisher(logging.Discard())
	var after bool
	bus.Subscribe(func(*appChanged) { panic("boom") })
	bus.Subscribe(func(*appChanged) { after = true })

	require.NotPanics(t, func() { bus.Publish(&appChanged{}) })
	assert.True(t, after)
}

func TestPublishE_CollectsErrors(t *testing.T) {
	t.Parallel()

	bus := NewEventPublisher(logging.Discard())
	require.ErrorIs(t, bus.PublishE(&appChanged{}), ErrNoSubscribers)

	sentinel := errors.New("handler failed")
	bus.Subscribe(func(*appChanged) error { return sentinel })
	bus.Subscribe(func(*appChanged) (int, error) { return 0, nil })
	bus.Subscribe(func(*appChanged) error { return nil })

	err := bus.PublishE(&appChanged{})
	require.ErrorIs(t, err, sentinel)
	require.ErrorIs(t, err, ErrInvalidHandlerReturn)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	t.Parallel()

	bus := NewEventPublisher(nil)
	var calls int
	unsubscribe := bus.Subscribe(func(*appChanged) { calls++ })
	bus.Subscribe(func(*batchDone) {})
	require.Equal(t, 2, bus.SubscribersCount())

	bus.Publish(&appChanged{})
	unsubscribe()
	unsubscribe()
	bus.Publish(&appChanged{})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, bus.SubscribersCount())

	bus.Clear()
	assert.Zero(t, bus.SubscribersCount())
}

func TestMatchSignature(t *testing.T) {
	t.Parallel()

	assert.True(t, MatchSignature(func(*appChanged) {}, []any{&appChanged{}}))
	assert.True(t, MatchSignature(func(*appChanged) {}, []any{nil}))
	assert.True(t, MatchSignature(func(error) {}, []any{errors.New("x")}))
	assert.False(t, MatchSignature(func(appChanged) {}, []any{nil}))
	assert.False(t, MatchSignature(func(*appChanged) {}, []any{&batchDone{}}))
	assert.False(t, MatchSignature("not a func", nil))
}
