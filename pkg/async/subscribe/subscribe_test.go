package subscribe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscriberOrderedNotify(t *testing.T) {
	s := NewSubscriber[int]()
	var order []int
	require.NoError(t, s.Subscribe(func(err error, n int) { order = append(order, n*10+1) }))
	require.NoError(t, s.Subscribe(func(err error, n int) { order = append(order, n*10+2) }))

	s.Notify(nil, 1)
	require.Equal(t, []int{11, 12}, order)

	s.Notify(nil, 2)
	require.Equal(t, []int{11, 12, 21, 22}, order)
}

func TestSubscriberStopIsTerminal(t *testing.T) {
	s := NewSubscriber[int]()
	var got []error
	require.NoError(t, s.Subscribe(func(err error, n int) { got = append(got, err) }))

	sentinel := errors.New("boom")
	s.Stop(sentinel, 0)
	require.Equal(t, []error{sentinel}, got)

	// second stop is a no-op
	s.Stop(errors.New("other"), 0)
	require.Equal(t, []error{sentinel}, got)

	err := s.Subscribe(func(error, int) {})
	require.ErrorIs(t, err, ErrStopped)
}

func TestSubscriberStopPanicsOnSuccess(t *testing.T) {
	s := NewSubscriber[int]()
	require.Panics(t, func() { s.Stop(nil, 0) })
}

func TestUnsubscriberSelfRemoves(t *testing.T) {
	u := NewUnsubscriber[int]()
	calls := 0
	require.NoError(t, u.Subscribe(func(err error, n int) bool {
		calls++
		return false
	}))
	u.Notify(nil, 1)
	u.Notify(nil, 1)
	require.Equal(t, 1, calls)
}

func TestResubscriberExistingKeyRejected(t *testing.T) {
	r := NewResubscriber[string, int]()
	require.NoError(t, r.Subscribe("a", func(error, int) bool { return true }))
	err := r.Subscribe("a", func(error, int) bool { return true })
	require.ErrorIs(t, err, ErrExists)
}

func TestDesubscriberNotifyOne(t *testing.T) {
	d := NewDesubscriber[string, int]()
	var aGot, bGot int
	require.NoError(t, d.Subscribe("a", func(err error, n int) bool { aGot = n; return true }))
	require.NoError(t, d.Subscribe("b", func(err error, n int) bool { bGot = n; return true }))

	found := d.NotifyOne("a", nil, 42)
	require.True(t, found)
	require.Equal(t, 42, aGot)
	require.Equal(t, 0, bGot)

	found = d.NotifyOne("missing", nil, 1)
	require.False(t, found)
}

func TestDesubscriberStopDrainsAll(t *testing.T) {
	d := NewDesubscriber[string, int]()
	var got []error
	require.NoError(t, d.Subscribe("a", func(err error, n int) bool { got = append(got, err); return true }))
	require.NoError(t, d.Subscribe("b", func(err error, n int) bool { got = append(got, err); return true }))

	sentinel := errors.New("done")
	d.Stop(sentinel, 0)
	require.Len(t, got, 2)

	err := d.Subscribe("c", func(error, int) bool { return true })
	require.ErrorIs(t, err, ErrStopped)
}
