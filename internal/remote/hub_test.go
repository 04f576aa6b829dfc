package remote_test

import (
	"io"
	"testing"

	"github.com/myrjola/orb/internal/remote"
	"github.com/myrjola/orb/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func TestHub(t *testing.T) {
	hub := remote.NewHub(testhelpers.NewLogger(io.Discard))
	first, unsubscribeFirst := hub.Subscribe()
	second, unsubscribeSecond := hub.Subscribe()
	defer unsubscribeSecond()

	hub.Publish(remote.Event{Type: remote.EventStatus, Data: "idle"})
	require.Equal(t, remote.Event{Type: remote.EventStatus, Data: "idle"}, <-first)
	require.Equal(t, remote.Event{Type: remote.EventStatus, Data: "idle"}, <-second)

	unsubscribeFirst()
	unsubscribeFirst()
	_, open := <-first
	require.False(t, open)

	// A subscriber that does not read misses events instead of blocking the publisher.
	for range 100 {
		hub.Publish(remote.Event{Type: remote.EventStatus, Data: nil})
	}
	require.Len(t, second, cap(second))

	hub.Close()
	late, unsubscribeLate := hub.Subscribe()
	defer unsubscribeLate()
	_, open = <-late
	require.False(t, open)
}
