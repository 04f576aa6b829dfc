package broker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/myrjola/orb/internal/broker"
	"github.com/stretchr/testify/require"
)

func TestBroker(t *testing.T) {
	ctx := context.Background()
	type testCase struct {
		name     string
		testFunc func(t *testing.T, b *broker.Broker[string, []byte])
	}
	tests := []testCase{
		{
			name: "subscriber receives content",
			testFunc: func(t *testing.T, b *broker.Broker[string, []byte]) {
				channel := make(chan []byte)
				require.NoError(t, b.Publish(ctx, "clip", channel))
				go func() {
					channel <- []byte("ID3")
					close(channel)
					b.Unpublish("clip")
				}()
				c, ok := b.Subscribe(ctx, "clip")
				require.True(t, ok)
				require.Equal(t, []byte("ID3"), <-c)
				_, open := <-c
				require.False(t, open, "channel not closed")
			},
		},
		{
			name: "unknown id",
			testFunc: func(t *testing.T, b *broker.Broker[string, []byte]) {
				c, ok := b.Subscribe(ctx, "missing")
				require.False(t, ok)
				require.Nil(t, c)
			},
		},
		{
			name: "later subscribers wait until the producer is finished",
			testFunc: func(t *testing.T, b *broker.Broker[string, []byte]) {
				channel := make(chan []byte)
				require.NoError(t, b.Publish(ctx, "clip", channel))
				var finished atomic.Bool

				first, ok := b.Subscribe(ctx, "clip")
				require.True(t, ok)

				second := make(chan bool)
				go func() {
					_, ok := b.Subscribe(ctx, "clip")
					second <- ok && !finished.Load()
				}()

				go func() {
					channel <- []byte("ID3")
					close(channel)
					finished.Store(true)
					b.Unpublish("clip")
				}()
				require.Equal(t, []byte("ID3"), <-first)

				select {
				case gotChannel := <-second:
					require.False(t, gotChannel, "second subscriber must not get the channel")
				case <-time.After(time.Second):
					t.Fatal("second subscriber was never released")
				}
				require.True(t, finished.Load())
			},
		},
		{
			name: "subscribe gives up with the context",
			testFunc: func(t *testing.T, b *broker.Broker[string, []byte]) {
				channel := make(chan []byte)
				require.NoError(t, b.Publish(ctx, "clip", channel))
				_, ok := b.Subscribe(ctx, "clip")
				require.True(t, ok)

				short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
				defer cancel()
				_, ok = b.Subscribe(short, "clip")
				require.False(t, ok)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br := broker.New[string, []byte]()
			go br.Run(ctx)
			t.Cleanup(br.Stop)
			tt.testFunc(t, br)
		})
	}

	t.Run("stopped broker", func(t *testing.T) {
		br := broker.New[string, []byte]()
		br.Stop()
		require.ErrorIs(t, br.Publish(ctx, "clip", make(chan []byte)), broker.ErrStopped)
		_, ok := br.Subscribe(ctx, "clip")
		require.False(t, ok)
		br.Unpublish("clip")
	})
}
