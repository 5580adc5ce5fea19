package browser

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoadQueueKeepsOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := newLoadQueue()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	var (
		mu  sync.Mutex
		got []string
	)
	go func() {
		defer close(done)
		q.run(ctx, func(url string) {
			// A slow listener must not let a later load overtake this one.
			if len(got)%3 == 0 {
				time.Sleep(time.Millisecond)
			}
			mu.Lock()
			got = append(got, url)
			mu.Unlock()
		})
	}()

	var want []string
	for i := 0; i < 50; i++ {
		url := fmt.Sprintf("https://a.test/%d", i)
		want = append(want, url)
		q.push(url)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	}, 2*time.Second, time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, want, got)
}

func TestLoadQueueStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := newLoadQueue()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.run(ctx, func(string) {})
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not return after cancel")
	}
}
