package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdbhq/vecdb/internal/watcher"
)

func TestCollectionNameForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/home/user/My Project", "my_project"},
		{"/home/user/docs/", "docs"},
		{"relative/path", "path"},
		{"...", "___"},
		{"a-b_c123", "a-b_c123"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, collectionNameForPath(tt.path))
		})
	}
}

func TestFlattenBatches_EmitsIndividualEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	in := make(chan []watcher.FileEvent, 1)
	out := make(chan watcher.FileEvent, 4)

	go flattenBatches(ctx, in, out)

	in <- []watcher.FileEvent{
		{Path: "a.txt"},
		{Path: "b.txt"},
		{Path: "c.txt"},
	}

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case ev := <-out:
			got = append(got, ev.Path)
		case <-ctx.Done():
			t.Fatal("timed out waiting for flattened events")
		}
	}

	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, got)
}

func TestFlattenBatches_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan []watcher.FileEvent)
	out := make(chan watcher.FileEvent)

	done := make(chan struct{})
	go func() {
		flattenBatches(ctx, in, out)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("flattenBatches did not stop after context cancellation")
	}
}

func TestFlattenBatches_StopsWhenInputClosed(t *testing.T) {
	ctx := context.Background()
	in := make(chan []watcher.FileEvent)
	out := make(chan watcher.FileEvent)

	done := make(chan struct{})
	go func() {
		flattenBatches(ctx, in, out)
		close(done)
	}()

	close(in)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("flattenBatches did not stop after input channel closed")
	}
}

func TestCollectionNameForPath_Deterministic(t *testing.T) {
	require.Equal(t, collectionNameForPath("/x/Docs"), collectionNameForPath("/y/Docs"))
}
