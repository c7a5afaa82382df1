package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/axon-metrics/internal/storage"
)

func TestShouldWatchFile(t *testing.T) {
	t.Parallel()

	repo := filepath.Join(string(filepath.Separator), "repo")
	matcher := newMatcher(nil, WalkOptions{})
	filter := NewExtensionFilter()

	tests := []struct {
		name string
		path string
		opts WalkOptions
		want bool
	}{
		{name: "GoFile", path: "pkg/a.go", want: true},
		{name: "TestFile", path: "pkg/a_test.go", want: false},
		{name: "TestFileIncluded", path: "pkg/a_test.go", opts: WalkOptions{IncludeTests: true}, want: true},
		{name: "Vendored", path: "vendor/x/a.go", want: false},
		{name: "GitDir", path: ".git/a.go", want: false},
		{name: "OtherExtension", path: "pkg/a.txt", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shouldWatchFile(filepath.Join(repo, filepath.FromSlash(tt.path)), repo, matcher, filter, tt.opts)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("NilMatcher", func(t *testing.T) {
		assert.True(t, shouldWatchFile(filepath.Join(repo, "a.go"), repo, nil, filter, WalkOptions{}))
	})
}

func TestWatchRepo(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, shopTree)

	store := storage.NewMemoryBackend()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan *Analysis, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchRepo(ctx, root, store, WatchOptions{
			Debounce: 50 * time.Millisecond,
			OnRun: func(a *Analysis, err error) {
				if err == nil {
					runs <- a
				}
			},
		})
	}()

	// Give the watcher time to register its directories.
	time.Sleep(200 * time.Millisecond)

	extra := filepath.Join(root, "core", "extra.go")
	require.NoError(t, os.WriteFile(extra, []byte("package core\n\ntype Extra struct{}\n"), 0o644))

	select {
	case a := <-runs:
		assert.Equal(t, 3, a.Result.Files)
		n, err := store.GetNode(context.Background(), "class:example.com/shop/core:Extra")
		require.NoError(t, err)
		assert.NotNil(t, n)
	case <-time.After(10 * time.Second):
		t.Fatal("no rerun after change")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
