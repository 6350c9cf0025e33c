package bundler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSyncHook_callsInOrder(t *testing.T) {
	var hook SyncHook[string]
	var calls []string

	hook.Tap("first", func(v string) { calls = append(calls, "first:"+v) })
	hook.Tap("second", func(v string) { calls = append(calls, "second:"+v) })

	hook.Call("a")

	require.Equal(t, []string{"first:a", "second:a"}, calls)
}

func TestAsyncSeriesHook(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		taps      []func(*[]string, func(error))
		wantCalls []string
		wantErr   error
	}{
		{
			name: "runs taps in series",
			taps: []func(*[]string, func(error)){
				func(calls *[]string, next func(error)) { *calls = append(*calls, "a"); next(nil) },
				func(calls *[]string, next func(error)) { *calls = append(*calls, "b"); next(nil) },
			},
			wantCalls: []string{"a", "b"},
		},
		{
			name: "stops at first error",
			taps: []func(*[]string, func(error)){
				func(calls *[]string, next func(error)) { *calls = append(*calls, "a"); next(errBoom) },
				func(calls *[]string, next func(error)) { *calls = append(*calls, "b"); next(nil) },
			},
			wantCalls: []string{"a"},
			wantErr:   errBoom,
		},
		{
			name: "continuation from another goroutine",
			taps: []func(*[]string, func(error)){
				func(calls *[]string, next func(error)) {
					*calls = append(*calls, "a")
					go next(nil)
				},
				func(calls *[]string, next func(error)) { *calls = append(*calls, "b"); next(nil) },
			},
			wantCalls: []string{"a", "b"},
		},
		{
			name: "second continuation call is ignored",
			taps: []func(*[]string, func(error)){
				func(calls *[]string, next func(error)) { *calls = append(*calls, "a"); next(nil); next(errBoom) },
				func(calls *[]string, next func(error)) { *calls = append(*calls, "b"); next(nil) },
			},
			wantCalls: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hook AsyncSeriesHook[*[]string]
			for _, tap := range tt.taps {
				hook.TapAsync(tt.name, tap)
			}

			var calls []string
			err := hook.CallAsync(context.Background(), &calls)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestAsyncSeriesHook_missingContinuationBlocksUntilCancelled(t *testing.T) {
	var hook AsyncSeriesHook[int]
	hook.TapAsync("forgetful", func(int, func(error)) {})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := hook.CallAsync(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Contains(t, err.Error(), "forgetful did not call its continuation")
}
