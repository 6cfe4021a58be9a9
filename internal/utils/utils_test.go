package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitFor(t *testing.T) {
	var slept time.Duration
	orig := sleep
	sleep = func(d time.Duration) { slept = d }
	t.Cleanup(func() { sleep = orig })

	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slept != 0 {
		t.Fatalf("expected no sleep for zero duration, got %s", slept)
	}

	if err := WaitFor(context.Background(), 3*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slept != 3*time.Second {
		t.Fatalf("expected 3s sleep, got %s", slept)
	}
}

func TestWaitForCanceled(t *testing.T) {
	orig := sleep
	block := make(chan struct{})
	sleep = func(time.Duration) { <-block }
	t.Cleanup(func() {
		close(block)
		sleep = orig
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTruncateForLog(t *testing.T) {
	cases := map[string]struct {
		in    string
		limit int
		want  string
	}{
		"disabled":        {in: "Backend Engineer", limit: 0, want: ""},
		"fits":            {in: "Backend Engineer", limit: 40, want: "Backend Engineer"},
		"cut":             {in: "Backend Engineer", limit: 7, want: "Backend..."},
		"multiline":       {in: "Dear team,\n\n  I build\tAPIs.\n", limit: 40, want: "Dear team, I build APIs."},
		"counts runes":    {in: "Café crème", limit: 4, want: "Café..."},
		"only whitespace": {in: " \n\t ", limit: 10, want: ""},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := TruncateForLog(tc.in, tc.limit); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
