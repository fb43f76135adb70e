package coalesce

import (
	"context"
	"strings"
	"testing"
)

type flushRecorder struct {
	calls []string
}

func (r *flushRecorder) flush(_ context.Context, text string) error {
	r.calls = append(r.calls, text)
	return nil
}

func collect(t *testing.T, threshold int, fragments []string) (string, []string) {
	t.Helper()
	rec := &flushRecorder{}
	c := NewCollector(threshold, rec.flush)
	ctx := context.Background()
	for _, f := range fragments {
		if err := c.Add(ctx, f); err != nil {
			t.Fatalf("Add(%q) error = %v", f, err)
		}
	}
	final, err := c.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	return final, rec.calls
}

func TestSingleFinalFlush(t *testing.T) {
	t.Parallel()

	final, calls := collect(t, 30, []string{"Hel", "lo", " world"})
	if final != "Hello world" {
		t.Fatalf("final = %q, want %q", final, "Hello world")
	}
	if len(calls) != 1 {
		t.Fatalf("flush calls = %d, want 1", len(calls))
	}
	if calls[0] != "Hello world" {
		t.Fatalf("flushed %q, want %q", calls[0], "Hello world")
	}
}

func TestThresholdCrossedTwice(t *testing.T) {
	t.Parallel()

	fragments := []string{
		"The quick brown fox jumps over ",  // 31 chars, crosses once
		"the lazy dog and keeps running ",  // crosses again
		"until sunset.",
	}
	final, calls := collect(t, 30, fragments)

	want := strings.TrimSpace(strings.Join(fragments, ""))
	if final != want {
		t.Fatalf("final = %q, want %q", final, want)
	}
	if len(calls) < 2 {
		t.Fatalf("flush calls = %d, want >= 2", len(calls))
	}
	if calls[len(calls)-1] != want {
		t.Fatalf("last flush = %q, want %q", calls[len(calls)-1], want)
	}
}

func TestFinalEqualsTrimmedConcat(t *testing.T) {
	t.Parallel()

	cases := [][]string{
		{},
		{""},
		{"  ", "\n"},
		{"a"},
		{"  leading", " and trailing  "},
		{"one fragment that is considerably longer than the threshold on its own"},
		{"многа", " büçek", " 字"},
	}
	for _, fragments := range cases {
		final, _ := collect(t, 30, fragments)
		want := strings.TrimSpace(strings.Join(fragments, ""))
		if final != want {
			t.Fatalf("fragments %q: final = %q, want %q", fragments, final, want)
		}
	}
}

func TestFlushCountBounded(t *testing.T) {
	t.Parallel()

	var fragments []string
	total := 0
	for i := 0; i < 50; i++ {
		fragments = append(fragments, "tokens ")
		total += len("tokens ")
	}
	_, calls := collect(t, 30, fragments)

	bound := (total+30-1)/30 + 1
	if len(calls) > bound {
		t.Fatalf("flush calls = %d, want <= %d", len(calls), bound)
	}
}

func TestNoDuplicateConsecutiveFlush(t *testing.T) {
	t.Parallel()

	// Growth past the threshold that is whitespace-only must not re-issue
	// the same trimmed content.
	fragments := []string{
		"a reply that crosses the threshold.",
		"   \n\t  ",
		"   \n\t                               ",
	}
	_, calls := collect(t, 30, fragments)
	for i := 1; i < len(calls); i++ {
		if calls[i] == calls[i-1] {
			t.Fatalf("flush %d repeated content %q", i, calls[i])
		}
	}
}

func TestEmptyStreamIssuesNoFlush(t *testing.T) {
	t.Parallel()

	final, calls := collect(t, 30, []string{" ", "\n", "\t"})
	if final != "" {
		t.Fatalf("final = %q, want empty", final)
	}
	if len(calls) != 0 {
		t.Fatalf("flush calls = %d, want 0", len(calls))
	}
}

func TestDefaultThreshold(t *testing.T) {
	t.Parallel()

	c := NewCollector(0, func(context.Context, string) error { return nil })
	if c.threshold != DefaultThreshold {
		t.Fatalf("threshold = %d, want %d", c.threshold, DefaultThreshold)
	}
}
