package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoopHandlesInOrder(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan int, 8)
	sem := make(chan struct{}, 1)
	l := Start(ctx, sem, Config{Buffer: 8}, func(_ context.Context, job int) {
		got <- job
	})

	for i := 1; i <= 5; i++ {
		if err := l.Enqueue(ctx, i); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
	}
	for want := 1; want <= 5; want++ {
		select {
		case job := <-got:
			if job != want {
				t.Fatalf("job = %d, want %d", job, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d", want)
		}
	}
}

func TestLoopStopsAfterIdle(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	sem := make(chan struct{}, 1)
	l := Start(ctx, sem, Config{
		Buffer:    1,
		IdleAfter: 10 * time.Millisecond,
		OnStop:    func() { close(stopped) },
	}, func(context.Context, int) {})

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after idling")
	}
	if !l.Stopped() {
		t.Fatal("Stopped() = false after OnStop")
	}
	if err := l.Enqueue(ctx, 1); !errors.Is(err, ErrStopped) {
		t.Fatalf("Enqueue() error = %v, want ErrStopped", err)
	}
}

func TestLoopIdleTimerResetsOnWork(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan int, 1)
	sem := make(chan struct{}, 1)
	l := Start(ctx, sem, Config{
		Buffer:    1,
		IdleAfter: 500 * time.Millisecond,
	}, func(_ context.Context, job int) {
		got <- job
	})

	// Jobs spaced well inside the idle window must all be handled.
	for i := 1; i <= 3; i++ {
		if err := l.Enqueue(ctx, i); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
		select {
		case job := <-got:
			if job != i {
				t.Fatalf("job = %d, want %d", job, i)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d", i)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	sem := make(chan struct{}, 1)
	l := Start(ctx, sem, Config{
		Buffer: 1,
		OnStop: func() { close(stopped) },
	}, func(context.Context, int) {})

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	if err := l.Enqueue(context.Background(), 1); !errors.Is(err, ErrStopped) {
		t.Fatalf("Enqueue() error = %v, want ErrStopped", err)
	}
}

func TestEnqueueBlocksUntilSlotFrees(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	done := make(chan int, 4)
	sem := make(chan struct{}, 1)
	l := Start(ctx, sem, Config{Buffer: 1}, func(_ context.Context, job int) {
		<-release
		done <- job
	})

	// First job occupies the handler, second fills the buffer; the third
	// enqueue must block until the handler drains one.
	if err := l.Enqueue(ctx, 1); err != nil {
		t.Fatalf("Enqueue(1) error = %v", err)
	}
	if err := l.Enqueue(ctx, 2); err != nil {
		t.Fatalf("Enqueue(2) error = %v", err)
	}

	enqueued := make(chan error, 1)
	go func() { enqueued <- l.Enqueue(ctx, 3) }()
	close(release)

	select {
	case err := <-enqueued:
		if err != nil {
			t.Fatalf("Enqueue(3) error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked enqueue never completed")
	}
	for want := 1; want <= 3; want++ {
		select {
		case job := <-done:
			if job != want {
				t.Fatalf("job = %d, want %d", job, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d", want)
		}
	}
}
