package notification

import (
	"errors"
	"testing"
	"time"
)

func TestDispatcherRunsTasks(t *testing.T) {
	d := NewDispatcher(4, 1)
	defer d.Stop()

	done := make(chan struct{})
	d.Enqueue("test-task", func() error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestDispatcherSurvivesFailuresAndPanics(t *testing.T) {
	d := NewDispatcher(4, 1)
	defer d.Stop()

	d.Enqueue("failing-task", func() error {
		return errors.New("smtp unreachable")
	})
	d.Enqueue("panicking-task", func() error {
		panic("boom")
	})

	done := make(chan struct{})
	d.Enqueue("following-task", func() error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive earlier failures")
	}
}

func TestDispatcherFullQueueStillRuns(t *testing.T) {
	// Single worker wedged on the first task; the queue (size 1) fills
	// up and later tasks must still execute rather than being dropped.
	d := NewDispatcher(1, 1)
	defer d.Stop()

	block := make(chan struct{})
	started := make(chan struct{})
	d.Enqueue("blocking-task", func() error {
		close(started)
		<-block
		return nil
	})
	<-started
	d.Enqueue("queued-task", func() error { return nil })

	done := make(chan struct{})
	d.Enqueue("overflow-task", func() error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("overflow task did not run")
	}
	close(block)
}

func TestStopDrainsQueue(t *testing.T) {
	d := NewDispatcher(8, 1)

	ran := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		d.Enqueue("drain-task", func() error {
			ran <- struct{}{}
			return nil
		})
	}

	d.Stop()

	if len(ran) != 3 {
		t.Fatalf("expected 3 tasks drained before stop returned, got %d", len(ran))
	}
}

func TestEnqueueAfterStop(t *testing.T) {
	// A request in flight during shutdown may still enqueue; the task
	// must run instead of panicking on a closed channel.
	d := NewDispatcher(4, 1)
	d.Stop()

	done := make(chan struct{})
	d.Enqueue("late-task", func() error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task enqueued after stop did not run")
	}
}
