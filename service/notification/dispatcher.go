package notification

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type task struct {
	id   string
	name string
	fn   func() error
}

// Dispatcher runs the fire-and-forget side effects of booking and status
// changes (email, calendar sync, reminder registration) off the request
// path. Failures are logged with the task id for manual retry; they never
// reach the caller.
type Dispatcher struct {
	tasks chan task
	wg    sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func NewDispatcher(buffer, workers int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	if workers <= 0 {
		workers = 1
	}

	d := &Dispatcher{tasks: make(chan task, buffer)}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.tasks {
		d.run(t)
	}
}

func (d *Dispatcher) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: task %s (%s) panicked: %v", t.name, t.id, r)
		}
	}()

	started := time.Now()
	if err := t.fn(); err != nil {
		log.Printf("dispatch: task %s (%s) failed after %v: %v", t.name, t.id, time.Since(started), err)
		return
	}
	log.Printf("dispatch: task %s (%s) done in %v", t.name, t.id, time.Since(started))
}

// Enqueue submits a named task. When the queue is full, or the dispatcher
// has already stopped, the task still runs on its own goroutine, so a slow
// SMTP server or a shutdown-window request cannot stall or drop booking
// side effects.
func (d *Dispatcher) Enqueue(name string, fn func() error) {
	t := task{id: uuid.NewString(), name: name, fn: fn}

	// The send happens under the mutex so Stop cannot close the channel
	// between the stopped check and the send.
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		go d.run(t)
		return
	}
	select {
	case d.tasks <- t:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		log.Printf("dispatch: queue full, running task %s (%s) inline", t.name, t.id)
		go d.run(t)
	}
}

// Stop drains queued tasks and stops the workers.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	already := d.stopped
	d.stopped = true
	d.mu.Unlock()

	if !already {
		close(d.tasks)
	}
	d.wg.Wait()
}
