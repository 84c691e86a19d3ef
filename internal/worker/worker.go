// Package worker implements the cooperative producer/consumer pump used
// by the Reader and Writer: a goroutine that sleeps until woken, runs one
// work cycle, and sleeps again, until told to stop.
package worker

import "sync"

// CycleFunc runs one unit of work. done reports that no further cycles
// are needed; a non-nil err stops the pump permanently and is surfaced
// from Stop().
type CycleFunc func() (done bool, err error)

// Worker drives a CycleFunc on its own goroutine, woken by Wake() and
// torn down by Stop(). It is safe to call Stop() on a Worker whose
// goroutine was never started (Reader prefill can fully satisfy a
// transfer without ever needing the background pump).
type Worker struct {
	mu       sync.Mutex
	cond     *sync.Cond
	breakFl  bool
	started  bool
	err      error
	wg       sync.WaitGroup
	stopOnce sync.Once
	cycle    CycleFunc
}

// New creates a Worker around the given cycle function. The goroutine is
// not started until Start is called.
func New(cycle CycleFunc) *Worker {
	w := &Worker{cycle: cycle}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Start launches the pump goroutine. It is a no-op if already started or
// already stopped.
func (w *Worker) Start() {
	w.mu.Lock()
	if w.started || w.breakFl {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.pump()
}

func (w *Worker) pump() {
	defer w.wg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()
	for !w.breakFl {
		w.cond.Wait()
		if w.breakFl {
			break
		}
		// No need to hold the lock - the ring buffer is lock-free and
		// cycle does not touch Worker state.
		w.mu.Unlock()
		done, err := w.cycle()
		w.mu.Lock()

		if err != nil {
			w.err = err
			w.breakFl = true
			break
		}
		if done {
			w.breakFl = true
		}
	}
}

// Wake notifies the pump that there may be work to do.
func (w *Worker) Wake() {
	w.mu.Lock()
	w.cond.Signal()
	w.mu.Unlock()
}

// MarkDone flags the worker as permanently finished without ever
// starting its goroutine. Used when a synchronous prefill already
// satisfied the whole transfer.
func (w *Worker) MarkDone(err error) {
	w.mu.Lock()
	w.breakFl = true
	w.err = err
	w.mu.Unlock()
}

// Finished reports whether the worker has permanently stopped.
func (w *Worker) Finished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.breakFl
}

// Stop requests the pump to stop, wakes it, waits for it to exit if it
// was running, and returns any error captured from the cycle function.
// Stop is idempotent and safe to call more than once.
func (w *Worker) Stop() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		wasStarted := w.started
		w.breakFl = true
		w.cond.Signal()
		w.mu.Unlock()

		if wasStarted {
			w.wg.Wait()
		}
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
