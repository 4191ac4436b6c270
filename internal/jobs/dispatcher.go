// Package jobs runs at most one long-lived background job per process and fans
// its progress out to subscribers.
package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-fleet/internal/logger"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

// DefaultBufferSize is the capacity of the progress channel.
const DefaultBufferSize = 64

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one message on the progress bus. Seq increases by one for every
// event the dispatcher emits over its lifetime.
type Event struct {
	Seq     uint64         `json:"seq"`
	JobID   string         `json:"job_id"`
	Type    EventType      `json:"type"`
	Current int            `json:"current,omitempty"`
	Total   int            `json:"total,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Result  any            `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ReportFunc publishes job progress. It is safe for concurrent use.
type ReportFunc func(current, total int, details map[string]any)

// JobFunc is the body of a job. ctx is cancelled when the dispatcher closes.
type JobFunc func(ctx context.Context, report ReportFunc) (any, error)

// Listener receives events. Returning an error unsubscribes it.
type Listener func(event Event) error

// Status is a point-in-time view of the dispatcher.
type Status struct {
	State    State                  `json:"state"`
	JobID    string                 `json:"job_id,omitempty"`
	Name     string                 `json:"name,omitempty"`
	Progress optional.Option[Event] `json:"progress"`
	Result   any                    `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

type subscriber struct {
	listener Listener
	// after is the sequence already reflected in the replay.
	after uint64
}

// Dispatcher owns the single job slot and the progress bus.
//
// Lock order: deliverMu, then mu. sendMu orders sequence numbers with channel
// sends and is never held together with deliverMu.
type Dispatcher struct {
	mu        sync.Mutex
	sendMu    sync.Mutex
	deliverMu sync.Mutex

	state    State
	jobID    string
	name     string
	progress optional.Option[Event]
	result   any
	errText  string
	seq      uint64

	subscribers map[string]*subscriber

	events     chan Event
	sendClosed bool
	forwarded  chan struct{}

	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	jobs   conc.WaitGroup

	log *logger.Logger
}

type Option func(*Dispatcher)

// WithBufferSize sets the capacity of the progress channel.
func WithBufferSize(size int) Option {
	return func(d *Dispatcher) {
		if size > 0 {
			d.events = make(chan Event, size)
		}
	}
}

// NewDispatcher creates a dispatcher and starts its forwarder.
func NewDispatcher(log *logger.Logger, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		state:       StateIdle,
		progress:    optional.None[Event](),
		subscribers: make(map[string]*subscriber),
		events:      make(chan Event, DefaultBufferSize),
		forwarded:   make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		log:         log,
	}

	for _, opt := range opts {
		opt(d)
	}

	go d.forward()

	return d
}

// Start schedules fn unless a job is already running.
func (d *Dispatcher) Start(name string, fn JobFunc) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return "", errors.New(errors.ErrCodeJobClosed, "dispatcher is closed")
	}

	if d.state == StateRunning {
		return "", errors.Newf(errors.ErrCodeJobBusy, "job %s is already running", d.name)
	}

	d.state = StateRunning
	d.jobID = uuid.NewString()
	d.name = name
	d.progress = optional.None[Event]()
	d.result = nil
	d.errText = ""

	jobID := d.jobID

	d.jobs.Go(func() {
		d.run(jobID, fn)
	})

	d.log.Info("Job started", zap.String("job", name), zap.String("job_id", jobID))

	return jobID, nil
}

func (d *Dispatcher) run(jobID string, fn JobFunc) {
	report := func(current, total int, details map[string]any) {
		d.emit(Event{JobID: jobID, Type: EventProgress, Current: current, Total: total, Details: details})
	}

	var (
		result  any
		err     error
		catcher panics.Catcher
	)

	catcher.Try(func() {
		result, err = fn(d.ctx, report)
	})

	if recovered := catcher.Recovered(); recovered != nil {
		err = errors.Wrap(errors.ErrCodeJobFailed, "job panicked", recovered.AsError())
	}

	if err != nil {
		d.log.Error("Job failed", zap.String("job_id", jobID), zap.Error(err))
		d.emit(Event{JobID: jobID, Type: EventError, Error: err.Error()})

		return
	}

	d.log.Info("Job completed", zap.String("job_id", jobID))
	d.emit(Event{JobID: jobID, Type: EventComplete, Result: result})
}

// emit records ev in the dispatcher state and queues it for the forwarder.
// Progress events are dropped when the channel is full since the state already
// holds the latest one; terminal events always get through.
func (d *Dispatcher) emit(ev Event) {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	d.mu.Lock()
	d.seq++
	ev.Seq = d.seq

	switch ev.Type {
	case EventProgress:
		d.progress = optional.Some(ev)
	case EventComplete:
		d.state = StateCompleted
		d.result = ev.Result
	case EventError:
		d.state = StateFailed
		d.errText = ev.Error
	}
	d.mu.Unlock()

	if d.sendClosed {
		return
	}

	if ev.Type == EventProgress {
		select {
		case d.events <- ev:
		default:
			d.log.Debug("Progress channel full, dropping event", zap.Uint64("seq", ev.Seq))
		}

		return
	}

	d.events <- ev
}

// forward is the single consumer of the progress channel.
func (d *Dispatcher) forward() {
	defer close(d.forwarded)

	for ev := range d.events {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	d.mu.Lock()
	targets := make(map[string]*subscriber, len(d.subscribers))
	for id, sub := range d.subscribers {
		targets[id] = sub
	}
	d.mu.Unlock()

	for id, sub := range targets {
		if ev.Seq <= sub.after {
			continue
		}

		if err := call(sub.listener, ev); err != nil {
			d.log.Warn("Dropping subscriber", zap.String("subscriber", id), zap.Error(err))
			d.Unsubscribe(id)
		}
	}
}

func call(listener Listener, ev Event) (err error) {
	var catcher panics.Catcher

	catcher.Try(func() {
		err = listener(ev)
	})

	if recovered := catcher.Recovered(); recovered != nil {
		return recovered.AsError()
	}

	return err
}

// Subscribe registers listener and immediately replays the current state: the
// latest progress while running, the result once completed, the error once
// failed. Nothing is replayed for an idle dispatcher or a job that has not
// reported yet. A listener that fails its replay is not registered.
func (d *Dispatcher) Subscribe(listener Listener) (string, error) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	d.mu.Lock()
	replay := d.replayLocked()
	id := uuid.NewString()
	sub := &subscriber{listener: listener, after: d.seq}
	d.mu.Unlock()

	if replay.IsSome() {
		if err := call(listener, replay.Unwrap()); err != nil {
			return "", errors.Wrap(errors.ErrCodeCallbackFailed, "subscriber rejected replay", err)
		}
	}

	d.mu.Lock()
	d.subscribers[id] = sub
	d.mu.Unlock()

	return id, nil
}

func (d *Dispatcher) replayLocked() optional.Option[Event] {
	switch d.state {
	case StateRunning:
		return d.progress
	case StateCompleted:
		return optional.Some(Event{Seq: d.seq, JobID: d.jobID, Type: EventComplete, Result: d.result})
	case StateFailed:
		return optional.Some(Event{Seq: d.seq, JobID: d.jobID, Type: EventError, Error: d.errText})
	default:
		return optional.None[Event]()
	}
}

func (d *Dispatcher) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.subscribers, id)
}

// SubscriberCount returns the number of registered listeners.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.subscribers)
}

func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Status{
		State:    d.state,
		JobID:    d.jobID,
		Name:     d.name,
		Progress: d.progress,
		Result:   d.result,
		Error:    d.errText,
	}
}

// Close cancels the running job, waits for it and drains the bus. Start fails afterwards.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()

		return
	}

	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.jobs.Wait()

	d.sendMu.Lock()
	d.sendClosed = true
	close(d.events)
	d.sendMu.Unlock()

	<-d.forwarded
}
