package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/sector-mail-desk/internal/events"
)

// Handler consumes one event off the queue.
type Handler interface {
	Handle(ctx context.Context, event events.Event) error
	EventTypes() []events.EventType
}

// NotificationWorker moves notification delivery off the publishing path.
// Events are queued by the dispatcher subscription and drained by a single
// goroutine; a full queue drops the event with a warning.
type NotificationWorker struct {
	handler Handler
	queue   chan events.Event
	logger  *zap.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	done    chan struct{}
}

// NewNotificationWorker builds a worker with the given queue capacity.
func NewNotificationWorker(handler Handler, capacity int, logger *zap.Logger) *NotificationWorker {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		handler: handler,
		queue:   make(chan events.Event, capacity),
		logger:  logger.Named("notifications"),
		done:    make(chan struct{}),
	}
}

// Subscribe enqueues every event type the handler declares.
func (w *NotificationWorker) Subscribe(dispatcher events.Dispatcher) {
	for _, eventType := range w.handler.EventTypes() {
		dispatcher.Subscribe(eventType, w.enqueue)
	}
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil
	}
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
	}
	return nil
}

// Start drains the queue until ctx is cancelled or Stop is called. Queued
// events are still delivered after Stop.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started || w.closed {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-w.queue:
				if !ok {
					return
				}
				w.deliver(ctx, event)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (w *NotificationWorker) deliver(ctx context.Context, event events.Event) {
	if err := w.handler.Handle(ctx, event); err != nil {
		w.logger.Warn("notification failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

// Stop closes the queue and waits for the drain loop to exit. Later events
// are ignored.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	started := w.started
	w.mu.Unlock()

	if started {
		<-w.done
	}
}
