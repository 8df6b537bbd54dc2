package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/hakim/scandash/internal/pipeline"
)

const notifyQueueSize = 64

// Publisher sends orchestrator events to a broker, satisfied by
// *events.Publisher.
type Publisher interface {
	Publish(ev pipeline.Event) error
}

// Notifier fans orchestrator events out to the completion webhook and the
// event publisher. Handle never blocks: events are queued for a single
// background worker so their order is preserved.
type Notifier struct {
	webhook   *pipeline.NotifyConfig
	publisher Publisher
	log       *slog.Logger

	queue chan pipeline.Event
	wg    conc.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewNotifier starts the worker. Either sink may be nil.
func NewNotifier(webhook *pipeline.NotifyConfig, publisher Publisher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		webhook:   webhook,
		publisher: publisher,
		log:       logger,
		queue:     make(chan pipeline.Event, notifyQueueSize),
	}
	n.wg.Go(n.run)
	return n
}

// Handle queues ev. It is meant to be used as pipeline.Options.OnEvent.
func (n *Notifier) Handle(ev pipeline.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- ev:
	default:
		n.log.Warn("Notification queue full, event dropped", "type", ev.Type, "scan_id", ev.Scan.ID)
	}
}

// Close drains the queue and waits for the worker.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	if r := n.wg.WaitAndRecover(); r != nil {
		n.log.Error("Notifier panicked", "error", r.AsError())
	}
}

func (n *Notifier) run() {
	for ev := range n.queue {
		n.deliver(ev)
	}
}

func (n *Notifier) deliver(ev pipeline.Event) {
	if n.publisher != nil {
		if err := n.publisher.Publish(ev); err != nil {
			n.log.Warn("Event publish failed", "type", ev.Type, "scan_id", ev.Scan.ID, "error", err)
		}
	}
	if ev.Terminal() && n.webhook != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := n.webhook.SendCompletion(ctx, ev.Scan); err != nil {
			n.log.Warn("Webhook notification failed", "scan_id", ev.Scan.ID, "error", err)
		}
	}
}
