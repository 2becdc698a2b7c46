package runqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/schedcore/schedcore/internal/core"
)

// TypeNotification is the fire-and-forget event job type. A Dispatch call
// never blocks on delivery; enqueueing onto Asynq here is what makes that
// true in production instead of just in the facade's own comment.
const TypeNotification = "notification:dispatch"

const notificationMaxRetry = 3

// Notifier implements core.Notifier by enqueueing events onto Asynq instead
// of delivering them inline, so a slow or unavailable downstream consumer
// (paging system, audit sink) never blocks the caller.
type Notifier struct {
	client *asynq.Client
}

func NewNotifier(client *asynq.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Dispatch(ctx context.Context, event core.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("runqueue: marshal notification: %w", err)
	}
	task := asynq.NewTask(TypeNotification, raw)
	_, err = n.client.EnqueueContext(ctx, task, asynq.MaxRetry(notificationMaxRetry), asynq.Timeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("runqueue: enqueue notification: %w", err)
	}
	return nil
}

// NotificationHandlers logs delivered notifications. Production deployments
// are expected to wrap this with a real paging/audit sink; logging is the
// floor every event gets for free.
type NotificationHandlers struct {
	log *logrus.Logger
}

func NewNotificationHandlers(log *logrus.Logger) *NotificationHandlers {
	return &NotificationHandlers{log: log}
}

// RegisterHandlers wires TypeNotification onto the same mux solver runs are
// handled on, so one Asynq worker pool serves both job types.
func (h *NotificationHandlers) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeNotification, h.HandleNotification)
}

func (h *NotificationHandlers) HandleNotification(ctx context.Context, t *asynq.Task) error {
	var event core.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("runqueue: unmarshal notification: %w", asynq.SkipRetry)
	}
	if h.log != nil {
		h.log.WithFields(logrus.Fields{"event_type": event.Type, "details": event.Details}).Info("notification dispatched")
	}
	return nil
}
