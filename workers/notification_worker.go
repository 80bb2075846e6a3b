// workers/notification_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"essence-engine/services"
)

const dispatchTimeout = 5 * time.Second

// NotificationQueue is the Publisher handed to the engine. Publish never
// blocks; Run drains the queue into the dispatcher. Failed deliveries are
// logged and dropped.
type NotificationQueue struct {
	dispatcher services.NotificationDispatcher
	queue      chan services.Notification
}

func NewNotificationQueue(dispatcher services.NotificationDispatcher, buffer int) *NotificationQueue {
	if buffer < 1 {
		buffer = 1
	}
	return &NotificationQueue{
		dispatcher: dispatcher,
		queue:      make(chan services.Notification, buffer),
	}
}

func (q *NotificationQueue) Publish(n services.Notification) {
	select {
	case q.queue <- n:
	default:
		log.Printf("⚠️ [NOTIFY] queue full, dropped %s for %s", n.Type, n.UserID)
	}
}

// Run dispatches until ctx is done.
func (q *NotificationQueue) Run(ctx context.Context) {
	for {
		select {
		case n := <-q.queue:
			q.dispatch(ctx, n)
		case <-ctx.Done():
			return
		}
	}
}

func (q *NotificationQueue) dispatch(ctx context.Context, n services.Notification) {
	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := q.dispatcher.Send(ctx, n.UserID, n); err != nil {
		log.Printf("⚠️ [NOTIFY] %s for %s not delivered: %v", n.Type, n.UserID, err)
	}
}
