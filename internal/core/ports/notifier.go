package ports

import "context"

// Notification is a fire-and-forget status change event. Delivery is best
// effort, correctness never depends on it.
type Notification struct {
	Kind    string
	Subject string
	Message string
}

type NotificationSink interface {
	Notify(ctx context.Context, n Notification)
	Close()
}
