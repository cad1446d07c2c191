package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/openlancer/escrowd/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// service posts status-change events to a webhook. Delivery is fire and
// forget; failures are logged and dropped.
type service struct {
	url    string
	client *http.Client
	done   chan struct{}
}

func NewService(url string) ports.NotificationSink {
	return &service{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		done:   make(chan struct{}),
	}
}

func (s *service) Notify(ctx context.Context, n ports.Notification) {
	if s.url == "" {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}

	go func() {
		body, err := json.Marshal(map[string]string{
			"kind":    n.Kind,
			"subject": n.Subject,
			"message": n.Message,
		})
		if err != nil {
			return
		}
		req, err := http.NewRequestWithContext(
			context.Background(), http.MethodPost, s.url, bytes.NewReader(body),
		)
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			logrus.WithError(err).Debug("failed to deliver notification")
			return
		}
		// nolint:all
		resp.Body.Close()
	}()
}

func (s *service) Close() {
	close(s.done)
}
