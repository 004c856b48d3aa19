package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Event is one user-facing notification: a purchase outcome, a subscription
// delivery, a spin result. Delivery is always best-effort; callers must
// never let a notification failure poison the surrounding flow.
type Event struct {
	AccountID string         `json:"account_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// HTTPNotifier posts events to the external notification service.
type HTTPNotifier struct {
	url    string
	client *http.Client
}

func NewHTTPNotifier(url string) *HTTPNotifier {
	return &HTTPNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *HTTPNotifier) Send(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// LogNotifier stands in when no notification endpoint is configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, event Event) error {
	log.Printf("notify %s: %s", event.AccountID, event.Type)
	return nil
}

// BestEffort swallows and logs a send failure.
func BestEffort(ctx context.Context, notifier Notifier, event Event) {
	if notifier == nil {
		return
	}
	if err := notifier.Send(ctx, event); err != nil {
		log.Printf("notification %s for %s failed: %v", event.Type, event.AccountID, err)
	}
}
