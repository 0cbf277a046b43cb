package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/internal/httpclient"
	"github.com/teranos/hireflow/version"
	"github.com/teranos/hireflow/workflow"
)

// WebhookEmitter POSTs each event as JSON to a configured URL
type WebhookEmitter struct {
	client *httpclient.SaferClient
	target *url.URL
}

// NewWebhookEmitter validates target against client's address policy
func NewWebhookEmitter(client *httpclient.SaferClient, target string) (*WebhookEmitter, error) {
	u, err := client.Parse(target)
	if err != nil {
		return nil, errors.Wrapf(err, "webhook target %q", target)
	}
	return &WebhookEmitter{client: client, target: u}, nil
}

// Emit implements workflow.Emitter. Any non-2xx response is an error.
func (w *WebhookEmitter) Emit(ctx context.Context, event workflow.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.target.String(), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hireflow-Event", string(event.Action))
	req.Header.Set("X-Hireflow-Delivery", event.ID)
	req.Header.Set("User-Agent", version.Get().UserAgent())

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "deliver %s to webhook", event.Action)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Newf("webhook responded %d for %s", resp.StatusCode, event.Action)
	}
	return nil
}
