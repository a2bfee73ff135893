// Package sms abstracts the message composer the response dispatcher hands a
// scheduled text to. In the mobile app this is the device's SMS composer; on
// the backend it is an HTTP SMS gateway. Either way it is a best-effort
// collaborator: a compose failure falls back to opening the editor, never to
// losing the record.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Composer hands a message body to the user's messaging channel.
type Composer interface {
	// Compose delivers body to phoneNumber. A nil return means the message
	// was accepted; the caller may then mark the scheduled text as sent.
	Compose(ctx context.Context, phoneNumber, body string) error
}

// GatewayComposer sends messages through an external HTTP SMS gateway with a
// JSON POST. The gateway owns delivery; this client only reports acceptance.
type GatewayComposer struct {
	// URL is the gateway's send endpoint.
	URL string
	// Token, when set, is sent as a bearer credential.
	Token string
	// Client is the HTTP client; nil means a client with a 10s timeout.
	Client *http.Client
}

type gatewayPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Compose posts the message to the gateway and treats any non-2xx status as
// a failure.
func (g *GatewayComposer) Compose(ctx context.Context, phoneNumber, body string) error {
	payload, err := json.Marshal(gatewayPayload{To: phoneNumber, Body: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	client := g.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	return nil
}
