package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/container-tracker/internal/resilience"
)

// Attachment is a file sent with a message.
type Attachment struct {
	Name        string
	Content     []byte
	ContentType string
}

// Message is one outbound email.
type Message struct {
	To          string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrRelayRejected means the relay answered but did not accept the message.
var ErrRelayRejected = errors.New("notify: relay rejected message")

// RelayClient posts messages to the mail relay's JSON endpoint. With a
// Breaker set, an unhealthy relay fails sends fast with
// resilience.ErrOpenCircuit.
type RelayClient struct {
	URL      string
	Username string
	Password string
	Client   *http.Client
	Breaker  *resilience.Breaker
}

type relayAttachment struct {
	Name        string `json:"name"`
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

type relayRequest struct {
	Username    string            `json:"username"`
	Password    string            `json:"password"`
	To          string            `json:"to"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	Attachments []relayAttachment `json:"attachments,omitempty"`
}

type relayResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Send succeeds only on HTTP 200 with {"success": true}.
func (c RelayClient) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("notify: relay url not configured")
	}
	payload := relayRequest{
		Username: c.Username,
		Password: c.Password,
		To:       msg.To,
		Subject:  msg.Subject,
		Body:     msg.HTMLBody,
	}
	for _, a := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, relayAttachment{
			Name:        a.Name,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: a.ContentType,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode relay request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.Client
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	resp, cancel, err := resilience.GuardedClient{Client: client, Breaker: c.Breaker}.Do(ctx, req)
	defer cancel()
	if err != nil {
		return fmt.Errorf("notify: relay request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrRelayRejected, resp.StatusCode)
	}
	var out relayResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("%w: undecodable response: %v", ErrRelayRejected, err)
	}
	if !out.Success {
		if out.Message != "" {
			return fmt.Errorf("%w: %s", ErrRelayRejected, out.Message)
		}
		return ErrRelayRejected
	}
	return nil
}

// InMemorySender stores messages instead of sending them.
type InMemorySender struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func (m *InMemorySender) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *InMemorySender) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
