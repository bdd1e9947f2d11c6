// Package notify posts improvement events to a chat webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"go.uber.org/zap"
)

const sendTimeout = 5 * time.Second

const (
	EventImprovementCreated = "improvement.created"
	EventImprovementStatus  = "improvement.status_changed"
)

type Event struct {
	Kind          string
	BoardID       string
	BoardName     string
	ImprovementID string
	Number        int
	Title         string
	From          string
	To            string
	Actor         string
	Note          string
}

// Notifier delivers events without blocking or failing the caller.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type payload struct {
	Text          string `json:"text"`
	Event         string `json:"event"`
	BoardID       string `json:"boardId"`
	ImprovementID string `json:"improvementId,omitempty"`
}

var messageTemplates = template.Must(template.New("messages").Parse(`
{{define "improvement.created"}}New improvement #{{.Number}} on {{.BoardName}}: {{.Title}}{{if .Actor}} (by {{.Actor}}){{end}}{{end}}
{{define "improvement.status_changed"}}Improvement #{{.Number}} on {{.BoardName}} moved from {{.From}} to {{.To}}: {{.Title}}{{if .Actor}} (by {{.Actor}}){{end}}{{if .Note}}. {{.Note}}{{end}}{{end}}
`))

// Message renders the human-readable text for an event.
func Message(event Event) (string, error) {
	var buf bytes.Buffer
	if err := messageTemplates.ExecuteTemplate(&buf, event.Kind, event); err != nil {
		return "", fmt.Errorf("render %s message: %w", event.Kind, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

type Webhook struct {
	url     string
	client  *http.Client
	logger  *zap.Logger
	observe func(outcome string)
	wg      sync.WaitGroup
}

func NewWebhook(url string, logger *zap.Logger, observe func(outcome string)) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{
		url:     strings.TrimSpace(url),
		client:  &http.Client{Timeout: sendTimeout},
		logger:  logger,
		observe: observe,
	}
}

func (w *Webhook) IsConfigured() bool {
	return w != nil && w.url != ""
}

// Notify sends in the background. The request outlives the caller's context
// but not sendTimeout. Failures are logged only.
func (w *Webhook) Notify(ctx context.Context, event Event) {
	if !w.IsConfigured() {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()
		if err := w.Send(sendCtx, event); err != nil {
			w.logger.Warn("webhook notification failed",
				zap.String("event", event.Kind),
				zap.String("board_id", event.BoardID),
				zap.Error(err),
			)
			w.record("error")
			return
		}
		w.record("sent")
	}()
}

// Wait blocks until background sends finish.
func (w *Webhook) Wait() {
	w.wg.Wait()
}

func (w *Webhook) record(outcome string) {
	if w.observe != nil {
		w.observe(outcome)
	}
}

// Send posts one event and reports any failure.
func (w *Webhook) Send(ctx context.Context, event Event) error {
	text, err := Message(event)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload{
		Text:          text,
		Event:         event.Kind,
		BoardID:       event.BoardID,
		ImprovementID: event.ImprovementID,
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
