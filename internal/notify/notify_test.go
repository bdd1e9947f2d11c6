package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		expected string
	}{
		{
			name: "created",
			event: Event{
				Kind:      EventImprovementCreated,
				BoardName: "Checkout",
				Number:    3,
				Title:     "Shorter address form",
				Actor:     "Dana",
			},
			expected: "New improvement #3 on Checkout: Shorter address form (by Dana)",
		},
		{
			name: "status change with note",
			event: Event{
				Kind:      EventImprovementStatus,
				BoardName: "Checkout",
				Number:    3,
				Title:     "Shorter address form",
				From:      "open",
				To:        "in_progress",
				Note:      "Design picked it up",
			},
			expected: "Improvement #3 on Checkout moved from open to in_progress: Shorter address form. Design picked it up",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Message(tt.event)
			if err != nil {
				t.Fatalf("Message: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Message() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNotifyPostsPayload(t *testing.T) {
	var (
		mu  sync.Mutex
		got payload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
	}))
	defer srv.Close()

	var outcomes []string
	hook := NewWebhook(srv.URL, nil, func(outcome string) { outcomes = append(outcomes, outcome) })
	ctx, cancel := context.WithCancel(context.Background())
	hook.Notify(ctx, Event{Kind: EventImprovementCreated, BoardID: "brd_1", ImprovementID: "imp_1", BoardName: "B", Number: 1, Title: "T"})
	cancel()
	hook.Wait()

	mu.Lock()
	defer mu.Unlock()
	if got.Event != EventImprovementCreated || got.BoardID != "brd_1" || got.ImprovementID != "imp_1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.Text != "New improvement #1 on B: T" {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if len(outcomes) != 1 || outcomes[0] != "sent" {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}
}

func TestNotifySwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var outcomes []string
	hook := NewWebhook(srv.URL, nil, func(outcome string) { outcomes = append(outcomes, outcome) })
	hook.Notify(context.Background(), Event{Kind: EventImprovementCreated, BoardID: "brd_1"})
	hook.Wait()
	if len(outcomes) != 1 || outcomes[0] != "error" {
		t.Fatalf("expected one error outcome, got %v", outcomes)
	}

	if err := hook.Send(context.Background(), Event{Kind: EventImprovementCreated}); err == nil {
		t.Fatal("expected Send to report the non-2xx status")
	}
}

func TestUnconfiguredWebhookIsNoop(t *testing.T) {
	hook := NewWebhook("  ", nil, nil)
	if hook.IsConfigured() {
		t.Fatal("blank url should not count as configured")
	}
	hook.Notify(context.Background(), Event{Kind: EventImprovementCreated})
	hook.Wait()
}
