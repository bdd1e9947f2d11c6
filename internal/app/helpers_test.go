package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/oppr-sandbox/oppr-journey-sub000/internal/blob"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/config"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/notify"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store"
	"github.com/oppr-sandbox/oppr-journey-sub000/internal/store/storetest"
)

const testKey = "screenshots/3f1c2a9e-8d4b-4c7a-9e2f-1a2b3c4d5e6f/cart.png"

type fakeBlob struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeBlob) UploadURL(_ context.Context, filename, _ string) (blob.Upload, error) {
	key := "screenshots/3f1c2a9e-8d4b-4c7a-9e2f-1a2b3c4d5e6f/" + blob.SanitizeFilename(filename)
	return blob.Upload{Key: key, URL: "https://files.test/upload/" + key, Method: http.MethodPut, ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (f *fakeBlob) URL(_ context.Context, key string) (string, error) {
	return "https://files.test/" + key, nil
}

func (f *fakeBlob) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBlob) deletedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (f *fakeNotifier) Notify(_ context.Context, event notify.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) sent() []notify.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Event(nil), f.events...)
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}
}

type testEnv struct {
	t        *testing.T
	store    *store.Store
	service  *Service
	handler  http.Handler
	blob     *fakeBlob
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := storetest.New(t)
	fb := &fakeBlob{}
	fn := &fakeNotifier{}
	svc := New(testConfig(), Deps{Store: st, Blob: fb, Notifier: fn})
	return &testEnv{
		t:        t,
		store:    st,
		service:  svc,
		handler:  NewHTTPServer(svc, "*", nil, nil).Handler(),
		blob:     fb,
		notifier: fn,
	}
}

// login signs in by display name and returns the access token.
func (e *testEnv) login(name string) (string, string) {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/session/login", "", map[string]any{"name": name})
	if rr.Code != http.StatusOK {
		e.t.Fatalf("login %s: expected 200, got %d body=%s", name, rr.Code, rr.Body.String())
	}
	payload := decodeMap(e.t, rr)
	token, _ := payload["token"].(string)
	userID, _ := payload["userId"].(string)
	if token == "" || userID == "" {
		e.t.Fatalf("login %s: missing token or userId in %v", name, payload)
	}
	return token, userID
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d body=%s", want, rr.Code, rr.Body.String())
	}
}

func expectCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rr, status)
	if got := decodeMap(t, rr)["code"]; got != code {
		t.Fatalf("expected code %s, got %v", code, got)
	}
}
