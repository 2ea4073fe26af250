package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexusmsg/campaign-engine/internal/gateway"
)

type fakeRecoverer struct {
	calls  int32
	result bool
}

func (r *fakeRecoverer) Recover(_ context.Context) bool {
	atomic.AddInt32(&r.calls, 1)
	return r.result
}

func newTestClient(baseURL string, rec gateway.Recoverer) *gateway.Client {
	return gateway.NewClient(baseURL, rec, slog.Default(), 2*time.Second, 2*time.Second)
}

// dropConn closes the TCP connection without answering, which the client must
// classify as a fatal gateway failure.
func dropConn(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("response writer is not a hijacker")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(err)
	}
	_ = conn.Close()
}

func TestSend_PostsGatewayPayload(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	if err := c.Send(context.Background(), "conn-1", "group-9", "hello there", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/connections/conn-1/send" {
		t.Errorf("path = %s, want /connections/conn-1/send", gotPath)
	}
	if gotBody["groupId"] != "group-9" || gotBody["message"] != "hello there" {
		t.Errorf("body = %v", gotBody)
	}
	if _, ok := gotBody["imageBase64"]; ok {
		t.Error("imageBase64 present for a text-only send")
	}
}

func TestSend_MediaGoesAsBase64WithCaption(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	if err := c.Send(context.Background(), "conn-1", "group-9", "look at this", []byte("img")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotBody["imageBase64"] != "aW1n" { // base64("img")
		t.Errorf("imageBase64 = %v, want aW1n", gotBody["imageBase64"])
	}
	if gotBody["caption"] != "look at this" {
		t.Errorf("caption = %v, want the message text", gotBody["caption"])
	}
}

func TestSend_ServerRejection_IsTargetLevel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"group not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	err := c.Send(context.Background(), "conn-1", "group-9", "hi", nil)
	if err == nil {
		t.Fatal("expected error")
	}

	var gerr *gateway.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("error %v is not a gateway.Error", err)
	}
	if gerr.Fatal() {
		t.Errorf("a 4xx rejection must not be fatal, got kind %s", gerr.Kind)
	}
}

func TestSend_DroppedConnection_IsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dropConn(w)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	err := c.Send(context.Background(), "conn-1", "group-9", "hi", nil)
	if err == nil {
		t.Fatal("expected error")
	}

	var gerr *gateway.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("error %v is not a gateway.Error", err)
	}
	if !gerr.Fatal() {
		t.Errorf("dropped connection must be fatal, got kind %s", gerr.Kind)
	}
}

func TestSend_RetriesOnceAfterSuccessfulRecovery(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			dropConn(w)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := &fakeRecoverer{result: true}
	c := newTestClient(srv.URL, rec)

	if err := c.Send(context.Background(), "conn-1", "group-9", "hi", nil); err != nil {
		t.Fatalf("unexpected error after recovery: %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Errorf("server hits = %d, want 2 (original + one retry)", hits)
	}
	if atomic.LoadInt32(&rec.calls) != 1 {
		t.Errorf("recover calls = %d, want 1", rec.calls)
	}
}

func TestSend_NoRetryWhenRecoveryFails(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		dropConn(w)
	}))
	defer srv.Close()

	rec := &fakeRecoverer{result: false}
	c := newTestClient(srv.URL, rec)

	if err := c.Send(context.Background(), "conn-1", "group-9", "hi", nil); err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("server hits = %d, want 1 (no retry without recovery)", hits)
	}
	if atomic.LoadInt32(&rec.calls) != 1 {
		t.Errorf("recover calls = %d, want 1", rec.calls)
	}
}

func TestStatus_DecodesConnectionState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/connections/conn-1/status" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "connected",
			"phoneNumber": "+5511999999999",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	st, err := c.Status(context.Background(), "conn-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Connected() {
		t.Errorf("status %q should report connected", st.Status)
	}
	if st.PhoneNumber == nil || *st.PhoneNumber != "+5511999999999" {
		t.Errorf("phone = %v", st.PhoneNumber)
	}
}

func TestHealth_ReflectsGatewayAvailability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	c := newTestClient(srv.URL, nil)
	if !c.Health(context.Background()) {
		t.Error("healthy gateway reported down")
	}

	srv.Close()
	if c.Health(context.Background()) {
		t.Error("closed gateway reported up")
	}
}
