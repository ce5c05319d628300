package api

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/forumdesk-io/forumdesk/internal/relay"
)

type fakeDeliverer struct {
	err      error
	payloads []relay.Payload
}

func (f *fakeDeliverer) Deliver(_ context.Context, p relay.Payload) error {
	f.payloads = append(f.payloads, p)
	return f.err
}

type testServer struct {
	*Server
	deliverer *fakeDeliverer
	priv      ed25519.PrivateKey
}

func newTestServer(t *testing.T, secret string) *testServer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	d := &fakeDeliverer{}
	s := NewServer(Config{Port: 0, PublicKey: pub, WebhookSecret: secret}, d, nil)
	return &testServer{Server: s, deliverer: d, priv: priv}
}

// signedInteraction builds a request signed the way Discord signs
// interaction callbacks: ed25519 over timestamp+body.
func (ts *testServer) signedInteraction(t *testing.T, body string) *http.Request {
	t.Helper()
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sig := ed25519.Sign(ts.priv, []byte(timestamp+body))

	req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(sig))
	req.Header.Set("X-Signature-Timestamp", timestamp)
	return req
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestInteractions_Ping(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(ts.signedInteraction(t, `{"type":1}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Type int `json:"type"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Type != 1 {
		t.Errorf("response type = %d, want pong", resp.Type)
	}
}

func TestInteractions_TestCommand(t *testing.T) {
	ts := newTestServer(t, "")
	body := `{"type":2,"data":{"id":"1","name":"test","type":1}}`
	w := ts.do(ts.signedInteraction(t, body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Type int `json:"type"`
		Data struct {
			Content string `json:"content"`
		} `json:"data"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Type != 4 {
		t.Errorf("response type = %d, want channel message", resp.Type)
	}
	if !strings.HasPrefix(resp.Data.Content, "hello world ") {
		t.Errorf("content = %q", resp.Data.Content)
	}
}

func TestInteractions_UnknownCommand(t *testing.T) {
	ts := newTestServer(t, "")
	body := `{"type":2,"data":{"id":"1","name":"destroy","type":1}}`
	w := ts.do(ts.signedInteraction(t, body))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestInteractions_UnknownType(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(ts.signedInteraction(t, `{"type":99}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestInteractions_BadSignature(t *testing.T) {
	ts := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(`{"type":1}`))
	req.Header.Set("X-Signature-Ed25519", strings.Repeat("ab", 64))
	req.Header.Set("X-Signature-Timestamp", "12345")

	w := ts.do(req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
