package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeThreads struct {
	ids []string
	err error
}

func (f *fakeThreads) ActiveThreads(context.Context) ([]string, error) {
	return f.ids, f.err
}

type hookCall struct {
	threadID string
	content  string
}

func newHookServer(t *testing.T, status int) (*httptest.Server, *[]hookCall) {
	t.Helper()
	var calls []hookCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, hookCall{
			threadID: r.URL.Query().Get("thread_id"),
			content:  body["content"],
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestDeliver(t *testing.T) {
	srv, calls := newHookServer(t, http.StatusNoContent)
	r := New(
		map[string]string{"27124286946829": srv.URL},
		&fakeThreads{ids: []string{"T0", "T1", "T2"}},
		nil,
		WithHTTPClient(srv.Client()),
	)

	err := r.Deliver(context.Background(), Payload{
		ThreadID:           "T1",
		CommentDescription: "We fixed it",
		CommenterID:        "27124286946829",
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if len(*calls) != 1 {
		t.Fatalf("calls = %d, want exactly 1", len(*calls))
	}
	call := (*calls)[0]
	if call.content != "We fixed it" {
		t.Errorf("content = %q", call.content)
	}
	if call.threadID != "T1" {
		t.Errorf("thread_id = %q", call.threadID)
	}
}

func TestDeliver_UnknownCommenter(t *testing.T) {
	srv, calls := newHookServer(t, http.StatusNoContent)
	r := New(map[string]string{"known": srv.URL}, &fakeThreads{ids: []string{"T1"}}, nil,
		WithHTTPClient(srv.Client()))

	err := r.Deliver(context.Background(), Payload{
		ThreadID: "T1", CommentDescription: "hi", CommenterID: "stranger",
	})
	if !errors.Is(err, ErrUnknownCommenter) {
		t.Fatalf("err = %v, want ErrUnknownCommenter", err)
	}
	if len(*calls) != 0 {
		t.Errorf("webhook called %d times for unmapped commenter", len(*calls))
	}
}

func TestDeliver_ThreadNotActive(t *testing.T) {
	srv, calls := newHookServer(t, http.StatusNoContent)
	r := New(map[string]string{"c1": srv.URL}, &fakeThreads{ids: []string{"T2", "T3"}}, nil,
		WithHTTPClient(srv.Client()))

	err := r.Deliver(context.Background(), Payload{
		ThreadID: "T1", CommentDescription: "hi", CommenterID: "c1",
	})
	if !errors.Is(err, ErrThreadNotActive) {
		t.Fatalf("err = %v, want ErrThreadNotActive", err)
	}
	if len(*calls) != 0 {
		t.Errorf("webhook called for inactive thread")
	}
}

func TestDeliver_ListFailure(t *testing.T) {
	r := New(map[string]string{"c1": "https://x.test/hook"},
		&fakeThreads{err: errors.New("gateway down")}, nil)

	err := r.Deliver(context.Background(), Payload{ThreadID: "T1", CommenterID: "c1"})
	if err == nil || errors.Is(err, ErrThreadNotActive) || errors.Is(err, ErrUnknownCommenter) {
		t.Fatalf("err = %v, want internal failure", err)
	}
}

func TestDeliver_WebhookNon2xx(t *testing.T) {
	srv, _ := newHookServer(t, http.StatusForbidden)
	r := New(map[string]string{"c1": srv.URL}, &fakeThreads{ids: []string{"T1"}}, nil,
		WithHTTPClient(srv.Client()))

	err := r.Deliver(context.Background(), Payload{ThreadID: "T1", CommenterID: "c1"})
	if err == nil {
		t.Fatal("expected error on 403 from webhook")
	}
}

func TestDeliver_PreservesExistingQuery(t *testing.T) {
	srv, calls := newHookServer(t, http.StatusOK)
	r := New(map[string]string{"c1": srv.URL + "?wait=true"},
		&fakeThreads{ids: []string{"T1"}}, nil, WithHTTPClient(srv.Client()))

	if err := r.Deliver(context.Background(), Payload{ThreadID: "T1", CommentDescription: "x", CommenterID: "c1"}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if (*calls)[0].threadID != "T1" {
		t.Errorf("thread_id = %q", (*calls)[0].threadID)
	}
}
