package correlation

import (
	"context"
	"errors"
	"testing"
)

// memStore is an in-memory Store for wiring tests.
type memStore struct {
	m          map[string]string
	recordErr  error
	resolveErr error
	resolves   int
}

func newMemStore() *memStore { return &memStore{m: map[string]string{}} }

func (s *memStore) Record(_ context.Context, threadID, ticketID string) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.m[threadID] = ticketID
	return nil
}

func (s *memStore) Resolve(_ context.Context, threadID string) (string, error) {
	s.resolves++
	if s.resolveErr != nil {
		return "", s.resolveErr
	}
	id, ok := s.m[threadID]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func TestLayered_RecordWritesBoth(t *testing.T) {
	db, thread := newMemStore(), newMemStore()
	l := NewLayered(db, thread, nil)

	if err := l.Record(context.Background(), "t1", "555"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if db.m["t1"] != "555" || thread.m["t1"] != "555" {
		t.Errorf("db = %v, thread = %v", db.m, thread.m)
	}
}

func TestLayered_RecordMarkerFailurePropagates(t *testing.T) {
	db, thread := newMemStore(), newMemStore()
	thread.recordErr = errors.New("send failed")
	l := NewLayered(db, thread, nil)

	if err := l.Record(context.Background(), "t1", "555"); err == nil {
		t.Fatal("expected marker failure to propagate")
	}
}

func TestLayered_ResolveDatabaseHitSkipsThread(t *testing.T) {
	db, thread := newMemStore(), newMemStore()
	db.m["t1"] = "555"
	l := NewLayered(db, thread, nil)

	id, err := l.Resolve(context.Background(), "t1")
	if err != nil || id != "555" {
		t.Fatalf("resolve = %q, %v", id, err)
	}
	if thread.resolves != 0 {
		t.Errorf("thread scanned %d times, want 0", thread.resolves)
	}
}

func TestLayered_ResolveFallsBackAndBackfills(t *testing.T) {
	db, thread := newMemStore(), newMemStore()
	thread.m["t1"] = "555"
	l := NewLayered(db, thread, nil)

	id, err := l.Resolve(context.Background(), "t1")
	if err != nil || id != "555" {
		t.Fatalf("resolve = %q, %v", id, err)
	}
	if db.m["t1"] != "555" {
		t.Errorf("db not backfilled: %v", db.m)
	}
}

func TestLayered_ResolveNotFoundAnywhere(t *testing.T) {
	l := NewLayered(newMemStore(), newMemStore(), nil)

	_, err := l.Resolve(context.Background(), "t1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLayered_BackfillFailureDoesNotMaskResult(t *testing.T) {
	db, thread := newMemStore(), newMemStore()
	thread.m["t1"] = "555"
	db.recordErr = errors.New("disk full")
	l := NewLayered(db, thread, nil)

	id, err := l.Resolve(context.Background(), "t1")
	if err != nil || id != "555" {
		t.Fatalf("resolve = %q, %v", id, err)
	}
}
