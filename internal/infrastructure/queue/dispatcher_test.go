package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/backoffice-console/internal/core/domain"
)

type recordingService struct {
	mu     sync.Mutex
	events []domain.AuthEvent
	err    error
	done   chan struct{}
	want   int
}

func newRecordingService(want int) *recordingService {
	return &recordingService{done: make(chan struct{}), want: want}
}

func (s *recordingService) Process(_ context.Context, ev domain.AuthEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if len(s.events) == s.want {
		close(s.done)
	}
	return s.err
}

func (s *recordingService) bySession(id string) []domain.AuthEventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuthEventKind
	for _, ev := range s.events {
		if ev.SessionID == id {
			out = append(out, ev.Kind)
		}
	}
	return out
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for events")
	}
}

func TestDispatcher_PreservesPerConsoleOrder(t *testing.T) {
	kinds := []domain.AuthEventKind{
		domain.EventMFAChallenged,
		domain.EventMFARejected,
		domain.EventLoginSucceeded,
		domain.EventLogout,
	}
	consoles := 5
	svc := newRecordingService(len(kinds) * consoles)
	d := NewDispatcher(3, svc, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	for _, k := range kinds {
		for c := 0; c < consoles; c++ {
			d.Record(domain.AuthEvent{SessionID: fmt.Sprintf("c%d", c), Kind: k})
		}
	}
	waitFor(t, svc.done)

	for c := 0; c < consoles; c++ {
		got := svc.bySession(fmt.Sprintf("c%d", c))
		if len(got) != len(kinds) {
			t.Fatalf("console c%d: expected %d events, got %d", c, len(kinds), len(got))
		}
		for i := range kinds {
			if got[i] != kinds[i] {
				t.Fatalf("console c%d: out of order at %d: %v", c, i, got)
			}
		}
	}
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(0, newRecordingService(0), zerolog.Nop())
	if len(d.workers) != defaultWorkers {
		t.Fatalf("expected %d default workers, got %d", defaultWorkers, len(d.workers))
	}
	first := d.shardIndex("console-abc")
	for i := 0; i < 10; i++ {
		if d.shardIndex("console-abc") != first {
			t.Fatalf("shard index must be deterministic")
		}
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	svc := newRecordingService(-1)
	d := NewDispatcher(1, svc, zerolog.Nop())

	// Not started: the buffer fills and further events are dropped rather
	// than blocking the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < channelBuffer+10; i++ {
			d.Record(domain.AuthEvent{SessionID: "c1", Kind: domain.EventAccessDenied})
		}
		close(done)
	}()
	waitFor(t, done)

	if got := len(d.workers[0]); got != channelBuffer {
		t.Fatalf("expected a full buffer of %d, got %d", channelBuffer, got)
	}
}

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	svc := newRecordingService(3)
	d := NewDispatcher(1, svc, zerolog.Nop())

	for i := 0; i < 3; i++ {
		d.Record(domain.AuthEvent{SessionID: "c1", Kind: domain.EventLogout})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Start(ctx)
	d.Wait()

	if got := len(svc.bySession("c1")); got != 3 {
		t.Fatalf("expected buffered events to be stored on shutdown, got %d", got)
	}
}

func TestDispatcher_ServiceErrorDoesNotStopWorker(t *testing.T) {
	svc := newRecordingService(2)
	svc.err = errors.New("mongo down")
	d := NewDispatcher(1, svc, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Record(domain.AuthEvent{SessionID: "c1", Kind: domain.EventLogout})
	d.Record(domain.AuthEvent{SessionID: "c1", Kind: domain.EventLogout})
	waitFor(t, svc.done)
}
