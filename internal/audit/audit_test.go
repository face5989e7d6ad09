package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e)
	s.mu.Unlock()
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{Type: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{Type: "e", Metadata: map[string]string{"i": string(rune('0' + i))}})
	}
	d.Close()

	for i := 0; i < 5; i++ {
		select {
		case e := <-sink.Events():
			if e.Metadata["i"] != string(rune('0'+i)) {
				t.Fatalf("out of order at %d: %v", i, e.Metadata)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing event %d", i)
		}
	}
}

func TestDispatcherWarnsOnFirstDrop(t *testing.T) {
	var buf bytes.Buffer
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
		Logger:     slog.New(slog.NewJSONHandler(&buf, nil)),
	}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{Type: "login_failure"})
	}
	close(sink.release)
	d.Close()

	if got := d.Delivered() + d.Dropped(); got != 5 {
		t.Fatalf("delivered+dropped = %d, want 5", got)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one warning, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["msg"] != "audit event dropped" || rec["type"] != "login_failure" || rec["dropped_total"] != float64(1) {
		t.Fatalf("unexpected warning %v", rec)
	}
}

func TestDispatcherWaitDropsOnContextEnd(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	d.Emit(context.Background(), Event{Type: "held"})
	// Wait until the sink holds the first event so the next one fills the queue.
	for d.Delivered() == 0 && len(d.queue) != 0 {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), Event{Type: "queued"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{Type: "late"})
	if d.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", d.Dropped())
	}

	close(sink.release)
	d.Close()
	if d.Delivered() != 2 {
		t.Fatalf("delivered = %d, want 2", d.Delivered())
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event is held by the sink, one fills the buffer, the rest drop.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Type: "e"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}
	close(sink.release)
	d.Close()

	d.Emit(context.Background(), Event{Type: "after-close"})
	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, e := range sink.got {
		if e.Type == "after-close" {
			t.Fatal("events after Close must be ignored")
		}
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{Type: "login_success", SubjectID: "u1", Success: true})

	var got Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != "login_success" || got.SubjectID != "u1" || !got.Success {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	s := NewSlogSink(l)

	s.Emit(context.Background(), Event{Type: "login_failure", Error: "InvalidCredentials", IP: "10.0.0.1"})
	out := buf.String()
	for _, want := range []string{"level=WARN", "type=login_failure", "error=InvalidCredentials", "ip=10.0.0.1", "component=audit"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestMultiSink(t *testing.T) {
	a, b := NewChannelSink(1), NewChannelSink(1)
	MultiSink{a, nil, b}.Emit(context.Background(), Event{Type: "x"})
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatal("expected fan-out to every sink")
	}
}
