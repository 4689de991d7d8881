package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spigell/prep-assistant/internal/ai"
	"github.com/spigell/prep-assistant/internal/experience"
)

type responderFunc func(ctx context.Context, query string) (*ai.Reply, error)

func (f responderFunc) Respond(ctx context.Context, query string) (*ai.Reply, error) {
	return f(ctx, query)
}

func staticReply(text string, sources ...experience.Match) responderFunc {
	return func(context.Context, string) (*ai.Reply, error) {
		return &ai.Reply{Advice: text, Advisor: "deterministic", Sources: sources}, nil
	}
}

func TestSubmitSuccess(t *testing.T) {
	store := NewMemoryStore()
	source := experience.Match{ID: "e1", Company: "Google", Role: "SWE", Snippet: "onsite"}
	c := NewController(context.Background(), staticReply("advice", source), WithHistory(store, "k"))

	msg, err := c.Submit(context.Background(), "  google interview ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Text != "advice" || msg.Loading || msg.Failed || len(msg.Sources) != 1 {
		t.Fatalf("unexpected reply %+v", msg)
	}

	messages := c.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Sender != SenderUser || messages[0].Text != "google interview" {
		t.Fatalf("unexpected user message %+v", messages[0])
	}
	if messages[1].ID != msg.ID || messages[1].Sender != SenderAssistant {
		t.Fatalf("placeholder was not replaced: %+v", messages[1])
	}

	persisted, _ := store.Load(context.Background(), "k")
	if len(persisted) != 2 || persisted[1].Loading || persisted[1].Text != "advice" {
		t.Fatalf("unexpected persisted log %+v", persisted)
	}
}

func TestSubmitEmpty(t *testing.T) {
	c := NewController(context.Background(), staticReply("advice"))

	if _, err := c.Submit(context.Background(), " \t"); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if len(c.Messages()) != 0 {
		t.Fatalf("expected empty log")
	}
}

func TestSubmitFailure(t *testing.T) {
	var notified []error
	c := NewController(context.Background(),
		responderFunc(func(context.Context, string) (*ai.Reply, error) { return nil, errors.New("boom") }),
		WithNotifier(func(err error) { notified = append(notified, err) }),
	)

	msg, err := c.Submit(context.Background(), "google")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Text != FailureText || !msg.Failed || msg.Loading {
		t.Fatalf("unexpected reply %+v", msg)
	}
	if len(notified) != 1 {
		t.Fatalf("expected one notification, got %d", len(notified))
	}
	if c.Busy() {
		t.Fatalf("controller must accept new submissions after a failure")
	}
}

func TestSubmitRecoversPanics(t *testing.T) {
	c := NewController(context.Background(),
		responderFunc(func(context.Context, string) (*ai.Reply, error) { panic("nil map") }),
	)

	msg, err := c.Submit(context.Background(), "google")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Text != FailureText {
		t.Fatalf("expected failure text, got %q", msg.Text)
	}
}

func TestSubmitTimeoutCancelsCall(t *testing.T) {
	var notified error
	cancelled := make(chan struct{})
	c := NewController(context.Background(),
		responderFunc(func(ctx context.Context, _ string) (*ai.Reply, error) {
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		}),
		WithTimeout(20*time.Millisecond),
		WithNotifier(func(err error) { notified = err }),
	)

	msg, err := c.Submit(context.Background(), "google")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Text != TimeoutText || !msg.Failed {
		t.Fatalf("unexpected reply %+v", msg)
	}
	select {
	case <-cancelled:
	default:
		t.Fatalf("expected the call to observe cancellation")
	}
	if !errors.Is(notified, context.DeadlineExceeded) {
		t.Fatalf("expected deadline notification, got %v", notified)
	}
}

func TestSubmitBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	c := NewController(context.Background(),
		responderFunc(func(context.Context, string) (*ai.Reply, error) {
			close(started)
			<-release
			return &ai.Reply{Advice: "late"}, nil
		}),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := c.Submit(context.Background(), "first"); err != nil {
			t.Errorf("first submit: %v", err)
		}
	}()

	<-started
	if !c.Busy() {
		t.Fatalf("expected controller to be busy")
	}
	if _, err := c.Submit(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	messages := c.Messages()
	if len(messages) != 2 || !messages[1].Loading {
		t.Fatalf("expected a loading placeholder, got %+v", messages)
	}

	close(release)
	wg.Wait()

	messages = c.Messages()
	if len(messages) != 2 || messages[1].Text != "late" {
		t.Fatalf("unexpected log %+v", messages)
	}
}

func TestResetDuringSubmitDropsReply(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	c := NewController(context.Background(),
		responderFunc(func(context.Context, string) (*ai.Reply, error) {
			close(started)
			<-release
			return &ai.Reply{Advice: "late"}, nil
		}),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Submit(context.Background(), "first")
	}()

	<-started
	if err := c.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	close(release)
	<-done

	if got := c.Messages(); len(got) != 0 {
		t.Fatalf("expected empty log after reset, got %+v", got)
	}
}

func TestRestoreSettlesPlaceholders(t *testing.T) {
	store := NewMemoryStore()
	store.Save(context.Background(), DefaultKey, []Message{
		{ID: "u1", Sender: SenderUser, Text: "google"},
		{ID: "a1", Sender: SenderAssistant, Loading: true},
	})

	c := NewController(context.Background(), staticReply("advice"), WithHistory(store, DefaultKey))

	messages := c.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected restored log, got %d messages", len(messages))
	}
	if messages[1].Loading || !messages[1].Failed || messages[1].Text != FailureText {
		t.Fatalf("expected settled placeholder, got %+v", messages[1])
	}
}

type failingStore struct{ *MemoryStore }

func (failingStore) Load(context.Context, string) ([]Message, error) {
	return nil, errors.New("corrupt")
}

func TestRestoreFailureStartsEmpty(t *testing.T) {
	c := NewController(context.Background(), staticReply("advice"), WithHistory(failingStore{NewMemoryStore()}, "k"))

	if len(c.Messages()) != 0 {
		t.Fatalf("expected empty log")
	}
	if _, err := c.Submit(context.Background(), "google"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClose(t *testing.T) {
	for _, keep := range []bool{false, true} {
		store := NewMemoryStore()
		c := NewController(context.Background(), staticReply("advice"), WithHistory(store, "k"), WithKeepHistory(keep))
		c.Submit(context.Background(), "google")

		if err := c.Close(context.Background()); err != nil {
			t.Fatalf("close: %v", err)
		}

		persisted, _ := store.Load(context.Background(), "k")
		if keep && len(persisted) != 2 {
			t.Fatalf("expected log to be kept, got %d messages", len(persisted))
		}
		if !keep && persisted != nil {
			t.Fatalf("expected log to be cleared, got %+v", persisted)
		}
	}
}
