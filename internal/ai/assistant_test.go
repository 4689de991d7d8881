package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/prep-assistant/internal/experience"
)

type stubFinder struct {
	records []experience.Experience
	queries []string
}

func (s *stubFinder) FindRelevant(_ context.Context, query string) []experience.Experience {
	s.queries = append(s.queries, query)
	return s.records
}

type stubAdvisor struct {
	text    string
	err     error
	records []experience.Experience
}

func (s *stubAdvisor) Advise(_ context.Context, _ string, records []experience.Experience) (string, error) {
	s.records = records
	return s.text, s.err
}

func (s *stubAdvisor) Name() string { return "stub" }

var googleRecords = []experience.Experience{
	{ID: "1", Company: "Google", Role: "SWE", FullText: "Google SWE onsite with graphs"},
}

func TestRespondUsesAdvisor(t *testing.T) {
	finder := &stubFinder{records: googleRecords}
	advisor := &stubAdvisor{text: "model advice"}
	a := NewAssistant(finder, advisor, nil, zap.NewNop())

	reply, err := a.Respond(context.Background(), "  google interview  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reply.Advice != "model advice" || reply.Advisor != "stub" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if len(finder.queries) != 1 || finder.queries[0] != "google interview" {
		t.Fatalf("expected trimmed query, got %v", finder.queries)
	}
	if len(advisor.records) != 1 || len(reply.Sources) != 1 || reply.Sources[0].Company != "Google" {
		t.Fatalf("expected records passed through, got %+v", reply.Sources)
	}
}

func TestRespondFallsBackWhenAdvisorFails(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	a := NewAssistant(&stubFinder{records: googleRecords}, &stubAdvisor{err: errors.New("quota exceeded")}, nil, zap.New(core))

	reply, err := a.Respond(context.Background(), "google interview")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reply.Advisor != "deterministic" {
		t.Fatalf("expected deterministic fallback, got %q", reply.Advisor)
	}
	if !strings.Contains(reply.Advice, "**Google - SWE:** Google SWE onsite with graphs") {
		t.Fatalf("unexpected fallback advice:\n%s", reply.Advice)
	}
	if logs.FilterMessage("advisor failed, using built-in advice").Len() != 1 {
		t.Fatalf("expected a warning, got %v", logs.All())
	}
}

func TestRespondFallsBackOnBlankAdvice(t *testing.T) {
	a := NewAssistant(&stubFinder{}, &stubAdvisor{text: "  "}, nil, nil)

	reply, err := a.Respond(context.Background(), "zzzz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Advisor != "deterministic" || !strings.HasPrefix(reply.Advice, "I couldn't find interview experiences") {
		t.Fatalf("expected onboarding advice, got %+v", reply)
	}
}

func TestRespondWithoutAdvisor(t *testing.T) {
	a := NewAssistant(&stubFinder{}, nil, nil, nil)

	reply, err := a.Respond(context.Background(), "system design tips")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Advisor != "deterministic" {
		t.Fatalf("expected deterministic advisor, got %q", reply.Advisor)
	}
	if !strings.Contains(reply.Advice, "I don't have matching experiences yet") {
		t.Fatalf("expected topic advice, got:\n%s", reply.Advice)
	}
	if len(reply.Sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(reply.Sources))
	}
}

func TestRespondErrors(t *testing.T) {
	a := NewAssistant(&stubFinder{}, nil, nil, nil)

	if _, err := a.Respond(context.Background(), " \n "); err == nil {
		t.Fatalf("expected error for blank query")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Respond(ctx, "google"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
