// Package ai turns a chat query into advice: relevant experiences first, then an advisor renders them.
package ai

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/advice"
	"github.com/spigell/prep-assistant/internal/experience"
	"github.com/spigell/prep-assistant/internal/logger"
	"github.com/spigell/prep-assistant/internal/metrics"
)

// Advisor renders advice text for a query and the experiences matched for it.
type Advisor interface {
	Advise(ctx context.Context, query string, records []experience.Experience) (string, error)
	Name() string
}

// Finder returns the experiences relevant to a query. It never fails; no match is an empty slice.
type Finder interface {
	FindRelevant(ctx context.Context, query string) []experience.Experience
}

// Reply is the assistant's answer to one query.
type Reply struct {
	Advice  string
	Advisor string
	Records []experience.Experience
	Sources []experience.Match
}

// Deterministic adapts the advice synthesizer to the Advisor interface.
type Deterministic struct {
	Synthesizer *advice.Synthesizer
}

func (d Deterministic) Advise(_ context.Context, query string, records []experience.Experience) (string, error) {
	metrics.Advice.WithLabelValues(string(d.Synthesizer.Branch(query, records))).Inc()
	return d.Synthesizer.Synthesize(query, records), nil
}

func (Deterministic) Name() string { return "deterministic" }

// Assistant sequences the finder and the advisor.
type Assistant struct {
	finder   Finder
	advisor  Advisor
	fallback Deterministic
	logger   *zap.Logger
}

// NewAssistant wires the finder to an advisor. A nil advisor uses the synthesizer directly;
// otherwise the synthesizer is the fallback when the advisor fails.
func NewAssistant(finder Finder, advisor Advisor, synthesizer *advice.Synthesizer, log *zap.Logger) *Assistant {
	if synthesizer == nil {
		synthesizer = advice.NewSynthesizer(nil, nil)
	}
	fallback := Deterministic{Synthesizer: synthesizer}
	if advisor == nil {
		advisor = fallback
	}

	return &Assistant{
		finder:   finder,
		advisor:  advisor,
		fallback: fallback,
		logger:   logger.WithFields(log),
	}
}

// Respond answers a query. It fails only for blank queries or a cancelled context.
func (a *Assistant) Respond(ctx context.Context, query string) (*Reply, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}

	records := a.finder.FindRelevant(ctx, query)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	advisor := a.advisor
	text, err := advisor.Advise(ctx, query, records)
	if err != nil || strings.TrimSpace(text) == "" {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.logger.Warn("advisor failed, using built-in advice",
			append(logger.QueryFields("", query), zap.String("advisor", advisor.Name()), zap.Error(err))...,
		)
		advisor = a.fallback
		text, _ = a.fallback.Advise(ctx, query, records)
	}

	return &Reply{
		Advice:  text,
		Advisor: advisor.Name(),
		Records: records,
		Sources: experience.NewMatches(records),
	}, nil
}
