// Package matcher decides which stored interview experiences are relevant to a free-text query.
package matcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/experience"
	"github.com/spigell/prep-assistant/internal/logger"
	"github.com/spigell/prep-assistant/internal/metrics"
	"github.com/spigell/prep-assistant/internal/store"
)

const (
	// RelevantLimit bounds the records handed to the chat assistant.
	RelevantLimit = 5

	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// Sort orders keyword search results.
type Sort string

const (
	SortDefault Sort = ""
	SortNewest  Sort = "newest"
	SortRating  Sort = "rating"
	SortUpvotes Sort = "upvotes"
)

// ParseSort validates a user-supplied sort name.
func ParseSort(s string) (Sort, error) {
	switch v := Sort(strings.ToLower(strings.TrimSpace(s))); v {
	case SortDefault, SortNewest, SortRating, SortUpvotes:
		return v, nil
	default:
		return SortDefault, fmt.Errorf("unknown sort %q (use newest, rating or upvotes)", s)
	}
}

func (s Sort) order() []store.Order {
	switch s {
	case SortNewest:
		return []store.Order{{Field: store.FieldCreatedAt, Desc: true}}
	case SortRating:
		return []store.Order{{Field: store.FieldAverageRating, Desc: true}, {Field: store.FieldCreatedAt, Desc: true}}
	case SortUpvotes:
		return []store.Order{{Field: store.FieldUpvotes, Desc: true}, {Field: store.FieldCreatedAt, Desc: true}}
	default:
		return nil
	}
}

type SearchOptions struct {
	Sort  Sort
	Limit int
}

// Matcher classifies queries with its rule table and issues at most one lookup per query.
type Matcher struct {
	lookup store.Lookup
	rules  []Rule
	logger *zap.Logger
}

// New creates a matcher. A nil rule table selects DefaultRules.
func New(lookup store.Lookup, rules []Rule, log *zap.Logger) *Matcher {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Matcher{
		lookup: lookup,
		rules:  rules,
		logger: logger.WithFields(log),
	}
}

// Rules returns the rule table in priority order.
func (m *Matcher) Rules() []Rule {
	return m.rules
}

func (m *Matcher) Classify(query string) Classification {
	return Classify(m.rules, query)
}

// FindRelevant returns up to RelevantLimit records for the query.
// Lookup failures are logged and reported as no matches.
func (m *Matcher) FindRelevant(ctx context.Context, query string) []experience.Experience {
	c := m.Classify(query)

	records, err := m.find(ctx, query, c, nil, RelevantLimit)
	if err != nil {
		fields := append(logger.QueryFields(string(c.Category), query), zap.Error(err))
		if c.Rule != nil {
			fields = append(fields, zap.String("rule", c.Rule.Name))
		}
		m.logger.Warn("experience lookup failed, continuing without matches", fields...)
		return nil
	}

	return records
}

// Search is the keyword search surface: same classification, caller-chosen order and limit.
// Unlike FindRelevant it returns lookup errors.
func (m *Matcher) Search(ctx context.Context, query string, opts SearchOptions) ([]experience.Experience, error) {
	limit := opts.Limit
	switch {
	case limit <= 0:
		limit = DefaultSearchLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}

	return m.find(ctx, query, m.Classify(query), opts.Sort.order(), limit)
}

func (m *Matcher) find(ctx context.Context, query string, c Classification, order []store.Order, limit int) ([]experience.Experience, error) {
	category := string(c.Category)

	if !c.Lookup() {
		m.logger.Debug("no lookup issued", logger.QueryFields(category, query)...)
		metrics.ObserveLookup(category, metrics.OutcomeSkipped, 0)
		return nil, nil
	}

	q := c.Query
	q.Order = order
	q.Limit = limit

	m.logger.Debug("looking up experiences",
		append(logger.QueryFields(category, query), zap.Int("clauses", len(q.Any)), zap.Int("limit", limit))...,
	)

	start := time.Now()
	records, err := m.lookup.Find(ctx, q)
	took := time.Since(start)
	if err != nil {
		metrics.ObserveLookup(category, metrics.OutcomeError, took)
		return nil, fmt.Errorf("lookup %s experiences: %w", category, err)
	}

	if len(records) > limit {
		records = records[:limit]
	}

	outcome := metrics.OutcomeOK
	if len(records) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.ObserveLookup(category, outcome, took)

	return records, nil
}

// RuleStatus is one row of the rule table as shown to operators.
type RuleStatus struct {
	Priority int
	Name     string
	Category Category
	Triggers []string
	Clauses  []string
	Topic    Topic
}

// Describe returns the rule table followed by the keyword fallback.
func (m *Matcher) Describe() []RuleStatus {
	statuses := make([]RuleStatus, 0, len(m.rules)+1)
	for i, r := range m.rules {
		clauses := make([]string, 0)
		for _, c := range r.Clauses() {
			clauses = append(clauses, c.String())
		}
		statuses = append(statuses, RuleStatus{
			Priority: i + 1,
			Name:     r.Name,
			Category: r.Category,
			Triggers: r.Triggers,
			Clauses:  clauses,
			Topic:    r.Topic,
		})
	}

	statuses = append(statuses, RuleStatus{
		Priority: len(m.rules) + 1,
		Name:     "keywords",
		Category: CategoryKeyword,
		Triggers: []string{fmt.Sprintf("any token of %d+ characters that is not a stop word", minTokenLength)},
		Clauses:  []string{fmt.Sprintf("%s %s <token> (OR per token)", store.FieldFullText, store.OpILike)},
	})

	return statuses
}
