// Package advice renders chat advice from a query and the experiences matched for it.
package advice

import (
	"fmt"
	"strings"

	"github.com/spigell/prep-assistant/internal/experience"
	"github.com/spigell/prep-assistant/internal/matcher"
)

// Branch names which rendering path produced the advice.
type Branch string

const (
	BranchCompany    Branch = "company"
	BranchMatches    Branch = "matches"
	BranchTopic      Branch = "topic"
	BranchOnboarding Branch = "onboarding"
)

const onboarding = `I couldn't find interview experiences for that yet. Try asking about:
- A specific company, e.g. "Google interview experience"
- An interview type, e.g. "system design interview tips"
- Behavioral interview preparation
- Coding interview practice`

// Synthesizer is a pure renderer: the same query and records always give the same text.
type Synthesizer struct {
	rules  []matcher.Rule
	sheets map[matcher.Topic]TipSheet
}

// NewSynthesizer uses the given rule table to re-scan queries. Nil arguments select the defaults.
func NewSynthesizer(rules []matcher.Rule, sheets map[matcher.Topic]TipSheet) *Synthesizer {
	if rules == nil {
		rules = matcher.DefaultRules()
	}
	if sheets == nil {
		sheets = DefaultTipSheets()
	}
	return &Synthesizer{rules: rules, sheets: sheets}
}

// Branch reports which rendering path Synthesize takes for the input.
func (s *Synthesizer) Branch(query string, records []experience.Experience) Branch {
	if len(records) > 0 {
		if _, ok := s.singleCompany(query, records); ok {
			return BranchCompany
		}
		return BranchMatches
	}
	if _, ok := s.topicSheet(query); ok {
		return BranchTopic
	}
	return BranchOnboarding
}

// Synthesize renders markdown advice. The result is never empty.
func (s *Synthesizer) Synthesize(query string, records []experience.Experience) string {
	var b strings.Builder

	if len(records) == 0 {
		sheet, ok := s.topicSheet(query)
		if !ok {
			return onboarding
		}
		b.WriteString("I don't have matching experiences yet, but here is what helps most.\n\n")
		writeSheet(&b, sheet)
		return strings.TrimRight(b.String(), "\n")
	}

	company, single := s.singleCompany(query, records)
	if single {
		fmt.Fprintf(&b, "Here's what I found from %s interview experiences:\n\n", company)
	} else {
		b.WriteString("Here's what I found in related interview experiences:\n\n")
	}

	for _, m := range experience.NewMatches(records) {
		fmt.Fprintf(&b, "**%s - %s:** %s\n\n", m.Company, m.Role, m.Text())
	}

	if single {
		writeSheet(&b, CompanyTips(company))
	} else if sheet, ok := s.topicSheet(query); ok {
		writeSheet(&b, sheet)
	}

	return strings.TrimRight(b.String(), "\n")
}

// singleCompany reports whether the query is a company query and every record belongs to one company.
func (s *Synthesizer) singleCompany(query string, records []experience.Experience) (string, bool) {
	c := matcher.Classify(s.rules, query)
	if c.Category != matcher.CategoryCompany || c.Rule == nil {
		return "", false
	}

	first := normalizeCompany(records[0].Company)
	for _, r := range records[1:] {
		if normalizeCompany(r.Company) != first {
			return "", false
		}
	}

	return c.Rule.Display, true
}

func (s *Synthesizer) topicSheet(query string) (TipSheet, bool) {
	rule, ok := matcher.TopicRule(s.rules, query)
	if !ok {
		return TipSheet{}, false
	}
	sheet, ok := s.sheets[rule.Topic]
	return sheet, ok
}

func normalizeCompany(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func writeSheet(b *strings.Builder, sheet TipSheet) {
	fmt.Fprintf(b, "**%s:**\n", sheet.Title)
	for _, bullet := range sheet.Bullets {
		fmt.Fprintf(b, "- %s\n", bullet)
	}
}
