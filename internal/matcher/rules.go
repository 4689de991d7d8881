package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/spigell/prep-assistant/internal/store"
)

// Category is the kind of pattern a query was classified as.
type Category string

const (
	CategoryCompany       Category = "company"
	CategoryInterviewType Category = "interview_type"
	CategoryRole          Category = "role"
	CategoryKeyword       Category = "keyword"
	// CategoryNone means nothing usable was found in the query and no lookup is issued.
	CategoryNone Category = "none"
)

// Topic keys a canned tip sheet.
type Topic string

const (
	TopicSystemDesign Topic = "system_design"
	TopicBehavioral   Topic = "behavioral"
	TopicCoding       Topic = "coding"
)

// minTokenLength is the shortest token kept by the keyword fallback.
const minTokenLength = 4

var stopWords = map[string]struct{}{
	"interview": {},
	"question":  {},
	"help":      {},
	"with":      {},
	"about":     {},
	"what":      {},
	"how":       {},
	"the":       {},
	"and":       {},
	"for":       {},
}

// Rule maps trigger terms found in a query to the lookup predicate it issues.
type Rule struct {
	Name     string
	Category Category
	// Display is the human-readable subject, e.g. the company name.
	Display string
	// Triggers are lower-case substrings searched for in the query.
	Triggers []string
	// Fields and Terms produce one substring clause per (field, term) pair.
	Fields []store.Field
	Terms  []string
	// Topic selects the tip sheet appended for this rule, if any.
	Topic Topic
}

// Matches reports whether any trigger occurs in the lower-cased query.
func (r Rule) Matches(lowerQuery string) bool {
	for _, t := range r.Triggers {
		if strings.Contains(lowerQuery, t) {
			return true
		}
	}
	return false
}

// Clauses expands the rule into its OR-joined lookup predicate.
func (r Rule) Clauses() []store.Clause {
	clauses := make([]store.Clause, 0, len(r.Fields)*len(r.Terms))
	for _, f := range r.Fields {
		for _, t := range r.Terms {
			clauses = append(clauses, store.Contains(f, t))
		}
	}
	return clauses
}

func company(name, display string, triggers ...string) Rule {
	return Rule{
		Name:     name,
		Category: CategoryCompany,
		Display:  display,
		Triggers: triggers,
		Fields:   []store.Field{store.FieldCompany},
		Terms:    triggers,
	}
}

// DefaultRules returns the rule table in priority order: companies, interview types, role families.
// The keyword fallback is not a table entry; it runs when no rule matches.
func DefaultRules() []Rule {
	fullText := []store.Field{store.FieldFullText}
	roleOrText := []store.Field{store.FieldRole, store.FieldFullText}

	return []Rule{
		company("google", "Google", "google"),
		company("microsoft", "Microsoft", "microsoft"),
		company("amazon", "Amazon", "amazon"),
		company("meta", "Meta", "meta", "facebook"),
		company("apple", "Apple", "apple"),
		company("netflix", "Netflix", "netflix"),
		company("uber", "Uber", "uber"),
		company("airbnb", "Airbnb", "airbnb"),
		{
			Name:     "system_design",
			Category: CategoryInterviewType,
			Display:  "system design",
			Triggers: []string{"system design"},
			Fields:   fullText,
			Terms:    []string{"system design", "scalability", "architecture"},
			Topic:    TopicSystemDesign,
		},
		{
			Name:     "behavioral",
			Category: CategoryInterviewType,
			Display:  "behavioral",
			Triggers: []string{"behavioral"},
			Fields:   fullText,
			Terms:    []string{"behavioral", "leadership", "teamwork"},
			Topic:    TopicBehavioral,
		},
		{
			Name:     "coding",
			Category: CategoryInterviewType,
			Display:  "coding",
			Triggers: []string{"coding", "algorithm"},
			Fields:   fullText,
			Terms:    []string{"coding", "algorithm", "data structure"},
			Topic:    TopicCoding,
		},
		{
			Name:     "technical",
			Category: CategoryInterviewType,
			Display:  "technical",
			Triggers: []string{"technical"},
			Fields:   fullText,
			Terms:    []string{"technical", "coding", "problem solving"},
		},
		{
			Name:     "software_engineer",
			Category: CategoryRole,
			Display:  "software engineer",
			Triggers: []string{"software engineer", "sde"},
			Fields:   roleOrText,
			Terms:    []string{"software engineer", "sde", "swe"},
		},
		{
			Name:     "frontend",
			Category: CategoryRole,
			Display:  "frontend",
			Triggers: []string{"frontend", "front-end"},
			Fields:   roleOrText,
			Terms:    []string{"frontend", "front-end", "react"},
		},
		{
			Name:     "backend",
			Category: CategoryRole,
			Display:  "backend",
			Triggers: []string{"backend", "back-end"},
			Fields:   roleOrText,
			Terms:    []string{"backend", "back-end", "api"},
		},
		{
			Name:     "data_science",
			Category: CategoryRole,
			Display:  "data science",
			Triggers: []string{"data scientist", "data science"},
			Fields:   roleOrText,
			Terms:    []string{"data scientist", "data science", "machine learning"},
		},
	}
}

// Classification is the outcome of matching a query against the rule table.
type Classification struct {
	Category Category
	// Rule is nil for keyword and none classifications.
	Rule *Rule
	// Tokens are the surviving keyword tokens of the fallback.
	Tokens []string
	Query  store.Query
}

// Lookup reports whether the classification issues a store lookup.
func (c Classification) Lookup() bool { return !c.Query.Empty() }

// Classify picks the first rule, in table order, whose trigger occurs in the query.
// Only one rule is ever active: earlier rules suppress later ones.
func Classify(rules []Rule, query string) Classification {
	lower := strings.ToLower(query)

	for i := range rules {
		if rules[i].Matches(lower) {
			rule := rules[i]
			return Classification{
				Category: rule.Category,
				Rule:     &rule,
				Query:    store.Query{Any: rule.Clauses()},
			}
		}
	}

	tokens := Keywords(lower)
	if len(tokens) == 0 {
		return Classification{Category: CategoryNone}
	}

	clauses := make([]store.Clause, 0, len(tokens))
	for _, t := range tokens {
		clauses = append(clauses, store.Contains(store.FieldFullText, t))
	}

	return Classification{
		Category: CategoryKeyword,
		Tokens:   tokens,
		Query:    store.Query{Any: clauses},
	}
}

// Keywords splits the query on whitespace and drops short tokens and stop words.
// Duplicates are removed, first occurrence wins.
func Keywords(query string) []string {
	var tokens []string
	seen := map[string]struct{}{}

	for _, t := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(t) < minTokenLength {
			continue
		}
		if _, ok := stopWords[t]; ok {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}

	return tokens
}

// TopicRule returns the first rule with a tip sheet whose trigger occurs in the query.
func TopicRule(rules []Rule, query string) (Rule, bool) {
	lower := strings.ToLower(query)
	for _, r := range rules {
		if r.Topic != "" && r.Matches(lower) {
			return r, true
		}
	}
	return Rule{}, false
}
