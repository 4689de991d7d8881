// Package experience holds the interview experience records shared by the store,
// the matcher and the advice renderer.
package experience

import (
	"fmt"
	"strings"
	"time"

	"github.com/spigell/prep-assistant/internal/textutil"
)

const (
	// TableName is the BaaS table holding interview experiences.
	TableName = "interview_experiences"

	// SnippetLength is the maximum number of full-text runes shown for a match.
	SnippetLength = 150
	// QuestionLength is the maximum number of runes of the leading question shown for a match.
	QuestionLength = 100
)

// Experience is one user-submitted interview account.
type Experience struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Company       string    `json:"company" gorm:"not null;index"`
	Role          string    `json:"role" gorm:"not null"`
	UserName      string    `json:"user_name"`
	InterviewDate string    `json:"interview_date,omitempty"`
	Rounds        []Round   `json:"rounds" gorm:"serializer:json"`
	FullText      string    `json:"full_text" gorm:"type:text"`
	AverageRating *float64  `json:"average_rating"`
	RatingCount   int       `json:"rating_count"`
	Upvotes       int       `json:"upvotes"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
}

// Round is one stage of an interview. It has no identity outside its experience.
type Round struct {
	Type       string   `json:"type" yaml:"type"`
	Difficulty string   `json:"difficulty" yaml:"difficulty"`
	Questions  []string `json:"questions" yaml:"questions"`
	Answers    []string `json:"answers" yaml:"answers"`
	Experience string   `json:"experience" yaml:"experience"`
}

func (Experience) TableName() string { return TableName }

// BuildFullText concatenates the searchable content of an experience.
// Company and role always come first so substring search on them keeps working.
func BuildFullText(company, role string, rounds []Round) string {
	parts := []string{strings.TrimSpace(company), strings.TrimSpace(role)}
	for _, r := range rounds {
		parts = append(parts, r.Type, r.Difficulty)
		parts = append(parts, r.Questions...)
		parts = append(parts, r.Answers...)
		parts = append(parts, r.Experience)
	}

	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

// EnsureFullText rebuilds the full-text blob when it is empty or lost the company or role.
func (e *Experience) EnsureFullText() {
	lower := strings.ToLower(e.FullText)
	if e.FullText != "" &&
		strings.Contains(lower, strings.ToLower(strings.TrimSpace(e.Company))) &&
		strings.Contains(lower, strings.ToLower(strings.TrimSpace(e.Role))) {
		return
	}
	e.FullText = BuildFullText(e.Company, e.Role, e.Rounds)
}

// LeadingQuestion returns the first non-empty question of the first round.
func (e *Experience) LeadingQuestion() string {
	if len(e.Rounds) == 0 {
		return ""
	}
	for _, q := range e.Rounds[0].Questions {
		if q = strings.TrimSpace(q); q != "" {
			return q
		}
	}
	return ""
}

func (e *Experience) RatingLabel() string {
	if e.AverageRating == nil || e.RatingCount == 0 {
		return "not rated yet"
	}
	noun := "ratings"
	if e.RatingCount == 1 {
		noun = "rating"
	}
	return fmt.Sprintf("%.1f (%d %s)", *e.AverageRating, e.RatingCount, noun)
}

// Match is the display projection of an experience produced for one query.
type Match struct {
	ID       string `json:"id"`
	Company  string `json:"company"`
	Role     string `json:"role"`
	Snippet  string `json:"snippet"`
	Question string `json:"question,omitempty"`
}

func NewMatch(e Experience) Match {
	question := e.LeadingQuestion()
	if question != "" {
		question = textutil.Truncate(question, QuestionLength)
	}

	return Match{
		ID:       e.ID,
		Company:  e.Company,
		Role:     e.Role,
		Snippet:  textutil.Truncate(e.FullText, SnippetLength),
		Question: question,
	}
}

func NewMatches(records []Experience) []Match {
	matches := make([]Match, 0, len(records))
	for _, r := range records {
		matches = append(matches, NewMatch(r))
	}
	return matches
}

// Text renders the snippet followed by the leading question when there is one.
func (m Match) Text() string {
	if m.Question == "" {
		return m.Snippet
	}
	return fmt.Sprintf("%s Q: \"%s\"", m.Snippet, m.Question)
}
