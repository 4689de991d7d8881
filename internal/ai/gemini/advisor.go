package gemini

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/experience"
	"github.com/spigell/prep-assistant/internal/logger"
	"github.com/spigell/prep-assistant/internal/textutil"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	maxQueryRunes       = 1000
	noExperiences       = "(none)"
)

// Advisor asks Gemini to write the advice, grounded on the matched experiences.
type Advisor struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewAdvisor(generator contentGenerator, maxLogLength int, log *zap.Logger) *Advisor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Advisor{
		generator: generator,
		logger:    logger.WithFields(log),
		maxLogLen: maxLogLength,
	}
}

func (a *Advisor) Name() string { return "gemini" }

func (a *Advisor) Advise(ctx context.Context, query string, records []experience.Experience) (string, error) {
	prompt := buildPrompt(query, records)

	a.logger.Debug("gemini generate content request",
		zap.Int("experiences", len(records)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", textutil.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", err
	}

	a.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", textutil.TruncateForLog(raw, a.maxLogLen)),
	)

	return cleanResponse(raw), nil
}

func buildPrompt(query string, records []experience.Experience) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Question:\n{{QUERY}}\n\nShared experiences:\n{{EXPERIENCES}}\n\nAnswer:"
	}

	query = textutil.Truncate(strings.TrimSpace(query), maxQueryRunes)

	return strings.NewReplacer(
		"{{QUERY}}", query,
		"{{EXPERIENCES}}", formatExperiences(records),
	).Replace(template)
}

func formatExperiences(records []experience.Experience) string {
	if len(records) == 0 {
		return noExperiences
	}

	var b strings.Builder
	for i, m := range experience.NewMatches(records) {
		fmt.Fprintf(&b, "%d. %s - %s (rating: %s): %s\n", i+1, m.Company, m.Role, records[i].RatingLabel(), m.Text())
	}
	return strings.TrimRight(b.String(), "\n")
}

// cleanResponse strips a surrounding markdown code fence some models add.
func cleanResponse(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```markdown")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(raw)
}
