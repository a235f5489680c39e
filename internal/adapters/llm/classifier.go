package llm

import (
	"context"
	"fmt"

	"opportunity-radar/internal/domain"
)

const classifierSystem = "You screen e-mails for a student looking for career opportunities. Answer with a single word: YES or NO."

// Classifier решает через модель, является ли письмо карьерной возможностью.
type Classifier struct {
	gen       Generator
	bodyLimit int
}

var _ domain.Classifier = (*Classifier)(nil)

// NewClassifier создаёт классификатор.
func NewClassifier(gen Generator) *Classifier {
	return &Classifier{gen: gen, bodyLimit: 6000}
}

// Classify возвращает true для стажировок, вакансий, исследовательских позиций и стипендий.
func (c *Classifier) Classify(ctx context.Context, subject, body string) (bool, error) {
	prompt := fmt.Sprintf(`Is the following e-mail a career opportunity (internship, job, research position, fellowship)?
Strictly reject events, shows and talks.
Respond with only the word YES or NO.

SUBJECT: %s
EMAIL TEXT:
---
%s
---`, subject, clip(body, c.bodyLimit))

	answer, err := c.gen.Generate(ctx, Prompt{System: classifierSystem, User: prompt, MaxTokens: 5})
	if err != nil {
		return false, fmt.Errorf("классификация: %w", err)
	}
	return parseYesNo(answer), nil
}
