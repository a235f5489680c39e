package llm

import (
	"context"
	"fmt"
	"strings"

	"opportunity-radar/internal/domain"
)

const scorerSystem = "You are a strict career advisor. You rate how well an opportunity fits a candidate. Output a single JSON object."

// Scorer оценивает соответствие возможности резюме.
type Scorer struct {
	gen         Generator
	resumeLimit int
}

var _ domain.Scorer = (*Scorer)(nil)

// NewScorer создаёт оценщик.
func NewScorer(gen Generator) *Scorer {
	return &Scorer{gen: gen, resumeLimit: 8000}
}

// Score возвращает оценку 1..10; непонятный ответ даёт консервативную 3.
func (s *Scorer) Score(ctx context.Context, fields map[domain.Field]string, resume string) (int, error) {
	var b strings.Builder
	for _, f := range domain.AllFields {
		if v, ok := fields[f]; ok && v != "" {
			b.WriteString(f.Label() + ": " + v + "\n")
		}
	}

	prompt := fmt.Sprintf(`Rate from 1 to 10 how well the opportunity matches the candidate.
Score on field of study, skills, experience level and overall fit.
- 10: perfect match, all requirements met.
- 7-9: strong match, most requirements met, relevant field.
- 4-6: moderate match, somewhat related field.
- 1-3: weak match, unrelated field.
Be conservative and prefer lower scores when in doubt.
Return JSON: {"score": <number>}

CANDIDATE RESUME:
---
%s
---

OPPORTUNITY:
---
%s---`, clip(resume, s.resumeLimit), b.String())

	text, err := s.gen.Generate(ctx, Prompt{System: scorerSystem, User: prompt, JSON: true, MaxTokens: 50})
	if err != nil {
		return 0, fmt.Errorf("оценка: %w", err)
	}
	obj, err := parseObject(text)
	if err != nil {
		return parseScore(strings.TrimSpace(text)), nil
	}
	for _, key := range []string{"score", "relevance_score", "Relevance Score (1-10)"} {
		if v, ok := obj[key]; ok {
			return parseScore(v), nil
		}
	}
	return defaultScore, nil
}
