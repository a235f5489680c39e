package llm

import (
	"context"
	"fmt"
	"strings"

	"opportunity-radar/internal/domain"
)

const extractorSystem = "You extract structured data about career opportunities from e-mails. Output a single JSON object and nothing else."

// Extractor извлекает поля возможности через модель.
type Extractor struct {
	gen Generator
}

var _ domain.Extractor = (*Extractor)(nil)

// NewExtractor создаёт экстрактор.
func NewExtractor(gen Generator) *Extractor {
	return &Extractor{gen: gen}
}

// Extract возвращает частичное отображение ключ → значение из ответа модели.
func (e *Extractor) Extract(ctx context.Context, req domain.ExtractRequest) (map[string]any, error) {
	prompt := initialPrompt(req)
	if req.FollowUp {
		prompt = followUpPrompt(req)
	}
	text, err := e.gen.Generate(ctx, Prompt{System: extractorSystem, User: prompt, JSON: true, MaxTokens: 1500})
	if err != nil {
		return nil, fmt.Errorf("извлечение: %w", err)
	}
	return parseObject(text)
}

func fieldKeys() string {
	keys := make([]string, 0, len(domain.AllFields))
	for _, f := range domain.AllFields {
		keys = append(keys, fmt.Sprintf("%q", f.Label()))
	}
	return strings.Join(keys, ", ")
}

func initialPrompt(req domain.ExtractRequest) string {
	return fmt.Sprintf(`Analyze the e-mail and any attached document text and extract the fields below as JSON.
For fields that contain a list of items (like "Required Skills" or points of the job description) format the string with bullet points (•).
If a field is not mentioned, use "N/A". Do not add any text outside the JSON object.

FIELDS: %s

FIELD RULES:
- "Application Deadline": the exact date; include a time such as "EOD" or "11:59 PM" when mentioned.
- "Institution/Company": the name of the organization.
- "Eligibility": who can apply, e.g. "2025 graduates only"; "All" when not restricted.
- "Role Title": the official title of the position.
- "Opportunity Type": one of Internship, Research Internship, Full-time, Part-time, Fellowship, Contest, Institute Student Body positions.
- "Role Field": the domain, e.g. Software Engineering, Data Science, Mechanical, Finance.
- "Location": city and country.
- "Work Mode": one of On-site, Remote, Hybrid.
- "Duration": length of the opportunity, e.g. "6 Months".
- "Time Commitment": expected hours, e.g. "Part-time (20 hrs/week)".
- "Stipend Details": exact numbers or range with currency.
- "Required Skills": bulleted list of key skills or qualifications.
- "Job Description (JD)": concise bulleted summary of responsibilities.
- "Application Link": the direct URL; "Reply to email" if applications go by e-mail.

EMAIL:
Subject: %s
From: %s
Body:
---
%s
---

ATTACHED DOCUMENT TEXT:
---
%s
---`, fieldKeys(), req.Subject, req.Sender, req.BodyText, req.AttachmentText)
}

func followUpPrompt(req domain.ExtractRequest) string {
	return fmt.Sprintf(`An opportunity from this e-mail thread has already been recorded. A new e-mail arrived in the same thread.
Analyze ONLY the new e-mail and its attachment and return a JSON object with ONLY the fields explicitly mentioned in it.
- If it announces a new deadline, return just the "Application Deadline" key.
- If it contains no new information about any field, return an empty object {}.
- Do not include fields that are not mentioned.

POSSIBLE FIELDS: %s

NEW EMAIL:
Subject: %s
Body:
---
%s
---

NEW ATTACHMENT TEXT:
---
%s
---`, fieldKeys(), req.Subject, req.BodyText, req.AttachmentText)
}
