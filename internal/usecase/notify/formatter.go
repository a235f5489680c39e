package notify

import (
	"fmt"
	"html"
	"strings"

	"opportunity-radar/internal/domain"
)

// headlineFields показываются в уведомлении о новой возможности.
var headlineFields = []domain.Field{
	domain.FieldEligibility,
	domain.FieldDeadline,
	domain.FieldLocation,
	domain.FieldWorkMode,
	domain.FieldTimeCommitment,
	domain.FieldStipend,
}

var fieldIcons = map[domain.Field]string{
	domain.FieldDeadline:        "📅",
	domain.FieldEligibility:     "🎓",
	domain.FieldLocation:        "📍",
	domain.FieldWorkMode:        "🏠",
	domain.FieldTimeCommitment:  "⏱",
	domain.FieldStipend:         "💰",
	domain.FieldApplicationLink: "🔗",
}

// FormatTelegram формирует HTML-сообщение для Telegram.
func FormatTelegram(p domain.Payload, viewURL string) string {
	var sections []string
	sections = append(sections, header(p, true))

	var body strings.Builder
	for _, f := range bodyFields(p) {
		v, ok := p.Record.Value(f)
		if !ok {
			continue
		}
		line := fmt.Sprintf("%s<b>%s:</b> %s", icon(f), escapeHTML(f.Label()), escapeValue(v))
		if p.Classification == domain.ClassificationUpdated {
			line = "✏️ " + line
		}
		body.WriteString(line + "\n")
	}
	if lines := strings.TrimSpace(body.String()); lines != "" {
		if p.Classification == domain.ClassificationUpdated {
			lines = "<i>Updated details:</i>\n" + lines
		}
		sections = append(sections, lines)
	}

	if link := strings.TrimSpace(viewURL); link != "" {
		sections = append(sections, fmt.Sprintf("<a href=\"%s\">Open the opportunities view</a>", html.EscapeString(link)))
	}
	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}

// FormatPlain формирует текстовое сообщение для почты и событий.
func FormatPlain(p domain.Payload, viewURL string) string {
	var b strings.Builder
	b.WriteString(header(p, false) + "\n\n")
	for _, f := range bodyFields(p) {
		v, ok := p.Record.Value(f)
		if !ok {
			continue
		}
		marker := ""
		if p.Classification == domain.ClassificationUpdated {
			marker = "* "
		}
		b.WriteString(fmt.Sprintf("%s%s: %s\n", marker, f.Label(), v))
	}
	if link := strings.TrimSpace(viewURL); link != "" {
		b.WriteString("\n" + link + "\n")
	}
	return strings.TrimSpace(b.String())
}

// Subject: тема письма-уведомления.
func Subject(p domain.Payload) string {
	role, _ := p.Record.Value(domain.FieldRole)
	org, _ := p.Record.Value(domain.FieldOrganization)
	prefix := "New opportunity"
	if p.Classification == domain.ClassificationUpdated {
		prefix = "Opportunity updated"
	}
	return fmt.Sprintf("%s: %s at %s", prefix, role, org)
}

func header(p domain.Payload, htmlMode bool) string {
	role, _ := p.Record.Value(domain.FieldRole)
	org, _ := p.Record.Value(domain.FieldOrganization)
	title := "✨ New opportunity"
	if p.Classification == domain.ClassificationUpdated {
		title = "🔄 Opportunity updated"
	}
	score := fmt.Sprintf("Relevance: %d/10", p.Record.RelevanceScore)
	if !htmlMode {
		return fmt.Sprintf("%s\n%s at %s\n%s", title, role, org, score)
	}
	return fmt.Sprintf("<b>%s</b>\n<b>%s</b> at <b>%s</b>\n%s", title, escapeValue(role), escapeValue(org), score)
}

// bodyFields: для NEW: основные поля, для UPDATED: только изменённые.
func bodyFields(p domain.Payload) []domain.Field {
	if p.Classification == domain.ClassificationUpdated {
		return p.Changed
	}
	return headlineFields
}

func icon(f domain.Field) string {
	if i, ok := fieldIcons[f]; ok {
		return i + " "
	}
	return "• "
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}

// maxValueRunes ограничивает значение поля так, чтобы даже после
// экранирования строка заголовка с двумя значениями влезала в одно сообщение Telegram.
const maxValueRunes = 400

// escapeValue обрезает значение до maxValueRunes и экранирует его.
// Резать нужно до экранирования, иначе разрез может попасть внутрь сущности.
func escapeValue(s string) string {
	runes := []rune(s)
	if len(runes) > maxValueRunes {
		s = strings.TrimSpace(string(runes[:maxValueRunes-1])) + "…"
	}
	return escapeHTML(s)
}
