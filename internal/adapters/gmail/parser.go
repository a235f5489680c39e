package gmail

import (
	"encoding/base64"
	"fmt"
	"html"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"opportunity-radar/internal/domain"
)

// apiMessage: ответ users.messages.get?format=full.
type apiMessage struct {
	ID           string     `json:"id"`
	ThreadID     string     `json:"threadId"`
	InternalDate string     `json:"internalDate"`
	Payload      apiPayload `json:"payload"`
}

type apiPayload struct {
	MimeType string       `json:"mimeType"`
	Filename string       `json:"filename"`
	Headers  []apiHeader  `json:"headers"`
	Body     apiBody      `json:"body"`
	Parts    []apiPayload `json:"parts"`
}

type apiHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type apiBody struct {
	AttachmentID string `json:"attachmentId"`
	Size         int    `json:"size"`
	Data         string `json:"data"`
}

var stripPolicy = bluemonday.StrictPolicy()

// toMessage превращает ответ Gmail в письмо-кандидат; вложения только перечисляются.
func toMessage(m apiMessage) (domain.Message, error) {
	headers := headerMap(m.Payload.Headers)
	msg := domain.Message{
		ID:       m.ID,
		ThreadID: m.ThreadID,
		Sender:   headers["from"],
		Subject:  strings.TrimSpace(headers["subject"]),
	}
	if msg.ThreadID == "" {
		msg.ThreadID = m.ID
	}
	if ms, err := strconv.ParseInt(m.InternalDate, 10, 64); err == nil {
		msg.ReceivedAt = time.UnixMilli(ms).UTC()
	}
	msg.SenderDomain = senderDomain(headers["from"])
	msg.RecipientCount = countAddresses(headers["to"]) + countAddresses(headers["cc"])

	var plain, htmlParts []string
	if err := walk(m.Payload, func(p apiPayload) error {
		if p.Filename != "" && p.Body.AttachmentID != "" {
			msg.AttachmentRefs = append(msg.AttachmentRefs, domain.AttachmentRef{
				ID:       p.Body.AttachmentID,
				Filename: p.Filename,
				MimeType: p.MimeType,
				Size:     p.Body.Size,
			})
			return nil
		}
		if p.Body.Data == "" {
			return nil
		}
		switch strings.ToLower(p.MimeType) {
		case "text/plain":
			text, err := decodeData(p.Body.Data)
			if err != nil {
				return err
			}
			plain = append(plain, text)
		case "text/html":
			text, err := decodeData(p.Body.Data)
			if err != nil {
				return err
			}
			htmlParts = append(htmlParts, text)
		}
		return nil
	}); err != nil {
		return domain.Message{}, fmt.Errorf("письмо %s: %w", m.ID, err)
	}

	if len(plain) > 0 {
		msg.BodyText = strings.TrimSpace(strings.Join(plain, "\n"))
	} else if len(htmlParts) > 0 {
		msg.BodyText = htmlToText(strings.Join(htmlParts, "\n"))
	}
	return msg, nil
}

func walk(p apiPayload, fn func(apiPayload) error) error {
	if err := fn(p); err != nil {
		return err
	}
	for _, child := range p.Parts {
		if err := walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}

func headerMap(headers []apiHeader) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		key := strings.ToLower(h.Name)
		if _, exists := out[key]; !exists {
			out[key] = h.Value
		}
	}
	return out
}

// decodeData декодирует base64url из Gmail, с паддингом или без.
func decodeData(data string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", fmt.Errorf("декодирование тела: %w", err)
	}
	return string(raw), nil
}

func htmlToText(s string) string {
	s = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "</p>\n", "</div>", "</div>\n").Replace(s)
	text := html.UnescapeString(stripPolicy.Sanitize(s))
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}

// senderDomain возвращает домен отправителя в нижнем регистре.
func senderDomain(from string) string {
	addr := from
	if parsed, err := mail.ParseAddress(from); err == nil {
		addr = parsed.Address
	}
	at := strings.LastIndex(addr, "@")
	if at == -1 {
		return ""
	}
	return strings.ToLower(strings.Trim(addr[at+1:], " >"))
}

// countAddresses считает адресатов в заголовке; при ошибке разбора: по запятым.
func countAddresses(header string) int {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if list, err := mail.ParseAddressList(header); err == nil {
		return len(list)
	}
	n := 0
	for _, part := range strings.Split(header, ",") {
		if strings.Contains(part, "@") {
			n++
		}
	}
	return n
}
