package gmail

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsupportedAttachment возвращается для файлов, которые не разбираются.
var ErrUnsupportedAttachment = errors.New("тип вложения не поддерживается")

// AttachmentParser превращает содержимое файла в текст.
type AttachmentParser interface {
	Parse(ctx context.Context, filename string, data []byte) (string, error)
}

// Supported сообщает, умеем ли мы разбирать файл с таким именем.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx":
		return true
	}
	return false
}

// FileParser разбирает PDF через pdftotext и DOCX напрямую из архива.
type FileParser struct {
	pdftotext string
	timeout   time.Duration
}

// NewAttachmentParser создаёт разборщик с pdftotext из PATH.
func NewAttachmentParser() *FileParser {
	return &FileParser{pdftotext: "pdftotext", timeout: 30 * time.Second}
}

// Parse выбирает способ разбора по расширению.
func (p *FileParser) Parse(ctx context.Context, filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return p.parsePDF(ctx, data)
	case ".docx":
		return parseDOCX(data)
	}
	return "", fmt.Errorf("%s: %w", filename, ErrUnsupportedAttachment)
}

func (p *FileParser) parsePDF(ctx context.Context, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tmp, err := os.CreateTemp("", "radar_*.pdf")
	if err != nil {
		return "", fmt.Errorf("временный файл: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("запись pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("запись pdf: %w", err)
	}

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.pdftotext, "-raw", name, "-")
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", errors.New("pdftotext: пустой текст, файл может быть сканом")
	}
	return text, nil
}

// parseDOCX собирает текст абзацев из word/document.xml.
func parseDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("docx: %w", err)
		}
		defer rc.Close()
		return documentText(rc)
	}
	return "", errors.New("docx: нет word/document.xml")
}

func documentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("docx: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteString("\t")
			case "br":
				current.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(current.String()); s != "" {
					paragraphs = append(paragraphs, s)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		paragraphs = append(paragraphs, s)
	}
	return strings.Join(paragraphs, "\n"), nil
}
