package exporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"discord-chat-manager/internal/domain"
)

// ConsoleExporter печатает сообщения таблицей фиксированной ширины.
type ConsoleExporter struct {
	out          io.Writer
	authorWidth  int
	contentWidth int
}

// NewConsoleExporter создает новый экземпляр ConsoleExporter.
func NewConsoleExporter(out io.Writer, authorWidth, contentWidth int) *ConsoleExporter {
	if authorWidth <= 0 {
		authorWidth = 20
	}
	if contentWidth <= 0 {
		contentWidth = 60
	}
	return &ConsoleExporter{out: out, authorWidth: authorWidth, contentWidth: contentWidth}
}

// Export выводит сообщения и итоговую строку.
func (e *ConsoleExporter) Export(messages []domain.Message, total int) error {
	if _, err := fmt.Fprintln(e.out, "--- Messages ---"); err != nil {
		return err
	}
	if len(messages) == 0 {
		_, err := fmt.Fprintln(e.out, "No messages found.")
		return err
	}

	for i, m := range messages {
		author := m.Author.GlobalName
		if author == "" {
			author = m.Author.Username
		}
		content := strings.Join(strings.Fields(m.Content), " ")
		if len(m.Attachments) > 0 {
			content = strings.TrimSpace(fmt.Sprintf("%s [%d attachment(s)]", content, len(m.Attachments)))
		}

		_, err := fmt.Fprintf(e.out, "%d. %s  %s  %s\n",
			i+1,
			m.Timestamp.UTC().Format(time.DateTime),
			cell(author, e.authorWidth),
			runewidth.Truncate(content, e.contentWidth, "…"),
		)
		if err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(e.out, "Shown %d of %d\n", len(messages), total)
	return err
}

// cell обрезает и дополняет строку до ширины колонки с учетом широких символов.
func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}
