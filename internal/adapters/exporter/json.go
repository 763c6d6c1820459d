package exporter

import (
	"encoding/json"
	"fmt"
	"io"

	"discord-chat-manager/internal/domain"
)

// JSONFormatter пишет страницу целиком, вместе с таблицами пользователей и картами ресурсов.
type JSONFormatter struct{}

// NewJSONFormatter создает новый экземпляр JSONFormatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) Extension() string { return "json" }

func (f *JSONFormatter) Write(w io.Writer, page domain.ExportPage) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(page); err != nil {
		return fmt.Errorf("failed to encode page %d: %w", page.Page, err)
	}
	return nil
}
