package domain

import "fmt"

// ExportFormat - формат файлов экспорта.
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatHTML ExportFormat = "html"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ParseExportFormat проверяет имя формата.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case ExportFormatJSON, ExportFormatHTML, ExportFormatCSV, ExportFormatXLSX:
		return f, nil
	case "":
		return ExportFormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ExportMaps связывают внешние адреса ресурсов с путями внутри архива.
type ExportMaps struct {
	Emojis  map[string]string `json:"emoji_map"`
	Avatars map[string]string `json:"avatar_map"`
	Media   map[string]string `json:"media_map"`
	Roles   map[string]string `json:"role_map"`
}

// NewExportMaps создает пустые карты.
func NewExportMaps() ExportMaps {
	return ExportMaps{
		Emojis:  make(map[string]string),
		Avatars: make(map[string]string),
		Media:   make(map[string]string),
		Roles:   make(map[string]string),
	}
}

// ExportPage - страница сообщений, передаваемая форматтеру.
type ExportPage struct {
	Title    string      `json:"title"`
	Channel  Channel     `json:"channel"`
	Guild    *Guild      `json:"guild,omitempty"`
	Page     int         `json:"page"`
	Messages []Message   `json:"messages"`
	Users    UserMap     `json:"users"`
	Reaction ReactionMap `json:"reactions,omitempty"`
	Maps     ExportMaps  `json:"maps"`
}
