package exporter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"discord-chat-manager/internal/domain"
	"discord-chat-manager/internal/ports"
)

// Formatters возвращает все поддерживаемые форматы экспорта.
func Formatters() map[domain.ExportFormat]ports.Formatter {
	return map[domain.ExportFormat]ports.Formatter{
		domain.ExportFormatJSON: NewJSONFormatter(),
		domain.ExportFormatCSV:  NewCSVFormatter(),
		domain.ExportFormatHTML: NewHTMLFormatter(),
		domain.ExportFormatXLSX: NewXLSXFormatter(),
	}
}

var columns = []string{"id", "timestamp", "author_id", "author", "content", "attachments", "reactions", "pinned", "thread"}

// row - плоское представление сообщения для табличных форматов.
type row struct {
	ID          string
	Timestamp   string
	AuthorID    string
	Author      string
	Content     string
	Attachments string
	Reactions   string
	Pinned      bool
	Thread      string
}

func (r row) values() []string {
	return []string{r.ID, r.Timestamp, r.AuthorID, r.Author, r.Content, r.Attachments, r.Reactions, strconv.FormatBool(r.Pinned), r.Thread}
}

func rowsOf(page domain.ExportPage) []row {
	rows := make([]row, 0, len(page.Messages))
	for _, m := range page.Messages {
		r := row{
			ID:        m.ID,
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
			AuthorID:  m.Author.ID,
			Author:    authorName(page, m.Author),
			Content:   m.Content,
			Pinned:    m.Pinned,
		}

		attachments := make([]string, 0, len(m.Attachments))
		for _, a := range m.Attachments {
			attachments = append(attachments, mediaPath(page, a.URL))
		}
		r.Attachments = strings.Join(attachments, " ")

		reactions := make([]string, 0, len(m.Reactions))
		for _, re := range m.Reactions {
			reactions = append(reactions, fmt.Sprintf("%s %d", re.Emoji.Name, re.Count))
		}
		r.Reactions = strings.Join(reactions, ", ")

		if m.Thread != nil {
			r.Thread = m.Thread.Name
		}
		rows = append(rows, r)
	}
	return rows
}

func authorName(page domain.ExportPage, u domain.User) string {
	data := page.Users[u.ID]
	if g, ok := data.Guilds[page.Channel.GuildID]; ok && g.Nick != "" {
		return g.Nick
	}
	if u.GlobalName != "" {
		return data.Label(u.GlobalName)
	}
	return data.Label(u.Username)
}

// mediaPath возвращает путь внутри архива, если файл был загружен.
func mediaPath(page domain.ExportPage, url string) string {
	if p, ok := page.Maps.Media[url]; ok {
		return p
	}
	return url
}

func avatarPath(page domain.ExportPage, u domain.User) string {
	if u.Avatar == "" {
		return ""
	}
	return page.Maps.Avatars[u.ID+"/"+u.Avatar]
}
