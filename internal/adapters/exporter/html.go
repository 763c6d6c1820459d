package exporter

import (
	"fmt"
	"html/template"
	"io"

	"discord-chat-manager/internal/domain"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}} - page {{.Page}}</title>
<style>
body { font-family: sans-serif; background: #313338; color: #dbdee1; }
.message { display: flex; gap: 12px; padding: 6px 0; }
.avatar { width: 40px; height: 40px; border-radius: 50%; }
.author { font-weight: bold; }
.time { color: #949ba4; font-size: 0.8em; margin-left: 6px; }
.pinned { color: #f0b232; }
.reaction img { width: 16px; height: 16px; }
</style>
</head>
<body>
<h1>{{if .Guild}}{{.Guild}} / {{end}}{{.Title}}</h1>
{{range .Messages}}<div class="message" id="m{{.ID}}">
{{if .Avatar}}<img class="avatar" src="{{.Avatar}}" alt="">{{end}}
<div>
<span class="author" title="{{.AuthorID}}">{{.Author}}</span><span class="time">{{.Timestamp}}</span>{{if .Pinned}} <span class="pinned">pinned</span>{{end}}
<div class="content">{{.Content}}</div>
{{range .Attachments}}<div class="attachment"><a href="{{.Href}}">{{.Name}}</a></div>
{{end}}{{if .Reactions}}<div class="reactions">{{range .Reactions}}<span class="reaction">{{if .Image}}<img src="{{.Image}}" alt="{{.Name}}">{{else}}{{.Name}}{{end}} {{.Count}}</span> {{end}}</div>
{{end}}{{if .Thread}}<div class="thread">Thread: {{.Thread}}</div>{{end}}
</div>
</div>
{{end}}</body>
</html>
`

type htmlAttachment struct {
	Name string
	Href string
}

type htmlReaction struct {
	Name  string
	Image string
	Count int
}

type htmlMessage struct {
	row
	Avatar      string
	Attachments []htmlAttachment
	Reactions   []htmlReaction
}

type htmlPage struct {
	Title    string
	Guild    string
	Page     int
	Messages []htmlMessage
}

// HTMLFormatter пишет самодостаточную страницу со ссылками на загруженные ресурсы.
type HTMLFormatter struct {
	tmpl *template.Template
}

// NewHTMLFormatter создает новый экземпляр HTMLFormatter.
func NewHTMLFormatter() *HTMLFormatter {
	return &HTMLFormatter{tmpl: template.Must(template.New("page").Parse(pageTemplate))}
}

func (f *HTMLFormatter) Extension() string { return "html" }

func (f *HTMLFormatter) Write(w io.Writer, page domain.ExportPage) error {
	view := htmlPage{Title: page.Title, Page: page.Page}
	if page.Guild != nil {
		view.Guild = page.Guild.Name
	}

	rows := rowsOf(page)
	for i, m := range page.Messages {
		hm := htmlMessage{row: rows[i], Avatar: avatarPath(page, m.Author)}
		for _, a := range m.Attachments {
			hm.Attachments = append(hm.Attachments, htmlAttachment{Name: a.Filename, Href: mediaPath(page, a.URL)})
		}
		for _, re := range m.Reactions {
			hm.Reactions = append(hm.Reactions, htmlReaction{
				Name:  re.Emoji.Name,
				Image: page.Maps.Emojis[re.Emoji.ID],
				Count: re.Count,
			})
		}
		view.Messages = append(view.Messages, hm)
	}

	if err := f.tmpl.Execute(w, view); err != nil {
		return fmt.Errorf("failed to render page %d: %w", page.Page, err)
	}
	return nil
}
