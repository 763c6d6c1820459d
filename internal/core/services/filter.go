package services

import (
	"slices"
	"strconv"
	"strings"

	"discord-chat-manager/internal/domain"
)

// FilterMessages применяет набор фильтров к сообщениям. Функция чистая.
// Сообщение остается, если проходит все фильтры; результат каждого фильтра
// инвертируется при включенном переключателе inverse. Выбор только сужается:
// остаются выбранные ID, попавшие в результат.
func FilterMessages(messages []domain.Message, filters []domain.Filter, threads []domain.Channel, selected []string) domain.FilterResult {
	inverse := slices.ContainsFunc(filters, domain.Filter.IsInverse)

	filtered := messages
	if !(len(filters) == 0 || (len(filters) == 1 && inverse)) {
		filtered = make([]domain.Message, 0, len(messages))
		for _, msg := range messages {
			if matchesAll(msg, filters, threads, inverse) {
				filtered = append(filtered, msg)
			}
		}
	}

	selectedSet := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		selectedSet[id] = struct{}{}
	}
	selection := make([]string, 0, len(selected))
	for _, msg := range filtered {
		if _, ok := selectedSet[msg.ID]; ok {
			selection = append(selection, msg.ID)
		}
	}

	return domain.FilterResult{Messages: slices.Clone(filtered), SelectedIDs: selection}
}

func matchesAll(msg domain.Message, filters []domain.Filter, threads []domain.Channel, inverse bool) bool {
	for _, f := range filters {
		if !matchFilter(msg, f, threads, inverse) {
			return false
		}
	}
	return true
}

// matchFilter проверяет один фильтр. Фильтр без значения пропускает сообщение.
func matchFilter(msg domain.Message, f domain.Filter, threads []domain.Channel, inverse bool) bool {
	var matches bool
	switch f.Type {
	case domain.FilterTypeText:
		if len(f.Values) == 0 {
			return true
		}
		matches = matchText(msg, f)
	case domain.FilterTypeDate:
		if f.Date == nil {
			return true
		}
		switch f.Name {
		case domain.FilterNameStartTime:
			matches = !msg.Timestamp.Before(*f.Date)
		case domain.FilterNameEndTime:
			matches = !msg.Timestamp.After(*f.Date)
		default:
			return true
		}
	case domain.FilterTypeThread:
		if f.ThreadID == "" {
			return true
		}
		matches = msg.ChannelID == f.ThreadID || (msg.Thread != nil && msg.Thread.ID == f.ThreadID)
	case domain.FilterTypeArray:
		if len(f.Values) == 0 {
			return true
		}
		matches = matchMessageType(msg, f.Values, threads)
	default:
		// Переключатели только меняют режим.
		return true
	}

	return matches != inverse
}

func matchText(msg domain.Message, f domain.Filter) bool {
	switch f.Name {
	case domain.FilterNameAttachmentName:
		names := make([]string, 0, len(msg.Attachments))
		for _, a := range msg.Attachments {
			names = append(names, a.Filename)
		}
		return containsAny(strings.Join(names, ","), f.Values, false)
	case domain.FilterNameContent:
		for _, text := range contentAndEmbedTexts(msg) {
			if containsAny(text, f.Values, true) {
				return true
			}
		}
		return false
	default:
		return containsAny(messageField(msg, f.Name), f.Values, true)
	}
}

// contentAndEmbedTexts возвращает текст сообщения и текстовые поля rich-встраиваний.
func contentAndEmbedTexts(msg domain.Message) []string {
	texts := []string{msg.Content}
	for _, e := range msg.Embeds {
		if e.Type != domain.EmbedTypeRich {
			continue
		}
		if e.Author != nil {
			texts = append(texts, e.Author.Name, e.Author.URL)
		}
		texts = append(texts, e.Description)
		if e.Footer != nil {
			texts = append(texts, e.Footer.Text)
		}
		texts = append(texts, e.Title, e.URL)
		for _, field := range e.Fields {
			texts = append(texts, field.Name)
		}
		for _, field := range e.Fields {
			texts = append(texts, field.Value)
		}
	}
	return slices.DeleteFunc(texts, func(s string) bool { return s == "" })
}

func messageField(msg domain.Message, name domain.FilterName) string {
	switch name {
	case domain.FilterNameUserName:
		return msg.Author.Username
	case domain.FilterNameID:
		return msg.ID
	case domain.FilterNameChannelID:
		return msg.ChannelID
	case domain.FilterNameType:
		return strconv.Itoa(int(msg.Type))
	case domain.FilterNameContent:
		return msg.Content
	}
	return ""
}

func containsAny(text string, values []string, caseSensitive bool) bool {
	if !caseSensitive {
		text = strings.ToLower(text)
	}
	for _, v := range values {
		if !caseSensitive {
			v = strings.ToLower(v)
		}
		if strings.Contains(text, v) {
			return true
		}
	}
	return false
}

func matchMessageType(msg domain.Message, values []string, threads []domain.Channel) bool {
	for _, v := range values {
		switch v {
		case domain.MessageCategoryPinned:
			if msg.Pinned {
				return true
			}
		case domain.MessageCategoryReactions:
			if msg.HasReactions() {
				return true
			}
		case domain.MessageCategoryThread:
			if slices.ContainsFunc(threads, func(t domain.Channel) bool { return t.ID == msg.ChannelID }) {
				return true
			}
		case domain.MessageCategoryThreadStarter:
			if msg.Thread != nil && msg.Thread.ID != "" {
				return true
			}
		default:
			if code, err := strconv.Atoi(v); err == nil && domain.MessageType(code) == msg.Type {
				return true
			}
		}
	}
	return false
}

// UpdateFilters возвращает новый набор фильтров с добавленным или снятым фильтром f.
// Фильтр с тем же именем заменяется; фильтр треда может быть только один.
func UpdateFilters(filters []domain.Filter, f domain.Filter) []domain.Filter {
	out := make([]domain.Filter, 0, len(filters)+1)
	for _, existing := range filters {
		if f.Type != domain.FilterTypeThread && existing.Name == f.Name {
			continue
		}
		if f.Type == domain.FilterTypeThread && existing.Type == domain.FilterTypeThread {
			continue
		}
		out = append(out, existing)
	}

	var keep bool
	switch f.Type {
	case domain.FilterTypeText:
		keep = slices.ContainsFunc(f.Values, func(v string) bool { return v != "" })
	case domain.FilterTypeDate:
		keep = f.Date != nil && !f.Date.IsZero()
	case domain.FilterTypeThread:
		keep = f.ThreadID != ""
	case domain.FilterTypeToggle:
		keep = f.Enabled
	case domain.FilterTypeArray:
		keep = len(f.Values) > 0
	}

	if keep {
		out = append(out, f)
	}
	return out
}
