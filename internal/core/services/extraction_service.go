package services

import (
	"regexp"

	"discord-chat-manager/internal/domain"
	"discord-chat-manager/internal/ports"
)

// userMentionRegexp ищет упоминания пользователей вида <@123> и <@!123>.
var userMentionRegexp = regexp.MustCompile(`<@!?(\d+)>`)

// ExtractionServiceImpl реализует интерфейс ExtractionService.
type ExtractionServiceImpl struct{}

// NewExtractionService создает новый экземпляр ExtractionServiceImpl.
func NewExtractionService() ports.ExtractionService {
	return &ExtractionServiceImpl{}
}

// ExtractUserIDs собирает ID авторов, упомянутых пользователей и пользователей,
// поставивших реакции. Порядок - порядок первого появления, без повторов.
func (s *ExtractionServiceImpl) ExtractUserIDs(messages []domain.Message, reactions domain.ReactionMap) []string {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	for _, msg := range messages {
		add(msg.Author.ID)

		for _, match := range userMentionRegexp.FindAllStringSubmatch(msg.Content, -1) {
			add(match[1])
		}

		// Пользователи реакций берутся только для эмодзи, которые есть у самого сообщения.
		byEmoji := reactions[msg.ID]
		if byEmoji == nil {
			continue
		}
		for _, r := range msg.Reactions {
			for _, u := range byEmoji[r.Emoji.Encode()] {
				add(u.ID)
			}
		}
	}

	return ids
}

// authorsByID возвращает авторов сообщений по ID.
func authorsByID(messages []domain.Message) map[string]domain.User {
	out := make(map[string]domain.User, len(messages))
	for _, msg := range messages {
		if _, ok := out[msg.Author.ID]; !ok && msg.Author.ID != "" {
			out[msg.Author.ID] = msg.Author
		}
	}
	return out
}
