package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"discord-chat-manager/internal/domain"
)

func TestExtractionService(t *testing.T) {
	t.Run("NewExtractionService создает корректный экземпляр", func(t *testing.T) {
		assert.NotNil(t, NewExtractionService())
	})

	t.Run("авторы и упоминания без повторов", func(t *testing.T) {
		messages := []domain.Message{
			{ID: "m1", Author: domain.User{ID: "u1"}, Content: "привет <@u2> и <@!3>"},
			{ID: "m2", Author: domain.User{ID: "u1"}, Content: "<@3> еще раз"},
		}

		got := NewExtractionService().ExtractUserIDs(messages, nil)

		assert.Equal(t, []string{"u1", "3"}, got)
	})

	t.Run("пользователи реакций только для эмодзи сообщения", func(t *testing.T) {
		thumbs := domain.Emoji{Name: "👍"}
		messages := []domain.Message{
			{ID: "m1", Author: domain.User{ID: "1"}, Reactions: []domain.Reaction{{Count: 1, Emoji: thumbs}}},
		}
		reactions := domain.ReactionMap{
			"m1": {
				thumbs.Encode(): {{ID: "2"}},
				"other":         {{ID: "9"}},
			},
		}

		got := NewExtractionService().ExtractUserIDs(messages, reactions)

		assert.Equal(t, []string{"1", "2"}, got)
	})
}
